// Package bootstrap builds the fetcher and the configured record store.
package bootstrap

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"

	"entsoe-etl/internal/marketdata/application"
	marketdata "entsoe-etl/internal/marketdata/domain"
	"entsoe-etl/internal/marketdata/infrastructure/dynamo"
	"entsoe-etl/internal/marketdata/infrastructure/entsoe"
	"entsoe-etl/internal/marketdata/infrastructure/memory"
	"entsoe-etl/internal/marketdata/infrastructure/postgres"
	"entsoe-etl/internal/marketdata/infrastructure/sqlite"
	"entsoe-etl/internal/observability/metrics"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFetcher builds the ENTSO-E client from config.
func NewFetcher(cfg application.Config) (*entsoe.Client, error) {
	return entsoe.NewClient(cfg.API.BaseURL, cfg.API.Token,
		entsoe.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		entsoe.WithRequestsPerMinute(cfg.API.RequestsPerMinute),
		entsoe.WithBalancingParams(entsoe.BalancingParams{
			BusinessType:        cfg.API.Balancing.BusinessType,
			ProcessType:         cfg.API.Balancing.ProcessType,
			MarketAgreementType: cfg.API.Balancing.MarketAgreementType,
		}),
	)
}

// OpenStore opens the configured store, registers metrics and migrates every
// shape. The returned closer releases the underlying connection.
func OpenStore(ctx context.Context, cfg application.StoreConfig, logger *log.Logger) (application.RecordStore, io.Closer, error) {
	var (
		store  application.RecordStore
		closer io.Closer = nopCloser{}
		db     *sql.DB
	)
	switch cfg.Driver {
	case application.DriverPostgres:
		conn, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := conn.PingContext(ctx); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		db, closer, store = conn, conn, postgres.NewStore(conn)
	case application.DriverSQLite:
		conn, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		db, closer, store = conn, conn, sqlite.NewStore(conn)
	case application.DriverDynamoDB:
		client, err := dynamo.NewClient(cfg.DynamoDBRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, nil, err
		}
		store = dynamo.NewStore(client)
	case application.DriverMemory:
		store = memory.NewStore()
	default:
		return nil, nil, application.ErrUnknownDriver
	}

	tables := make([]string, 0, len(marketdata.Kinds()))
	for _, shape := range marketdata.Shapes() {
		tables = append(tables, shape.Table)
	}
	metrics.Init(db, tables, logger)

	if err := application.Migrate(ctx, store); err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	if logger != nil {
		logger.Printf("etl store ready: driver=%s tables=%v", cfg.Driver, tables)
	}
	return store, closer, nil
}
