package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	marketdata "entsoe-etl/internal/marketdata/domain"
	"entsoe-etl/internal/marketdata/infrastructure/sqlrows"
)

// Store is a Postgres implementation of the record store.
type Store struct {
	db         *sql.DB
	migrations string
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithMigrationsTable overrides the schema version table name.
func WithMigrationsTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.migrations = table
		}
	}
}

// NewStore constructs a store with the default migrations table.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, migrations: sqlrows.MigrationsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sqlType(t marketdata.ColumnType) string {
	switch t {
	case marketdata.ColumnFloat:
		return "DOUBLE PRECISION"
	case marketdata.ColumnTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// EnsureSchema creates the table with its base columns and applies pending
// column migrations. Existing tables and columns are left untouched.
func (s *Store) EnsureSchema(ctx context.Context, shape marketdata.Shape) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return err
	}
	if err := sqlrows.CheckIdentifier(s.migrations); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	table_name TEXT NOT NULL,
	version INTEGER NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (table_name, version)
)`, s.migrations)); err != nil {
		return fmt.Errorf("create %s: %w", s.migrations, err)
	}

	defs := make([]string, 0, len(shape.Base)+1)
	defs = append(defs, "id BIGSERIAL PRIMARY KEY")
	for _, c := range shape.Base {
		defs = append(defs, c.Name+" "+sqlType(c.Type))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", shape.Table, strings.Join(defs, ",\n\t"))); err != nil {
		return fmt.Errorf("create %s: %w", shape.Table, err)
	}

	current, err := s.version(ctx, shape.Table)
	if err != nil {
		return err
	}
	if current < 1 {
		if err := s.apply(ctx, shape.Table, marketdata.Migration{Version: 1}); err != nil {
			return err
		}
	}
	for _, m := range shape.Migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, shape.Table, m); err != nil {
			return err
		}
	}

	if sqlrows.HasColumn(shape, marketdata.ColumnRecordKey) {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s_record_key_uidx ON %s (%s)",
			shape.Table, shape.Table, marketdata.ColumnRecordKey)); err != nil {
			return fmt.Errorf("index %s: %w", shape.Table, err)
		}
	}
	return nil
}

func (s *Store) version(ctx context.Context, table string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COALESCE(MAX(version), 0) FROM %s WHERE table_name = $1", s.migrations), table).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version of %s: %w", table, err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, table string, m marketdata.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, c := range m.Columns {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, c.Name, sqlType(c.Type))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate %s to v%d: %w", table, m.Version, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (table_name, version) VALUES ($1, $2) ON CONFLICT DO NOTHING", s.migrations), table, m.Version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertMany inserts records in one transaction, skipping keys already stored,
// and returns the number of new rows.
func (s *Store) InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("postgres store: nil db")
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return 0, err
	}

	columns := shape.Columns()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", shape.Table, sqlrows.ColumnList(columns), strings.Join(placeholders, ", "))
	if sqlrows.HasColumn(shape, marketdata.ColumnRecordKey) {
		query += " ON CONFLICT (" + marketdata.ColumnRecordKey + ") DO NOTHING"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		values, err := shape.Values(rec)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		result, err := stmt.ExecContext(ctx, sqlrows.UTCValues(values)...)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListRecords returns records matching query ordered by interval start and zone.
func (s *Store) ListRecords(ctx context.Context, shape marketdata.Shape, query marketdata.RecordQuery) ([]marketdata.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return nil, err
	}
	where, args := sqlrows.Filter(query, func(n int) string { return fmt.Sprintf("$%d", n) })
	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s",
		sqlrows.ColumnList(shape.Columns()), shape.Table, where, sqlrows.OrderBy)
	if query.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlrows.ScanRecords(rows, shape)
}
