package metrics

import (
	"database/sql"
	"log"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func registerDBMetrics(db *sql.DB, tables []string, logger *log.Logger) {
	for _, table := range tables {
		if !tableName.MatchString(table) {
			if logger != nil {
				logger.Printf("metrics: skip table gauge for invalid name %q", table)
			}
			continue
		}
		query := "SELECT COUNT(*) FROM " + table
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        metricPrefix + "table_rows",
				Help:        "Rows stored per destination table",
				ConstLabels: prometheus.Labels{"table": table},
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
