package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "entsoe_etl_"

	resultSuccess = "success"
	resultEmpty   = "empty"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	fetchLatency  *prometheus.HistogramVec
	recordsMapped *prometheus.CounterVec
	rowsInserted  *prometheus.CounterVec
	backfillTotal *prometheus.CounterVec
)

// Init registers ETL metrics. When db is non-nil, row count gauges are registered for tables.
func Init(db *sql.DB, tables []string, logger *log.Logger) {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total pipeline runs by document kind and result",
			},
			[]string{"kind", "result"},
		)
		runDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
		fetchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_latency_seconds",
				Help:    "Market document fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)
		recordsMapped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_mapped_total",
				Help: "Total records produced by the mapper",
			},
			[]string{"kind"},
		)
		rowsInserted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_inserted_total",
				Help: "Total rows inserted by the store",
			},
			[]string{"kind"},
		)
		backfillTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backfill_chunks_total",
				Help: "Total backfill chunks by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			runsTotal,
			runDuration,
			fetchLatency,
			recordsMapped,
			rowsInserted,
			backfillTotal,
		)

		if db != nil {
			registerDBMetrics(db, tables, logger)
		}
	})
}

// ObserveRun records a finished pipeline run.
func ObserveRun(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if runsTotal != nil {
		runsTotal.WithLabelValues(kind, result).Inc()
	}
	if runDuration != nil {
		runDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// ObserveFetch records fetch latency and result.
func ObserveFetch(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if fetchLatency != nil {
		fetchLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddRecords increments mapped and inserted counters.
func AddRecords(kind string, mapped, inserted int) {
	if kind == "" {
		kind = "unknown"
	}
	if mapped > 0 && recordsMapped != nil {
		recordsMapped.WithLabelValues(kind).Add(float64(mapped))
	}
	if inserted > 0 && rowsInserted != nil {
		rowsInserted.WithLabelValues(kind).Add(float64(inserted))
	}
}

// IncBackfillChunk increments backfill chunk counters.
func IncBackfillChunk(result string) {
	if result == "" {
		result = resultSuccess
	}
	if backfillTotal != nil {
		backfillTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultEmpty   = resultEmpty
	ResultError   = resultError
)
