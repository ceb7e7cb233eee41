package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"entsoe-etl/internal/observability/metrics"
)

const defaultChunkDays = 7

// Backfill walks a historical range through the runner chunk by chunk.
type Backfill struct {
	runner    *Runner
	jobs      []Job
	chunkDays int
	logger    *log.Logger
}

// BackfillReport summarizes a backfill.
type BackfillReport struct {
	Chunks   int         `json:"chunks"`
	Failed   int         `json:"failed"`
	Records  int         `json:"records"`
	Inserted int         `json:"inserted"`
	Results  []RunResult `json:"results,omitempty"`
}

// NewBackfill constructs a Backfill. chunkDays <= 0 uses a default of 7.
func NewBackfill(runner *Runner, jobs []Job, chunkDays int, logger *log.Logger) *Backfill {
	if chunkDays <= 0 {
		chunkDays = defaultChunkDays
	}
	return &Backfill{runner: runner, jobs: jobs, chunkDays: chunkDays, logger: logger}
}

// Plan returns the chunk windows of w.
func (b *Backfill) Plan(w Window) ([]Window, error) {
	return SplitWindow(w, b.chunkDays)
}

// Run processes w sequentially by chunk. A failing chunk is logged and the walk
// continues; the returned error joins every chunk failure.
func (b *Backfill) Run(ctx context.Context, w Window) (BackfillReport, error) {
	var report BackfillReport
	if b == nil || b.runner == nil {
		return report, ErrNilPipeline
	}
	chunks, err := b.Plan(w)
	if err != nil {
		return report, err
	}
	var errs []error
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report.Chunks++
		results, err := b.runner.RunAll(ctx, Requests(b.jobs, FixedWindow(chunk)))
		report.Results = append(report.Results, results...)
		for _, res := range results {
			report.Records += res.Records
			report.Inserted += res.Inserted
		}
		if err != nil {
			report.Failed++
			metrics.IncBackfillChunk(metrics.ResultError)
			errs = append(errs, fmt.Errorf("chunk %s: %w", chunk, err))
			if b.logger != nil {
				b.logger.Printf("etl backfill chunk failed: window=%s err=%v", chunk, err)
			}
			continue
		}
		metrics.IncBackfillChunk(metrics.ResultSuccess)
		if b.logger != nil {
			b.logger.Printf("etl backfill chunk done: window=%s runs=%d", chunk, len(results))
		}
	}
	return report, errors.Join(errs...)
}
