package application

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

const defaultConcurrency = 4

// Job is one configured (zone, kind) pair.
type Job struct {
	Kind marketdata.DocumentKind
	Zone marketdata.ZoneContext
}

// Executor runs a single request.
type Executor interface {
	Run(ctx context.Context, req Request) (RunResult, error)
}

// Runner fans requests out to an executor with bounded parallelism.
type Runner struct {
	exec        Executor
	concurrency int
	logger      *log.Logger
}

// NewRunner constructs a Runner. concurrency <= 0 uses a default of 4.
func NewRunner(exec Executor, concurrency int, logger *log.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Runner{exec: exec, concurrency: concurrency, logger: logger}
}

// RunAll executes every request. A failing request does not stop the others;
// results keep request order and the returned error joins every failure.
func (r *Runner) RunAll(ctx context.Context, reqs []Request) ([]RunResult, error) {
	if r == nil || r.exec == nil {
		return nil, ErrNilPipeline
	}
	results := make([]RunResult, len(reqs))
	errs := make([]error, len(reqs))

	var group errgroup.Group
	group.SetLimit(r.concurrency)
	for i, req := range reqs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = RunResult{
					Kind:    req.Kind,
					Zone:    req.Zone.ZoneID,
					Country: req.Zone.Country,
					Window:  req.Window,
					Result:  ResultCanceled,
					Error:   err.Error(),
				}
				errs[i] = err
				return nil
			}
			results[i], errs[i] = r.exec.Run(ctx, req)
			return nil
		})
	}
	_ = group.Wait()
	return results, errors.Join(errs...)
}

// Requests pairs every job with the window chosen for its kind.
func Requests(jobs []Job, window func(marketdata.DocumentKind) Window) []Request {
	reqs := make([]Request, 0, len(jobs))
	for _, job := range jobs {
		reqs = append(reqs, Request{Kind: job.Kind, Zone: job.Zone, Window: window(job.Kind)})
	}
	return reqs
}

// FixedWindow returns a window selector that ignores the kind.
func FixedWindow(w Window) func(marketdata.DocumentKind) Window {
	return func(marketdata.DocumentKind) Window { return w }
}

// DayOffsets maps a kind to the delivery day, relative to today, fetched by the daily job.
type DayOffsets map[marketdata.DocumentKind]int

// DefaultDayOffsets fetches yesterday's balancing reserves and tomorrow's day-ahead prices.
func DefaultDayOffsets() DayOffsets {
	return DayOffsets{
		marketdata.KindBalancingReserve: -1,
		marketdata.KindDayAheadPrice:    1,
	}
}

// DailyWindow returns the window selector of the daily job at now.
func (o DayOffsets) DailyWindow(now time.Time) func(marketdata.DocumentKind) Window {
	loc := marketdata.TargetLocation()
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	return func(kind marketdata.DocumentKind) Window {
		return DeliveryDay(today.AddDate(0, 0, o[kind]))
	}
}
