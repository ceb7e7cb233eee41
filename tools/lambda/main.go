package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"entsoe-etl/internal/marketdata/application"
	"entsoe-etl/internal/marketdata/bootstrap"
	marketdata "entsoe-etl/internal/marketdata/domain"
)

// event optionally pins the run day (YYYY-MM-DD, Europe/Berlin); scheduled
// invocations send an empty payload and run as of now.
type event struct {
	Day string `json:"day"`
}

type response struct {
	Runs     int                     `json:"runs"`
	Failed   int                     `json:"failed"`
	Inserted int                     `json:"inserted"`
	Results  []application.RunResult `json:"results"`
}

type handler struct {
	scheduler *application.Scheduler
	now       func() time.Time
}

func (h handler) handle(ctx context.Context, e event) (response, error) {
	now := h.now()
	if e.Day != "" {
		day, err := time.ParseInLocation("2006-01-02", e.Day, marketdata.TargetLocation())
		if err != nil {
			return response{}, errors.New("day must be YYYY-MM-DD")
		}
		now = day.Add(12 * time.Hour)
	}
	results, err := h.scheduler.RunOnce(ctx, now)
	resp := response{Runs: len(results), Results: results}
	for _, res := range results {
		resp.Inserted += res.Inserted
		if res.Error != "" {
			resp.Failed++
		}
	}
	return resp, err
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	h, closer, err := newHandler(context.Background(), logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closer.Close()
	lambda.Start(h.handle)
}

// newHandler wires the daily job. The store is closed before any error returns.
func newHandler(ctx context.Context, logger *log.Logger) (handler, io.Closer, error) {
	cfg, err := application.LoadConfig()
	if err != nil {
		return handler{}, nil, fmt.Errorf("config error: %w", err)
	}
	jobs, err := cfg.Jobs()
	if err != nil {
		return handler{}, nil, fmt.Errorf("jobs error: %w", err)
	}
	store, closer, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return handler{}, nil, fmt.Errorf("store error: %w", err)
	}
	fetcher, err := bootstrap.NewFetcher(cfg)
	if err != nil {
		_ = closer.Close()
		return handler{}, nil, fmt.Errorf("fetcher error: %w", err)
	}
	pipeline, err := application.NewPipeline(fetcher, store, logger)
	if err != nil {
		_ = closer.Close()
		return handler{}, nil, fmt.Errorf("pipeline error: %w", err)
	}
	runner := application.NewRunner(pipeline, cfg.Schedule.Concurrency, logger)
	h := handler{
		scheduler: application.NewScheduler(runner, jobs, cfg.Schedule.DailyAt, cfg.DayOffsets(), logger),
		now:       time.Now,
	}
	return h, closer, nil
}
