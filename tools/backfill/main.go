package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entsoe-etl/internal/marketdata/application"
	"entsoe-etl/internal/marketdata/bootstrap"
	marketdata "entsoe-etl/internal/marketdata/domain"
)

const dateLayout = "2006-01-02"

type options struct {
	from      string
	to        string
	kinds     string
	zones     string
	chunkDays int
	dryRun    bool
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	opts, err := parseFlags(cfg.Backfill.ChunkDays)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if err := run(cfg, opts, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(cfg application.Config, opts options, logger *log.Logger) error {
	window, jobs, err := plan(cfg, opts)
	if err != nil {
		return fmt.Errorf("plan error: %w", err)
	}

	if opts.dryRun {
		backfill := application.NewBackfill(application.NewRunner(nil, 1, logger), jobs, opts.chunkDays, logger)
		chunks, err := backfill.Plan(window)
		if err != nil {
			return fmt.Errorf("plan error: %w", err)
		}
		for _, chunk := range chunks {
			for _, job := range jobs {
				fmt.Printf("%s\t%s\t%s\n", chunk, job.Kind, job.Zone.ZoneID)
			}
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("store error: %w", err)
	}
	defer closer.Close()
	fetcher, err := bootstrap.NewFetcher(cfg)
	if err != nil {
		return fmt.Errorf("fetcher error: %w", err)
	}
	pipeline, err := application.NewPipeline(fetcher, store, logger)
	if err != nil {
		return fmt.Errorf("pipeline error: %w", err)
	}

	runner := application.NewRunner(pipeline, cfg.Schedule.Concurrency, logger)
	backfill := application.NewBackfill(runner, jobs, opts.chunkDays, logger)
	started := time.Now()
	report, err := backfill.Run(ctx, window)
	logger.Printf("etl backfill finished: window=%s chunks=%d failed=%d records=%d inserted=%d duration=%s",
		window, report.Chunks, report.Failed, report.Records, report.Inserted, time.Since(started))
	if err != nil {
		return fmt.Errorf("etl backfill errors: %w", err)
	}
	return nil
}

func parseFlags(defaultChunkDays int) (options, error) {
	var opts options
	flag.StringVar(&opts.from, "from", "", "first delivery day, YYYY-MM-DD (Europe/Berlin)")
	flag.StringVar(&opts.to, "to", "", "last delivery day inclusive, YYYY-MM-DD (default: from)")
	flag.StringVar(&opts.kinds, "kinds", "", "comma separated document kinds (default: all configured)")
	flag.StringVar(&opts.zones, "zones", "", "comma separated area codes (default: all configured)")
	flag.IntVar(&opts.chunkDays, "chunk-days", defaultChunkDays, "days fetched per request")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "print the planned requests without fetching")
	flag.Parse()

	if opts.from == "" {
		return opts, errors.New("-from is required")
	}
	if opts.to == "" {
		opts.to = opts.from
	}
	return opts, nil
}

func plan(cfg application.Config, opts options) (application.Window, []application.Job, error) {
	loc := marketdata.TargetLocation()
	from, err := time.ParseInLocation(dateLayout, opts.from, loc)
	if err != nil {
		return application.Window{}, nil, fmt.Errorf("-from: %w", err)
	}
	to, err := time.ParseInLocation(dateLayout, opts.to, loc)
	if err != nil {
		return application.Window{}, nil, fmt.Errorf("-to: %w", err)
	}
	if to.Before(from) {
		return application.Window{}, nil, errors.New("-to must not be before -from")
	}

	var kinds []marketdata.DocumentKind
	for _, value := range application.SplitCSV(opts.kinds) {
		kind, err := marketdata.ParseDocumentKind(value)
		if err != nil {
			return application.Window{}, nil, fmt.Errorf("-kinds %q: %w", value, err)
		}
		kinds = append(kinds, kind)
	}
	jobs, err := cfg.Jobs()
	if err != nil {
		return application.Window{}, nil, err
	}
	jobs = application.FilterJobs(jobs, kinds, application.SplitCSV(opts.zones))
	if len(jobs) == 0 {
		return application.Window{}, nil, errors.New("no configured job matches -kinds/-zones")
	}
	return application.DeliveryDays(from, to), jobs, nil
}
