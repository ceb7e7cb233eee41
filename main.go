package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entsoe-etl/internal/auth"
	"entsoe-etl/internal/marketdata/application"
	"entsoe-etl/internal/marketdata/bootstrap"
	marketdatahttp "entsoe-etl/internal/marketdata/interfaces/http"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	if err := run(logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(logger *log.Logger) error {
	cfg, err := application.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.HTTP.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
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
	jobs, err := cfg.Jobs()
	if err != nil {
		return fmt.Errorf("jobs error: %w", err)
	}
	runner := application.NewRunner(pipeline, cfg.Schedule.Concurrency, logger)

	scheduler := application.NewScheduler(runner, jobs, cfg.Schedule.DailyAt, cfg.DayOffsets(), logger)
	go scheduler.Start(ctx)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.HTTP.JWTSecret), policy)
	authMiddleware.Logger = logger

	mux := marketdatahttp.NewMux(marketdatahttp.Handlers{
		Runs:     marketdatahttp.NewRunsHandler(pipeline, jobs, logger),
		Backfill: marketdatahttp.NewBackfillHandler(ctx, runner, jobs, cfg.Backfill.ChunkDays, logger),
		Records:  marketdatahttp.NewRecordsHandler(store),
		Exports:  marketdatahttp.NewExportHandler(store),
	}, authMiddleware)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s: jobs=%d daily_at=%s store=%s", cfg.HTTP.Addr, len(jobs), cfg.Schedule.DailyAt, cfg.Store.Driver)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
