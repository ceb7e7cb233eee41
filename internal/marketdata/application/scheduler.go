package application

import (
	"context"
	"log"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// Scheduler triggers the daily incremental job.
type Scheduler struct {
	runner  *Runner
	jobs    []Job
	dailyAt string
	offsets DayOffsets
	logger  *log.Logger
	lastRun string
}

// NewScheduler constructs a Scheduler. dailyAt is "15:04" in Europe/Berlin time.
func NewScheduler(runner *Runner, jobs []Job, dailyAt string, offsets DayOffsets, logger *log.Logger) *Scheduler {
	if offsets == nil {
		offsets = DefaultDayOffsets()
	}
	return &Scheduler{
		runner:  runner,
		jobs:    jobs,
		dailyAt: dailyAt,
		offsets: offsets,
		logger:  logger,
	}
}

// Start begins the scheduler loop and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		if s.logger != nil {
			s.logger.Printf("etl schedule disabled: daily_at=%q err=%v", s.dailyAt, err)
		}
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.RunOnce(ctx, now)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	local := now.In(marketdata.TargetLocation())
	if local.Hour() != hour || local.Minute() != minute {
		return false
	}
	return local.Format("2006-01-02") != s.lastRun
}

// RunOnce runs the daily job as of now.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) ([]RunResult, error) {
	s.lastRun = now.In(marketdata.TargetLocation()).Format("2006-01-02")
	if len(s.jobs) == 0 {
		return nil, nil
	}
	results, err := s.runner.RunAll(ctx, Requests(s.jobs, s.offsets.DailyWindow(now)))
	if err != nil && s.logger != nil {
		s.logger.Printf("etl schedule error: day=%s err=%v", s.lastRun, err)
	}
	return results, err
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
