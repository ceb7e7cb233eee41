package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

func TestRunnerRunAllBoundsParallelismAndKeepsOrder(t *testing.T) {
	exec := &stubExecutor{delay: 20 * time.Millisecond}
	runner := NewRunner(exec, 2, nil)
	window := DeliveryDay(time.Date(2024, 9, 25, 12, 0, 0, 0, time.UTC))

	var reqs []Request
	for _, zone := range []string{"Z1", "Z2", "Z3", "Z4", "Z5"} {
		reqs = append(reqs, Request{Kind: marketdata.KindDayAheadPrice, Zone: marketdata.ZoneContext{Country: "X", ZoneID: zone}, Window: window})
	}
	results, err := runner.RunAll(context.Background(), reqs)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	for i, res := range results {
		if res.Zone != reqs[i].Zone.ZoneID {
			t.Fatalf("result %d zone %s, want %s", i, res.Zone, reqs[i].Zone.ZoneID)
		}
	}
	if exec.peak > 2 {
		t.Fatalf("peak parallelism %d exceeds limit", exec.peak)
	}
}

func TestRunnerRunAllJoinsFailures(t *testing.T) {
	exec := &stubExecutor{failFor: map[string]error{
		"Z2": errors.New("z2 down"),
		"Z3": errors.New("z3 down"),
	}}
	runner := NewRunner(exec, 0, nil)
	window := DeliveryDay(time.Now())
	jobs := []Job{
		{Kind: marketdata.KindDayAheadPrice, Zone: marketdata.ZoneContext{Country: "X", ZoneID: "Z1"}},
		{Kind: marketdata.KindDayAheadPrice, Zone: marketdata.ZoneContext{Country: "X", ZoneID: "Z2"}},
		{Kind: marketdata.KindDayAheadPrice, Zone: marketdata.ZoneContext{Country: "X", ZoneID: "Z3"}},
	}

	results, err := runner.RunAll(context.Background(), Requests(jobs, FixedWindow(window)))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if !strings.Contains(err.Error(), "z2 down") || !strings.Contains(err.Error(), "z3 down") {
		t.Fatalf("joined error missing failures: %v", err)
	}
	if results[0].Result != ResultSuccess {
		t.Fatalf("healthy zone should still succeed: %+v", results[0])
	}
}

func TestDailyWindowUsesDayOffsets(t *testing.T) {
	now := time.Date(2024, 9, 25, 4, 0, 0, 0, time.UTC)
	window := DefaultDayOffsets().DailyWindow(now)

	balancing := window(marketdata.KindBalancingReserve)
	if want := time.Date(2024, 9, 23, 22, 0, 0, 0, time.UTC); !balancing.Start.Equal(want) {
		t.Fatalf("balancing start %s, want %s", balancing.Start, want)
	}
	dayAhead := window(marketdata.KindDayAheadPrice)
	if want := time.Date(2024, 9, 25, 22, 0, 0, 0, time.UTC); !dayAhead.Start.Equal(want) {
		t.Fatalf("day-ahead start %s, want %s", dayAhead.Start, want)
	}
}

func TestRunnerRunAllMarksCanceledRequests(t *testing.T) {
	exec := &stubExecutor{}
	runner := NewRunner(exec, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reqs := []Request{{
		Kind:   marketdata.KindBalancingReserve,
		Zone:   marketdata.ZoneContext{Country: "X", ZoneID: "Z1"},
		Window: DeliveryDay(time.Date(2024, 9, 25, 12, 0, 0, 0, time.UTC)),
	}}
	results, err := runner.RunAll(ctx, reqs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 1 || results[0].Result != ResultCanceled || results[0].Zone != "Z1" || results[0].Error == "" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}
