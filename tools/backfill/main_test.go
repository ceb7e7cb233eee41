package main

import (
	"io"
	"log"
	"testing"

	"entsoe-etl/internal/marketdata/application"
	marketdata "entsoe-etl/internal/marketdata/domain"
)

func testConfig() application.Config {
	return application.Config{Zones: []application.ZoneConfig{
		{Country: "Germany", Area: "10YDE-RWENET---I", Kinds: []string{"balancing_reserve"}},
		{Country: "Germany", Area: "10Y1001A1001A82H", Kinds: []string{"day_ahead_price"}},
	}}
}

func TestPlanFiltersJobsAndCoversDays(t *testing.T) {
	window, jobs, err := plan(testConfig(), options{from: "2024-10-26", to: "2024-10-27", kinds: "day_ahead_price"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Kind != marketdata.KindDayAheadPrice {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	// 24h plus the 25h DST day.
	if got := window.End.Sub(window.Start).Hours(); got != 49 {
		t.Fatalf("window spans %vh, want 49h", got)
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	cases := []options{
		{from: "26.10.2024", to: "2024-10-27"},
		{from: "2024-10-27", to: "2024-10-26"},
		{from: "2024-10-26", to: "2024-10-26", kinds: "solar"},
		{from: "2024-10-26", to: "2024-10-26", zones: "10YFR-RTE------C"},
	}
	for _, opts := range cases {
		if _, _, err := plan(testConfig(), opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}

func TestRunReturnsErrorsInsteadOfExiting(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if err := run(testConfig(), options{from: "2024-10-27", to: "2024-10-26"}, logger); err == nil {
		t.Fatalf("expected plan error")
	}
	if err := run(testConfig(), options{from: "2024-10-26", to: "2024-10-27", chunkDays: 1, dryRun: true}, logger); err != nil {
		t.Fatalf("dry run: %v", err)
	}
}
