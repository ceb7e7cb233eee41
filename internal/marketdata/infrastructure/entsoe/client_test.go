package entsoe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

var (
	windowStart = time.Date(2024, time.September, 24, 22, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, time.September, 25, 22, 0, 0, 0, time.UTC)
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithRequestsPerMinute(60000)}, opts...)
	client, err := NewClient(server.URL, "token-1", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchBalancingQuery(t *testing.T) {
	queries := make(chan map[string]string, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got := map[string]string{}
		for key := range r.URL.Query() {
			got[key] = r.URL.Query().Get(key)
		}
		queries <- got
		_, _ = w.Write([]byte("<Balancing_MarketDocument/>"))
	})

	body, err := client.Fetch(context.Background(), marketdata.KindBalancingReserve, "10YDE-RWENET---I", windowStart, windowEnd)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<Balancing_MarketDocument/>" {
		t.Fatalf("unexpected body %q", body)
	}
	want := map[string]string{
		"securityToken":             "token-1",
		"documentType":              "A81",
		"businessType":              "B95",
		"processType":               "A52",
		"Type_MarketAgreement.Type": "A01",
		"controlArea_Domain":        "10YDE-RWENET---I",
		"periodStart":               "202409242200",
		"periodEnd":                 "202409252200",
	}
	got := <-queries
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("query %s: got=%q want=%q", key, got[key], value)
		}
	}
}

func TestFetchDayAheadQuery(t *testing.T) {
	queries := make(chan string, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		_, _ = w.Write([]byte("<Publication_MarketDocument/>"))
	})
	berlin := marketdata.TargetLocation()
	start := time.Date(2024, time.September, 25, 0, 0, 0, 0, berlin)
	if _, err := client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "10YFI-1--------U", start, start.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	raw := <-queries
	for _, part := range []string{"documentType=A44", "in_Domain=10YFI-1--------U", "out_Domain=10YFI-1--------U", "periodStart=202409242200"} {
		if !strings.Contains(raw, part) {
			t.Fatalf("query %q missing %q", raw, part)
		}
	}
	if strings.Contains(raw, "controlArea_Domain") {
		t.Fatalf("day-ahead query must not carry balancing params: %q", raw)
	}
}

func TestFetchNoDataAcknowledgement(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<Acknowledgement_MarketDocument xmlns="urn:ack"><Reason><code>999</code><text>No matching data found</text></Reason></Acknowledgement_MarketDocument>`))
	})
	_, err := client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "10YFI-1--------U", windowStart, windowEnd)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`<Acknowledgement_MarketDocument xmlns="urn:ack"><Reason><code>999</code><text></text></Reason><Reason><code>A01</code></Reason></Acknowledgement_MarketDocument>`))
	})
	_, err := client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "X", windowStart, windowEnd)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("reason 999 anywhere should be treated as no data, got %v", err)
	}

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
	_, err = client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "X", windowStart, windowEnd)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if !strings.Contains(apiErr.Reason, "Unauthorized") {
		t.Fatalf("reason not captured: %q", apiErr.Reason)
	}
}

func TestFetchValidatesInput(t *testing.T) {
	if _, err := NewClient("", " "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	if _, err := client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "X", windowEnd, windowStart); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), "A65", "X", windowStart, windowEnd); !errors.Is(err, marketdata.ErrUnknownDocumentKind) {
		t.Fatalf("expected ErrUnknownDocumentKind, got %v", err)
	}
}

func TestFetchRedactsTokenOnTransportError(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", "secret-token", WithRequestsPerMinute(60000),
		WithHTTPClient(&http.Client{Timeout: time.Second}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fetch(context.Background(), marketdata.KindDayAheadPrice, "X", windowStart, windowEnd)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("token leaked into error: %v", err)
	}
}

func TestFetchHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<x/>"))
	}, WithRequestsPerMinute(1))
	ctx := context.Background()
	if _, err := client.Fetch(ctx, marketdata.KindDayAheadPrice, "X", windowStart, windowEnd); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := client.Fetch(ctx, marketdata.KindDayAheadPrice, "X", windowStart, windowEnd); err == nil {
		t.Fatalf("expected the limiter to give up on the cancelled context")
	}
}
