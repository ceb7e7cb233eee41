package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

const publicationNS = "urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3"

var testZone = marketdata.ZoneContext{Country: "Germany", ZoneID: "10Y1001A1001A82H"}

// priceDocument renders a day-ahead document with hourly points from start.
func priceDocument(start time.Time, prices ...string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="%s">
	<TimeSeries>
		<Period>
			<timeInterval><start>%s</start><end>%s</end></timeInterval>
			<resolution>PT60M</resolution>
`, publicationNS, start.UTC().Format("2006-01-02T15:04Z"), start.UTC().Add(time.Duration(len(prices))*time.Hour).Format("2006-01-02T15:04Z"))
	for i, price := range prices {
		fmt.Fprintf(&b, "\t\t\t<Point><position>%d</position><price.amount>%s</price.amount></Point>\n", i+1, price)
	}
	b.WriteString("\t\t</Period>\n\t</TimeSeries>\n</Publication_MarketDocument>\n")
	return []byte(b.String())
}

type fetchCall struct {
	kind  marketdata.DocumentKind
	zone  string
	start time.Time
	end   time.Time
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	fetch func(kind marketdata.DocumentKind, zone string, start, end time.Time) ([]byte, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, kind marketdata.DocumentKind, zone string, start, end time.Time) ([]byte, error) {
	_ = ctx
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{kind: kind, zone: zone, start: start, end: end})
	f.mu.Unlock()
	return f.fetch(kind, zone, start, end)
}

func (f *stubFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type failingStore struct {
	err error
}

func (s failingStore) EnsureSchema(ctx context.Context, shape marketdata.Shape) error {
	return s.err
}

func (s failingStore) InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error) {
	return 0, s.err
}

type stubExecutor struct {
	mu      sync.Mutex
	active  int
	peak    int
	delay   time.Duration
	failFor map[string]error
	seen    []Request
}

func (e *stubExecutor) Run(ctx context.Context, req Request) (RunResult, error) {
	e.mu.Lock()
	e.active++
	if e.active > e.peak {
		e.peak = e.active
	}
	e.seen = append(e.seen, req)
	err := e.failFor[req.Zone.ZoneID]
	e.mu.Unlock()

	time.Sleep(e.delay)

	e.mu.Lock()
	e.active--
	e.mu.Unlock()

	res := RunResult{Kind: req.Kind, Zone: req.Zone.ZoneID, Window: req.Window, Result: ResultSuccess, Records: 1, Inserted: 1}
	if err != nil {
		res.Result = ResultFetchError
		res.Records, res.Inserted = 0, 0
	}
	return res, err
}
