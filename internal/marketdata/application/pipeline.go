package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	marketdata "entsoe-etl/internal/marketdata/domain"
	"entsoe-etl/internal/observability/metrics"
)

// Run outcomes used in logs and metrics.
const (
	ResultSuccess    = metrics.ResultSuccess
	ResultEmpty      = metrics.ResultEmpty
	ResultMalformed  = "malformed"
	ResultFetchError = "fetch_error"
	ResultStoreError = "store_error"
	ResultCanceled   = "canceled"
)

// ErrNilPipeline indicates a pipeline built without collaborators.
var ErrNilPipeline = errors.New("application: nil pipeline")

// Fetcher downloads one raw market document. Implementations report
// "no data" with an error wrapping marketdata.ErrEmptyResult.
type Fetcher interface {
	Fetch(ctx context.Context, kind marketdata.DocumentKind, zone string, start, end time.Time) ([]byte, error)
}

// Store persists mapped records.
type Store interface {
	EnsureSchema(ctx context.Context, shape marketdata.Shape) error
	InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error)
}

// RecordReader lists persisted records.
type RecordReader interface {
	ListRecords(ctx context.Context, shape marketdata.Shape, query marketdata.RecordQuery) ([]marketdata.Record, error)
}

// RecordStore is a store that can also list what it persisted.
type RecordStore interface {
	Store
	RecordReader
}

// Request selects one document to fetch, map and store.
type Request struct {
	Kind   marketdata.DocumentKind
	Zone   marketdata.ZoneContext
	Window Window
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	RunID    string                  `json:"run_id"`
	Kind     marketdata.DocumentKind `json:"kind"`
	Zone     string                  `json:"zone"`
	Country  string                  `json:"country"`
	Window   Window                  `json:"window"`
	Records  int                     `json:"records"`
	Inserted int                     `json:"inserted"`
	Result   string                  `json:"result"`
	Duration time.Duration           `json:"duration"`
	Error    string                  `json:"error,omitempty"`
}

// Pipeline runs fetch, map and insert for a single request.
type Pipeline struct {
	fetcher Fetcher
	store   Store
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
}

// PipelineOption configures a pipeline.
type PipelineOption func(*Pipeline)

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(newID func() string) PipelineOption {
	return func(p *Pipeline) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// NewPipeline constructs a pipeline.
func NewPipeline(fetcher Fetcher, store Store, logger *log.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if fetcher == nil || store == nil {
		return nil, ErrNilPipeline
	}
	p := &Pipeline{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the request. An empty result is not an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (RunResult, error) {
	if p == nil {
		return RunResult{}, ErrNilPipeline
	}
	res := RunResult{
		RunID:   p.newID(),
		Kind:    req.Kind,
		Zone:    req.Zone.ZoneID,
		Country: req.Zone.Country,
		Window:  req.Window,
	}
	started := p.now()
	err := p.run(ctx, req, &res)
	res.Duration = p.now().Sub(started)
	if err != nil {
		res.Error = err.Error()
	}
	metrics.ObserveRun(string(req.Kind), res.Result, res.Duration)
	p.logResult(res)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request, res *RunResult) error {
	if !req.Kind.IsValid() {
		res.Result = ResultMalformed
		return marketdata.ErrUnknownDocumentKind
	}
	if err := req.Zone.Validate(); err != nil {
		res.Result = ResultMalformed
		return err
	}
	if err := req.Window.Validate(); err != nil {
		res.Result = ResultMalformed
		return err
	}
	shape, err := marketdata.Route(req.Kind)
	if err != nil {
		res.Result = ResultMalformed
		return err
	}

	fetchStarted := p.now()
	raw, err := p.fetcher.Fetch(ctx, req.Kind, req.Zone.ZoneID, req.Window.Start, req.Window.End)
	fetchResult := ResultSuccess
	switch {
	case errors.Is(err, marketdata.ErrEmptyResult):
		fetchResult = ResultEmpty
	case err != nil:
		fetchResult = ResultFetchError
	}
	metrics.ObserveFetch(string(req.Kind), fetchResult, p.now().Sub(fetchStarted))
	if fetchResult == ResultEmpty {
		res.Result = ResultEmpty
		return nil
	}
	if err != nil {
		res.Result = ResultFetchError
		return fmt.Errorf("fetch %s %s: %w", req.Kind, req.Zone.ZoneID, err)
	}

	batch, err := marketdata.Map(raw, req.Kind, req.Zone)
	if errors.Is(err, marketdata.ErrEmptyResult) {
		res.Result = ResultEmpty
		return nil
	}
	if err != nil {
		res.Result = ResultMalformed
		return err
	}
	res.Records = len(batch.Records)

	inserted, err := p.store.InsertMany(ctx, shape, batch.Records)
	metrics.AddRecords(string(req.Kind), res.Records, inserted)
	res.Inserted = inserted
	if err != nil {
		res.Result = ResultStoreError
		return fmt.Errorf("insert %s: %w", shape.Table, err)
	}
	res.Result = ResultSuccess
	return nil
}

func (p *Pipeline) logResult(res RunResult) {
	if p.logger == nil {
		return
	}
	switch res.Result {
	case ResultSuccess:
		p.logger.Printf("etl run done: run=%s kind=%s zone=%s window=%s records=%d inserted=%d duration=%s",
			res.RunID, res.Kind, res.Zone, res.Window, res.Records, res.Inserted, res.Duration)
	case ResultEmpty:
		p.logger.Printf("etl run empty: run=%s kind=%s zone=%s window=%s", res.RunID, res.Kind, res.Zone, res.Window)
	default:
		p.logger.Printf("etl run failed: run=%s kind=%s zone=%s window=%s result=%s err=%s",
			res.RunID, res.Kind, res.Zone, res.Window, res.Result, res.Error)
	}
}

// Migrate ensures the table of every routed shape once.
func Migrate(ctx context.Context, store Store, kinds ...marketdata.DocumentKind) error {
	if store == nil {
		return ErrNilPipeline
	}
	if len(kinds) == 0 {
		kinds = marketdata.Kinds()
	}
	for _, kind := range kinds {
		shape, err := marketdata.Route(kind)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(ctx, shape); err != nil {
			return fmt.Errorf("ensure schema %s: %w", shape.Table, err)
		}
	}
	return nil
}
