package marketdatahttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"entsoe-etl/internal/marketdata/application"
	marketdata "entsoe-etl/internal/marketdata/domain"
	"entsoe-etl/internal/marketdata/interfaces/export"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// RunsHandler runs one pipeline synchronously.
type RunsHandler struct {
	exec   application.Executor
	zones  map[string]marketdata.ZoneContext
	logger *log.Logger
}

// NewRunsHandler constructs a RunsHandler. Only zones of configured jobs are accepted.
func NewRunsHandler(exec application.Executor, jobs []application.Job, logger *log.Logger) *RunsHandler {
	return &RunsHandler{exec: exec, zones: zoneIndex(jobs), logger: logger}
}

type runRequest struct {
	Kind  string `json:"kind"`
	Zone  string `json:"zone"`
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ServeHTTP handles POST /api/v1/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.exec == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	var payload runRequest
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := marketdata.ParseDocumentKind(payload.Kind)
	if err != nil {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	zone, ok := h.zones[payload.Zone]
	if !ok {
		http.Error(w, "zone is not configured", http.StatusBadRequest)
		return
	}
	window, err := requestWindow(payload.Day, payload.Start, payload.End)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.exec.Run(r.Context(), application.Request{Kind: kind, Zone: zone, Window: window})
	status := http.StatusOK
	if err != nil {
		status = statusForResult(res.Result)
		if h.logger != nil {
			h.logger.Printf("api run error: kind=%s zone=%s err=%v", kind, zone.ZoneID, err)
		}
	}
	writeJSON(w, status, res)
}

func statusForResult(result string) int {
	switch result {
	case application.ResultMalformed:
		return http.StatusUnprocessableEntity
	case application.ResultFetchError:
		return http.StatusBadGateway
	case application.ResultCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// BackfillHandler starts background backfills, one at a time.
type BackfillHandler struct {
	runner    *application.Runner
	jobs      []application.Job
	chunkDays int
	baseCtx   context.Context
	logger    *log.Logger
	running   atomic.Bool
}

// NewBackfillHandler constructs a BackfillHandler. Backfills run under baseCtx.
func NewBackfillHandler(baseCtx context.Context, runner *application.Runner, jobs []application.Job, chunkDays int, logger *log.Logger) *BackfillHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &BackfillHandler{runner: runner, jobs: jobs, chunkDays: chunkDays, baseCtx: baseCtx, logger: logger}
}

type backfillRequest struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kinds []string `json:"kinds"`
	Zones []string `json:"zones"`
}

type backfillAccepted struct {
	Window application.Window   `json:"window"`
	Chunks []application.Window `json:"chunks"`
	Jobs   int                  `json:"jobs"`
}

// ServeHTTP handles POST /api/v1/backfill.
func (h *BackfillHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runner == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	var payload backfillRequest
	if err := decodeBody(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := time.ParseInLocation(dateLayout, payload.From, marketdata.TargetLocation())
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.ParseInLocation(dateLayout, payload.To, marketdata.TargetLocation())
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to must not be before from", http.StatusBadRequest)
		return
	}
	var kinds []marketdata.DocumentKind
	for _, value := range payload.Kinds {
		kind, err := marketdata.ParseDocumentKind(value)
		if err != nil {
			http.Error(w, "unknown kind "+strconv.Quote(value), http.StatusBadRequest)
			return
		}
		kinds = append(kinds, kind)
	}
	jobs := application.FilterJobs(h.jobs, kinds, payload.Zones)
	if len(jobs) == 0 {
		http.Error(w, "no configured job matches", http.StatusBadRequest)
		return
	}

	window := application.DeliveryDays(from, to)
	backfill := application.NewBackfill(h.runner, jobs, h.chunkDays, h.logger)
	chunks, err := backfill.Plan(window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		http.Error(w, "backfill already running", http.StatusConflict)
		return
	}
	go func() {
		defer h.running.Store(false)
		report, err := backfill.Run(h.baseCtx, window)
		if h.logger != nil {
			h.logger.Printf("api backfill done: window=%s chunks=%d failed=%d inserted=%d err=%v",
				window, report.Chunks, report.Failed, report.Inserted, err)
		}
	}()
	writeJSON(w, http.StatusAccepted, backfillAccepted{Window: window, Chunks: chunks, Jobs: len(jobs)})
}

// Running reports whether a backfill is in progress.
func (h *BackfillHandler) Running() bool {
	return h.running.Load()
}

// RecordsHandler lists stored records as JSON.
type RecordsHandler struct {
	reader application.RecordReader
}

// NewRecordsHandler constructs a RecordsHandler.
func NewRecordsHandler(reader application.RecordReader) *RecordsHandler {
	return &RecordsHandler{reader: reader}
}

// ServeHTTP handles GET /api/v1/records.
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	kind, err := marketdata.ParseDocumentKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}
	records, err := listRecords(r, h.reader, kind)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if records == nil {
		records = []marketdata.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ExportHandler renders stored records as CSV, XLSX or PDF.
type ExportHandler struct {
	reader application.RecordReader
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(reader application.RecordReader) *ExportHandler {
	return &ExportHandler{reader: reader}
}

// ServeHTTP handles GET /api/v1/exports/{kind}.{csv|xlsx|pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/")
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		http.NotFound(w, r)
		return
	}
	kind, err := marketdata.ParseDocumentKind(name[:dot])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	format := export.Format(name[dot+1:])
	switch format {
	case export.FormatCSV, export.FormatXLSX, export.FormatPDF:
	default:
		http.NotFound(w, r)
		return
	}

	records, err := listRecords(r, h.reader, kind)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	shape, _ := marketdata.Route(kind)
	title := fmt.Sprintf("ENTSO-E %s", strings.ReplaceAll(string(kind), "_", " "))
	data, err := export.Render(format, shape, records, title)
	if err != nil {
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

// HealthHandler reports liveness.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type badQueryError struct{ msg string }

func (e badQueryError) Error() string { return e.msg }

func listRecords(r *http.Request, reader application.RecordReader, kind marketdata.DocumentKind) ([]marketdata.Record, error) {
	q := r.URL.Query()
	from, err := parseTimeQuery(q.Get("from"), false)
	if err != nil {
		return nil, badQueryError{"from: " + err.Error()}
	}
	to, err := parseTimeQuery(q.Get("to"), true)
	if err != nil {
		return nil, badQueryError{"to: " + err.Error()}
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, badQueryError{"to must be after from"}
	}
	limit := 0
	if value := q.Get("limit"); value != "" {
		limit, err = strconv.Atoi(value)
		if err != nil || limit < 0 {
			return nil, badQueryError{"limit must be a non-negative integer"}
		}
	}
	shape, err := marketdata.Route(kind)
	if err != nil {
		return nil, err
	}
	return reader.ListRecords(r.Context(), shape, marketdata.RecordQuery{Zone: q.Get("zone"), From: from, To: to, Limit: limit})
}

func writeQueryError(w http.ResponseWriter, err error) {
	var bad badQueryError
	if errors.As(err, &bad) {
		http.Error(w, bad.msg, http.StatusBadRequest)
		return
	}
	http.Error(w, "query records error", http.StatusInternalServerError)
}

// parseTimeQuery accepts RFC3339 or a local date. A date used as an upper
// bound includes the whole day.
func parseTimeQuery(value string, upper bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	day, err := time.ParseInLocation(dateLayout, value, marketdata.TargetLocation())
	if err != nil {
		return time.Time{}, errors.New("must be RFC3339 or YYYY-MM-DD")
	}
	if upper {
		return application.DeliveryDay(day).End, nil
	}
	return application.DeliveryDay(day).Start, nil
}

func requestWindow(day, start, end string) (application.Window, error) {
	if day != "" {
		t, err := time.ParseInLocation(dateLayout, day, marketdata.TargetLocation())
		if err != nil {
			return application.Window{}, errors.New("day must be YYYY-MM-DD")
		}
		return application.DeliveryDay(t), nil
	}
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return application.Window{}, errors.New("start must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return application.Window{}, errors.New("end must be RFC3339")
	}
	w := application.Window{Start: from.UTC(), End: to.UTC()}
	if err := w.Validate(); err != nil {
		return application.Window{}, errors.New("end must be after start")
	}
	return w, nil
}

func zoneIndex(jobs []application.Job) map[string]marketdata.ZoneContext {
	zones := make(map[string]marketdata.ZoneContext, len(jobs))
	for _, job := range jobs {
		zones[job.Zone.ZoneID] = job.Zone
	}
	return zones
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("read body error")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
