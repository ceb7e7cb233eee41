package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// ErrTableNotFound indicates an insert or read before EnsureSchema.
var ErrTableNotFound = errors.New("memory: table not ensured")

type table struct {
	version int
	rows    map[string]marketdata.Record
}

// Store is an in-memory record store for tests and dry runs.
// Records are keyed by their record key, so repeated inserts are no-ops.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// NewStore constructs a store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*table)}
}

// EnsureSchema creates the table when missing and raises its version.
func (s *Store) EnsureSchema(ctx context.Context, shape marketdata.Shape) error {
	_ = ctx
	if shape.Table == "" {
		return errors.New("memory: empty table name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[shape.Table]
	if t == nil {
		t = &table{rows: make(map[string]marketdata.Record)}
		s.tables[shape.Table] = t
	}
	if v := shape.Version(); v > t.version {
		t.version = v
	}
	return nil
}

// InsertMany stores records not yet present and returns how many were new.
func (s *Store) InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[shape.Table]
	if t == nil {
		return 0, ErrTableNotFound
	}
	for _, rec := range records {
		if rec == nil || rec.Kind() != shape.Kind {
			return 0, marketdata.ErrKindMismatch
		}
	}
	inserted := 0
	for _, rec := range records {
		if _, ok := t.rows[rec.Key()]; ok {
			continue
		}
		t.rows[rec.Key()] = rec
		inserted++
	}
	return inserted, nil
}

// ListRecords returns matching records ordered by interval start and zone.
func (s *Store) ListRecords(ctx context.Context, shape marketdata.Shape, query marketdata.RecordQuery) ([]marketdata.Record, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tables[shape.Table]
	if t == nil {
		return nil, ErrTableNotFound
	}
	out := make([]marketdata.Record, 0, len(t.rows))
	for _, rec := range t.rows {
		if query.Matches(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start().Equal(out[j].Start()) {
			return out[i].Start().Before(out[j].Start())
		}
		if out[i].Zone() != out[j].Zone() {
			return out[i].Zone() < out[j].Zone()
		}
		return out[i].Key() < out[j].Key()
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// Version returns the ensured schema version of a table, 0 when absent.
func (s *Store) Version(tableName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.tables[tableName]; t != nil {
		return t.version
	}
	return 0
}

// Len returns the number of rows in a table.
func (s *Store) Len(tableName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.tables[tableName]; t != nil {
		return len(t.rows)
	}
	return 0
}
