// Package sqlite stores records in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	marketdata "entsoe-etl/internal/marketdata/domain"
	"entsoe-etl/internal/marketdata/infrastructure/sqlrows"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Store is a SQLite implementation of the record store.
type Store struct {
	db *sql.DB
}

// Open opens (creating when missing) the database at path.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func sqlType(t marketdata.ColumnType) string {
	switch t {
	case marketdata.ColumnFloat:
		return "REAL"
	case marketdata.ColumnTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// EnsureSchema creates the table and adds every shape column missing from it.
func (s *Store) EnsureSchema(ctx context.Context, shape marketdata.Shape) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store: nil db")
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	table_name TEXT NOT NULL,
	version INTEGER NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (table_name, version)
)`, sqlrows.MigrationsTable)); err != nil {
		return err
	}

	defs := make([]string, 0, len(shape.Base)+1)
	defs = append(defs, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range shape.Base {
		defs = append(defs, c.Name+" "+sqlType(c.Type))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", shape.Table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", shape.Table, err)
	}

	existing, err := s.columns(ctx, shape.Table)
	if err != nil {
		return err
	}
	for _, m := range shape.Migrations {
		for _, c := range m.Columns {
			if existing[c.Name] {
				continue
			}
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", shape.Table, c.Name, sqlType(c.Type))); err != nil {
				return fmt.Errorf("migrate %s to v%d: %w", shape.Table, m.Version, err)
			}
			existing[c.Name] = true
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (table_name, version) VALUES (?, ?)", sqlrows.MigrationsTable), shape.Table, shape.Version()); err != nil {
		return err
	}

	if sqlrows.HasColumn(shape, marketdata.ColumnRecordKey) {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s_record_key_uidx ON %s (%s)",
			shape.Table, shape.Table, marketdata.ColumnRecordKey)); err != nil {
			return fmt.Errorf("index %s: %w", shape.Table, err)
		}
	}
	return nil
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// Version returns the highest schema version recorded for table.
func (s *Store) Version(ctx context.Context, table string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COALESCE(MAX(version), 0) FROM %s WHERE table_name = ?", sqlrows.MigrationsTable), table).Scan(&version)
	return version, err
}

// InsertMany inserts records in one transaction, ignoring keys already stored.
func (s *Store) InsertMany(ctx context.Context, shape marketdata.Shape, records []marketdata.Record) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sqlite store: nil db")
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return 0, err
	}
	columns := shape.Columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", shape.Table, sqlrows.ColumnList(columns), marks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		values, err := shape.Values(rec)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		result, err := stmt.ExecContext(ctx, sqlrows.UTCValues(values)...)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListRecords returns records matching query ordered by interval start and zone.
func (s *Store) ListRecords(ctx context.Context, shape marketdata.Shape, query marketdata.RecordQuery) ([]marketdata.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store: nil db")
	}
	if err := sqlrows.CheckShape(shape); err != nil {
		return nil, err
	}
	where, args := sqlrows.Filter(query, func(int) string { return "?" })
	stmt := fmt.Sprintf("SELECT %s FROM %s%s%s",
		sqlrows.ColumnList(shape.Columns()), shape.Table, where, sqlrows.OrderBy)
	if query.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", query.Limit)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlrows.ScanRecords(rows, shape)
}
