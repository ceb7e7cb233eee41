// Package sqlrows holds the row plumbing shared by the SQL record stores.
package sqlrows

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// MigrationsTable records applied schema versions per table.
const MigrationsTable = "etl_schema_migrations"

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidIdentifier indicates a table or column name unsafe to interpolate.
var ErrInvalidIdentifier = errors.New("sqlrows: invalid identifier")

// CheckShape verifies every identifier of the shape.
func CheckShape(shape marketdata.Shape) error {
	if !identifierPattern.MatchString(shape.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, shape.Table)
	}
	for _, c := range shape.Columns() {
		if !identifierPattern.MatchString(c.Name) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c.Name)
		}
	}
	return nil
}

// CheckIdentifier verifies a single identifier.
func CheckIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// HasColumn reports whether the shape declares the column.
func HasColumn(shape marketdata.Shape, name string) bool {
	for _, c := range shape.Columns() {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnList joins the column names for a SELECT or INSERT list.
func ColumnList(columns []marketdata.Column) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// UTCValues converts timestamps to UTC so every store persists the same instant text.
func UTCValues(values []any) []any {
	for i, v := range values {
		if t, ok := v.(time.Time); ok {
			values[i] = t.UTC()
		}
	}
	return values
}

// ScanTargets returns nullable scan destinations for columns.
func ScanTargets(columns []marketdata.Column) []any {
	targets := make([]any, len(columns))
	for i, c := range columns {
		switch c.Type {
		case marketdata.ColumnFloat:
			targets[i] = &sql.NullFloat64{}
		case marketdata.ColumnTimestamp:
			targets[i] = &sql.NullTime{}
		default:
			targets[i] = &sql.NullString{}
		}
	}
	return targets
}

// Decode builds a record from scanned targets. NULL columns, such as those added
// to a pre-existing table, keep their zero value.
func Decode(kind marketdata.DocumentKind, columns []marketdata.Column, targets []any) (marketdata.Record, error) {
	values := make(map[string]any, len(columns))
	for i, c := range columns {
		switch v := targets[i].(type) {
		case *sql.NullFloat64:
			if v.Valid {
				values[c.Name] = v.Float64
			}
		case *sql.NullTime:
			if v.Valid {
				values[c.Name] = v.Time
			}
		case *sql.NullString:
			if v.Valid {
				values[c.Name] = v.String
			}
		}
	}
	return marketdata.RecordFromValues(kind, values)
}

// ScanRecords reads every row of rows into records.
func ScanRecords(rows *sql.Rows, shape marketdata.Shape) ([]marketdata.Record, error) {
	columns := shape.Columns()
	var out []marketdata.Record
	for rows.Next() {
		targets := ScanTargets(columns)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		rec, err := Decode(shape.Kind, columns, targets)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// OrderBy sorts rows by interval start, zone and record key. It only names shape
// columns, so tables created before this service existed read the same way.
const OrderBy = " ORDER BY " + marketdata.ColumnIntervalStart + ", " + marketdata.ColumnZone + ", " + marketdata.ColumnRecordKey

// Filter renders the WHERE clause of a record query. placeholder returns the
// bind marker of the n-th argument, starting at 1.
func Filter(query marketdata.RecordQuery, placeholder func(n int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if query.Zone != "" {
		add(marketdata.ColumnZone+" = %s", query.Zone)
	}
	if !query.From.IsZero() {
		add(marketdata.ColumnIntervalStart+" >= %s", query.From.UTC())
	}
	if !query.To.IsZero() {
		add(marketdata.ColumnIntervalStart+" < %s", query.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
