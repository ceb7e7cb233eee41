package application

import (
	"errors"
	"fmt"
	"time"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

// ErrInvalidWindow indicates an empty or inverted window.
var ErrInvalidWindow = errors.New("application: invalid window")

// Window is a half-open UTC interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the window is non-empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("%s/%s", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// DeliveryDay returns the Europe/Berlin calendar day containing t as a UTC window.
// The window is 23 or 25 hours long on DST transition days.
func DeliveryDay(t time.Time) Window {
	loc := marketdata.TargetLocation()
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return Window{Start: start.UTC(), End: end.UTC()}
}

// DeliveryDays returns the window covering the local days from..to inclusive.
func DeliveryDays(from, to time.Time) Window {
	first := DeliveryDay(from)
	last := DeliveryDay(to)
	return Window{Start: first.Start, End: last.End}
}

// SplitWindow cuts w into consecutive chunks of at most days local calendar days.
// Chunk edges fall on local midnights except where w itself does not.
func SplitWindow(w Window, days int) ([]Window, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 1
	}
	loc := marketdata.TargetLocation()
	var chunks []Window
	cursor := w.Start.UTC()
	for cursor.Before(w.End) {
		local := cursor.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		next := midnight.AddDate(0, 0, days).UTC()
		if next.After(w.End) {
			next = w.End
		}
		chunks = append(chunks, Window{Start: cursor, End: next})
		cursor = next
	}
	return chunks, nil
}
