package marketdata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResult is returned when a document parsed cleanly but held no points.
	ErrEmptyResult = errors.New("marketdata: empty result")
	// ErrUnknownDocumentKind is returned for kinds outside the closed enumeration.
	ErrUnknownDocumentKind = errors.New("marketdata: unknown document kind")
	// ErrInvalidContext is returned when the country label or zone id is empty.
	ErrInvalidContext = errors.New("marketdata: invalid context")
	// ErrKindMismatch is returned when a record does not belong to the target shape.
	ErrKindMismatch = errors.New("marketdata: record kind mismatch")
)

// Location points at the element that failed. Indexes are 0-based and -1 when not applicable.
type Location struct {
	Series int
	Period int
	Point  int
}

func (l Location) String() string {
	parts := make([]string, 0, 3)
	if l.Series >= 0 {
		parts = append(parts, fmt.Sprintf("series=%d", l.Series))
	}
	if l.Period >= 0 {
		parts = append(parts, fmt.Sprintf("period=%d", l.Period))
	}
	if l.Point >= 0 {
		parts = append(parts, fmt.Sprintf("point=%d", l.Point))
	}
	return strings.Join(parts, " ")
}

var noLocation = Location{Series: -1, Period: -1, Point: -1}

// MalformedDocumentError reports a missing or unparseable required element.
type MalformedDocumentError struct {
	Kind     DocumentKind
	Reason   string
	Location Location
	Err      error
}

func (e *MalformedDocumentError) Error() string {
	var b strings.Builder
	b.WriteString("marketdata: malformed document")
	if e.Kind != "" {
		fmt.Fprintf(&b, " kind=%s", e.Kind)
	}
	if loc := e.Location.String(); loc != "" {
		b.WriteString(" ")
		b.WriteString(loc)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

func malformed(kind DocumentKind, loc Location, reason string, err error) *MalformedDocumentError {
	return &MalformedDocumentError{Kind: kind, Reason: reason, Location: loc, Err: err}
}

// IsMalformed reports whether err carries a MalformedDocumentError.
func IsMalformed(err error) bool {
	var target *MalformedDocumentError
	return errors.As(err, &target)
}
