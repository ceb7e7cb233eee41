package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ZoneContext scopes a request to a country and a bidding zone or control area.
type ZoneContext struct {
	Country string
	ZoneID  string
}

// Validate checks the context carries both identifiers.
func (c ZoneContext) Validate() error {
	if strings.TrimSpace(c.Country) == "" || strings.TrimSpace(c.ZoneID) == "" {
		return ErrInvalidContext
	}
	return nil
}

// Record is one flat row destined for the table of its kind.
type Record interface {
	Kind() DocumentKind
	Key() string
	Zone() string
	Start() time.Time
	End() time.Time
	// Value returns the value stored under a shape column.
	Value(column string) (any, bool)
}

// BalancingReserveRecord is the row shape of procured balancing reserves.
type BalancingReserveRecord struct {
	DeliveryPeriod string    `json:"delivery_period" dynamodbav:"delivery_period"`
	IntervalStart  time.Time `json:"interval_start" dynamodbav:"interval_start"`
	IntervalEnd    time.Time `json:"interval_end" dynamodbav:"interval_end"`
	ReserveType    string    `json:"reserve_type" dynamodbav:"reserve_type"`
	ReserveSource  string    `json:"reserve_source" dynamodbav:"reserve_source"`
	Direction      string    `json:"direction" dynamodbav:"direction"`
	Volume         float64   `json:"volume" dynamodbav:"volume"`
	Price          float64   `json:"price" dynamodbav:"price"`
	PriceType      string    `json:"price_type" dynamodbav:"price_type"`
	TypeOfProduct  string    `json:"type_of_product" dynamodbav:"type_of_product"`
	TimeHorizon    string    `json:"time_horizon" dynamodbav:"time_horizon"`
	Country        string    `json:"country" dynamodbav:"country"`
	ZoneID         string    `json:"zone" dynamodbav:"zone"`
	RecordKey      string    `json:"record_key" dynamodbav:"record_key"`
}

func (r BalancingReserveRecord) Kind() DocumentKind { return KindBalancingReserve }
func (r BalancingReserveRecord) Key() string { return r.RecordKey }
func (r BalancingReserveRecord) Zone() string { return r.ZoneID }
func (r BalancingReserveRecord) Start() time.Time { return r.IntervalStart }
func (r BalancingReserveRecord) End() time.Time { return r.IntervalEnd }

func (r BalancingReserveRecord) Value(column string) (any, bool) {
	switch column {
	case ColumnDeliveryPeriod:
		return r.DeliveryPeriod, true
	case ColumnIntervalStart:
		return r.IntervalStart, true
	case ColumnIntervalEnd:
		return r.IntervalEnd, true
	case ColumnReserveType:
		return r.ReserveType, true
	case ColumnReserveSource:
		return r.ReserveSource, true
	case ColumnDirection:
		return r.Direction, true
	case ColumnVolume:
		return r.Volume, true
	case ColumnPrice:
		return r.Price, true
	case ColumnPriceType:
		return r.PriceType, true
	case ColumnTypeOfProduct:
		return r.TypeOfProduct, true
	case ColumnTimeHorizon:
		return r.TimeHorizon, true
	case ColumnCountry:
		return r.Country, true
	case ColumnZone:
		return r.ZoneID, true
	case ColumnRecordKey:
		return r.RecordKey, true
	}
	return nil, false
}

// DayAheadPriceRecord is the row shape of day-ahead prices.
type DayAheadPriceRecord struct {
	DeliveryPeriod string    `json:"delivery_period" dynamodbav:"delivery_period"`
	IntervalStart  time.Time `json:"interval_start" dynamodbav:"interval_start"`
	IntervalEnd    time.Time `json:"interval_end" dynamodbav:"interval_end"`
	Price          float64   `json:"price" dynamodbav:"price"`
	Country        string    `json:"country" dynamodbav:"country"`
	ZoneID         string    `json:"zone" dynamodbav:"zone"`
	RecordKey      string    `json:"record_key" dynamodbav:"record_key"`
}

func (r DayAheadPriceRecord) Kind() DocumentKind { return KindDayAheadPrice }
func (r DayAheadPriceRecord) Key() string { return r.RecordKey }
func (r DayAheadPriceRecord) Zone() string { return r.ZoneID }
func (r DayAheadPriceRecord) Start() time.Time { return r.IntervalStart }
func (r DayAheadPriceRecord) End() time.Time { return r.IntervalEnd }

func (r DayAheadPriceRecord) Value(column string) (any, bool) {
	switch column {
	case ColumnDeliveryPeriod:
		return r.DeliveryPeriod, true
	case ColumnIntervalStart:
		return r.IntervalStart, true
	case ColumnIntervalEnd:
		return r.IntervalEnd, true
	case ColumnPrice:
		return r.Price, true
	case ColumnCountry:
		return r.Country, true
	case ColumnZone:
		return r.ZoneID, true
	case ColumnRecordKey:
		return r.RecordKey, true
	}
	return nil, false
}

// AssembleBalancingReserve builds the record of one balancing reserve point.
func AssembleBalancingReserve(entry Entry, zc ZoneContext) (BalancingReserveRecord, error) {
	if err := zc.Validate(); err != nil {
		return BalancingReserveRecord{}, err
	}
	volume, err := NormalizeNumeric(entry.Point.Quantity, 0)
	if err != nil {
		return BalancingReserveRecord{}, locate(err, KindBalancingReserve, entry.Location)
	}
	price, err := NormalizeNumeric(entry.Point.Price, 0.0)
	if err != nil {
		return BalancingReserveRecord{}, locate(err, KindBalancingReserve, entry.Location)
	}
	start, end := IntervalFor(entry.Window.Start, entry.Window.Resolution, entry.Point.Position)

	rec := BalancingReserveRecord{
		DeliveryPeriod: DeliveryLabel(start, end),
		IntervalStart:  start,
		IntervalEnd:    end,
		ReserveType:    NormalizeText(entry.Descriptor.ReserveType),
		ReserveSource:  NormalizeReserveSource(entry.Descriptor.ReserveSource),
		Direction:      NormalizeDirection(entry.Descriptor.Direction),
		Volume:         volume,
		Price:          price,
		PriceType:      PriceTypeMarginal,
		TypeOfProduct:  NormalizeText(entry.Descriptor.ProductType),
		TimeHorizon:    NormalizeTimeHorizon(entry.Descriptor.TimeHorizon),
		Country:        strings.TrimSpace(zc.Country),
		ZoneID:         strings.TrimSpace(zc.ZoneID),
	}
	rec.RecordKey = recordKey(KindBalancingReserve, rec.ZoneID, start, entry.Window.Resolution,
		rec.ReserveType, rec.ReserveSource, rec.Direction, rec.TypeOfProduct, rec.TimeHorizon)
	return rec, nil
}

// AssembleDayAheadPrice builds the record of one day-ahead price point.
func AssembleDayAheadPrice(entry Entry, zc ZoneContext) (DayAheadPriceRecord, error) {
	if err := zc.Validate(); err != nil {
		return DayAheadPriceRecord{}, err
	}
	price, err := NormalizeNumeric(entry.Point.Price, 0.0)
	if err != nil {
		return DayAheadPriceRecord{}, locate(err, KindDayAheadPrice, entry.Location)
	}
	start, end := IntervalFor(entry.Window.Start, entry.Window.Resolution, entry.Point.Position)

	rec := DayAheadPriceRecord{
		DeliveryPeriod: DeliveryLabel(start, end),
		IntervalStart:  start,
		IntervalEnd:    end,
		Price:          price,
		Country:        strings.TrimSpace(zc.Country),
		ZoneID:         strings.TrimSpace(zc.ZoneID),
	}
	rec.RecordKey = recordKey(KindDayAheadPrice, rec.ZoneID, start, entry.Window.Resolution)
	return rec, nil
}

// recordKey hashes the identity of a row: kind, zone, interval start, resolution and descriptor labels.
func recordKey(kind DocumentKind, zone string, start time.Time, res Resolution, descriptor ...string) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(kind))
	for _, part := range append([]string{zone, start.UTC().Format(time.RFC3339), res.Delta().String()}, descriptor...) {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(part)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// rekey gives the n-th repeat (n >= 1) of an identity within one document its own key.
// The first occurrence keeps the plain key, so refetching any window that covers the
// interval produces the same keys in the same order.
func rekey(rec Record, n int) Record {
	h := xxhash.New()
	_, _ = h.WriteString(rec.Key())
	_, _ = h.WriteString("#")
	_, _ = h.WriteString(strconv.Itoa(n))
	key := fmt.Sprintf("%016x", h.Sum64())
	switch r := rec.(type) {
	case BalancingReserveRecord:
		r.RecordKey = key
		return r
	case DayAheadPriceRecord:
		r.RecordKey = key
		return r
	}
	return rec
}

func locate(err error, kind DocumentKind, loc Location) error {
	if m, ok := err.(*MalformedDocumentError); ok {
		located := *m
		located.Kind = kind
		located.Location = loc
		return &located
	}
	return err
}
