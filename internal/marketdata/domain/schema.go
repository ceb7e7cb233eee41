package marketdata

import (
	"fmt"
	"time"
)

// Column names shared by the table shapes.
const (
	ColumnDeliveryPeriod = "delivery_period"
	ColumnIntervalStart  = "interval_start"
	ColumnIntervalEnd    = "interval_end"
	ColumnReserveType    = "reserve_type"
	ColumnReserveSource  = "reserve_source"
	ColumnDirection      = "direction"
	ColumnVolume         = "volume"
	ColumnPrice          = "price"
	ColumnPriceType      = "price_type"
	ColumnTypeOfProduct  = "type_of_product"
	ColumnTimeHorizon    = "time_horizon"
	ColumnCountry        = "country"
	ColumnZone           = "zone"
	ColumnRecordKey      = "record_key"
)

// ColumnType is the logical type of a column; stores map it to their own SQL types.
type ColumnType string

const (
	ColumnText      ColumnType = "text"
	ColumnFloat     ColumnType = "float"
	ColumnTimestamp ColumnType = "timestamp"
)

// Column describes one destination column.
type Column struct {
	Name string
	Type ColumnType
}

// Migration adds columns to an existing table. Versions start at 2; version 1 is the base table.
type Migration struct {
	Version int
	Columns []Column
}

// Shape is the destination table of one document kind.
type Shape struct {
	Kind       DocumentKind
	Table      string
	Base       []Column
	Migrations []Migration
}

// Version returns the schema version reached after every migration.
func (s Shape) Version() int {
	version := 1
	for _, m := range s.Migrations {
		if m.Version > version {
			version = m.Version
		}
	}
	return version
}

// Columns returns base and migrated columns in table order.
func (s Shape) Columns() []Column {
	columns := make([]Column, 0, len(s.Base))
	columns = append(columns, s.Base...)
	for _, m := range s.Migrations {
		columns = append(columns, m.Columns...)
	}
	return columns
}

// ColumnNames returns Columns() names.
func (s Shape) ColumnNames() []string {
	columns := s.Columns()
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// Values returns the record values in Columns() order.
func (s Shape) Values(rec Record) ([]any, error) {
	if rec == nil || rec.Kind() != s.Kind {
		return nil, ErrKindMismatch
	}
	columns := s.Columns()
	values := make([]any, len(columns))
	for i, c := range columns {
		v, ok := rec.Value(c.Name)
		if !ok {
			return nil, fmt.Errorf("marketdata: column %s not provided by %s record", c.Name, rec.Kind())
		}
		values[i] = v
	}
	return values, nil
}

var balancingReserveShape = Shape{
	Kind:  KindBalancingReserve,
	Table: "entsoe_load_data",
	Base: []Column{
		{Name: ColumnDeliveryPeriod, Type: ColumnText},
		{Name: ColumnReserveType, Type: ColumnText},
		{Name: ColumnReserveSource, Type: ColumnText},
		{Name: ColumnDirection, Type: ColumnText},
		{Name: ColumnVolume, Type: ColumnFloat},
		{Name: ColumnPrice, Type: ColumnFloat},
		{Name: ColumnPriceType, Type: ColumnText},
		{Name: ColumnTypeOfProduct, Type: ColumnText},
		{Name: ColumnTimeHorizon, Type: ColumnText},
	},
	Migrations: []Migration{
		{
			Version: 2,
			Columns: []Column{
				{Name: ColumnIntervalStart, Type: ColumnTimestamp},
				{Name: ColumnIntervalEnd, Type: ColumnTimestamp},
				{Name: ColumnCountry, Type: ColumnText},
				{Name: ColumnZone, Type: ColumnText},
				{Name: ColumnRecordKey, Type: ColumnText},
			},
		},
	},
}

var dayAheadPriceShape = Shape{
	Kind:  KindDayAheadPrice,
	Table: "entsoe_day_ahead_prices",
	Base: []Column{
		{Name: ColumnIntervalStart, Type: ColumnTimestamp},
		{Name: ColumnIntervalEnd, Type: ColumnTimestamp},
		{Name: ColumnDeliveryPeriod, Type: ColumnText},
		{Name: ColumnPrice, Type: ColumnFloat},
		{Name: ColumnCountry, Type: ColumnText},
		{Name: ColumnZone, Type: ColumnText},
		{Name: ColumnRecordKey, Type: ColumnText},
	},
}

// Route returns the destination shape of a document kind.
func Route(kind DocumentKind) (Shape, error) {
	switch kind {
	case KindBalancingReserve:
		return cloneShape(balancingReserveShape), nil
	case KindDayAheadPrice:
		return cloneShape(dayAheadPriceShape), nil
	default:
		return Shape{}, ErrUnknownDocumentKind
	}
}

// Shapes returns the shape of every kind.
func Shapes() []Shape {
	shapes := make([]Shape, 0, len(Kinds()))
	for _, kind := range Kinds() {
		shape, _ := Route(kind)
		shapes = append(shapes, shape)
	}
	return shapes
}

func cloneShape(s Shape) Shape {
	out := s
	out.Base = append([]Column(nil), s.Base...)
	out.Migrations = make([]Migration, len(s.Migrations))
	for i, m := range s.Migrations {
		out.Migrations[i] = Migration{Version: m.Version, Columns: append([]Column(nil), m.Columns...)}
	}
	return out
}

// RecordFromValues rebuilds a typed record from stored column values keyed by column name.
// Text columns hold string, float columns float64 and timestamp columns time.Time; missing
// columns keep their zero value.
func RecordFromValues(kind DocumentKind, values map[string]any) (Record, error) {
	text := func(name string) string {
		v, _ := values[name].(string)
		return v
	}
	number := func(name string) float64 {
		v, _ := values[name].(float64)
		return v
	}
	stamp := func(name string) time.Time {
		v, _ := values[name].(time.Time)
		if v.IsZero() {
			return v
		}
		return v.In(targetLocation)
	}

	switch kind {
	case KindBalancingReserve:
		return BalancingReserveRecord{
			DeliveryPeriod: text(ColumnDeliveryPeriod),
			IntervalStart:  stamp(ColumnIntervalStart),
			IntervalEnd:    stamp(ColumnIntervalEnd),
			ReserveType:    text(ColumnReserveType),
			ReserveSource:  text(ColumnReserveSource),
			Direction:      text(ColumnDirection),
			Volume:         number(ColumnVolume),
			Price:          number(ColumnPrice),
			PriceType:      text(ColumnPriceType),
			TypeOfProduct:  text(ColumnTypeOfProduct),
			TimeHorizon:    text(ColumnTimeHorizon),
			Country:        text(ColumnCountry),
			ZoneID:         text(ColumnZone),
			RecordKey:      text(ColumnRecordKey),
		}, nil
	case KindDayAheadPrice:
		return DayAheadPriceRecord{
			DeliveryPeriod: text(ColumnDeliveryPeriod),
			IntervalStart:  stamp(ColumnIntervalStart),
			IntervalEnd:    stamp(ColumnIntervalEnd),
			Price:          number(ColumnPrice),
			Country:        text(ColumnCountry),
			ZoneID:         text(ColumnZone),
			RecordKey:      text(ColumnRecordKey),
		}, nil
	default:
		return nil, ErrUnknownDocumentKind
	}
}
