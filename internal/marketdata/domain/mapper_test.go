package marketdata

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestMapBalancingQuantityWithoutPrice(t *testing.T) {
	raw := balancingDocument(seriesFixture{
		codes:      fullCodes,
		start:      "2024-09-24T22:00Z",
		resolution: "PT15M",
		points:     []string{balancingPoint(1, "120.5", "")},
	})
	batch, err := Map(raw, KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(batch.Records))
	}
	rec, ok := batch.Records[0].(BalancingReserveRecord)
	if !ok {
		t.Fatalf("unexpected record type %T", batch.Records[0])
	}
	if rec.Volume != 120.5 || rec.Price != 0.0 {
		t.Fatalf("volume/price mismatch: %v/%v", rec.Volume, rec.Price)
	}
	if rec.Direction != "Down" || rec.TimeHorizon != "Daily" || rec.ReserveSource != "Mixed" {
		t.Fatalf("normalized codes mismatch: %+v", rec)
	}
	if rec.ReserveType != "B95" || rec.TypeOfProduct != "A01" || rec.PriceType != PriceTypeMarginal {
		t.Fatalf("raw codes mismatch: %+v", rec)
	}
	if rec.Country != "Germany" || rec.ZoneID != "10YDE-RWENET---I" {
		t.Fatalf("context not merged: %+v", rec)
	}
	if rec.DeliveryPeriod != "25.09.2024 00:00 CEST - 25.09.2024 00:15 CEST" {
		t.Fatalf("delivery period: %q", rec.DeliveryPeriod)
	}
	if rec.RecordKey == "" {
		t.Fatalf("expected record key")
	}
}

func TestMapMissingQuantityDefaults(t *testing.T) {
	raw := balancingDocument(seriesFixture{
		start:      "2024-09-24T22:00Z",
		resolution: "PT60M",
		points:     []string{balancingPoint(1, "", "12.25")},
	})
	batch, err := Map(raw, KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	rec := batch.Records[0].(BalancingReserveRecord)
	if rec.Volume != 0 || rec.Price != 12.25 {
		t.Fatalf("defaults mismatch: %+v", rec)
	}
	for name, v := range map[string]string{
		"reserve_type": rec.ReserveType, "reserve_source": rec.ReserveSource, "direction": rec.Direction,
		"type_of_product": rec.TypeOfProduct, "time_horizon": rec.TimeHorizon,
	} {
		if v != Unknown {
			t.Fatalf("%s: expected %q, got %q", name, Unknown, v)
		}
	}
}

func TestMapMissingPositionRejected(t *testing.T) {
	raw := balancingDocument(seriesFixture{
		start:      "2024-09-24T22:00Z",
		resolution: "PT15M",
		points:     []string{"<quantity>5</quantity>"},
	})
	_, err := Map(raw, KindBalancingReserve, testZone)
	var malformedErr *MalformedDocumentError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected malformed document, got %v", err)
	}
	if malformedErr.Location.Point != 0 {
		t.Fatalf("expected point location, got %+v", malformedErr.Location)
	}
}

func TestMapNonNumericQuantityRejected(t *testing.T) {
	raw := balancingDocument(seriesFixture{
		start:      "2024-09-24T22:00Z",
		resolution: "PT15M",
		points:     []string{balancingPoint(1, "1", ""), balancingPoint(2, "lots", "")},
	})
	batch, err := Map(raw, KindBalancingReserve, testZone)
	var malformedErr *MalformedDocumentError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("expected malformed document, got %v", err)
	}
	if malformedErr.Kind != KindBalancingReserve || malformedErr.Location.Point != 1 {
		t.Fatalf("location not attached: %+v", malformedErr)
	}
	if len(batch.Records) != 0 {
		t.Fatalf("malformed document must not yield records")
	}
}

func TestMapEmptyResult(t *testing.T) {
	raw := balancingDocument()
	batch, err := Map(raw, KindBalancingReserve, testZone)
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if !batch.Empty() || batch.Shape.Table != "entsoe_load_data" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestMapRequiresContext(t *testing.T) {
	raw := dayAheadDocument(seriesFixture{start: "2024-09-24T22:00Z", resolution: "PT60M", points: []string{pricePoint(1, "1")}})
	for _, zc := range []ZoneContext{{}, {Country: "Finland"}, {ZoneID: "10YFI-1--------U"}} {
		if _, err := Map(raw, KindDayAheadPrice, zc); !errors.Is(err, ErrInvalidContext) {
			t.Fatalf("%+v: expected ErrInvalidContext, got %v", zc, err)
		}
	}
}

func TestMapIsDeterministic(t *testing.T) {
	raw := balancingDocument(
		seriesFixture{codes: fullCodes, start: "2024-10-26T22:00Z", resolution: "PT15M",
			points: []string{balancingPoint(1, "1", "2"), balancingPoint(2, "3", "4"), balancingPoint(3, "", "")}},
		seriesFixture{start: "2024-10-26T22:00Z", resolution: "PT30M", points: []string{balancingPoint(1, "9", "")}},
	)
	first, err := Map(raw, KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("first map: %v", err)
	}
	second, err := Map(raw, KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("second map: %v", err)
	}
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Fatalf("mapping is not deterministic")
	}
	keys := map[string]struct{}{}
	for _, rec := range first.Records {
		keys[rec.Key()] = struct{}{}
	}
	if len(keys) != len(first.Records) {
		t.Fatalf("record keys collide: %d keys for %d records", len(keys), len(first.Records))
	}
}

func TestMapDayAheadAndBalancingStaySeparate(t *testing.T) {
	points := []string{pricePoint(1, "50"), pricePoint(2, "60")}
	dayAhead, err := Map(dayAheadDocument(seriesFixture{start: "2024-09-24T22:00Z", resolution: "PT60M", points: points}),
		KindDayAheadPrice, ZoneContext{Country: "Finland", ZoneID: "10YFI-1--------U"})
	if err != nil {
		t.Fatalf("day-ahead map: %v", err)
	}
	balancing, err := Map(balancingDocument(seriesFixture{codes: fullCodes, start: "2024-09-24T22:00Z", resolution: "PT60M",
		points: []string{balancingPoint(1, "1", "50"), balancingPoint(2, "2", "60")}}), KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("balancing map: %v", err)
	}
	if dayAhead.Shape.Table == balancing.Shape.Table {
		t.Fatalf("kinds must route to different tables")
	}
	if reflect.DeepEqual(dayAhead.Shape.ColumnNames(), balancing.Shape.ColumnNames()) {
		t.Fatalf("kinds must route to different field sets")
	}
	for _, rec := range dayAhead.Records {
		p, ok := rec.(DayAheadPriceRecord)
		if !ok {
			t.Fatalf("unexpected record type %T", rec)
		}
		if _, ok := rec.Value(ColumnDirection); ok {
			t.Fatalf("day-ahead record exposes a balancing column")
		}
		if p.End().Sub(p.Start()) != time.Hour {
			t.Fatalf("unexpected interval: %s - %s", p.Start(), p.End())
		}
	}
	if _, err := dayAhead.Shape.Values(balancing.Records[0]); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if dayAhead.Records[1].(DayAheadPriceRecord).Price != 60 {
		t.Fatalf("unexpected price")
	}
}

func TestMapRepeatedSeriesKeepsEveryRow(t *testing.T) {
	series := seriesFixture{codes: fullCodes, start: "2024-09-24T22:00Z", resolution: "PT15M",
		points: []string{balancingPoint(1, "10", "1"), balancingPoint(2, "20", "2")}}
	repeated := series
	repeated.points = []string{balancingPoint(1, "30", "3")}

	batch, err := Map(balancingDocument(series, repeated), KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(batch.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch.Records))
	}
	keys := map[string]struct{}{}
	for _, rec := range batch.Records {
		keys[rec.Key()] = struct{}{}
	}
	if len(keys) != 3 {
		t.Fatalf("repeated series collapsed: %d keys for 3 records", len(keys))
	}
	if !batch.Records[0].Start().Equal(batch.Records[2].Start()) {
		t.Fatalf("expected the repeat to share the interval start")
	}

	single, err := Map(balancingDocument(series), KindBalancingReserve, testZone)
	if err != nil {
		t.Fatalf("map single: %v", err)
	}
	if single.Records[0].Key() != batch.Records[0].Key() || single.Records[1].Key() != batch.Records[1].Key() {
		t.Fatalf("first occurrence keys changed when a repeat was present")
	}
}
