package marketdata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	acknowledgementRoot = "Acknowledgement_MarketDocument"
	reasonNoData        = "999"
)

// Descriptor holds the raw codes shared by every point of one TimeSeries. nil means absent.
type Descriptor struct {
	ReserveType   *string
	ReserveSource *string
	Direction     *string
	ProductType   *string
	TimeHorizon   *string
}

// PeriodWindow defines the time grid of one Period.
type PeriodWindow struct {
	Start      time.Time
	Resolution Resolution
}

// Point is one raw measurement. Quantity is only read from balancing documents.
type Point struct {
	Position int
	Quantity *string
	Price    *string
}

// Entry is one point together with the series and period it belongs to.
type Entry struct {
	Descriptor Descriptor
	Window     PeriodWindow
	Point      Point
	Location   Location
}

// xmlLeaf keeps the element name so the namespace can be checked against the root.
type xmlLeaf struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlTimeInterval struct {
	XMLName xml.Name
	Start   *xmlLeaf `xml:"start"`
	End     *xmlLeaf `xml:"end"`
}

type xmlPoint struct {
	XMLName          xml.Name
	Position         *xmlLeaf `xml:"position"`
	Quantity         *xmlLeaf `xml:"quantity"`
	ProcurementPrice *xmlLeaf `xml:"procurement_Price.amount"`
	Price            *xmlLeaf `xml:"price.amount"`
}

type xmlPeriod struct {
	XMLName      xml.Name
	TimeInterval *xmlTimeInterval `xml:"timeInterval"`
	Resolution   *xmlLeaf         `xml:"resolution"`
	Points       []xmlPoint       `xml:"Point"`
}

type xmlTimeSeries struct {
	XMLName      xml.Name
	BusinessType *xmlLeaf    `xml:"businessType"`
	MarketType   *xmlLeaf    `xml:"type_MarketAgreement.type"`
	PSRType      *xmlLeaf    `xml:"mktPSRType.psrType"`
	Direction    *xmlLeaf    `xml:"flowDirection.direction"`
	ProductType  *xmlLeaf    `xml:"standard_MarketProduct.marketProductType"`
	Periods      []xmlPeriod `xml:"Period"`
}

type xmlReason struct {
	XMLName xml.Name
	Code    *xmlLeaf `xml:"code"`
	Text    *xmlLeaf `xml:"text"`
}

type xmlDocument struct {
	TimeSeries []xmlTimeSeries `xml:"TimeSeries"`
	Reasons    []xmlReason     `xml:"Reason"`
}

// documentParser carries the namespace discovered on the root element.
type documentParser struct {
	kind DocumentKind
	ns   string
}

// Parse extracts one Entry per Point in document order. The namespace is taken from the
// root element; elements from other namespaces are ignored. A malformed TimeSeries fails
// the whole document.
func Parse(raw []byte, kind DocumentKind) ([]Entry, error) {
	if !kind.IsValid() {
		return nil, ErrUnknownDocumentKind
	}
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	root, err := rootElement(decoder)
	if err != nil {
		return nil, malformed(kind, noLocation, "unreadable document", err)
	}
	var doc xmlDocument
	if err := decoder.DecodeElement(&doc, &root); err != nil {
		return nil, malformed(kind, noLocation, "unreadable document", err)
	}

	p := documentParser{kind: kind, ns: root.Name.Space}
	if root.Name.Local == acknowledgementRoot {
		return nil, p.acknowledgement(doc.Reasons)
	}

	var entries []Entry
	for si, ts := range doc.TimeSeries {
		if ts.XMLName.Space != p.ns {
			continue
		}
		seriesEntries, err := p.series(si, ts)
		if err != nil {
			return nil, err
		}
		entries = append(entries, seriesEntries...)
	}
	return entries, nil
}

func rootElement(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return xml.StartElement{}, errors.New("no root element")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func (p documentParser) acknowledgement(reasons []xmlReason) error {
	var texts []string
	for _, reason := range reasons {
		code := p.text(reason.Code)
		if code != nil && strings.TrimSpace(*code) == reasonNoData {
			return ErrEmptyResult
		}
		if text := p.text(reason.Text); text != nil {
			texts = append(texts, strings.TrimSpace(*text))
		}
	}
	reason := "acknowledgement"
	if len(texts) > 0 {
		reason += ": " + strings.Join(texts, "; ")
	}
	return malformed(p.kind, noLocation, reason, nil)
}

func (p documentParser) series(si int, ts xmlTimeSeries) ([]Entry, error) {
	var descriptor Descriptor
	if p.kind == KindBalancingReserve {
		descriptor = Descriptor{
			ReserveType:   p.text(ts.BusinessType),
			ReserveSource: p.text(ts.PSRType),
			Direction:     p.text(ts.Direction),
			ProductType:   p.text(ts.ProductType),
			TimeHorizon:   p.text(ts.MarketType),
		}
	}

	var entries []Entry
	for pi, period := range ts.Periods {
		if period.XMLName.Space != p.ns {
			continue
		}
		loc := Location{Series: si, Period: pi, Point: -1}
		window, err := p.window(loc, period)
		if err != nil {
			return nil, err
		}
		for qi, pt := range period.Points {
			if pt.XMLName.Space != p.ns {
				continue
			}
			loc.Point = qi
			point, err := p.point(loc, pt)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{
				Descriptor: descriptor,
				Window:     window,
				Point:      point,
				Location:   loc,
			})
		}
	}
	return entries, nil
}

func (p documentParser) window(loc Location, period xmlPeriod) (PeriodWindow, error) {
	var startText *string
	if period.TimeInterval != nil && period.TimeInterval.XMLName.Space == p.ns {
		startText = p.text(period.TimeInterval.Start)
	}
	if startText == nil {
		return PeriodWindow{}, malformed(p.kind, loc, "missing period start", nil)
	}
	start, err := ParsePeriodStart(strings.TrimSpace(*startText))
	if err != nil {
		return PeriodWindow{}, malformed(p.kind, loc, "invalid period start "+strconv.Quote(*startText), err)
	}
	resolution := p.text(period.Resolution)
	if resolution == nil {
		return PeriodWindow{}, malformed(p.kind, loc, "missing resolution", nil)
	}
	return PeriodWindow{Start: start, Resolution: Resolution(strings.TrimSpace(*resolution))}, nil
}

func (p documentParser) point(loc Location, pt xmlPoint) (Point, error) {
	positionText := p.text(pt.Position)
	if positionText == nil {
		return Point{}, malformed(p.kind, loc, "missing position", nil)
	}
	position, err := strconv.Atoi(strings.TrimSpace(*positionText))
	if err != nil {
		return Point{}, malformed(p.kind, loc, "invalid position "+strconv.Quote(*positionText), err)
	}
	if position < 1 {
		return Point{}, malformed(p.kind, loc, "position must be >= 1, got "+strconv.Itoa(position), nil)
	}

	point := Point{Position: position}
	switch p.kind {
	case KindBalancingReserve:
		point.Quantity = p.text(pt.Quantity)
		point.Price = p.text(pt.ProcurementPrice)
	case KindDayAheadPrice:
		point.Price = p.text(pt.Price)
	}
	return point, nil
}

// text returns nil when the leaf is absent or lives in a foreign namespace.
func (p documentParser) text(leaf *xmlLeaf) *string {
	if leaf == nil || leaf.XMLName.Space != p.ns {
		return nil
	}
	value := leaf.Value
	return &value
}
