package marketdata

import (
	"fmt"
	"strings"
)

const (
	balancingNS   = "urn:iec62325.351:tc57wg16:451-6:balancingdocument:4:4"
	publicationNS = "urn:iec62325.351:tc57wg16:451-3:publicationdocument:7:3"
)

type seriesFixture struct {
	codes      string
	start      string
	resolution string
	points     []string
}

func balancingDocument(series ...seriesFixture) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<Balancing_MarketDocument xmlns="%s">
	<mRID>doc-1</mRID>
	<type>A81</type>
	<process.processType>A52</process.processType>`, balancingNS)
	for _, s := range series {
		b.WriteString("\n\t<TimeSeries>\n\t\t<mRID>1</mRID>\n")
		b.WriteString(s.codes)
		writePeriod(&b, s)
		b.WriteString("\t</TimeSeries>\n")
	}
	b.WriteString("</Balancing_MarketDocument>\n")
	return []byte(b.String())
}

func dayAheadDocument(series ...seriesFixture) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<Publication_MarketDocument xmlns="%s">
	<mRID>doc-2</mRID>
	<type>A44</type>`, publicationNS)
	for _, s := range series {
		b.WriteString("\n\t<TimeSeries>\n\t\t<mRID>1</mRID>\n\t\t<currency_Unit.name>EUR</currency_Unit.name>\n")
		writePeriod(&b, s)
		b.WriteString("\t</TimeSeries>\n")
	}
	b.WriteString("</Publication_MarketDocument>\n")
	return []byte(b.String())
}

func writePeriod(b *strings.Builder, s seriesFixture) {
	b.WriteString("\t\t<Period>\n")
	if s.start != "" {
		fmt.Fprintf(b, "\t\t\t<timeInterval>\n\t\t\t\t<start>%s</start>\n\t\t\t\t<end>2099-01-01T00:00Z</end>\n\t\t\t</timeInterval>\n", s.start)
	}
	if s.resolution != "" {
		fmt.Fprintf(b, "\t\t\t<resolution>%s</resolution>\n", s.resolution)
	}
	for _, p := range s.points {
		fmt.Fprintf(b, "\t\t\t<Point>%s</Point>\n", p)
	}
	b.WriteString("\t\t</Period>\n")
}

const fullCodes = `		<businessType>B95</businessType>
		<type_MarketAgreement.type>A01</type_MarketAgreement.type>
		<mktPSRType.psrType>A03</mktPSRType.psrType>
		<flowDirection.direction>A02</flowDirection.direction>
		<standard_MarketProduct.marketProductType>A01</standard_MarketProduct.marketProductType>
`

func balancingPoint(position int, quantity, price string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<position>%d</position>", position)
	if quantity != "" {
		fmt.Fprintf(&b, "<quantity>%s</quantity>", quantity)
	}
	if price != "" {
		fmt.Fprintf(&b, "<procurement_Price.amount>%s</procurement_Price.amount>", price)
	}
	return b.String()
}

func pricePoint(position int, price string) string {
	return fmt.Sprintf("<position>%d</position><price.amount>%s</price.amount>", position, price)
}

var testZone = ZoneContext{Country: "Germany", ZoneID: "10YDE-RWENET---I"}
