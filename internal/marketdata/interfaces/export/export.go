package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	marketdata "entsoe-etl/internal/marketdata/domain"
)

const (
	timeLayout = time.RFC3339
	sheetName  = "records"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Render dispatches to the renderer of format.
func Render(format Format, shape marketdata.Shape, records []marketdata.Record, title string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return CSV(shape, records)
	case FormatXLSX:
		return XLSX(shape, records)
	case FormatPDF:
		return PDF(shape, records, title)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

func formatValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case time.Time:
		if value.IsZero() {
			return ""
		}
		return value.Format(timeLayout)
	default:
		return fmt.Sprint(value)
	}
}

// CSV renders records as CSV with a header row of shape columns.
func CSV(shape marketdata.Shape, records []marketdata.Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(shape.ColumnNames()); err != nil {
		return nil, err
	}
	row := make([]string, len(shape.Columns()))
	for _, rec := range records {
		values, err := shape.Values(rec)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			row[i] = formatValue(v)
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XLSX renders records on a single sheet. Numbers stay numeric cells.
func XLSX(shape marketdata.Shape, records []marketdata.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for i, name := range shape.ColumnNames() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheetName, cell, name)
	}
	for r, rec := range records {
		values, err := shape.Values(rec)
		if err != nil {
			return nil, err
		}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if number, ok := v.(float64); ok {
				_ = f.SetCellValue(sheetName, cell, number)
				continue
			}
			_ = f.SetCellValue(sheetName, cell, formatValue(v))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PDF renders records as a landscape table under title.
func PDF(shape marketdata.Shape, records []marketdata.Record, title string) ([]byte, error) {
	columns := shape.ColumnNames()
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(0, 5, fmt.Sprintf("Table: %s  Rows: %d", shape.Table, len(records)))
	pdf.Ln(7)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := (pageWidth - left - right) / float64(len(columns))

	header := func() {
		pdf.SetFont("Arial", "B", 6)
		for _, name := range columns {
			pdf.CellFormat(width, 5, name, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 6)
	}
	header()
	_, pageHeight := pdf.GetPageSize()
	for _, rec := range records {
		values, err := shape.Values(rec)
		if err != nil {
			return nil, err
		}
		if pdf.GetY()+5 > pageHeight-10 {
			pdf.AddPage()
			header()
		}
		for _, v := range values {
			align := "L"
			if _, ok := v.(float64); ok {
				align = "R"
			}
			pdf.CellFormat(width, 5, formatValue(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
