package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter builds an exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &XLSXExporter{sheet: sheet}
}

// Render produces xlsx bytes with a bold header row.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(e.sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(e.sheet, "A1", last, style); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i := range data.Rows {
		record := data.Record(i)
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(e.sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// ReadSheet loads the first sheet of an xlsx document into a Dataset. The
// first non-empty row is treated as headers; blank rows are skipped.
func ReadSheet(data []byte) (Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Dataset{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("read rows: %w", err)
	}

	var ds Dataset
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if ds.Headers == nil {
			ds.Headers = trimAll(row)
			continue
		}
		record := make(map[string]string, len(ds.Headers))
		for i, header := range ds.Headers {
			if i < len(row) {
				record[header] = trimSpace(row[i])
			}
		}
		ds.Rows = append(ds.Rows, record)
	}
	if ds.Headers == nil {
		return Dataset{}, fmt.Errorf("xlsx has no header row")
	}
	return ds, nil
}
