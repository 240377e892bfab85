package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const fontFamily = "contrail"

// Section is a titled block of label/value pairs in a profile document.
type Section struct {
	Title string
	Rows  [][2]string
}

// PDFExporter renders datasets and student profiles into PDF documents.
// Core fonts cannot draw CJK glyphs, so a UTF-8 TrueType font should be
// configured for production exports; without one text is transliterated.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. fontPath may be empty.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	doc := e.newDocument("L")
	pdf, tr := doc.pdf, doc.tr
	pdf.AddPage()

	if title != "" {
		doc.font("B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	doc.font("B", 10)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	doc.font("", 9)
	for i := range data.Rows {
		for _, value := range data.Record(i) {
			pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// RenderProfile creates a one page profile made of titled sections.
func (e *PDFExporter) RenderProfile(title string, sections []Section) ([]byte, error) {
	doc := e.newDocument("P")
	pdf, tr := doc.pdf, doc.tr
	pdf.AddPage()

	doc.font("B", 16)
	pdf.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	for _, section := range sections {
		doc.font("B", 11)
		pdf.CellFormat(0, 9, tr(section.Title), "B", 1, "", false, 0, "")
		doc.font("", 10)
		if len(section.Rows) == 0 {
			pdf.CellFormat(0, 7, "-", "", 1, "", false, 0, "")
		}
		for _, row := range section.Rows {
			pdf.CellFormat(45, 7, tr(row[0]), "", 0, "", false, 0, "")
			pdf.MultiCell(0, 7, tr(row[1]), "", "", false)
		}
		pdf.Ln(3)
	}

	return output(pdf)
}

type document struct {
	pdf  *gofpdf.Fpdf
	tr   func(string) string
	utf8 bool
}

func (e *PDFExporter) newDocument(orientation string) *document {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	if e.fontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", e.fontPath)
		pdf.AddUTF8Font(fontFamily, "B", e.fontPath)
		if pdf.Ok() {
			return &document{pdf: pdf, tr: func(s string) string { return s }, utf8: true}
		}
		pdf.ClearError()
	}
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) font(style string, size float64) {
	if d.utf8 {
		d.pdf.SetFont(fontFamily, style, size)
		return
	}
	d.pdf.SetFont("Arial", style, size)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
