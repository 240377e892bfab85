package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Printer writes command results as aligned tables or, with --json, as
// indented JSON documents.
type Printer struct {
	w    io.Writer
	json bool
}

// NewPrinter writes to w.
func NewPrinter(w io.Writer, asJSON bool) *Printer {
	return &Printer{w: w, json: asJSON}
}

// JSONMode reports whether --json was given.
func (p *Printer) JSONMode() bool { return p.json }

// JSON encodes v without HTML escaping.
func (p *Printer) JSON(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints headers and rows separated by tabs and aligned.
func (p *Printer) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Fields prints label/value pairs.
func (p *Printer) Fields(pairs ...[2]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, kv := range pairs {
		fmt.Fprintf(tw, "%s:\t%s\n", kv[0], kv[1])
	}
	return tw.Flush()
}

// Linef prints one line.
func (p *Printer) Linef(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Result prints v as JSON in JSON mode, otherwise runs text.
func (p *Printer) Result(v interface{}, text func() error) error {
	if p.json {
		return p.JSON(v)
	}
	return text()
}
