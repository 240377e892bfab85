package export

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"
)

// ArchiveWriter streams named entries into a zip archive.
type ArchiveWriter struct {
	zw      *zip.Writer
	modTime time.Time
	entries int
}

// NewArchiveWriter wraps w. Entry names are stored as UTF-8.
func NewArchiveWriter(w io.Writer) *ArchiveWriter {
	return &ArchiveWriter{zw: zip.NewWriter(w), modTime: time.Now()}
}

// Add writes one entry. Names use forward slashes for directories.
func (a *ArchiveWriter) Add(name string, data []byte) error {
	name = strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if name == "" {
		return fmt.Errorf("archive entry name required")
	}
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modTime,
	}
	header.Flags |= 0x800
	w, err := a.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	a.entries++
	return nil
}

// Entries reports how many entries were written.
func (a *ArchiveWriter) Entries() int {
	return a.entries
}

// Close finalises the central directory.
func (a *ArchiveWriter) Close() error {
	return a.zw.Close()
}

// SafeName replaces characters that are not allowed in archive paths on common
// file systems.
func SafeName(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = strings.TrimSpace(replacer.Replace(s))
	if s == "" {
		return "_"
	}
	return s
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = trimSpace(cell)
	}
	return out
}

func trimSpace(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\ufeff"))
}
