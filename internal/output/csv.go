package output

import (
	"encoding/csv"
	"io"
)

// CSVWriter writes comma-separated rows.
type CSVWriter struct {
	w             *csv.Writer
	headerWritten bool
}

// NewCSVWriter creates a CSV writer. When headerWritten is set, WriteHeader
// is a no-op.
func NewCSVWriter(w io.Writer, headerWritten bool) *CSVWriter {
	return &CSVWriter{
		w:             csv.NewWriter(w),
		headerWritten: headerWritten,
	}
}

// WriteHeader writes the header row once.
func (w *CSVWriter) WriteHeader(header []string) error {
	if w.headerWritten {
		return nil
	}
	w.headerWritten = true
	return w.Write(header)
}

// Write writes a single row.
func (w *CSVWriter) Write(fields []string) error {
	if err := w.w.Write(fields); err != nil {
		return err
	}
	return w.Flush()
}

// Flush flushes the buffer.
func (w *CSVWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Close flushes the writer.
func (w *CSVWriter) Close() error {
	return w.Flush()
}
