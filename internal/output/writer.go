// Package output writes checked records. Every writer flushes after each row
// so that an interrupted run leaves a complete prefix of the results.
package output

import (
	"fmt"
	"io"
	"os"
)

// Format represents output format types.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatCSV, FormatJSONL}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Writer handles output serialization.
type Writer interface {
	// WriteHeader sets the column names. Writers opened over an output that
	// already has a header record the names without writing them again.
	WriteHeader(header []string) error

	// Write outputs a single row and flushes it.
	Write(fields []string) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	headerWritten bool
}

// WithHeaderWritten marks the destination as already carrying a header.
func WithHeaderWritten(written bool) WriterOption {
	return func(c *writerConfig) {
		c.headerWritten = written
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatCSV:
		return NewCSVWriter(w, cfg.headerWritten), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// fileWriter closes the underlying file after the format writer.
type fileWriter struct {
	Writer
	f *os.File
}

func (w *fileWriter) Close() error {
	err := w.Writer.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open opens path for appending, creating it if needed, and returns a writer
// for format over it. Existing content is never truncated.
func Open(path string, format Format, opts ...WriterOption) (Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) // #nosec G302 G304 -- user-chosen output file
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}

	w, err := NewWriter(f, format, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileWriter{Writer: w, f: f}, nil
}
