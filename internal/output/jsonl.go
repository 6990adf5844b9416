package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONLWriter writes newline-delimited JSON (JSONL), one object per row keyed
// by header name in column order.
type JSONLWriter struct {
	w      *bufio.Writer
	header []string
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// WriteHeader records the keys used for subsequent rows. Nothing is written.
func (w *JSONLWriter) WriteHeader(header []string) error {
	w.header = append([]string(nil), header...)
	return nil
}

// Write writes a single row as a JSON line.
func (w *JSONLWriter) Write(fields []string) error {
	output, err := w.encode(fields)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}

	return w.w.Flush()
}

// encode builds the object by hand since encoding/json sorts map keys.
func (w *JSONLWriter) encode(fields []string) ([]byte, error) {
	keys := w.keys(len(fields))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(keys[i])
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// keys names n fields. The trailing URL and access columns always take the
// header's last two names so ragged rows keep them correctly keyed. Other
// fields are named by position, with column_N past the end of the header.
func (w *JSONLWriter) keys(n int) []string {
	h := len(w.header)
	tail := min(2, h, n)

	keys := make([]string, n)
	for i := range keys {
		switch {
		case i >= n-tail:
			keys[i] = w.header[h-(n-i)]
		case i < h-tail:
			keys[i] = w.header[i]
		default:
			keys[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return keys
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
