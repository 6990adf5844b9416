package output

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// ErrHeaderMismatch indicates an existing CSV output was written from input
// with different columns.
var ErrHeaderMismatch = errors.New("output header does not match input")

// State describes what an earlier run already wrote to an output file.
type State struct {
	// Header reports whether a CSV header row is present.
	Header bool
	// Rows is the number of data rows.
	Rows int
	// Columns holds the header fields when Header is set.
	Columns []string
}

// CheckHeader reports whether rows built for header can be appended to the
// file. Files without a header accept any columns.
func (s State) CheckHeader(header []string) error {
	if !s.Header || slices.Equal(s.Columns, header) {
		return nil
	}
	return fmt.Errorf("%w: output has %q, input gives %q",
		ErrHeaderMismatch, strings.Join(s.Columns, ","), strings.Join(header, ","))
}

// Inspect reads an existing output file. A missing file is an empty State.
func Inspect(path string, format Format) (State, error) {
	f, err := os.Open(path) // #nosec G304 -- user-chosen output file
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("inspecting output: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatCSV:
		return inspectCSV(f)
	case FormatJSONL:
		return inspectJSONL(f)
	default:
		return State{}, fmt.Errorf("unsupported output format: %s", format)
	}
}

func inspectCSV(r io.Reader) (State, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var st State
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return State{}, fmt.Errorf("inspecting output: %w", err)
		}
		if !st.Header {
			st.Header = true
			st.Columns = rec
			continue
		}
		st.Rows++
	}
	return st, nil
}

func inspectJSONL(r io.Reader) (State, error) {
	var st State
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			st.Rows++
		}
	}
	if err := sc.Err(); err != nil {
		return State{}, fmt.Errorf("inspecting output: %w", err)
	}
	return st, nil
}
