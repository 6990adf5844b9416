// Package table reads the tabular link lists the checker consumes: a header
// row followed by records whose last field is the URL to check.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmpty is returned for an input with no header row.
	ErrEmpty = errors.New("input has no header row")
	// ErrInvalidURL is returned when a record's last field is not an http(s) URL.
	ErrInvalidURL = errors.New("last field is not an http(s) URL")
)

// InputError reports a malformed input file. Line is 0 when the problem is
// not tied to a row.
type InputError struct {
	Path string
	Line int
	Err  error
}

func (e *InputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Record is one data row.
type Record struct {
	Line   int
	Fields []string
}

// URL returns the last field with surrounding whitespace removed.
func (r Record) URL() string {
	if len(r.Fields) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Fields[len(r.Fields)-1])
}

// Rest returns every field before the URL.
func (r Record) Rest() []string {
	if len(r.Fields) == 0 {
		return nil
	}
	return r.Fields[:len(r.Fields)-1]
}

// Table is a parsed input file.
type Table struct {
	Path    string
	Header  []string
	Records []Record
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Records) }

var validate = validator.New()

// ReadFile reads and validates the CSV file at path.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is user-provided input file
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}
	return Parse(bytes.NewReader(data), path)
}

// Parse reads a CSV stream. name is used in error messages.
//
// Input is expected to be UTF-8; a leading byte order mark is dropped. Files
// that are not valid UTF-8 are decoded as Windows-1252, the encoding
// spreadsheet exports commonly fall back to. Rows may have differing field
// counts, but every row must end in an http(s) URL.
func Parse(r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &InputError{Path: name, Err: err}
	}

	var dec transform.Transformer = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if !utf8.Valid(data) {
		dec = charmap.Windows1252.NewDecoder()
	}

	cr := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InputError{Path: name, Err: ErrEmpty}
	}
	if err != nil {
		return nil, &InputError{Path: name, Line: 1, Err: err}
	}

	t := &Table{Path: name, Header: header}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &InputError{Path: name, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)

		rec := Record{Line: line, Fields: fields}
		if err := validate.Var(rec.URL(), "required,http_url"); err != nil {
			return nil, &InputError{Path: name, Line: line, Err: fmt.Errorf("%w: %q", ErrInvalidURL, rec.URL())}
		}
		t.Records = append(t.Records, rec)
	}

	return t, nil
}
