package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// TimeLayout is used for every timestamp written by the pipeline.
const TimeLayout = time.RFC3339Nano

// Layouts accepted when reading. The space separated forms are what pandas
// writes for datetime columns.
var readLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseError describes a cell that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %q: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// ParseTime accepts RFC 3339 and the datetime forms pandas emits.
func ParseTime(v string) (time.Time, error) {
	var firstErr error
	for _, layout := range readLayouts {
		ts, err := time.Parse(layout, v)
		if err == nil {
			return ts, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Timestamp is a time column. Empty cells are the zero time.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalCSV() (string, error) {
	if t.IsZero() {
		return "", nil
	}
	return t.Format(TimeLayout), nil
}

func (t *Timestamp) UnmarshalCSV(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		t.Time = time.Time{}
		return nil
	}
	ts, err := ParseTime(v)
	if err != nil {
		return &valueError{Value: v, Err: err}
	}
	t.Time = ts
	return nil
}

type valueError struct {
	Value string
	Err   error
}

func (e *valueError) Error() string { return e.Err.Error() }

func (e *valueError) Unwrap() error { return e.Err }

// encode writes rows, a slice of tagged row structs, header first.
func encode(w io.Writer, rows interface{}) error {
	return gocsv.Marshal(rows, w)
}

// decode reads the whole file into out after checking the required headers.
func decode(r io.Reader, out interface{}, required ...string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err == io.EOF {
		return fmt.Errorf("empty file: %w", ErrMissingColumn)
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	for _, name := range required {
		if !present[name] {
			return fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		return cellError(header, err)
	}
	return nil
}

// cellError names the column of a failed cell.
func cellError(header []string, err error) error {
	var pe *csv.ParseError
	if !errors.As(err, &pe) {
		return err
	}
	if errors.Is(pe.Err, csv.ErrFieldCount) || errors.Is(pe.Err, csv.ErrQuote) || errors.Is(pe.Err, csv.ErrBareQuote) {
		return fmt.Errorf("failed to read row: %w", err)
	}

	out := &ParseError{Line: pe.Line, Err: pe.Err}
	if pe.Column >= 1 && pe.Column <= len(header) {
		out.Column = header[pe.Column-1]
	}

	var ve *valueError
	var ne *strconv.NumError
	switch {
	case errors.As(pe.Err, &ve):
		out.Value, out.Err = ve.Value, ve.Err
	case errors.As(pe.Err, &ne):
		out.Value = ne.Num
	}
	return out
}
