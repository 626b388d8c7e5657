// Package tabular provides the in-memory table that prediction payloads
// and batch CSV inputs are converted into before they reach a pipeline.
// Column order is preserved end to end: the CSV written back out keeps the
// original columns in their original positions with appended columns last.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Frame is an ordered-column table. Cells hold float64, string, or nil
// for a missing value.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// NewFrame creates an empty frame with the given column order.
func NewFrame(columns []string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// ReadCSV parses a delimited table with a header row. Cell types are
// inferred best-effort: numeric text becomes float64, empty cells become
// nil, everything else stays a string.
func ReadCSV(raw []byte) (*Frame, error) {
	reader := csv.NewReader(bytes.NewReader(raw))

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	f := NewFrame(header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = inferCell(cell)
		}
		f.Rows = append(f.Rows, row)
	}

	return f, nil
}

// WriteCSV serializes the frame back to CSV bytes, header first, rows in
// order. Missing cells are written as empty fields.
func (f *Frame) WriteCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(f.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i := range f.Columns {
			if i < len(row) {
				record[i] = formatCell(row[i])
			} else {
				record[i] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return buf.Bytes(), nil
}

// FromPayload builds a single-row frame from a feature-name to value
// mapping. Keys are materialized in sorted order so the frame layout is
// deterministic; pipelines select columns by name, not position.
func FromPayload(payload map[string]any) *Frame {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := NewFrame(keys)
	row := make([]any, len(keys))
	for i, k := range keys {
		row[i] = normalizeValue(payload[k])
	}
	f.Rows = append(f.Rows, row)
	return f
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.Rows)
}

// ColumnIndex returns the position of a named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// At returns the cell at (row, named column). The second return is false
// when the column does not exist in the frame.
func (f *Frame) At(row int, column string) (any, bool) {
	idx := f.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(f.Rows) {
		return nil, false
	}
	r := f.Rows[row]
	if idx >= len(r) {
		return nil, false
	}
	return r[idx], true
}

// AddColumn appends a new column after the last existing one. The value
// slice must match the current row count.
func (f *Frame) AddColumn(name string, values []any) error {
	if len(values) != len(f.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(f.Rows))
	}
	f.Columns = append(f.Columns, name)
	for i := range f.Rows {
		f.Rows[i] = append(f.Rows[i], values[i])
	}
	return nil
}

// AddFloatColumn is AddColumn for a float slice.
func (f *Frame) AddFloatColumn(name string, values []float64) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.AddColumn(name, cells)
}

// AddStringColumn is AddColumn for a string slice.
func (f *Frame) AddStringColumn(name string, values []string) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.AddColumn(name, cells)
}

func inferCell(cell string) any {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
