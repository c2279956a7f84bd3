package sidecar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Column names shared by the grid and profile tables.
const (
	ColDistance = "distance"
	ColX        = "X"
	ColY        = "Y"
	ColZ        = "Z_ESTIM"
	ColSigma    = "SIGMA"
)

// table is a parsed numeric CSV keyed by column name.
type table struct {
	cols map[string][]float64
	rows int
}

// readTable reads a CSV with a header row. Lines starting with '#' are
// comments. Every column named in required must be present.
func readTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty table", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	t := &table{cols: make(map[string][]float64, len(header))}
	for _, name := range header {
		t.cols[name] = nil
	}
	for _, name := range required {
		if _, ok := t.cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrFormat, name)
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("%w: line %d column %q: %v", ErrFormat, line, header[i], err)
			}
			t.cols[header[i]] = append(t.cols[header[i]], v)
		}
		t.rows++
	}
	return t, nil
}

func (t *table) has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeTable writes the header row followed by one record per row.
func writeTable(w io.Writer, header []string, rows int, row func(i int) []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i := 0; i < rows; i++ {
		for j, v := range row(i) {
			rec[j] = formatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
