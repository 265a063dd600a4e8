package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strconv"

	"github.com/nickbanetti/vbs/internal/vision"
)

var (
	// ErrNoData means the section was empty or absent; callers must
	// surface "no data detected" instead of an empty table.
	ErrNoData = errors.New("no data detected")

	// ErrMalformed means the entries cannot form a rectangular grid.
	// Callers degrade to the flat view, never to an error page.
	ErrMalformed = errors.New("voting data cannot be pivoted")
)

type cellKey struct {
	row, col string
}

// Grid is the pivoted voting matrix: row and column labels in
// first-observed order, with counts at each observed intersection.
type Grid struct {
	Rows  []string
	Cols  []string
	cells map[cellKey]int
}

// ToGrid pivots the flat (row, col, count) triples into a Grid. The
// axes are the union of observed labels. A duplicate (row, col) pair
// is not an error: the later entry wins. An entry with an empty row
// or column label is malformed.
func ToGrid(entries []vision.VoteEntry) (*Grid, error) {
	if len(entries) == 0 {
		return nil, ErrNoData
	}

	g := &Grid{cells: make(map[cellKey]int)}
	seenRow := make(map[string]bool)
	seenCol := make(map[string]bool)

	for _, e := range entries {
		if e.Row == "" || e.Col == "" {
			return nil, ErrMalformed
		}
		if !seenRow[e.Row] {
			seenRow[e.Row] = true
			g.Rows = append(g.Rows, e.Row)
		}
		if !seenCol[e.Col] {
			seenCol[e.Col] = true
			g.Cols = append(g.Cols, e.Col)
		}
		g.cells[cellKey{e.Row, e.Col}] = e.Count
	}

	return g, nil
}

// Value returns the count at an intersection and whether it was
// observed at all.
func (g *Grid) Value(row, col string) (int, bool) {
	v, ok := g.cells[cellKey{row, col}]
	return v, ok
}

// CSV serializes the grid with column labels as the header row and
// row labels as the first column. Unobserved intersections are empty
// cells.
func (g *Grid) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{""}, g.Cols...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range g.Rows {
		record := make([]string, 0, len(g.Cols)+1)
		record = append(record, row)
		for _, col := range g.Cols {
			if v, ok := g.Value(row, col); ok {
				record = append(record, strconv.Itoa(v))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// RawCSV serializes the unpivoted triples. Used as the fallback when
// ToGrid reports malformed data.
func RawCSV(entries []vision.VoteEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNoData
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"row", "col", "count"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Row, e.Col, strconv.Itoa(e.Count)}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// GridOrRawCSV is the export used by handlers: pivoted when possible,
// flat when the pivot fails, ErrNoData when there is nothing to show.
func GridOrRawCSV(entries []vision.VoteEntry) ([]byte, error) {
	grid, err := ToGrid(entries)
	if errors.Is(err, ErrMalformed) {
		return RawCSV(entries)
	}
	if err != nil {
		return nil, err
	}
	return grid.CSV()
}
