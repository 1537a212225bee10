package core

import (
	"io"

	"github.com/google/uuid"
)

// Grid is the parsed tabular content of one ingested file: a header row and
// zero or more data rows. Rows are padded to header width at ingest time, so
// every row has len(Headers) cells.
type Grid struct {
	Headers []string
	Rows    [][]string
	Sheet   string // workbook sheet the grid came from, empty for CSV
}

// Cell returns the raw value at (row, col); ok is false when the position is
// outside the grid.
func (g *Grid) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(g.Rows) {
		return "", false
	}
	r := g.Rows[row]
	if col < 0 || col >= len(r) {
		return "", false
	}
	return r[col], true
}

// Clone returns a deep copy. Corrections are applied to a clone so the
// grid backing a completed run is never mutated.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Headers: append([]string(nil), g.Headers...),
		Rows:    make([][]string, len(g.Rows)),
		Sheet:   g.Sheet,
	}
	for i, r := range g.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// ApplyCorrections overlays cell corrections onto a copy of the grid.
// Corrections addressing cells outside the grid, or columns the template
// knows but the file lacks, are skipped.
func (g *Grid) ApplyCorrections(corrections []Correction, colIndex map[uuid.UUID]int) *Grid {
	out := g.Clone()
	for _, c := range corrections {
		col, ok := colIndex[c.ColumnID]
		if !ok {
			continue
		}
		if c.Row < 0 || c.Row >= len(out.Rows) || col >= len(out.Rows[c.Row]) {
			continue
		}
		out.Rows[c.Row][col] = c.Value
	}
	return out
}

// Ingestor parses an uploaded file into a Grid. Implementations live outside
// this package; the service only needs this one operation.
type Ingestor interface {
	// Read parses the named file. sheet selects a workbook sheet and is
	// ignored for delimited text. Failures wrap ErrUnreadableFile.
	Read(name string, r io.Reader, sheet string) (*Grid, error)
}
