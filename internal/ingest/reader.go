package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tabcheck/tabcheck/internal/core"
)

// Service parses uploaded files into grids. It implements core.Ingestor.
type Service struct {
	// MaxRows caps the number of data rows read from one file; 0 means
	// unlimited. The byte-level size cap is enforced by the HTTP layer.
	MaxRows int
}

func New(maxRows int) *Service {
	return &Service{MaxRows: maxRows}
}

// Read parses the named file into a grid, dispatching on the file extension.
// .xlsx goes through the workbook reader; everything else is treated as
// delimited text with delimiter detection.
func (s *Service) Read(name string, r io.Reader, sheet string) (*core.Grid, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return s.readWorkbook(r, sheet)
	default:
		return s.readDelimited(r)
	}
}

// sampleSize is how much of the file the delimiter detector inspects.
const sampleSize = 64 * 1024

// delimiterCandidates are tried in order; earlier candidates win ties.
var delimiterCandidates = []rune{',', ';', '|', '\t', ':', '/', '-'}

func (s *Service) readDelimited(r io.Reader) (*core.Grid, error) {
	br := bufio.NewReaderSize(newBOMSkippingReader(r), sampleSize)

	sample, err := br.Peek(sampleSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreadableFile, err)
	}
	if len(strings.TrimSpace(string(sample))) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrUnreadableFile)
	}

	delim := DetectDelimiter(string(sample))

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid csv: %v", core.ErrUnreadableFile, err)
		}
		for i := range rec {
			rec[i] = sanitizeField(rec[i])
		}
		rows = append(rows, rec)
		if s.MaxRows > 0 && len(rows) > s.MaxRows {
			return nil, fmt.Errorf("%w: file too large: more than %d rows", core.ErrUnreadableFile, s.MaxRows)
		}
	}

	return buildGrid(rows, "")
}

// DetectDelimiter picks the most plausible field separator for the sample.
// Each candidate is scored by the column count it would produce and by
// whether that count is consistent across the sampled lines; a consistent
// multi-column split always beats an inconsistent one.
func DetectDelimiter(sample string) rune {
	lines := sampleLines(sample, 20)
	if len(lines) == 0 {
		return ','
	}

	best := ','
	bestCols := 0
	bestConsistent := false

	for _, cand := range delimiterCandidates {
		cols, consistent := scoreDelimiter(lines, cand)
		if cols < 2 {
			continue
		}
		better := false
		switch {
		case consistent && !bestConsistent:
			better = true
		case consistent == bestConsistent && cols > bestCols:
			better = true
		}
		if better {
			best, bestCols, bestConsistent = cand, cols, consistent
		}
	}

	return best
}

func sampleLines(sample string, max int) []string {
	var out []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	// The last sampled line may be cut mid-record; drop it when there is
	// more than one so a truncated line cannot skew the counts.
	if len(out) > 1 {
		out = out[:len(out)-1]
	}
	return out
}

func scoreDelimiter(lines []string, delim rune) (cols int, consistent bool) {
	consistent = true
	first := -1
	total := 0
	for _, line := range lines {
		n := strings.Count(line, string(delim)) + 1
		if first == -1 {
			first = n
		} else if n != first {
			consistent = false
		}
		total += n
	}
	return total / len(lines), consistent
}

// buildGrid locates the header row, pads every row to uniform width, and
// drops fully empty rows.
func buildGrid(rows [][]string, sheet string) (*core.Grid, error) {
	rows = dropEmptyRows(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrUnreadableFile)
	}

	headerIdx := DetectHeaderRow(rows)
	headers := rows[headerIdx]
	data := rows[headerIdx+1:]

	width := len(headers)
	for _, r := range data {
		if len(r) > width {
			width = len(r)
		}
	}

	// Extend headers for unnamed trailing columns so no cell is dropped.
	headers = append([]string(nil), headers...)
	for len(headers) < width {
		headers = append(headers, fmt.Sprintf("column_%d", len(headers)+1))
	}

	padded := make([][]string, len(data))
	for i, r := range data {
		row := make([]string, width)
		copy(row, r)
		padded[i] = row
	}

	if len(padded) == 0 {
		return nil, fmt.Errorf("%w: empty file: no data rows below the header", core.ErrUnreadableFile)
	}

	return &core.Grid{Headers: headers, Rows: padded, Sheet: sheet}, nil
}

// DetectHeaderRow returns the index of the first row whose non-empty cells
// are all non-numeric. Spreadsheets often carry preamble rows (titles,
// export timestamps) above the real header; a row of pure labels is the
// strongest signal. Falls back to the first row.
func DetectHeaderRow(rows [][]string) int {
	for i, row := range rows {
		nonEmpty := 0
		allText := true
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, isNum := core.ParseNumber(cell); isNum {
				allText = false
				break
			}
		}
		if nonEmpty > 0 && allText {
			return i
		}
	}
	return 0
}

func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		empty := true
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, r)
		}
	}
	return out
}
