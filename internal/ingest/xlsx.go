package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tabcheck/tabcheck/internal/core"
)

// readWorkbook parses one sheet of an XLSX workbook into a grid. An empty
// sheet name selects the first sheet.
func (s *Service) readWorkbook(r io.Reader, sheet string) (*core.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrUnreadableFile)
	}

	if sheet == "" {
		sheet = sheets[0]
	} else if !containsSheet(sheets, sheet) {
		return nil, fmt.Errorf("%w: sheet not found: %q", core.ErrUnreadableFile, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreadableFile, err)
	}
	if s.MaxRows > 0 && len(rows) > s.MaxRows {
		return nil, fmt.Errorf("%w: file too large: more than %d rows", core.ErrUnreadableFile, s.MaxRows)
	}

	for _, row := range rows {
		for i := range row {
			row[i] = sanitizeField(row[i])
		}
	}

	return buildGrid(rows, sheet)
}

// Sheets lists the sheet names of an XLSX workbook, for the upload preview.
func Sheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreadableFile, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func containsSheet(sheets []string, want string) bool {
	for _, s := range sheets {
		if s == want {
			return true
		}
	}
	return false
}
