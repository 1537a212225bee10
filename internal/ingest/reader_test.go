package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tabcheck/tabcheck/internal/core"
)

// ----------------------------------------------------------------------------
// Delimiter Detection Tests
// ----------------------------------------------------------------------------

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{
			name:   "comma separated",
			sample: "name,age,email\nAda,34,a@b.co\nBob,51,b@c.co\ntruncat",
			want:   ',',
		},
		{
			name:   "semicolon separated",
			sample: "name;age;email\nAda;34;a@b.co\nBob;51;b@c.co\nx",
			want:   ';',
		},
		{
			name:   "tab separated",
			sample: "name\tage\nAda\t34\nBob\t51\nx",
			want:   '\t',
		},
		{
			name:   "pipe separated",
			sample: "name|age\nAda|34\nBob|51\nx",
			want:   '|',
		},
		{
			name:   "consistent comma beats occasional semicolon",
			sample: "name,note\nAda,likes tea; biscuits\nBob,plain\nCay,also plain\nx",
			want:   ',',
		},
		{
			name:   "single column defaults to comma",
			sample: "name\nAda\nBob\nx",
			want:   ',',
		},
		{
			name:   "empty sample defaults to comma",
			sample: "",
			want:   ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter(tt.sample); got != tt.want {
				t.Errorf("DetectDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Header Row Detection Tests
// ----------------------------------------------------------------------------

func TestDetectHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{
			name: "header on first row",
			rows: [][]string{{"name", "age"}, {"Ada", "34"}},
			want: 0,
		},
		{
			name: "text preamble wins as header candidate",
			rows: [][]string{
				{"Report 2024", "", ""},
				{"name", "age"},
				{"Ada", "34"},
			},
			// "Report 2024" does not parse as a number, so the row counts
			// as all-text and is taken as the header.
			want: 0,
		},
		{
			name: "numeric preamble skipped",
			rows: [][]string{
				{"2024-01", "99"},
				{"name", "age"},
				{"Ada", "34"},
			},
			want: 1,
		},
		{
			name: "all numeric falls back to first row",
			rows: [][]string{{"1", "2"}, {"3", "4"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectHeaderRow(tt.rows); got != tt.want {
				t.Errorf("DetectHeaderRow = %d, want %d", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Read Tests
// ----------------------------------------------------------------------------

func TestReadDelimited(t *testing.T) {
	svc := New(0)

	g, err := svc.Read("people.csv", strings.NewReader("name,age\nAda,34\nBob,51\n"), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(g.Headers) != 2 || g.Headers[0] != "name" {
		t.Errorf("headers = %v, want [name age]", g.Headers)
	}
	if len(g.Rows) != 2 || g.Rows[0][1] != "34" {
		t.Errorf("rows = %v", g.Rows)
	}
	if g.Sheet != "" {
		t.Errorf("csv grid has sheet %q, want empty", g.Sheet)
	}
}

func TestReadSemicolonFile(t *testing.T) {
	g, err := New(0).Read("data.txt", strings.NewReader("a;b;c\n1;2;3\n4;5;6\n"), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(g.Headers) != 3 || len(g.Rows) != 2 {
		t.Errorf("grid = %dx%d, want 2x3", len(g.Rows), len(g.Headers))
	}
	if g.Rows[1][2] != "6" {
		t.Errorf("cell = %q, want 6", g.Rows[1][2])
	}
}

func TestReadSkipsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,age\nAda,34\n")...)
	g, err := New(0).Read("bom.csv", bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if g.Headers[0] != "name" {
		t.Errorf("first header = %q, want name (BOM not stripped)", g.Headers[0])
	}
}

func TestReadSanitizesInvalidUTF8(t *testing.T) {
	data := []byte("name,note\nAda,bad\xffbyte\n")
	g, err := New(0).Read("latin.csv", bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := g.Rows[0][1]; got != "bad?byte" {
		t.Errorf("sanitized cell = %q, want bad?byte", got)
	}
}

func TestReadPadsRaggedRows(t *testing.T) {
	g, err := New(0).Read("ragged.csv", strings.NewReader("a,b\n1\n2,3,4\n"), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// Widest row has three cells; the extra column gets a generated name.
	if len(g.Headers) != 3 || g.Headers[2] != "column_3" {
		t.Errorf("headers = %v, want third header column_3", g.Headers)
	}
	for i, row := range g.Rows {
		if len(row) != 3 {
			t.Errorf("row %d has %d cells, want 3", i, len(row))
		}
	}
	if g.Rows[0][1] != "" {
		t.Errorf("short row not padded: %v", g.Rows[0])
	}
}

func TestReadDropsEmptyRows(t *testing.T) {
	g, err := New(0).Read("gaps.csv", strings.NewReader("a,b\n1,2\n,\n\n3,4\n"), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(g.Rows) != 2 {
		t.Errorf("got %d rows, want 2 (empty rows dropped)", len(g.Rows))
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty file", data: ""},
		{name: "whitespace only", data: "  \n \n"},
		{name: "header without data", data: "name,age\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(0).Read("bad.csv", strings.NewReader(tt.data), "")
			if !errors.Is(err, core.ErrUnreadableFile) {
				t.Errorf("err = %v, want ErrUnreadableFile", err)
			}
		})
	}
}

func TestReadEnforcesMaxRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("name\n")
	for i := 0; i < 50; i++ {
		b.WriteString("row\n")
	}

	_, err := New(10).Read("big.csv", strings.NewReader(b.String()), "")
	if !errors.Is(err, core.ErrUnreadableFile) {
		t.Fatalf("err = %v, want ErrUnreadableFile", err)
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("err = %v, want a too-large message", err)
	}

	if _, err := New(100).Read("big.csv", strings.NewReader(b.String()), ""); err != nil {
		t.Errorf("Read under the cap failed: %v", err)
	}
}

// ----------------------------------------------------------------------------
// Workbook Tests
// ----------------------------------------------------------------------------

// sampleGrid round-trips through the xlsx writer and reader.
func TestWorkbookRoundTrip(t *testing.T) {
	src := &core.Grid{
		Headers: []string{"name", "age"},
		Rows:    [][]string{{"Ada", "34"}, {"Bob", "51"}},
		Sheet:   "People",
	}

	var buf bytes.Buffer
	if err := WriteXLSX(src, &buf); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	sheets, err := Sheets(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Sheets failed: %v", err)
	}
	if len(sheets) != 1 || sheets[0] != "People" {
		t.Fatalf("sheets = %v, want [People]", sheets)
	}

	g, err := New(0).Read("people.xlsx", bytes.NewReader(buf.Bytes()), "People")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if g.Sheet != "People" {
		t.Errorf("sheet = %q, want People", g.Sheet)
	}
	if len(g.Headers) != 2 || g.Headers[1] != "age" {
		t.Errorf("headers = %v", g.Headers)
	}
	if len(g.Rows) != 2 || g.Rows[1][0] != "Bob" {
		t.Errorf("rows = %v", g.Rows)
	}
}

func TestWorkbookDefaultSheet(t *testing.T) {
	src := &core.Grid{
		Headers: []string{"a"},
		Rows:    [][]string{{"1x"}},
	}
	var buf bytes.Buffer
	if err := WriteXLSX(src, &buf); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	// No sheet requested: the first sheet is used.
	g, err := New(0).Read("data.xlsx", bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(g.Rows) != 1 || g.Rows[0][0] != "1x" {
		t.Errorf("rows = %v", g.Rows)
	}
}

func TestWorkbookSheetNotFound(t *testing.T) {
	src := &core.Grid{Headers: []string{"a"}, Rows: [][]string{{"x"}}}
	var buf bytes.Buffer
	if err := WriteXLSX(src, &buf); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	_, err := New(0).Read("data.xlsx", bytes.NewReader(buf.Bytes()), "Missing")
	if !errors.Is(err, core.ErrUnreadableFile) {
		t.Errorf("err = %v, want ErrUnreadableFile", err)
	}
}

// ----------------------------------------------------------------------------
// CSV Export Tests
// ----------------------------------------------------------------------------

func TestWriteCSV(t *testing.T) {
	g := &core.Grid{
		Headers: []string{"name", "note"},
		Rows:    [][]string{{"Ada", "likes, commas"}, {"Bob", ""}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(g, &buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "name,note\nAda,\"likes, commas\"\nBob,\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteCSV output = %q, want %q", got, want)
	}
}
