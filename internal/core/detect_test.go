package core

import "testing"

func TestDetectColumns(t *testing.T) {
	g := &Grid{
		Headers: []string{"id", "price", "active", "email", "joined", "code", "note", "blank"},
		Rows: [][]string{
			{"1001", "$9.99", "yes", "a@b.co", "2024-01-15", "abc1", "free text here", ""},
			{"1002", "12.50", "no", "c@d.co", "2024-02-20", "xy9z", "more, text", ""},
			{"1003", "1,300", "true", "e@f.co", "2024-03-05", "qrs7", "trailing", ""},
		},
	}

	got := DetectColumns(g)
	if len(got) != len(g.Headers) {
		t.Fatalf("got %d suggestions, want %d", len(got), len(g.Headers))
	}

	want := map[string]string{
		"id":     RuleInteger,
		"price":  RuleDecimal,
		"active": RuleBoolean,
		"email":  RuleEmail,
		"joined": RuleDate,
		"code":   RuleAlphanumeric,
		"note":   RuleText,
		"blank":  RuleText, // all-empty column falls back to text
	}
	for _, sc := range got {
		if sc.RuleKey != want[sc.Name] {
			t.Errorf("column %q detected as %q, want %q", sc.Name, sc.RuleKey, want[sc.Name])
		}
	}
}

func TestDetectDateFormatParam(t *testing.T) {
	g := &Grid{
		Headers: []string{"when"},
		Rows:    [][]string{{"31/12/2023"}, {"15/06/2024"}},
	}

	got := DetectColumns(g)
	if got[0].RuleKey != RuleDate {
		t.Fatalf("detected %q, want date", got[0].RuleKey)
	}
	if format := got[0].Params["format"]; format != "DD/MM/YYYY" {
		t.Errorf("format = %q, want DD/MM/YYYY", format)
	}
}

func TestDetectMixedColumnIsText(t *testing.T) {
	g := &Grid{
		Headers: []string{"mixed"},
		Rows:    [][]string{{"42"}, {"hello world"}},
	}
	if got := DetectColumns(g)[0].RuleKey; got != RuleText {
		t.Errorf("mixed column detected as %q, want text", got)
	}
}
