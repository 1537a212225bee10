package core

import "testing"

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   float64
	}{
		// Valid: Basic numbers
		{name: "positive integer", input: "123", wantOK: true, want: 123},
		{name: "zero", input: "0", wantOK: true, want: 0},
		{name: "negative integer", input: "-456", wantOK: true, want: -456},
		{name: "decimal number", input: "123.45", wantOK: true, want: 123.45},
		{name: "leading decimal point", input: ".99", wantOK: true, want: 0.99},
		{name: "scientific notation", input: "1.2e3", wantOK: true, want: 1200},

		// Valid: Currency symbols
		{name: "dollar sign", input: "$1,234.56", wantOK: true, want: 1234.56},
		{name: "euro sign", input: "€1234.56", wantOK: true, want: 1234.56},
		{name: "pound sign", input: "£1234.56", wantOK: true, want: 1234.56},

		// Valid: Thousands separators
		{name: "comma separators", input: "1,234,567", wantOK: true, want: 1234567},

		// Valid: Accounting negatives
		{name: "parentheses negative", input: "(500)", wantOK: true, want: -500},
		{name: "parentheses with currency", input: "($1,500.25)", wantOK: true, want: -1500.25},

		// Valid: Whitespace
		{name: "surrounding whitespace", input: "  42  ", wantOK: true, want: 42},

		// Invalid
		{name: "empty string", input: "", wantOK: false},
		{name: "plain text", input: "abc", wantOK: false},
		{name: "mixed text and digits", input: "12abc", wantOK: false},
		{name: "double decimal point", input: "1.2.3", wantOK: false},
		{name: "lone minus", input: "-", wantOK: false},
		{name: "unmatched parenthesis", input: "(500", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseInt Tests
// ----------------------------------------------------------------------------

func TestParseInt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   int64
	}{
		{name: "plain integer", input: "34", wantOK: true, want: 34},
		{name: "negative integer", input: "-7", wantOK: true, want: -7},
		{name: "explicit plus", input: "+12", wantOK: true, want: 12},
		{name: "whitespace trimmed", input: " 100 ", wantOK: true, want: 100},
		{name: "decimal rejected", input: "34.0", wantOK: false},
		{name: "thousands separator rejected", input: "1,200", wantOK: false},
		{name: "text rejected", input: "ten", wantOK: false},
		{name: "empty rejected", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInt(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseInt(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseInt(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseBool Tests
// ----------------------------------------------------------------------------

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "yes", "Y", "1", "t", " True "}
	for _, in := range truthy {
		v, ok := ParseBool(in)
		if !ok || !v {
			t.Errorf("ParseBool(%q) = (%v, %v), want (true, true)", in, v, ok)
		}
	}

	falsy := []string{"false", "no", "N", "0", "f", "FALSE"}
	for _, in := range falsy {
		v, ok := ParseBool(in)
		if !ok || v {
			t.Errorf("ParseBool(%q) = (%v, %v), want (false, true)", in, v, ok)
		}
	}

	invalid := []string{"", "maybe", "2", "yess", "on"}
	for _, in := range invalid {
		if _, ok := ParseBool(in); ok {
			t.Errorf("ParseBool(%q) ok = true, want false", in)
		}
	}
}

// ----------------------------------------------------------------------------
// CleanValue Tests
// ----------------------------------------------------------------------------

func TestCleanValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain value untouched", input: "hello", want: "hello"},
		{name: "whitespace trimmed", input: "  hello  ", want: "hello"},
		{name: "BOM stripped", input: "\uFEFFhello", want: "hello"},
		{name: "excel formula unwrapped", input: `="0042"`, want: "0042"},
		{name: "incomplete formula kept", input: `="`, want: `="`},
		{name: "empty stays empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanValue(tt.input); got != tt.want {
				t.Errorf("CleanValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Email / Alphanumeric Tests
// ----------------------------------------------------------------------------

func TestIsEmail(t *testing.T) {
	valid := []string{"a@b.co", "user.name@example.com", " padded@example.org "}
	for _, in := range valid {
		if !IsEmail(in) {
			t.Errorf("IsEmail(%q) = false, want true", in)
		}
	}

	invalid := []string{"", "plain", "missing@tld", "@example.com", "two@@example.com", "spa ce@example.com"}
	for _, in := range invalid {
		if IsEmail(in) {
			t.Errorf("IsEmail(%q) = true, want false", in)
		}
	}
}

func TestIsAlphanumeric(t *testing.T) {
	if !IsAlphanumeric("abc123") {
		t.Error("IsAlphanumeric(abc123) = false, want true")
	}
	for _, in := range []string{"", "has space", "dash-ed", "uniçode"} {
		if IsAlphanumeric(in) {
			t.Errorf("IsAlphanumeric(%q) = true, want false", in)
		}
	}
}

// ----------------------------------------------------------------------------
// Date Format Tests
// ----------------------------------------------------------------------------

func TestDateLayout(t *testing.T) {
	tests := []struct {
		format string
		want   string
		wantOK bool
	}{
		{format: "YYYY-MM-DD", want: "2006-01-02", wantOK: true},
		{format: "DD/MM/YYYY", want: "02/01/2006", wantOK: true},
		{format: "MM/YY", want: "01/06", wantOK: true},
		{format: "yyyy-mm-dd", want: "2006-01-02", wantOK: true}, // case-insensitive
		{format: " MM-YYYY ", want: "01-2006", wantOK: true},
		{format: "YYYYMMDD", wantOK: false},
		{format: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := DateLayout(tt.format)
		if ok != tt.wantOK {
			t.Errorf("DateLayout(%q) ok = %v, want %v", tt.format, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("DateLayout(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestDateFormatsSorted(t *testing.T) {
	formats := DateFormats()
	if len(formats) == 0 {
		t.Fatal("DateFormats() returned no formats")
	}
	for i := 1; i < len(formats); i++ {
		if formats[i-1] >= formats[i] {
			t.Errorf("DateFormats() not sorted: %q before %q", formats[i-1], formats[i])
		}
	}
	for _, f := range formats {
		if _, ok := DateLayout(f); !ok {
			t.Errorf("DateLayout(%q) not resolvable for listed format", f)
		}
	}
}
