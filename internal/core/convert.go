package core

// convert.go provides value parsing helpers shared by the rule evaluators
// and the column type detector.
//
// These functions handle the messy reality of user-provided tabular data:
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Display-style date formats (DD-MM-YYYY, MM/YY, ...)
//   - Excel formula prefixes (="value")
//
// All parsers are locale-free and deterministic: the same input always
// yields the same result.

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// intRegex matches optionally signed whole numbers with no separators.
var intRegex = regexp.MustCompile(`^[+-]?\d+$`)

// emailRegex is a pragmatic address check: one @, non-empty local part, and
// a dotted domain. Full RFC 5322 parsing is deliberately out of reach here.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// alphanumericRegex accepts letters and digits only, at least one character.
var alphanumericRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// dateLayouts maps the display-style format names exposed to template
// authors onto Go reference layouts. Keys are the exact strings accepted
// by the date rule's "format" parameter.
var dateLayouts = map[string]string{
	"DD-MM-YYYY": "02-01-2006",
	"DD/MM/YYYY": "02/01/2006",
	"MM-DD-YYYY": "01-02-2006",
	"MM/DD/YYYY": "01/02/2006",
	"YYYY-MM-DD": "2006-01-02",
	"YYYY/MM/DD": "2006/01/02",
	"MM-YYYY":    "01-2006",
	"MM/YYYY":    "01/2006",
	"MM-YY":      "01-06",
	"MM/YY":      "01/06",
}

// DateFormats lists the accepted date format names in stable order.
func DateFormats() []string {
	out := make([]string, 0, len(dateLayouts))
	for k := range dateLayouts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DateLayout resolves a display-style format name to a Go time layout.
func DateLayout(format string) (string, bool) {
	layout, ok := dateLayouts[strings.ToUpper(strings.TrimSpace(format))]
	return layout, ok
}

// CleanValue normalizes a raw cell value before rule evaluation:
// trims whitespace, strips a UTF-8 BOM, and unwraps the Excel formula
// prefix ="value".
func CleanValue(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) > 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// ParseInt reports whether s is a plain whole number. Thousands separators
// and decimal points are rejected; "34" passes, "34.0" and "1,200" do not.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !intRegex.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseNumber parses s as a decimal number after stripping currency symbols,
// thousands separators, and accounting-style parentheses for negatives.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseBool recognizes the common spreadsheet booleans.
// Accepted: true/false, yes/no, y/n, 1/0, t/f (case-insensitive).
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t":
		return true, true
	case "false", "no", "n", "0", "f":
		return false, true
	}
	return false, false
}

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// IsAlphanumeric reports whether s consists only of letters and digits.
func IsAlphanumeric(s string) bool {
	return alphanumericRegex.MatchString(strings.TrimSpace(s))
}
