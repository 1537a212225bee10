package core

import (
	"errors"
	"testing"
)

// compileRule compiles one rule type from the default catalog, failing the
// test when the key is unknown.
func compileRule(t *testing.T, key string, params RuleParams) (Evaluator, error) {
	t.Helper()
	rt, ok := DefaultCatalog().Lookup(key)
	if !ok {
		t.Fatalf("rule type %q not in catalog", key)
	}
	return rt.Compile(params)
}

func mustCompile(t *testing.T, key string, params RuleParams) Evaluator {
	t.Helper()
	eval, err := compileRule(t, key, params)
	if err != nil {
		t.Fatalf("compile %q: %v", key, err)
	}
	return eval
}

// ----------------------------------------------------------------------------
// Evaluator Tests
// ----------------------------------------------------------------------------

func TestRuleEvaluators(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		params RuleParams
		value  string
		wantOK bool
	}{
		// required
		{name: "required passes on value", key: RuleRequired, value: "x", wantOK: true},
		{name: "required fails on empty", key: RuleRequired, value: "", wantOK: false},

		// integer
		{name: "integer accepts whole number", key: RuleInteger, value: "34", wantOK: true},
		{name: "integer rejects decimal", key: RuleInteger, value: "34.5", wantOK: false},
		{name: "integer rejects text", key: RuleInteger, value: "ten", wantOK: false},

		// decimal
		{name: "decimal accepts currency", key: RuleDecimal, value: "$1,200.50", wantOK: true},
		{name: "decimal rejects text", key: RuleDecimal, value: "abc", wantOK: false},

		// boolean
		{name: "boolean accepts yes", key: RuleBoolean, value: "yes", wantOK: true},
		{name: "boolean rejects maybe", key: RuleBoolean, value: "maybe", wantOK: false},

		// text
		{name: "text always passes", key: RuleText, value: "anything at all", wantOK: true},

		// email
		{name: "email accepts address", key: RuleEmail, value: "a@b.co", wantOK: true},
		{name: "email rejects bare word", key: RuleEmail, value: "nobody", wantOK: false},

		// alphanumeric
		{name: "alphanumeric accepts letters and digits", key: RuleAlphanumeric, value: "abc123", wantOK: true},
		{name: "alphanumeric rejects punctuation", key: RuleAlphanumeric, value: "abc-123", wantOK: false},

		// date
		{name: "date matches format", key: RuleDate, params: RuleParams{"format": "YYYY-MM-DD"}, value: "2024-03-31", wantOK: true},
		{name: "date rejects wrong format", key: RuleDate, params: RuleParams{"format": "YYYY-MM-DD"}, value: "31/03/2024", wantOK: false},
		{name: "date rejects impossible day", key: RuleDate, params: RuleParams{"format": "DD-MM-YYYY"}, value: "32-01-2024", wantOK: false},
		{name: "month year format", key: RuleDate, params: RuleParams{"format": "MM/YY"}, value: "03/24", wantOK: true},

		// numeric_range
		{name: "range accepts inside", key: RuleNumericRange, params: RuleParams{"min": "0", "max": "120"}, value: "34", wantOK: true},
		{name: "range accepts bound", key: RuleNumericRange, params: RuleParams{"min": "0", "max": "120"}, value: "120", wantOK: true},
		{name: "range rejects above max", key: RuleNumericRange, params: RuleParams{"min": "0", "max": "120"}, value: "200", wantOK: false},
		{name: "range rejects below min", key: RuleNumericRange, params: RuleParams{"min": "0", "max": "120"}, value: "-1", wantOK: false},
		{name: "range rejects non-number", key: RuleNumericRange, params: RuleParams{"min": "0"}, value: "abc", wantOK: false},
		{name: "min only", key: RuleNumericRange, params: RuleParams{"min": "10"}, value: "99999", wantOK: true},
		{name: "max only", key: RuleNumericRange, params: RuleParams{"max": "10"}, value: "9", wantOK: true},

		// length_range
		{name: "length inside range", key: RuleLengthRange, params: RuleParams{"min": "2", "max": "5"}, value: "abcd", wantOK: true},
		{name: "length too short", key: RuleLengthRange, params: RuleParams{"min": "2", "max": "5"}, value: "a", wantOK: false},
		{name: "length counts runes", key: RuleLengthRange, params: RuleParams{"max": "3"}, value: "ééé", wantOK: true},

		// one_of
		{name: "one_of accepts listed", key: RuleOneOf, params: RuleParams{"values": "red, green, blue"}, value: "green", wantOK: true},
		{name: "one_of case-insensitive by default", key: RuleOneOf, params: RuleParams{"values": "red, green"}, value: "RED", wantOK: true},
		{name: "one_of case-sensitive rejects", key: RuleOneOf, params: RuleParams{"values": "red", "case_sensitive": "true"}, value: "RED", wantOK: false},
		{name: "one_of rejects unlisted", key: RuleOneOf, params: RuleParams{"values": "red, green"}, value: "purple", wantOK: false},

		// pattern
		{name: "pattern anchors whole value", key: RulePattern, params: RuleParams{"regex": `\d{3}`}, value: "123", wantOK: true},
		{name: "pattern rejects partial match", key: RulePattern, params: RuleParams{"regex": `\d{3}`}, value: "1234", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := mustCompile(t, tt.key, tt.params)
			ok, msg := eval(tt.value)
			if ok != tt.wantOK {
				t.Errorf("%s(%q) ok = %v, want %v (msg %q)", tt.key, tt.value, ok, tt.wantOK, msg)
			}
			if !ok && msg == "" {
				t.Errorf("%s(%q) failed with empty message", tt.key, tt.value)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Compile Error Tests
// ----------------------------------------------------------------------------

func TestRuleCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		params RuleParams
	}{
		{name: "date without format", key: RuleDate, params: nil},
		{name: "date with unknown format", key: RuleDate, params: RuleParams{"format": "YYYYMMDD"}},
		{name: "numeric range without bounds", key: RuleNumericRange, params: nil},
		{name: "numeric range min above max", key: RuleNumericRange, params: RuleParams{"min": "10", "max": "5"}},
		{name: "numeric range non-numeric min", key: RuleNumericRange, params: RuleParams{"min": "low"}},
		{name: "length range without bounds", key: RuleLengthRange, params: nil},
		{name: "length range negative min", key: RuleLengthRange, params: RuleParams{"min": "-1"}},
		{name: "length range fractional min", key: RuleLengthRange, params: RuleParams{"min": "1.5"}},
		{name: "one_of without values", key: RuleOneOf, params: nil},
		{name: "one_of only commas", key: RuleOneOf, params: RuleParams{"values": ", ,"}},
		{name: "pattern without regex", key: RulePattern, params: nil},
		{name: "pattern with bad regex", key: RulePattern, params: RuleParams{"regex": "("}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileRule(t, tt.key, tt.params)
			if err == nil {
				t.Fatalf("compile %s with %v succeeded, want error", tt.key, tt.params)
			}
			if !errors.Is(err, ErrInvalidRuleConfiguration) {
				t.Errorf("error %v does not wrap ErrInvalidRuleConfiguration", err)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Catalog Tests
// ----------------------------------------------------------------------------

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	for _, key := range []string{
		RuleRequired, RuleInteger, RuleDecimal, RuleBoolean, RuleText,
		RuleEmail, RuleAlphanumeric, RuleDate, RuleNumericRange,
		RuleLengthRange, RuleOneOf, RulePattern, RuleExpression,
	} {
		if _, ok := catalog.Lookup(key); !ok {
			t.Errorf("catalog missing rule type %q", key)
		}
	}

	types := catalog.Types()
	if len(types) != 13 {
		t.Errorf("catalog has %d types, want 13", len(types))
	}
	if types[0].Key != RuleRequired {
		t.Errorf("first catalog entry = %q, want %q (presence runs first)", types[0].Key, RuleRequired)
	}
	for i := 1; i < len(types); i++ {
		if types[i-1].Priority > types[i].Priority {
			t.Errorf("catalog not ordered by priority at %q", types[i].Key)
		}
	}

	// Only presence rules apply to empty cells.
	for _, rt := range types {
		want := rt.Key == RuleRequired
		if rt.AppliesToEmpty != want {
			t.Errorf("%q AppliesToEmpty = %v, want %v", rt.Key, rt.AppliesToEmpty, want)
		}
	}
}

func TestNewCatalogPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate rule key did not panic")
		}
	}()
	rt := builtinRuleTypes()[0]
	NewCatalog(rt, rt)
}
