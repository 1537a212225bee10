package core

import (
	"errors"
	"testing"
)

func TestExpressionRule(t *testing.T) {
	tests := []struct {
		name    string
		params  RuleParams
		value   string
		wantOK  bool
		wantMsg string
	}{
		{
			name:   "numeric guard passes",
			params: RuleParams{"expr": "is_number && number >= 0.0"},
			value:  "42",
			wantOK: true,
		},
		{
			name:   "numeric guard fails on negative",
			params: RuleParams{"expr": "is_number && number >= 0.0"},
			value:  "-5",
			wantOK: false,
		},
		{
			name:   "numeric guard fails on text",
			params: RuleParams{"expr": "is_number && number >= 0.0"},
			value:  "abc",
			wantOK: false,
		},
		{
			name:   "string functions",
			params: RuleParams{"expr": `value.startsWith("INV-")`},
			value:  "INV-1001",
			wantOK: true,
		},
		{
			name:    "custom failure message",
			params:  RuleParams{"expr": "number > 100.0", "message": "amount must exceed 100"},
			value:   "50",
			wantOK:  false,
			wantMsg: "amount must exceed 100",
		},
		{
			name:   "size function",
			params: RuleParams{"expr": "size(value) <= 5"},
			value:  "abc",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := mustCompile(t, RuleExpression, tt.params)
			ok, msg := eval(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("eval(%q) ok = %v, want %v (msg %q)", tt.value, ok, tt.wantOK, msg)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("eval(%q) msg = %q, want %q", tt.value, msg, tt.wantMsg)
			}
		})
	}
}

func TestExpressionCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		params RuleParams
	}{
		{name: "missing expr", params: nil},
		{name: "blank expr", params: RuleParams{"expr": "  "}},
		{name: "syntax error", params: RuleParams{"expr": "value >"}},
		{name: "unknown variable", params: RuleParams{"expr": "other_column == \"x\""}},
		{name: "non-boolean result", params: RuleParams{"expr": "number + 1.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileRule(t, RuleExpression, tt.params)
			if err == nil {
				t.Fatal("compile succeeded, want error")
			}
			if !errors.Is(err, ErrInvalidRuleConfiguration) {
				t.Errorf("error %v does not wrap ErrInvalidRuleConfiguration", err)
			}
		})
	}
}
