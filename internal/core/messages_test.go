package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error", err: nil, wantCode: ""},
		{name: "rule configuration", err: fmt.Errorf("column x: %w", ErrInvalidRuleConfiguration), wantCode: "TPL001"},
		{name: "template not found", err: errors.New("template not found: abc"), wantCode: "TPL002"},
		{name: "unreadable file", err: fmt.Errorf("%w: bad bytes", ErrUnreadableFile), wantCode: "FILE001"},
		{name: "empty file", err: fmt.Errorf("%w: empty file", ErrUnreadableFile), wantCode: "FILE001"},
		{name: "sheet not found", err: errors.New(`sheet not found: "Data"`), wantCode: "FILE005"},
		{name: "file too large", err: errors.New("file too large: more than 100 rows"), wantCode: "FILE004"},
		{name: "run cancelled", err: fmt.Errorf("%w: deadline", ErrCancelled), wantCode: "RUN001"},
		{name: "duplicate run", err: fmt.Errorf("%w: template x", ErrRunInFlight), wantCode: "RUN002"},
		{name: "too many runs", err: ErrTooManyRuns, wantCode: "RUN003"},
		{name: "run not found", err: errors.New("run not found: abc"), wantCode: "RUN004"},
		{name: "run not terminal", err: fmt.Errorf("%w: run x is running", ErrRunNotTerminal), wantCode: "RUN005"},
		{name: "superseded", err: fmt.Errorf("%w: run x", ErrRunSuperseded), wantCode: "RUN006"},
		{name: "case insensitive", err: errors.New("TEMPLATE NOT FOUND"), wantCode: "TPL002"},
		{name: "unknown falls back", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.wantCode != "" && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError(%v) = %+v, want message and action", tt.err, got)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyRuns)
	want := "The system is busy processing other runs (Code: RUN003). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(ErrRunInFlight) {
		t.Error("IsUserFacing(ErrRunInFlight) = false, want true")
	}
	if IsUserFacing(errors.New("internal oddity")) {
		t.Error("IsUserFacing(unknown) = true, want false")
	}
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(fmt.Errorf("%w: ctx", ErrCancelled)) {
		t.Error("wrapped ErrCancelled not detected")
	}
	if !IsCancelled(fmt.Errorf("run: %w", context.Canceled)) {
		t.Error("wrapped context.Canceled not detected")
	}
	// Matching is on the error chain, not the message text.
	if IsCancelled(errors.New("context canceled")) {
		t.Error("plain text detected as cancellation")
	}
	if IsCancelled(errors.New("boom")) {
		t.Error("unrelated error detected as cancellation")
	}
}
