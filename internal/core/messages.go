// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. When users encounter errors, they can quote the error code to
// support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Template and Rule Errors (TPL001-TPL099)
//
//	TPL001 - Invalid rule configuration: a rule binding has bad parameters
//	TPL002 - Template not found
//	TPL003 - Column not found in template
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Unreadable file: not parseable as CSV or XLSX
//	FILE002 - Empty file: no data rows after the header
//	FILE003 - Encoding error: file is not valid UTF-8
//	FILE004 - File too large
//	FILE005 - Sheet not found in workbook
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run cancelled
//	RUN002 - Run already in flight for this template and file
//	RUN003 - Too many concurrent runs
//	RUN004 - Run not found
//	RUN005 - Run has not finished
//	RUN006 - Run already superseded
//	RUN007 - Correction targets a cell the run never validated
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Operation timed out
//	DB003 - Duplicate key
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains; the first
// matching pattern wins, so specific patterns are listed before general ones.
// If ERR000 is reported, check application logs for the original error.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. The first matching pattern wins, so order matters: more specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid rule configuration",
		msg: UserMessage{
			Message: "A validation rule on this template is misconfigured",
			Action:  "Review the rule's parameters and fix the highlighted binding",
			Code:    "TPL001",
		},
	},
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "The selected template does not exist",
			Action:  "Pick an existing template or create a new one",
			Code:    "TPL002",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "The template has no column with that name",
			Action:  "Check the column identifier against the template definition",
			Code:    "TPL003",
		},
	},

	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "The file could not be read as CSV or Excel",
			Action:  "Re-export the file and upload it again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file has no data rows",
			Action:  "Upload a file with at least one row below the header",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "The file contains invalid characters",
			Action:  "Save the file as UTF-8 and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE004",
		},
	},
	{
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "The workbook has no sheet with that name",
			Action:  "Check the sheet name or omit it to use the first sheet",
			Code:    "FILE005",
		},
	},

	{
		pattern: "run cancelled",
		msg: UserMessage{
			Message: "The validation run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN001",
		},
	},
	{
		pattern: "already in flight",
		msg: UserMessage{
			Message: "This file is already being validated against this template",
			Action:  "Wait for the current run to finish",
			Code:    "RUN002",
		},
	},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "The system is busy processing other runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN003",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Validation run not found",
			Action:  "The run may have been purged. Start a new run",
			Code:    "RUN004",
		},
	},
	{
		pattern: "has not finished",
		msg: UserMessage{
			Message: "The run is still in progress",
			Action:  "Wait for the run to complete before correcting or exporting",
			Code:    "RUN005",
		},
	},
	{
		pattern: "already superseded",
		msg: UserMessage{
			Message: "A newer run already replaces this one",
			Action:  "Work from the latest run in the chain",
			Code:    "RUN006",
		},
	},
	{
		pattern: "unknown verdict",
		msg: UserMessage{
			Message: "The correction targets a cell this run never validated",
			Action:  "Check the row index and column against the run's verdicts",
			Code:    "RUN007",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "DB002",
		},
	},

	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB002",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A conflicting record already exists",
			Action:  "Refresh and retry the operation",
			Code:    "DB003",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a known pattern and should be
// shown to users rather than only logged.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
