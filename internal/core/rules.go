package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Rule type keys. Templates reference rule types by these strings.
const (
	RuleRequired     = "required"
	RuleInteger      = "integer"
	RuleDecimal      = "decimal"
	RuleBoolean      = "boolean"
	RuleText         = "text"
	RuleEmail        = "email"
	RuleAlphanumeric = "alphanumeric"
	RuleDate         = "date"
	RuleNumericRange = "numeric_range"
	RuleLengthRange  = "length_range"
	RuleOneOf        = "one_of"
	RulePattern      = "pattern"
	RuleExpression   = "expression"
)

// Priorities group rules into evaluation phases within a column: presence
// checks run before format checks, which run before constraint checks.
const (
	priorityPresence   = 0
	priorityFormat     = 10
	priorityConstraint = 20
)

func builtinRuleTypes() []RuleType {
	return []RuleType{
		{
			Key:            RuleRequired,
			Name:           "Required",
			Doc:            "Cell must be present and non-blank.",
			Priority:       priorityPresence,
			AppliesToEmpty: true,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if value == "" {
						return false, "value is required"
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleInteger,
			Name:     "Whole number",
			Doc:      "Cell must be a whole number with no separators.",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if _, ok := ParseInt(value); !ok {
						return false, fmt.Sprintf("%q is not a whole number", value)
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleDecimal,
			Name:     "Number",
			Doc:      "Cell must be a decimal number. Currency symbols and thousands separators are tolerated.",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if _, ok := ParseNumber(value); !ok {
						return false, fmt.Sprintf("%q is not a number", value)
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleBoolean,
			Name:     "Boolean",
			Doc:      "Cell must be a recognizable true/false value (true, yes, y, 1, ...).",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if _, ok := ParseBool(value); !ok {
						return false, fmt.Sprintf("%q is not a boolean", value)
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleText,
			Name:     "Text",
			Doc:      "Cell may hold any text. Always passes on non-empty values.",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(string) (bool, string) { return true, "" }, nil
			},
		},
		{
			Key:      RuleEmail,
			Name:     "Email",
			Doc:      "Cell must look like an email address.",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if !IsEmail(value) {
						return false, fmt.Sprintf("%q is not an email address", value)
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleAlphanumeric,
			Name:     "Alphanumeric",
			Doc:      "Cell must contain letters and digits only.",
			Priority: priorityFormat,
			Compile: func(RuleParams) (Evaluator, error) {
				return func(value string) (bool, string) {
					if !IsAlphanumeric(value) {
						return false, fmt.Sprintf("%q contains characters other than letters and digits", value)
					}
					return true, ""
				}, nil
			},
		},
		{
			Key:      RuleDate,
			Name:     "Date",
			Doc:      "Cell must match the configured date format exactly.",
			Priority: priorityFormat,
			Params: []ParamSpec{
				{Name: "format", Required: true, Doc: "Display format, e.g. DD-MM-YYYY or MM/YY."},
			},
			Compile: compileDate,
		},
		{
			Key:      RuleNumericRange,
			Name:     "Numeric range",
			Doc:      "Cell must be a number within [min, max]. Either bound may be omitted.",
			Priority: priorityConstraint,
			Params: []ParamSpec{
				{Name: "min", Required: false, Doc: "Inclusive lower bound."},
				{Name: "max", Required: false, Doc: "Inclusive upper bound."},
			},
			Compile: compileNumericRange,
		},
		{
			Key:      RuleLengthRange,
			Name:     "Length range",
			Doc:      "Cell length in characters must be within [min, max].",
			Priority: priorityConstraint,
			Params: []ParamSpec{
				{Name: "min", Required: false, Doc: "Inclusive minimum length."},
				{Name: "max", Required: false, Doc: "Inclusive maximum length."},
			},
			Compile: compileLengthRange,
		},
		{
			Key:      RuleOneOf,
			Name:     "Allowed values",
			Doc:      "Cell must equal one of the configured values.",
			Priority: priorityConstraint,
			Params: []ParamSpec{
				{Name: "values", Required: true, Doc: "Comma-separated list of allowed values."},
				{Name: "case_sensitive", Required: false, Doc: "true to compare case-sensitively; default false."},
			},
			Compile: compileOneOf,
		},
		{
			Key:      RulePattern,
			Name:     "Pattern",
			Doc:      "Cell must match the configured regular expression.",
			Priority: priorityConstraint,
			Params: []ParamSpec{
				{Name: "regex", Required: true, Doc: "RE2 regular expression the whole value must match."},
			},
			Compile: compilePattern,
		},
	}
}

func compileDate(params RuleParams) (Evaluator, error) {
	format := strings.TrimSpace(params["format"])
	if format == "" {
		return nil, fmt.Errorf("%w: date rule requires a format parameter", ErrInvalidRuleConfiguration)
	}
	layout, ok := DateLayout(format)
	if !ok {
		return nil, fmt.Errorf("%w: unknown date format %q (accepted: %s)",
			ErrInvalidRuleConfiguration, format, strings.Join(DateFormats(), ", "))
	}
	return func(value string) (bool, string) {
		if _, err := time.Parse(layout, value); err != nil {
			return false, fmt.Sprintf("%q is not a date in format %s", value, format)
		}
		return true, ""
	}, nil
}

func compileNumericRange(params RuleParams) (Evaluator, error) {
	min, hasMin, err := optionalNumberParam(params, "min")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := optionalNumberParam(params, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("%w: numeric range requires min or max", ErrInvalidRuleConfiguration)
	}
	if hasMin && hasMax && min > max {
		return nil, fmt.Errorf("%w: numeric range min %v exceeds max %v", ErrInvalidRuleConfiguration, min, max)
	}
	return func(value string) (bool, string) {
		n, ok := ParseNumber(value)
		if !ok {
			return false, fmt.Sprintf("%q is not a number", value)
		}
		if hasMin && n < min {
			return false, fmt.Sprintf("%v is below the minimum %v", n, min)
		}
		if hasMax && n > max {
			return false, fmt.Sprintf("%v is above the maximum %v", n, max)
		}
		return true, ""
	}, nil
}

func compileLengthRange(params RuleParams) (Evaluator, error) {
	min, hasMin, err := optionalIntParam(params, "min")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := optionalIntParam(params, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("%w: length range requires min or max", ErrInvalidRuleConfiguration)
	}
	if hasMin && min < 0 {
		return nil, fmt.Errorf("%w: length range min must not be negative", ErrInvalidRuleConfiguration)
	}
	if hasMin && hasMax && min > max {
		return nil, fmt.Errorf("%w: length range min %d exceeds max %d", ErrInvalidRuleConfiguration, min, max)
	}
	return func(value string) (bool, string) {
		// Character count, not byte count.
		n := int64(len([]rune(value)))
		if hasMin && n < min {
			return false, fmt.Sprintf("length %d is below the minimum %d", n, min)
		}
		if hasMax && n > max {
			return false, fmt.Sprintf("length %d is above the maximum %d", n, max)
		}
		return true, ""
	}, nil
}

func compileOneOf(params RuleParams) (Evaluator, error) {
	raw := strings.TrimSpace(params["values"])
	if raw == "" {
		return nil, fmt.Errorf("%w: one_of requires a values parameter", ErrInvalidRuleConfiguration)
	}
	caseSensitive := strings.EqualFold(strings.TrimSpace(params["case_sensitive"]), "true")

	allowed := make(map[string]struct{})
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !caseSensitive {
			v = strings.ToLower(v)
		}
		allowed[v] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: one_of values parameter is empty", ErrInvalidRuleConfiguration)
	}
	return func(value string) (bool, string) {
		key := value
		if !caseSensitive {
			key = strings.ToLower(key)
		}
		if _, ok := allowed[key]; !ok {
			return false, fmt.Sprintf("%q is not one of the allowed values", value)
		}
		return true, ""
	}, nil
}

func compilePattern(params RuleParams) (Evaluator, error) {
	raw := strings.TrimSpace(params["regex"])
	if raw == "" {
		return nil, fmt.Errorf("%w: pattern requires a regex parameter", ErrInvalidRuleConfiguration)
	}
	// Anchor so the whole value must match, matching template-author intent.
	re, err := regexp.Compile("^(?:" + raw + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: bad regex %q: %v", ErrInvalidRuleConfiguration, raw, err)
	}
	return func(value string) (bool, string) {
		if !re.MatchString(value) {
			return false, fmt.Sprintf("%q does not match the required pattern", value)
		}
		return true, ""
	}, nil
}

func optionalNumberParam(params RuleParams, name string) (float64, bool, error) {
	raw, present := params[name]
	raw = strings.TrimSpace(raw)
	if !present || raw == "" {
		return 0, false, nil
	}
	n, ok := ParseNumber(raw)
	if !ok {
		return 0, false, fmt.Errorf("%w: parameter %q is not a number: %q", ErrInvalidRuleConfiguration, name, raw)
	}
	return n, true, nil
}

func optionalIntParam(params RuleParams, name string) (int64, bool, error) {
	raw, present := params[name]
	raw = strings.TrimSpace(raw)
	if !present || raw == "" {
		return 0, false, nil
	}
	n, ok := ParseInt(raw)
	if !ok {
		return 0, false, fmt.Errorf("%w: parameter %q is not a whole number: %q", ErrInvalidRuleConfiguration, name, raw)
	}
	return n, true, nil
}
