package core

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// celEnv is the shared CEL environment for expression rules. Expressions see
// the cell under validation through three variables:
//
//	value     string  the cleaned cell text
//	number    double  the numeric value, 0.0 when not numeric
//	is_number bool    whether the cell parsed as a number
//
// Expressions are column-local: a rule sees only its own cell, never other
// columns or rows.
var celEnv = mustCELEnv()

// celCostLimit caps expression evaluation cost so a pathological expression
// cannot stall a run.
const celCostLimit = 1_000_000

func mustCELEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.StringType),
		cel.Variable("number", cel.DoubleType),
		cel.Variable("is_number", cel.BoolType),
	)
	if err != nil {
		panic(fmt.Sprintf("cel environment: %v", err))
	}
	return env
}

func expressionRuleType() RuleType {
	return RuleType{
		Key:      RuleExpression,
		Name:     "Expression",
		Doc:      "Cell must satisfy a CEL boolean expression over value, number, and is_number.",
		Priority: priorityConstraint,
		Params: []ParamSpec{
			{Name: "expr", Required: true, Doc: "CEL expression that must evaluate to true."},
			{Name: "message", Required: false, Doc: "Failure message shown instead of the generic one."},
		},
		Compile: compileExpression,
	}
}

func compileExpression(params RuleParams) (Evaluator, error) {
	expr := strings.TrimSpace(params["expr"])
	if expr == "" {
		return nil, fmt.Errorf("%w: expression rule requires an expr parameter", ErrInvalidRuleConfiguration)
	}

	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleConfiguration, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: expression must produce a boolean, got %s",
			ErrInvalidRuleConfiguration, ast.OutputType())
	}

	prog, err := celEnv.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleConfiguration, err)
	}

	failMessage := strings.TrimSpace(params["message"])

	return func(value string) (bool, string) {
		number, isNumber := ParseNumber(value)
		out, _, err := prog.Eval(map[string]any{
			"value":     value,
			"number":    number,
			"is_number": isNumber,
		})
		if err != nil {
			// Runtime errors (cost limit, overflow) fail the cell rather
			// than the run; the engine stays deterministic either way.
			return false, fmt.Sprintf("expression error: %v", err)
		}
		matched, _ := out.Value().(bool)
		if !matched {
			if failMessage != "" {
				return false, failMessage
			}
			return false, fmt.Sprintf("%q does not satisfy the expression", value)
		}
		return true, ""
	}, nil
}
