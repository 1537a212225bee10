package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ColumnRule binds one rule type, with parameters, to a template column.
// Position fixes the author's ordering among bindings of equal priority.
type ColumnRule struct {
	ID       uuid.UUID  `json:"id"`
	RuleKey  string     `json:"ruleKey"`
	Params   RuleParams `json:"params,omitempty"`
	Position int        `json:"position"`
}

// Column is one expected column in a template, with its rule bindings.
type Column struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Rules    []ColumnRule `json:"rules,omitempty"`
}

// Template is a named, reusable set of column definitions owned by a user.
// Editing a template never rewrites past runs; each run evaluates against
// the template as it stood when the run started.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Columns   []Column  `json:"columns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeHeader canonicalizes a column name for matching file headers to
// template columns: trim, collapse inner whitespace, lowercase.
func NormalizeHeader(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// binding is one compiled rule attached to a column, ready to evaluate.
type binding struct {
	RuleID         uuid.UUID
	RuleKey        string
	Priority       int
	Position       int
	AppliesToEmpty bool
	Eval           Evaluator
}

// compiledColumn is a column with its bindings compiled and sorted into
// evaluation order.
type compiledColumn struct {
	ID       uuid.UUID
	Name     string
	Bindings []binding
}

// CompiledTemplate is a template whose every rule binding has been compiled.
// Compilation happens once per run start, so misconfigured rules surface
// before any cell is touched.
type CompiledTemplate struct {
	ID      uuid.UUID
	Columns []compiledColumn

	// byHeader indexes columns by normalized name for header matching.
	byHeader map[string]int
}

// CompileTemplate validates and compiles every rule binding in t against the
// catalog. Any failure wraps ErrInvalidRuleConfiguration and names the
// offending column and rule.
func CompileTemplate(t Template, catalog *Catalog) (*CompiledTemplate, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%w: template %q has no columns", ErrInvalidRuleConfiguration, t.Name)
	}

	ct := &CompiledTemplate{
		ID:       t.ID,
		Columns:  make([]compiledColumn, 0, len(t.Columns)),
		byHeader: make(map[string]int, len(t.Columns)),
	}

	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })

	for _, col := range cols {
		key := NormalizeHeader(col.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: template %q has a column with a blank name", ErrInvalidRuleConfiguration, t.Name)
		}
		if _, dup := ct.byHeader[key]; dup {
			return nil, fmt.Errorf("%w: template %q defines column %q twice", ErrInvalidRuleConfiguration, t.Name, col.Name)
		}

		cc := compiledColumn{ID: col.ID, Name: col.Name}
		for _, cr := range col.Rules {
			rt, ok := catalog.Lookup(cr.RuleKey)
			if !ok {
				return nil, fmt.Errorf("%w: column %q references unknown rule type %q",
					ErrInvalidRuleConfiguration, col.Name, cr.RuleKey)
			}
			eval, err := rt.Compile(cr.Params)
			if err != nil {
				return nil, fmt.Errorf("column %q, rule %q: %w", col.Name, cr.RuleKey, err)
			}
			cc.Bindings = append(cc.Bindings, binding{
				RuleID:         cr.ID,
				RuleKey:        cr.RuleKey,
				Priority:       rt.Priority,
				Position:       cr.Position,
				AppliesToEmpty: rt.AppliesToEmpty,
				Eval:           eval,
			})
		}

		// Presence checks run before format checks, then author order.
		sort.SliceStable(cc.Bindings, func(i, j int) bool {
			if cc.Bindings[i].Priority != cc.Bindings[j].Priority {
				return cc.Bindings[i].Priority < cc.Bindings[j].Priority
			}
			return cc.Bindings[i].Position < cc.Bindings[j].Position
		})

		ct.byHeader[key] = len(ct.Columns)
		ct.Columns = append(ct.Columns, cc)
	}

	return ct, nil
}

// MatchHeader returns the index of the template column matching the given
// file header, if any.
func (ct *CompiledTemplate) MatchHeader(header string) (int, bool) {
	i, ok := ct.byHeader[NormalizeHeader(header)]
	return i, ok
}
