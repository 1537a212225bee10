package core

import (
	"fmt"
	"sort"
)

// RuleParams holds the configuration of one rule binding, as key/value
// strings taken straight from the template definition.
type RuleParams map[string]string

// Evaluator checks one cleaned cell value. When the value fails, ok is
// false and message explains why in end-user terms.
type Evaluator func(value string) (ok bool, message string)

// ParamSpec documents one parameter a rule type accepts.
type ParamSpec struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Doc      string `json:"doc"`
}

// RuleType is one kind of check the engine knows how to run. Compile turns
// a binding's parameters into an Evaluator; it runs once at binding time so
// a misconfigured rule is rejected before any run starts.
type RuleType struct {
	Key      string      `json:"key"`
	Name     string      `json:"name"`
	Doc      string      `json:"doc"`
	Params   []ParamSpec `json:"params,omitempty"`
	Priority int         `json:"priority"` // lower runs first within a column

	// AppliesToEmpty marks rules that still run when the cell is absent or
	// blank. Only presence checks set this; format rules skip empty cells.
	AppliesToEmpty bool `json:"appliesToEmpty"`

	Compile func(params RuleParams) (Evaluator, error) `json:"-"`
}

// Catalog is the fixed set of rule types available to templates. It is an
// explicit value handed to the service rather than package-global state, so
// tests can build reduced catalogs and the full set is visible at the
// composition root.
type Catalog struct {
	types map[string]RuleType
}

// NewCatalog builds a catalog from the given rule types. Duplicate keys
// panic: the catalog is assembled once at startup from static definitions,
// so a duplicate is a programming error.
func NewCatalog(types ...RuleType) *Catalog {
	c := &Catalog{types: make(map[string]RuleType, len(types))}
	for _, t := range types {
		if _, dup := c.types[t.Key]; dup {
			panic(fmt.Sprintf("catalog: duplicate rule type %q", t.Key))
		}
		if t.Compile == nil {
			panic(fmt.Sprintf("catalog: rule type %q has no compiler", t.Key))
		}
		c.types[t.Key] = t
	}
	return c
}

// Lookup returns the rule type registered under key.
func (c *Catalog) Lookup(key string) (RuleType, bool) {
	t, ok := c.types[key]
	return t, ok
}

// Types returns all rule types ordered by priority, then key.
func (c *Catalog) Types() []RuleType {
	out := make([]RuleType, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DefaultCatalog returns the full built-in rule set plus the expression rule.
func DefaultCatalog() *Catalog {
	types := append(builtinRuleTypes(), expressionRuleType())
	return NewCatalog(types...)
}
