// Package filter implements declarative per-catalog collection predicates.
//
// A Rule is plain data: it can be loaded from YAML, served as JSON and evaluated
// against a decoded collection document without running operator code.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRule signals a rule that cannot be evaluated.
var ErrInvalidRule = errors.New("invalid filter rule")

// Op is a comparison operator applied to the value found at a rule's path.
type Op string

// Supported operators.
const (
	OpExists    Op = "exists"
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpContains  Op = "contains"
	OpIContains Op = "icontains"
	OpPrefix    Op = "prefix"
	OpSuffix    Op = "suffix"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
)

// Rule is one node of a predicate tree. Exactly one of Op, All, Any or Some is set.
//
//   - Op compares the value at Path with Value.
//   - All / Any combine child rules evaluated against the value at Path.
//   - Some is true when Path holds an array with at least one element matching it.
//
// Not inverts the node's outcome.
type Rule struct {
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Op    Op     `yaml:"op,omitempty" json:"op,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
	Not   bool   `yaml:"not,omitempty" json:"not,omitempty"`
	All   []Rule `yaml:"all,omitempty" json:"all,omitempty"`
	Any   []Rule `yaml:"any,omitempty" json:"any,omitempty"`
	Some  *Rule  `yaml:"some,omitempty" json:"some,omitempty"`
}

// Validate checks the rule tree shape and operator arguments.
func (r Rule) Validate() error {
	forms := 0
	if r.Op != "" {
		forms++
	}
	if len(r.All) > 0 {
		forms++
	}
	if len(r.Any) > 0 {
		forms++
	}
	if r.Some != nil {
		forms++
	}
	if forms != 1 {
		return fmt.Errorf("%w: exactly one of op, all, any, some is required", ErrInvalidRule)
	}

	switch {
	case r.Some != nil:
		if r.Path == "" {
			return fmt.Errorf("%w: some requires a path", ErrInvalidRule)
		}
		if err := r.Some.Validate(); err != nil {
			return fmt.Errorf("some: %w", err)
		}
	case len(r.All) > 0:
		for i, c := range r.All {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("all[%d]: %w", i, err)
			}
		}
	case len(r.Any) > 0:
		for i, c := range r.Any {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("any[%d]: %w", i, err)
			}
		}
	default:
		return r.validateOp()
	}
	return nil
}

func (r Rule) validateOp() error {
	switch r.Op {
	case OpExists:
		return nil
	case OpEq, OpNe, OpContains:
		if r.Value == nil {
			return fmt.Errorf("%w: op %q requires a value", ErrInvalidRule, r.Op)
		}
	case OpIContains, OpPrefix, OpSuffix:
		if _, ok := r.Value.(string); !ok {
			return fmt.Errorf("%w: op %q requires a string value", ErrInvalidRule, r.Op)
		}
	case OpGt, OpGte, OpLt, OpLte:
		if _, ok := toFloat(r.Value); ok {
			return nil
		}
		if _, ok := r.Value.(string); !ok {
			return fmt.Errorf("%w: op %q requires a number or string value", ErrInvalidRule, r.Op)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidRule, r.Op)
	}
	return nil
}

// Match evaluates the rule against a decoded JSON document.
func (r Rule) Match(doc any) bool {
	target, found := Lookup(doc, r.Path)

	var ok bool
	switch {
	case r.Some != nil:
		if items, isArr := target.([]any); isArr {
			for _, item := range items {
				if r.Some.Match(item) {
					ok = true
					break
				}
			}
		}
	case len(r.All) > 0:
		ok = true
		for _, c := range r.All {
			if !c.Match(target) {
				ok = false
				break
			}
		}
	case len(r.Any) > 0:
		for _, c := range r.Any {
			if c.Match(target) {
				ok = true
				break
			}
		}
	default:
		ok = compare(r.Op, target, found, r.Value)
	}

	return ok != r.Not
}

// Lookup resolves a dot-separated path in a decoded JSON document.
// Numeric segments index into arrays. An empty path returns doc itself.
func Lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func compare(op Op, target any, found bool, value any) bool {
	switch op {
	case OpExists:
		return found && target != nil
	case OpEq:
		return found && equal(target, value)
	case OpNe:
		return !found || !equal(target, value)
	case OpContains:
		return contains(target, value, false)
	case OpIContains:
		return contains(target, value, true)
	case OpPrefix:
		s, ok := target.(string)
		return ok && strings.HasPrefix(s, value.(string))
	case OpSuffix:
		s, ok := target.(string)
		return ok && strings.HasSuffix(s, value.(string))
	case OpGt, OpGte, OpLt, OpLte:
		c, ok := order(target, value)
		if !ok {
			return false
		}
		switch op {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func contains(target, value any, fold bool) bool {
	switch t := target.(type) {
	case []any:
		for _, item := range t {
			if fold {
				is, ok1 := item.(string)
				vs, ok2 := value.(string)
				if ok1 && ok2 && strings.EqualFold(is, vs) {
					return true
				}
				continue
			}
			if equal(item, value) {
				return true
			}
		}
	case string:
		vs, ok := value.(string)
		if !ok {
			return false
		}
		if fold {
			return strings.Contains(strings.ToLower(t), strings.ToLower(vs))
		}
		return strings.Contains(t, vs)
	}
	return false
}

// order returns -1, 0, 1 comparing target to value numerically or, for two strings,
// lexicographically (RFC 3339 timestamps order correctly this way).
func order(target, value any) (int, bool) {
	if ft, ok := toFloat(target); ok {
		fv, ok := toFloat(value)
		if !ok {
			return 0, false
		}
		switch {
		case ft < fv:
			return -1, true
		case ft > fv:
			return 1, true
		}
		return 0, true
	}
	ts, ok1 := target.(string)
	vs, ok2 := value.(string)
	if !ok1 || !ok2 {
		return 0, false
	}
	return strings.Compare(ts, vs), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
