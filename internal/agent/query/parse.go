package query

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	errx "github.com/nutriask/server/internal/core/error"
)

// InvalidError describes why a structured query was rejected. It matches
// errx.ErrInvalidQuery under errors.Is.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return errx.ErrInvalidQuery.Error() + ": " + e.Reason }

func (e *InvalidError) Is(target error) bool { return target == errx.ErrInvalidQuery }

// ParseQuery decodes a {"filter": {...}, "limit": n} object. A limit above
// maxLimit is clamped; a missing or non-positive limit is left unset.
func ParseQuery(raw []byte, maxLimit int) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return Query{}, invalid("not a JSON object: %v", err)
	}

	rawFilter, ok := top["filter"]
	if !ok {
		return Query{}, invalid("missing \"filter\"")
	}
	fm, ok := rawFilter.(map[string]any)
	if !ok {
		return Query{}, invalid("\"filter\" must be an object")
	}
	f, err := ParseFilter(fm)
	if err != nil {
		return Query{}, err
	}

	q := Query{Filter: f}
	if rawLimit, ok := top["limit"]; ok && rawLimit != nil {
		n, ok := toFloat(rawLimit)
		if !ok || n != math.Trunc(n) {
			return Query{}, invalid("\"limit\" must be an integer")
		}
		if n > 0 {
			q.Limit = int(n)
			if maxLimit > 0 && q.Limit > maxLimit {
				q.Limit = maxLimit
			}
		}
	}
	return q, nil
}

// ParseFilter converts a decoded filter document into a validated Filter.
// Keys at the same level combine with AND.
func ParseFilter(doc map[string]any) (Filter, error) {
	children := make([]Filter, 0, len(doc))
	for _, key := range sortedKeys(doc) {
		val := doc[key]
		switch {
		case key == "$and" || key == "$or":
			items, ok := val.([]any)
			if !ok || len(items) == 0 {
				return Filter{}, invalid("%s needs a non-empty array", key)
			}
			clauses := make([]Filter, 0, len(items))
			for _, it := range items {
				m, ok := it.(map[string]any)
				if !ok {
					return Filter{}, invalid("%s clauses must be objects", key)
				}
				c, err := ParseFilter(m)
				if err != nil {
					return Filter{}, err
				}
				clauses = append(clauses, c)
			}
			if key == "$and" {
				children = append(children, And(clauses...))
			} else {
				children = append(children, Or(clauses...))
			}
		case strings.HasPrefix(key, "$"):
			return Filter{}, invalid("unsupported operator %q", key)
		default:
			c, err := parseField(key, val)
			if err != nil {
				return Filter{}, err
			}
			children = append(children, c)
		}
	}

	if len(children) == 1 {
		return children[0], nil
	}
	f := And(children...)
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseField(field string, val any) (Filter, error) {
	ops, ok := val.(map[string]any)
	if !ok {
		f := Cmp(field, OpEq, val)
		return f, f.Validate()
	}

	options, hasOptions := ops["$options"]
	if hasOptions {
		if _, hasRegex := ops["$regex"]; !hasRegex {
			return Filter{}, invalid("$options without $regex on %q", field)
		}
	}

	conds := make([]Filter, 0, len(ops))
	for _, key := range sortedKeys(ops) {
		if key == "$options" {
			continue
		}
		if !strings.HasPrefix(key, "$") {
			return Filter{}, invalid("embedded documents are not supported on %q", field)
		}
		c := Cmp(field, Op(key), ops[key])
		if c.Op == OpRegex && hasOptions {
			s, ok := options.(string)
			if !ok {
				return Filter{}, invalid("$options on %q must be a string", field)
			}
			c.Options = s
		}
		if err := c.Validate(); err != nil {
			return Filter{}, err
		}
		conds = append(conds, c)
	}

	switch len(conds) {
	case 0:
		return Filter{}, invalid("no conditions for %q", field)
	case 1:
		return conds[0], nil
	default:
		return And(conds...), nil
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func normalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, true
	}
	if f, ok := toFloat(v); ok {
		return f, true
	}
	return nil, false
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}
