// Package query holds the typed structured query the pipeline builds or
// parses from model output, and knows how to render it as a Mongo filter or
// evaluate it against an in-memory document.
package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Kind tags the node type of a Filter.
type Kind int

const (
	KindAnd Kind = iota + 1
	KindOr
	KindCond
)

// Op is a field-condition operator, spelled the way the document store spells it.
type Op string

const (
	OpEq    Op = "$eq"
	OpNe    Op = "$ne"
	OpGt    Op = "$gt"
	OpGte   Op = "$gte"
	OpLt    Op = "$lt"
	OpLte   Op = "$lte"
	OpRegex Op = "$regex"
	OpIn    Op = "$in"
	OpNin   Op = "$nin"
)

// Product fields a filter may reference.
const (
	FieldName        = "name"
	FieldBrand       = "brand"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldIngredients = "ingredients"
	FieldDosage      = "dosage"
	FieldPrice       = "price"
)

var textFields = map[string]bool{
	FieldName:        true,
	FieldBrand:       true,
	FieldCategory:    true,
	FieldDescription: true,
	FieldIngredients: true,
	FieldDosage:      true,
}

var numericFields = map[string]bool{
	FieldPrice: true,
}

// DefaultLimit applies when a query carries no usable limit.
const DefaultLimit = 10

// Document is anything a Filter can be evaluated against.
type Document interface {
	Field(name string) (any, bool)
}

// Filter is a boolean combination of field conditions. An And with no
// children matches everything.
type Filter struct {
	Kind     Kind
	Children []Filter

	Field   string
	Op      Op
	Value   any
	Options string

	re *regexp.Regexp
}

// Query is a filter plus an optional result limit (0 means unset).
type Query struct {
	Filter Filter
	Limit  int
}

// EffectiveLimit returns the limit to execute with.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func And(children ...Filter) Filter { return Filter{Kind: KindAnd, Children: children} }

func Or(children ...Filter) Filter { return Filter{Kind: KindOr, Children: children} }

// Regex builds a case-insensitive substring condition.
func Regex(field, pattern string) Filter {
	return Filter{Kind: KindCond, Field: field, Op: OpRegex, Value: pattern, Options: "i"}
}

// Cmp builds a comparison condition.
func Cmp(field string, op Op, value any) Filter {
	return Filter{Kind: KindCond, Field: field, Op: op, Value: value}
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.Kind == KindAnd && len(f.Children) == 0
}

// Validate checks fields, operators and value types recursively.
func (f *Filter) Validate() error {
	switch f.Kind {
	case KindAnd:
		for i := range f.Children {
			if err := f.Children[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case KindOr:
		if len(f.Children) == 0 {
			return invalid("$or needs at least one clause")
		}
		for i := range f.Children {
			if err := f.Children[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	case KindCond:
		return f.validateCond()
	default:
		return invalid("unknown filter kind %d", f.Kind)
	}
}

func (f *Filter) validateCond() error {
	if !textFields[f.Field] && !numericFields[f.Field] {
		return invalid("unknown field %q", f.Field)
	}
	switch f.Op {
	case OpRegex:
		if !textFields[f.Field] {
			return invalid("$regex on non-text field %q", f.Field)
		}
		pattern, ok := f.Value.(string)
		if !ok {
			return invalid("$regex on %q needs a string", f.Field)
		}
		for _, c := range f.Options {
			if !strings.ContainsRune("ims", c) {
				return invalid("unsupported regex option %q", c)
			}
		}
		re, err := compileRegex(pattern, f.Options)
		if err != nil {
			return invalid("bad pattern for %q: %v", f.Field, err)
		}
		f.re = re
	case OpGt, OpGte, OpLt, OpLte:
		if !numericFields[f.Field] {
			return invalid("%s on non-numeric field %q", f.Op, f.Field)
		}
		n, ok := toFloat(f.Value)
		if !ok {
			return invalid("%s on %q needs a number", f.Op, f.Field)
		}
		f.Value = n
	case OpEq, OpNe:
		v, ok := normalizeScalar(f.Value)
		if !ok {
			return invalid("%s on %q needs a scalar", f.Op, f.Field)
		}
		f.Value = v
	case OpIn, OpNin:
		items, ok := f.Value.([]any)
		if !ok {
			return invalid("%s on %q needs an array", f.Op, f.Field)
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			v, ok := normalizeScalar(it)
			if !ok {
				return invalid("%s on %q needs scalar items", f.Op, f.Field)
			}
			out = append(out, v)
		}
		f.Value = out
	default:
		return invalid("unsupported operator %q", f.Op)
	}
	return nil
}

// BSON renders the filter as an ordered Mongo filter document.
func (f Filter) BSON() bson.D {
	switch f.Kind {
	case KindAnd:
		if len(f.Children) == 0 {
			return bson.D{}
		}
		return bson.D{{Key: "$and", Value: f.bsonChildren()}}
	case KindOr:
		return bson.D{{Key: "$or", Value: f.bsonChildren()}}
	default:
		cond := bson.D{{Key: string(f.Op), Value: f.bsonValue()}}
		if f.Op == OpRegex && f.Options != "" {
			cond = append(cond, bson.E{Key: "$options", Value: f.Options})
		}
		return bson.D{{Key: f.Field, Value: cond}}
	}
}

func (f Filter) bsonChildren() bson.A {
	out := make(bson.A, 0, len(f.Children))
	for _, c := range f.Children {
		out = append(out, c.BSON())
	}
	return out
}

func (f Filter) bsonValue() any {
	if items, ok := f.Value.([]any); ok {
		return bson.A(items)
	}
	return f.Value
}

// Document renders the filter as plain nested maps, suitable for persisting
// alongside a conversation in either backend.
func (f Filter) Document() map[string]any {
	switch f.Kind {
	case KindAnd:
		if len(f.Children) == 0 {
			return map[string]any{}
		}
		return map[string]any{"$and": f.documentChildren()}
	case KindOr:
		return map[string]any{"$or": f.documentChildren()}
	default:
		cond := map[string]any{string(f.Op): f.Value}
		if f.Op == OpRegex && f.Options != "" {
			cond["$options"] = f.Options
		}
		return map[string]any{f.Field: cond}
	}
}

func (f Filter) documentChildren() []any {
	out := make([]any, 0, len(f.Children))
	for _, c := range f.Children {
		out = append(out, c.Document())
	}
	return out
}

// Document renders the whole query as {filter, limit}.
func (q Query) Document() map[string]any {
	doc := map[string]any{"filter": q.Filter.Document()}
	if q.Limit > 0 {
		doc["limit"] = q.Limit
	}
	return doc
}

func (q Query) String() string {
	return fmt.Sprintf("%v limit=%d", q.Filter.Document(), q.Limit)
}

// Match evaluates the filter against doc with the same semantics the
// document store applies to BSON().
func (f Filter) Match(doc Document) bool {
	switch f.Kind {
	case KindAnd:
		for _, c := range f.Children {
			if !c.Match(doc) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range f.Children {
			if c.Match(doc) {
				return true
			}
		}
		return false
	default:
		return f.matchCond(doc)
	}
}

func (f Filter) matchCond(doc Document) bool {
	v, ok := doc.Field(f.Field)
	switch f.Op {
	case OpRegex:
		s, isStr := v.(string)
		if !ok || !isStr {
			return false
		}
		re := f.re
		if re == nil {
			var err error
			if re, err = compileRegex(fmt.Sprint(f.Value), f.Options); err != nil {
				return false
			}
		}
		return re.MatchString(s)
	case OpEq:
		return ok && scalarEqual(v, f.Value)
	case OpNe:
		return !ok || !scalarEqual(v, f.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, aok := toFloat(v)
		b, bok := toFloat(f.Value)
		if !ok || !aok || !bok {
			return false
		}
		switch f.Op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn, OpNin:
		items, _ := f.Value.([]any)
		found := false
		if ok {
			for _, it := range items {
				if scalarEqual(v, it) {
					found = true
					break
				}
			}
		}
		if f.Op == OpIn {
			return found
		}
		return !found
	}
	return false
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	flags := ""
	for _, c := range options {
		if strings.ContainsRune("ims", c) && !strings.ContainsRune(flags, c) {
			flags += string(c)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func invalid(format string, args ...any) error {
	return &InvalidError{Reason: fmt.Sprintf(format, args...)}
}
