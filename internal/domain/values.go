package domain

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/golang-sql/civil"
)

// Query is an opaque, pre-built sub-query usable as the value of an any /
// none leaf. The SQL builder embeds SubSelect; the in-memory evaluator asks
// for the resulting ids.
type Query interface {
	// SubSelect returns a parenthesized SELECT of ids with its parameters.
	SubSelect() (string, []any)

	// ResultIDs executes the query and returns the selected ids.
	ResultIDs(ctx context.Context) ([]int64, error)
}

// Set is an immutable, insertion-ordered set of scalar values. The zero
// value is the empty set.
type Set struct {
	items []any
	index map[any]struct{}
}

// NewSet builds a set from values, normalizing each one and dropping
// duplicates. Values that are not scalars yield an error.
func NewSet(values ...any) (Set, error) {
	s := Set{index: make(map[any]struct{}, len(values))}
	for _, v := range values {
		nv, err := normalizeScalar(v)
		if err != nil {
			return Set{}, err
		}
		if _, dup := s.index[nv]; dup {
			continue
		}
		s.index[nv] = struct{}{}
		s.items = append(s.items, nv)
	}
	return s, nil
}

// MustSet is NewSet for literals known to be valid.
func MustSet(values ...any) Set {
	s, err := NewSet(values...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of elements.
func (s Set) Len() int { return len(s.items) }

// Values returns the elements in insertion order.
func (s Set) Values() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Has reports membership of v (after normalization).
func (s Set) Has(v any) bool {
	nv, err := normalizeScalar(v)
	if err != nil {
		return false
	}
	_, ok := s.index[nv]
	return ok
}

// Union returns s ∪ o, keeping the order of s then o.
func (s Set) Union(o Set) Set {
	return MustSet(append(s.Values(), o.items...)...)
}

// Intersect returns s ∩ o in the order of s.
func (s Set) Intersect(o Set) Set {
	var out []any
	for _, v := range s.items {
		if _, ok := o.index[v]; ok {
			out = append(out, v)
		}
	}
	return MustSet(out...)
}

// Minus returns s − o in the order of s.
func (s Set) Minus(o Set) Set {
	var out []any
	for _, v := range s.items {
		if _, ok := o.index[v]; !ok {
			out = append(out, v)
		}
	}
	return MustSet(out...)
}

// Equal reports whether both sets hold the same elements, in any order.
func (s Set) Equal(o Set) bool {
	if len(s.items) != len(o.items) {
		return false
	}
	for _, v := range s.items {
		if _, ok := o.index[v]; !ok {
			return false
		}
	}
	return true
}

// Filter returns the elements for which keep returns true.
func (s Set) Filter(keep func(any) bool) Set {
	var out []any
	for _, v := range s.items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return MustSet(out...)
}

// normalizeScalar maps Go values onto the small set of scalar types that
// the rest of the compiler understands: bool, int64, float64, string,
// civil.Date and civil.DateTime. nil becomes false.
func normalizeScalar(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool, int64, float64, string, civil.Date, civil.DateTime:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []byte:
		return string(x), nil
	case time.Time:
		return civil.DateTimeOf(x.UTC()), nil
	}
	return nil, fmt.Errorf("unsupported value %#v of type %T", v, v)
}

// asCollection returns the elements of a slice, array or Set.
func asCollection(v any) ([]any, bool) {
	switch x := v.(type) {
	case Set:
		return x.Values(), true
	case []any:
		return x, true
	case []byte, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// IsFalsy reports whether v is "empty" in the loose sense used by the =?
// and pattern operators: false, zero, the empty string or the empty set.
func IsFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case int64:
		return x == 0
	case float64:
		return x == 0
	case string:
		return x == ""
	case Set:
		return x.Len() == 0
	case Const:
		return !x.Truthy()
	}
	if items, ok := asCollection(v); ok {
		return len(items) == 0
	}
	return false
}

// TypeName is a short tag for the dynamic type of a leaf value. It is used
// as a sort key and in diagnostics.
func TypeName(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case civil.Date:
		return "date"
	case civil.DateTime:
		return "datetime"
	case Set:
		return "set"
	case Domain:
		return "domain"
	case Query:
		return "query"
	}
	return fmt.Sprintf("%T", v)
}
