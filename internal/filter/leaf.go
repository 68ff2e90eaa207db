package filter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/records"
	"github.com/roach88/domex/internal/schema"
	"github.com/roach88/domex/internal/textfold"
)

type predicate func(id int64) (bool, error)

// predicate compiles a standard leaf into a test on record ids.
func (e *Evaluator) predicate(ctx context.Context, l *domain.Leaf, coll *records.Collection) (predicate, error) {
	op := l.Operator()
	if !domain.IsStandard(op) {
		return nil, fmt.Errorf("non-standard operator %q", op)
	}
	f, ok := coll.Model.Field(l.Field())
	if !ok {
		return nil, fmt.Errorf("no field %q", l.Field())
	}
	if !f.Store {
		return nil, fmt.Errorf("field %s is not stored", f)
	}
	value := func(id int64) (any, error) { return coll.Value(id, f.Name) }

	switch {
	case f.Type.IsX2Many():
		return e.x2many(ctx, f, op, l.Value(), value)
	case op == domain.OpAny || op == domain.OpNone:
		return e.anyScalar(ctx, f, op, l.Value(), value)
	case op == domain.OpIn || op == domain.OpNotIn:
		set, ok := l.Value().(domain.Set)
		if !ok {
			return nil, fmt.Errorf("operator %q needs a set", op)
		}
		if f.Type == schema.Binary && f.Attachment && !(set.Len() == 1 && set.Has(false)) {
			return nil, fmt.Errorf("attachment field %s only supports existence checks", f)
		}
		return e.membership(f, op == domain.OpIn, set, value), nil
	case domain.IsLike(op):
		pattern, ok := l.Value().(string)
		if !ok {
			return nil, fmt.Errorf("operator %q needs a string", op)
		}
		return e.like(f, op, pattern, value)
	case domain.IsInequality(op):
		return e.inequality(f, op, l.Value(), value)
	}
	return nil, fmt.Errorf("operator %q cannot be used on %s", op, f)
}

// scalar returns the comparable form of a stored value: translated text
// in the evaluator's language, nil when unset.
func (e *Evaluator) scalar(f *schema.Field, v any) any {
	if f.Translate {
		if s, ok := records.Translated(v, e.Lang); ok {
			return s
		}
		return nil
	}
	if v == false && f.Type != schema.Boolean {
		return nil
	}
	return v
}

// membership mirrors the SQL rendering: False stands for NULL and so does
// the field's falsy value.
func (e *Evaluator) membership(f *schema.Field, positive bool, set domain.Set, value func(int64) (any, error)) predicate {
	if f.Type == schema.Boolean && set.Len() == 1 && set.Has(true) {
		return func(id int64) (bool, error) {
			v, err := value(id)
			if err != nil {
				return false, err
			}
			return (v == true) == positive, nil
		}
	}

	params := set.Filter(func(v any) bool { return v != false })
	nullIn := params.Len() < set.Len()
	falsy, hasFalsy := f.FalsyValue()
	if hasFalsy {
		if hasValue(params, falsy) {
			nullIn = true
		} else if nullIn {
			params = params.Union(domain.MustSet(falsy))
		}
	}

	// an unset value behaves as the falsy value, whose membership
	// already accounts for NULL
	return func(id int64) (bool, error) {
		v, err := value(id)
		if err != nil {
			return false, err
		}
		v = e.scalar(f, v)
		if v == nil {
			if !hasFalsy {
				return positive == nullIn, nil
			}
			v = falsy
		}
		return hasValue(params, v) == positive, nil
	}
}

// hasValue reports whether v is in set, comparing numbers by value as
// SQL does: an integer column matches 3.0 in a float set.
func hasValue(set domain.Set, v any) bool {
	if set.Has(v) {
		return true
	}
	n, ok := numeric(v)
	if !ok {
		return false
	}
	for _, x := range set.Values() {
		if m, ok := numeric(x); ok && m == n {
			return true
		}
	}
	return false
}

// numeric is number without booleans, which sets keep apart from 0 and 1.
func numeric(v any) (float64, bool) {
	switch v.(type) {
	case int64, float64:
		return number(v)
	}
	return 0, false
}

func (e *Evaluator) like(f *schema.Field, op, pattern string, value func(int64) (any, error)) (predicate, error) {
	if !strings.Contains(op, "=") {
		pattern = "%" + pattern + "%"
	}
	insensitive := strings.HasSuffix(op, "ilike")
	negative := strings.HasPrefix(op, "not ")
	fold := func(s string) string {
		if !insensitive {
			return s
		}
		if e.Unaccent {
			return textfold.Fold(s)
		}
		return textfold.Lower(s)
	}
	re, err := likeRegexp(fold(pattern))
	if err != nil {
		return nil, err
	}

	return func(id int64) (bool, error) {
		v, err := value(id)
		if err != nil {
			return false, err
		}
		text, ok := e.text(f, v)
		if !ok {
			// NULL LIKE x is NULL; the negative forms add OR IS NULL
			return negative, nil
		}
		return re.MatchString(fold(text)) != negative, nil
	}, nil
}

// text renders a stored value the way a text cast does in SQLite.
func (e *Evaluator) text(f *schema.Field, v any) (string, bool) {
	switch x := e.scalar(f, v).(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case civil.Date:
		return x.String(), true
	case civil.DateTime:
		return querysql.FormatDateTime(x), true
	}
	return "", false
}

// likeRegexp translates a LIKE pattern: % is any run, _ any character and
// a backslash escapes the next character.
func likeRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, fmt.Errorf("pattern %q ends with an escape", pattern)
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

// inequality compares to a single value. An unset value compares as the
// field's falsy value, and never matches without one.
func (e *Evaluator) inequality(f *schema.Field, op string, target any, value func(int64) (any, error)) (predicate, error) {
	switch target.(type) {
	case domain.Set, domain.Domain, domain.Query:
		return nil, fmt.Errorf("operator %q needs a single value", op)
	}
	falsy, hasFalsy := f.FalsyValue()
	if hasFalsy && target == false {
		target = falsy
	}
	return func(id int64) (bool, error) {
		v, err := value(id)
		if err != nil {
			return false, err
		}
		v = e.scalar(f, v)
		if v == nil {
			if !hasFalsy {
				return false, nil
			}
			v = falsy
		}
		c, ok := compareValues(v, target)
		if !ok {
			return false, nil
		}
		switch op {
		case domain.OpLT:
			return c < 0, nil
		case domain.OpLE:
			return c <= 0, nil
		case domain.OpGT:
			return c > 0, nil
		}
		return c >= 0, nil
	}, nil
}

// compareValues orders two values of compatible types.
func compareValues(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case civil.Date:
		if y, ok := b.(civil.Date); ok {
			return order(x.Before(y), x.After(y)), true
		}
	case civil.DateTime:
		if y, ok := b.(civil.DateTime); ok {
			return order(x.Before(y), x.After(y)), true
		}
	}
	return 0, false
}

func order(before, after bool) int {
	switch {
	case before:
		return -1
	case after:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
