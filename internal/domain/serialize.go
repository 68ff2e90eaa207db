package domain

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"
)

// List re-linearizes a domain into the legacy flat prefix list. Leaves
// become []any{field, operator, value}, Set values become []any, sub-domains
// become nested lists and constants become the (1, "=", 1) / (0, "=", 1)
// terms.
func List(d Domain) []any {
	var out []any
	appendList(&out, d)
	return out
}

func appendList(out *[]any, d Domain) {
	switch x := d.(type) {
	case Const:
		if x.value {
			*out = append(*out, []any{int64(1), OpEq, int64(1)})
		} else {
			*out = append(*out, []any{int64(0), OpEq, int64(1)})
		}
	case *Negation:
		*out = append(*out, TokenNot)
		appendList(out, x.child)
	case *Nary:
		for range len(x.children) - 1 {
			*out = append(*out, x.op.Token())
		}
		for _, c := range x.children {
			appendList(out, c)
		}
	case *Leaf:
		*out = append(*out, []any{x.field, x.operator, listValue(x.value)})
	}
}

func listValue(v any) any {
	switch x := v.(type) {
	case Set:
		return x.Values()
	case Domain:
		return List(x)
	}
	return v
}

// Format renders a domain as the textual flat-list form, e.g.
//
//	['|', ('name', 'like', 'acme'), ('id', 'in', [1, 2])]
//
// The output is accepted by the textual parser.
func Format(d Domain) string {
	var b strings.Builder
	writeList(&b, List(d))
	return b.String()
}

func writeList(b *strings.Builder, items []any) {
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		switch x := item.(type) {
		case string:
			b.WriteString(quote(x))
		case []any:
			b.WriteByte('(')
			for j, part := range x {
				if j > 0 {
					b.WriteString(", ")
				}
				writeValue(b, part)
			}
			b.WriteByte(')')
		default:
			writeValue(b, x)
		}
	}
	b.WriteByte(']')
}

func writeValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		b.WriteString(s)
	case string:
		b.WriteString(quote(x))
	case civil.Date:
		b.WriteString(quote(x.String()))
	case civil.DateTime:
		b.WriteString(quote(FormatDateTime(x)))
	case []any:
		if isDomainList(x) {
			writeList(b, x)
			return
		}
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case Query:
		b.WriteString("<query>")
	default:
		if nv, err := normalizeScalar(v); err == nil {
			writeValue(b, nv)
			return
		}
		fmt.Fprintf(b, "%v", v)
	}
}

// isDomainList reports whether a list value is a nested domain, i.e. it
// starts with a term or a domain token.
func isDomainList(items []any) bool {
	if len(items) == 0 {
		return false
	}
	switch x := items[0].(type) {
	case []any:
		return true
	case string:
		return x == TokenNot || x == TokenAnd || x == TokenOr
	}
	return false
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func formatLeaf(l *Leaf) string {
	return formatTerm(l.field, l.operator, listValue(l.value))
}

func formatTerm(field, op string, value any) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(quote(field))
	b.WriteString(", ")
	b.WriteString(quote(op))
	b.WriteString(", ")
	writeValue(&b, listValue(value))
	b.WriteByte(')')
	return b.String()
}

// FormatDateTime renders a datetime the way it is stored: second
// precision, space separated.
func FormatDateTime(dt civil.DateTime) string {
	return fmt.Sprintf("%s %02d:%02d:%02d", dt.Date, dt.Time.Hour, dt.Time.Minute, dt.Time.Second)
}

// Conditions yields every leaf of d in depth-first order.
func Conditions(d Domain) iter.Seq[*Leaf] {
	return func(yield func(*Leaf) bool) {
		walkLeaves(d, yield)
	}
}

func walkLeaves(d Domain, yield func(*Leaf) bool) bool {
	switch x := d.(type) {
	case *Negation:
		return walkLeaves(x.child, yield)
	case *Nary:
		for _, c := range x.children {
			if !walkLeaves(c, yield) {
				return false
			}
		}
	case *Leaf:
		return yield(x)
	}
	return true
}

// MapConditions rebuilds d with every leaf replaced by fn(leaf).
func MapConditions(d Domain, fn func(*Leaf) Domain) Domain {
	switch x := d.(type) {
	case *Negation:
		return Not(MapConditions(x.child, fn))
	case *Nary:
		children := make([]Domain, len(x.children))
		for i, c := range x.children {
			children[i] = MapConditions(c, fn)
		}
		return Combine(x.op, children)
	case *Leaf:
		return fn(x)
	}
	return d
}
