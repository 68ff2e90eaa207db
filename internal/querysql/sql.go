package querysql

import (
	"fmt"
	"strings"
)

// SQL is a fragment of SQL text with its parameters. Parameters are marked
// with '?' in the text and rewritten by the dialect when the fragment is
// rendered. Values are never interpolated into the text.
type SQL struct {
	text   string
	params []any
}

// Raw wraps SQL text without parameters. The text must not come from user
// input.
func Raw(text string) SQL {
	return SQL{text: text}
}

// Ident quotes an identifier, or a qualified one when given several parts:
// Ident("p", "name") is "p"."name".
func Ident(parts ...string) SQL {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return SQL{text: strings.Join(quoted, ".")}
}

// Param is a single parameter marker.
func Param(v any) SQL {
	return SQL{text: "?", params: []any{v}}
}

// List is a parenthesized list of parameter markers: (?, ?, ?).
func List(values []any) SQL {
	marks := make([]string, len(values))
	for i := range marks {
		marks[i] = "?"
	}
	params := make([]any, len(values))
	copy(params, values)
	return SQL{text: "(" + strings.Join(marks, ", ") + ")", params: params}
}

// Join concatenates fragments with a separator.
func Join(sep string, items ...SQL) SQL {
	var b strings.Builder
	var params []any
	for i, item := range items {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(item.text)
		params = append(params, item.params...)
	}
	return SQL{text: b.String(), params: params}
}

// Sprintf substitutes each %s of format with the next fragment, in order.
// Other verbs are not supported; %% is a literal percent sign.
func Sprintf(format string, args ...SQL) SQL {
	var b strings.Builder
	var params []any
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 's':
			if next >= len(args) {
				panic(fmt.Sprintf("querysql: missing argument %d for %q", next, format))
			}
			b.WriteString(args[next].text)
			params = append(params, args[next].params...)
			next++
		case '%':
			b.WriteByte('%')
		default:
			panic(fmt.Sprintf("querysql: unsupported verb %%%c in %q", format[i], format))
		}
	}
	if next != len(args) {
		panic(fmt.Sprintf("querysql: %d arguments for %q, %d used", len(args), format, next))
	}
	return SQL{text: b.String(), params: params}
}

// Text returns the SQL text with '?' markers.
func (s SQL) Text() string { return s.text }

// Params returns the parameters in marker order.
func (s SQL) Params() []any { return s.params }

// IsZero reports whether the fragment is empty.
func (s SQL) IsZero() bool { return s.text == "" }

func (s SQL) String() string {
	if len(s.params) == 0 {
		return s.text
	}
	return fmt.Sprintf("%s %v", s.text, s.params)
}

// rebind rewrites the '?' markers of text outside of quoted strings and
// identifiers, numbering them from 1.
func rebind(text string, mark func(n int) string) string {
	var b strings.Builder
	n := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteString(mark(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
