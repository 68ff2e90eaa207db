// Package parser reads the textual flat-list form of domains, as written
// in data files and by domain.Format:
//
//	['|', ('name', 'ilike', 'acme'), ('country_id.code', 'in', ['BE', 'FR'])]
//
// Literals follow Python: single or double quoted strings, integers,
// floats, True, False, None, lists and tuples. Terms are tuples or lists
// of three values; the builder in package domain gives them meaning.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/domex/internal/domain"
)

// --- Participle grammar structs ---

// textDomain is the top-level list.
type textDomain struct {
	Items []*value `parser:"'[' ( @@ ( ',' @@ )* ','? )? ']'"`
}

// value is one literal.
type value struct {
	Str   *string    `parser:"  @String"`
	Float *string    `parser:"| @Float"`
	Int   *string    `parser:"| @Int"`
	Const *string    `parser:"| @('True' | 'False' | 'None')"`
	List  *valueList `parser:"| @@"`
}

// valueList parses [a, b] and (a, b). Open records which one, and makes
// an empty list distinguishable from no list.
type valueList struct {
	Open  string   `parser:"( @'[' | @'(' )"`
	Items []*value `parser:"( @@ ( ',' @@ )* ','? )? ( ']' | ')' )"`
}

var textLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`},
	{Name: "Float", Pattern: `[-+]?(?:\d+\.\d*|\.\d+)(?:[eE][-+]?\d+)?|[-+]?\d+[eE][-+]?\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_]\w*`},
	{Name: "Punct", Pattern: `[\[\](),]`},
})

var textParser = participle.MustBuild[textDomain](
	participle.Lexer(textLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// ParseError reports text that is not a well-formed flat list.
type ParseError struct {
	Text   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse domain at %d:%d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse domain: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func newParseError(text string, err error) *ParseError {
	pe := &ParseError{Text: text, Err: err}
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		pe.Line, pe.Column = pos.Line, pos.Column
		pe.Err = errors.New(perr.Message())
	}
	return pe
}

// Parse reads a domain from its textual flat-list form. Malformed text is
// a *ParseError; a well-formed list that is not a valid domain is a
// *domain.SyntaxError.
func Parse(text string) (domain.Domain, error) {
	ast, err := textParser.ParseString("domain", text)
	if err != nil {
		return nil, newParseError(text, err)
	}
	items := make([]any, len(ast.Items))
	for i, v := range ast.Items {
		if items[i], err = v.literal(); err != nil {
			return nil, newParseError(text, err)
		}
	}
	return domain.FromList(items)
}

// literal converts a parsed value to the Go value the domain builder
// accepts.
func (v *value) literal() (any, error) {
	switch {
	case v.Str != nil:
		return unquote(*v.Str)
	case v.Float != nil:
		return strconv.ParseFloat(*v.Float, 64)
	case v.Int != nil:
		return strconv.ParseInt(*v.Int, 10, 64)
	case v.Const != nil:
		switch *v.Const {
		case "True":
			return true, nil
		case "False":
			return false, nil
		}
		return nil, nil
	case v.List != nil:
		out := make([]any, len(v.List.Items))
		for i, item := range v.List.Items {
			x, err := item.literal()
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}
	return nil, errors.New("empty value")
}

// unquote decodes a single or double quoted string with backslash
// escapes.
func unquote(s string) (string, error) {
	if len(s) < 2 {
		return "", fmt.Errorf("invalid string %s", s)
	}
	body := s[1 : len(s)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(body) {
			return "", fmt.Errorf("invalid string %s", s)
		}
		switch e := body[i]; e {
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if i+5 > len(body) {
				return "", fmt.Errorf("invalid escape in %s", s)
			}
			r, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid escape in %s", s)
			}
			b.WriteRune(rune(r))
			i += 4
		default:
			// unknown escapes are kept, like Python does
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}
