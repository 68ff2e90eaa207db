package querysql

import (
	"fmt"
	"time"

	"github.com/golang-sql/civil"
)

// Dialect is what differs between the SQL backends.
type Dialect interface {
	// Name is "sqlite" or "postgres".
	Name() string

	// Placeholder returns the marker of the n-th parameter, from 1.
	Placeholder(n int) string

	// Fold returns the case-insensitive (and, with unaccent,
	// accent-insensitive) form of a text expression.
	Fold(expr SQL, unaccent bool) SQL

	// ILike is the operator comparing two folded expressions.
	ILike() string

	// TextCast casts a non-text column for pattern matching.
	TextCast(expr SQL) SQL

	// Translated reads the value of a translated column in lang, falling
	// back to en_US.
	Translated(column SQL, lang string) SQL

	// ConvertParam maps a domain value to a driver value.
	ConvertParam(v any) any
}

// Render rewrites the fragment's markers for the dialect and converts its
// parameters.
func Render(d Dialect, s SQL) (string, []any) {
	params := make([]any, len(s.params))
	for i, p := range s.params {
		params[i] = d.ConvertParam(p)
	}
	return rebind(s.text, d.Placeholder), params
}

// DateTimeLayout is the text form of datetime values in SQLite columns.
const DateTimeLayout = "2006-01-02 15:04:05"

// FormatDateTime renders dt in DateTimeLayout.
func FormatDateTime(dt civil.DateTime) string {
	return fmt.Sprintf("%s %02d:%02d:%02d", dt.Date, dt.Time.Hour, dt.Time.Minute, dt.Time.Second)
}

// SQLite stores dates and datetimes as ISO text, booleans as integers and
// translated columns as JSON text. Folding relies on the domex_fold and
// domex_lower functions that the store registers on each connection.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Fold(expr SQL, unaccent bool) SQL {
	if unaccent {
		return Sprintf("domex_fold(%s)", expr)
	}
	return Sprintf("domex_lower(%s)", expr)
}

// ILike is LIKE: both sides are folded and the connection has
// case_sensitive_like on.
func (SQLite) ILike() string { return "LIKE" }

func (SQLite) TextCast(expr SQL) SQL { return Sprintf("CAST(%s AS TEXT)", expr) }

func (SQLite) Translated(column SQL, lang string) SQL {
	return Sprintf("COALESCE(json_extract(%s, %s), json_extract(%s, '$.en_US'))",
		column, Param("$."+lang), column)
}

func (SQLite) ConvertParam(v any) any {
	switch x := v.(type) {
	case civil.Date:
		return x.String()
	case civil.DateTime:
		return FormatDateTime(x)
	}
	return v
}

// Postgres uses numbered parameters, native ILIKE, the unaccent extension
// and jsonb translated columns.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) Fold(expr SQL, unaccent bool) SQL {
	if unaccent {
		return Sprintf("unaccent(%s)", expr)
	}
	return expr
}

func (Postgres) ILike() string { return "ILIKE" }

func (Postgres) TextCast(expr SQL) SQL { return Sprintf("(%s)::text", expr) }

func (Postgres) Translated(column SQL, lang string) SQL {
	return Sprintf("COALESCE(%s->>%s, %s->>'en_US')", column, Param(lang), column)
}

func (Postgres) ConvertParam(v any) any {
	switch x := v.(type) {
	case civil.Date:
		return x.In(time.UTC)
	case civil.DateTime:
		return x.In(time.UTC)
	}
	return v
}
