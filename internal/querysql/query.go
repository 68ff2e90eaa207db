package querysql

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// maxIdentLen is the PostgreSQL identifier limit; longer aliases are
// shortened with a hash suffix.
const maxIdentLen = 63

// JoinKind is the kind of a join clause.
type JoinKind string

const (
	InnerJoin JoinKind = "JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

type join struct {
	kind      JoinKind
	alias     string
	table     string
	condition SQL
}

// Runner executes a query and returns the selected ids. The store binds
// one to the queries it builds, so that they can be used as values of any
// conditions evaluated in memory.
type Runner interface {
	QueryIDs(ctx context.Context, q *Query) ([]int64, error)
}

// Query is a SELECT on one table under construction: joins are added while
// conditions are built, then the whole statement is rendered.
//
// Query implements domain.Query.
type Query struct {
	Table string
	Alias string

	// OrderBy defaults to the alias's id column.
	OrderBy SQL

	// Limit is ignored when zero.
	Limit int

	joins  []join
	where  []SQL
	runner Runner
}

// NewQuery starts a query on table, aliased by its own name.
func NewQuery(table string) *Query {
	return &Query{Table: table, Alias: table}
}

// Bind attaches the runner used by ResultIDs.
func (q *Query) Bind(r Runner) *Query {
	q.runner = r
	return q
}

// MakeAlias returns the alias of the table reached from parent through
// link. It is deterministic, so joining the same link twice yields the
// same alias.
func MakeAlias(parent, link string) string {
	alias := parent + "__" + link
	if len(alias) <= maxIdentLen {
		return alias
	}
	suffix := fmt.Sprintf("_%016x", xxhash.Sum64String(alias))
	return alias[:maxIdentLen-len(suffix)] + suffix
}

// MakeAlias is the package function, for symmetry with AddJoin.
func (q *Query) MakeAlias(parent, link string) string {
	return MakeAlias(parent, link)
}

// AddJoin adds a join unless one with the same alias exists. Joining an
// alias twice with a different table or condition is an error.
func (q *Query) AddJoin(kind JoinKind, alias, table string, condition SQL) error {
	for _, j := range q.joins {
		if j.alias != alias {
			continue
		}
		if j.kind != kind || j.table != table || j.condition.text != condition.text {
			return newInvariantError("alias %q already joined differently", alias)
		}
		return nil
	}
	q.joins = append(q.joins, join{kind: kind, alias: alias, table: table, condition: condition})
	return nil
}

// AddWhere adds a condition, ANDed with the others.
func (q *Query) AddWhere(condition SQL) {
	q.where = append(q.where, condition)
}

// Where returns the conditions joined with AND, or a zero SQL.
func (q *Query) Where() SQL {
	if len(q.where) == 0 {
		return SQL{}
	}
	return Join(" AND ", q.where...)
}

// IsEmpty reports whether the query certainly selects nothing.
func (q *Query) IsEmpty() bool {
	for _, w := range q.where {
		if w.text == "FALSE" {
			return true
		}
	}
	return false
}

// from renders the FROM clause with joins and conditions.
func (q *Query) from() SQL {
	parts := []SQL{Sprintf("FROM %s AS %s", Ident(q.Table), Ident(q.Alias))}
	for _, j := range q.joins {
		parts = append(parts, Sprintf(string(j.kind)+" %s AS %s ON (%s)", Ident(j.table), Ident(j.alias), j.condition))
	}
	if where := q.Where(); !where.IsZero() {
		parts = append(parts, Sprintf("WHERE %s", where))
	}
	return Join(" ", parts...)
}

// Select renders the statement with an ORDER BY, selecting the given
// columns or the id.
func (q *Query) Select(columns ...SQL) SQL {
	if len(columns) == 0 {
		columns = []SQL{Ident(q.Alias, "id")}
	}
	order := q.OrderBy
	if order.IsZero() {
		order = Ident(q.Alias, "id")
	}
	s := Sprintf("SELECT %s %s ORDER BY %s", Join(", ", columns...), q.from(), order)
	if q.Limit > 0 {
		s = Sprintf("%s LIMIT %s", s, Param(q.Limit))
	}
	return s
}

// Subquery renders a parenthesized, unordered SELECT of the given columns
// or of the id.
func (q *Query) Subquery(columns ...SQL) SQL {
	if len(columns) == 0 {
		columns = []SQL{Ident(q.Alias, "id")}
	}
	return Sprintf("(SELECT %s %s)", Join(", ", columns...), q.from())
}

// SubSelect implements domain.Query. The text uses '?' markers.
func (q *Query) SubSelect() (string, []any) {
	s := q.Subquery()
	return s.text, s.params
}

// ResultIDs implements domain.Query by running the query.
func (q *Query) ResultIDs(ctx context.Context) ([]int64, error) {
	if q.runner == nil {
		return nil, fmt.Errorf("query on %s is not bound to a database", q.Table)
	}
	return q.runner.QueryIDs(ctx, q)
}
