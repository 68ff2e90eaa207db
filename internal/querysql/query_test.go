package querysql

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSprintf(t *testing.T) {
	s := Sprintf("%s = %s AND %s LIKE '100%%'", Ident("p", "color"), Param(int64(3)), Ident("p", "name"))
	assert.Equal(t, `"p"."color" = ? AND "p"."name" LIKE '100%'`, s.Text())
	assert.Equal(t, []any{int64(3)}, s.Params())

	assert.Panics(t, func() { Sprintf("%s %s", Raw("x")) })
	assert.Panics(t, func() { Sprintf("%s", Raw("x"), Raw("y")) })
	assert.Panics(t, func() { Sprintf("%d", Raw("x")) })
}

func TestIdent_Quoting(t *testing.T) {
	assert.Equal(t, `"weird""name"`, Ident(`weird"name`).Text())
	assert.Equal(t, `"a"."b"`, Ident("a", "b").Text())
}

func TestJoinAndList(t *testing.T) {
	s := Join(" OR ", Sprintf("a = %s", Param(1)), Raw("b IS NULL"), Sprintf("c IN %s", List([]any{2, 3})))
	assert.Equal(t, "a = ? OR b IS NULL OR c IN (?, ?)", s.Text())
	assert.Equal(t, []any{1, 2, 3}, s.Params())
	assert.True(t, Join(", ").IsZero())
}

func TestRender(t *testing.T) {
	s := Sprintf(`%s = %s AND x LIKE %s ESCAPE '\' AND "odd?col" = %s`,
		Ident("t", "d"), Param(civil.Date{Year: 2024, Month: 1, Day: 15}), Param("a?"), Param(civil.DateTime{
			Date: civil.Date{Year: 2024, Month: 1, Day: 15},
			Time: civil.Time{Hour: 10, Minute: 30},
		}))

	text, params := Render(SQLite{}, s)
	assert.Equal(t, `"t"."d" = ? AND x LIKE ? ESCAPE '\' AND "odd?col" = ?`, text)
	assert.Equal(t, []any{"2024-01-15", "a?", "2024-01-15 10:30:00"}, params)

	text, params = Render(Postgres{}, s)
	assert.Equal(t, `"t"."d" = $1 AND x LIKE $2 ESCAPE '\' AND "odd?col" = $3`, text)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), params[0])
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), params[2])
}

func TestMakeAlias(t *testing.T) {
	assert.Equal(t, "res_partner__country_id", MakeAlias("res_partner", "country_id"))

	long := MakeAlias(strings.Repeat("a", 40), strings.Repeat("b", 40))
	assert.Len(t, long, maxIdentLen)
	assert.Equal(t, long, MakeAlias(strings.Repeat("a", 40), strings.Repeat("b", 40)))
	assert.NotEqual(t, long, MakeAlias(strings.Repeat("a", 40), strings.Repeat("b", 41)))
}

func TestQuery_AddJoin(t *testing.T) {
	q := NewQuery("res_partner")
	on := Sprintf("%s = %s", Ident("res_partner", "country_id"), Ident("c", "id"))

	require.NoError(t, q.AddJoin(LeftJoin, "c", "res_country", on))
	require.NoError(t, q.AddJoin(LeftJoin, "c", "res_country", on), "same join twice is a no-op")
	assert.Len(t, q.joins, 1)

	err := q.AddJoin(InnerJoin, "c", "res_country", on)
	assert.True(t, IsInvariantError(err))
}

func TestQuery_Select(t *testing.T) {
	q := NewQuery("res_partner")
	q.AddWhere(Sprintf("%s = %s", Ident("res_partner", "color"), Param(int64(1))))
	q.AddWhere(Raw("TRUE"))
	q.OrderBy = Raw(`"res_partner"."name" DESC`)

	s := q.Select(Ident("res_partner", "id"), Ident("res_partner", "name"))
	assert.Equal(t,
		`SELECT "res_partner"."id", "res_partner"."name" FROM "res_partner" AS "res_partner" WHERE "res_partner"."color" = ? AND TRUE ORDER BY "res_partner"."name" DESC`,
		s.Text())
	assert.False(t, q.IsEmpty())

	q.AddWhere(Raw("FALSE"))
	assert.True(t, q.IsEmpty())

	text, params := q.SubSelect()
	assert.True(t, strings.HasPrefix(text, `(SELECT "res_partner"."id" FROM`))
	assert.Equal(t, []any{int64(1)}, params)
}

type fixedRunner []int64

func (r fixedRunner) QueryIDs(context.Context, *Query) ([]int64, error) { return r, nil }

func TestQuery_ResultIDs(t *testing.T) {
	q := NewQuery("res_partner")
	_, err := q.ResultIDs(context.Background())
	assert.Error(t, err, "unbound query")

	ids, err := q.Bind(fixedRunner{3, 1}).ResultIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids)
}
