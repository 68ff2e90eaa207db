package querysql

import (
	"fmt"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/testutil"
)

// assertGolden compares the rendered statement with
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/querysql -update
func assertGolden(t *testing.T, name string, d Dialect, s SQL) {
	t.Helper()
	text, params := Render(d, s)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(fmt.Sprintf("%s\n-- params: %v\n", text, params)))
}

func set(values ...any) domain.Set { return domain.MustSet(values...) }

func TestBuilder_SearchQuery(t *testing.T) {
	reg := testutil.Registry(t)

	tests := []struct {
		name   string
		model  string
		domain domain.Domain
	}{
		{"true", "res.partner", domain.True},
		{"name_ilike", "res.partner", domain.Raw("name", "ilike", "acme")},
		{"color_in_with_false", "res.partner", domain.Raw("color", "in", set(int64(1), false))},
		{"color_not_in", "res.partner", domain.Raw("color", "not in", set(int64(1)))},
		{"ref_not_in_false", "res.partner", domain.Raw("ref", "not in", set(false))},
		{"active_in_true", "res.partner", domain.Raw("active", "in", set(true))},
		{"active_not_in_true", "res.partner", domain.Raw("active", "not in", set(true))},
		{"name_not_like", "res.partner", domain.Raw("name", "not like", "x")},
		{"color_eqlike_cast", "res.partner", domain.Raw("color", "=like", "1%")},
		{"credit_limit_lt", "res.partner", domain.Raw("credit_limit", "<", float64(500))},
		{"color_gt", "res.partner", domain.Raw("color", ">", int64(2))},
		{"date_ge", "res.partner", domain.Raw("date", ">=", civil.Date{Year: 2024, Month: 1, Day: 15})},
		{
			"not_and", "res.partner",
			domain.Not(domain.And(domain.Raw("name", "ilike", "a"), domain.Raw("color", "in", set(int64(1))))),
		},
		{
			"or", "res.partner",
			domain.Or(domain.Raw("ref", "in", set("x")), domain.Raw("name", "=ilike", "X")),
		},
		{"country_any_auto_join", "res.partner", domain.Raw("country_id", "any", domain.Raw("code", "in", set("BE")))},
		{"country_none", "res.partner", domain.Raw("country_id", "none", domain.Raw("code", "in", set("BE")))},
		{"parent_any", "res.partner", domain.Raw("parent_id", "any", domain.Raw("name", "ilike", "acme"))},
		{"parent_none_true", "res.partner", domain.Raw("parent_id", "none", domain.True)},
		{"child_ids_any", "res.partner", domain.Raw("child_ids", "any", domain.Raw("color", "in", set(int64(5))))},
		{"child_ids_none", "res.partner", domain.Raw("child_ids", "none", domain.Raw("active", "in", set(true)))},
		{"child_ids_not_in_false", "res.partner", domain.Raw("child_ids", "not in", set(false))},
		{"category_in", "res.partner", domain.Raw("category_id", "in", set(int64(1), int64(2)))},
		{"category_in_false_split", "res.partner", domain.Raw("category_id", "in", set(false, int64(3)))},
		{"category_none", "res.partner", domain.Raw("category_id", "none", domain.Raw("name", "ilike", "vend"))},
		{"image_exists", "res.partner", domain.Raw("image", "not in", set(false))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(reg, SQLite{})
			q, err := b.SearchQuery(tt.domain, reg.MustModel(tt.model))
			require.NoError(t, err)
			assertGolden(t, tt.name, SQLite{}, q.Select())
		})
	}
}

func TestBuilder_Translated(t *testing.T) {
	reg := testutil.Registry(t)
	country := reg.MustModel("res.country")

	b := NewBuilder(reg, SQLite{})
	b.Lang = "fr_FR"
	q, err := b.SearchQuery(domain.Raw("name", "ilike", "belg"), country)
	require.NoError(t, err)
	assertGolden(t, "translated_sqlite", SQLite{}, q.Select())

	b = NewBuilder(reg, Postgres{})
	b.Lang = "fr_FR"
	q, err = b.SearchQuery(domain.Raw("name", "in", set("Belgique")), country)
	require.NoError(t, err)
	assertGolden(t, "translated_postgres", Postgres{}, q.Select())
}

func TestBuilder_Postgres(t *testing.T) {
	reg := testutil.Registry(t)
	partner := reg.MustModel("res.partner")

	b := NewBuilder(reg, Postgres{})
	q, err := b.SearchQuery(domain.Raw("name", "ilike", "acme"), partner)
	require.NoError(t, err)
	assertGolden(t, "postgres_ilike_unaccent", Postgres{}, q.Select())

	b.Unaccent = false
	q, err = b.SearchQuery(domain.And(
		domain.Raw("name", "not ilike", "x"),
		domain.Raw("color", "like", "1"),
	), partner)
	require.NoError(t, err)
	q.Limit = 10
	assertGolden(t, "postgres_plain", Postgres{}, q.Select())
}

func TestBuilder_InvariantErrors(t *testing.T) {
	reg := testutil.Registry(t)
	partner := reg.MustModel("res.partner")

	tests := []struct {
		name   string
		domain domain.Domain
	}{
		{"sugar operator", domain.Raw("name", "=", "x")},
		{"hierarchy operator", domain.Raw("id", "child_of", int64(1))},
		{"dotted path", domain.Raw("country_id.code", "in", set("BE"))},
		{"unknown field", domain.Raw("nope", "in", set("x"))},
		{"computed field", domain.Raw("is_company", "in", set(true))},
		{"in without a set", domain.Raw("name", "in", "x")},
		{"like without a string", domain.Raw("name", "like", int64(1))},
		{"inequality on a set", domain.Raw("color", ">", set(int64(1)))},
		{"attachment content", domain.Raw("image", "in", set("aW1hZ2U="))},
		{"scalar any on a domain", domain.Raw("name", "any", domain.True)},
		{"x2many any on a set", domain.Raw("child_ids", "any", set(int64(1)))},
		{"nested", domain.Raw("parent_id", "any", domain.Raw("name", "=", "x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(reg, SQLite{}).SearchQuery(tt.domain, partner)
			require.Error(t, err)
			assert.True(t, IsInvariantError(err), "got %v", err)

			var ie *InvariantError
			require.ErrorAs(t, err, &ie)
			assert.NotEmpty(t, ie.Condition)
		})
	}
}

func TestBuilder_ConstantSubqueries(t *testing.T) {
	reg := testutil.Registry(t)
	partner := reg.MustModel("res.partner")
	b := NewBuilder(reg, SQLite{})

	tests := []struct {
		name   string
		domain domain.Domain
		want   string
	}{
		{"empty in", domain.Raw("color", "in", domain.Set{}), "FALSE"},
		{"empty not in", domain.Raw("color", "not in", domain.Set{}), "TRUE"},
		{"empty many2many in", domain.Raw("category_id", "in", domain.Set{}), "FALSE"},
		{"empty one2many not in", domain.Raw("child_ids", "not in", domain.Set{}), "TRUE"},
		{"any of nothing", domain.Raw("child_ids", "any", domain.False), "FALSE"},
		{"none of nothing", domain.Raw("category_id", "none", domain.False), "TRUE"},
		{"many2one none of nothing", domain.Raw("parent_id", "none", domain.False), "TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := b.ToSQL(tt.domain, partner, "p", NewQuery("res_partner"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql.Text())
			assert.Empty(t, sql.Params())
		})
	}
}

func TestBuilder_QueryValue(t *testing.T) {
	reg := testutil.Registry(t)
	partner := reg.MustModel("res.partner")
	b := NewBuilder(reg, SQLite{})

	// a query built elsewhere is embedded as a subselect
	sub, err := b.SearchQuery(domain.Raw("code", "in", set("BE")), reg.MustModel("res.country"))
	require.NoError(t, err)

	sql, err := b.ToSQL(domain.Raw("country_id", "any", sub), partner, "p", NewQuery("res_partner"))
	require.NoError(t, err)
	assert.Equal(t, `"p"."country_id" IN (SELECT "res_country"."id" FROM "res_country" AS "res_country" WHERE "res_country"."code" IN (?))`, sql.Text())
	assert.Equal(t, []any{"BE"}, sql.Params())

	sql, err = b.ToSQL(domain.Raw("id", "none", sub), partner, "p", NewQuery("res_partner"))
	require.NoError(t, err)
	assert.Equal(t, `"p"."id" NOT IN (SELECT "res_country"."id" FROM "res_country" AS "res_country" WHERE "res_country"."code" IN (?))`, sql.Text())
}

func TestBuilder_NoEmptyNary(t *testing.T) {
	reg := testutil.Registry(t)
	q := NewQuery("res_partner")

	// constructors never build one, but a zero Nary is still a Domain
	_, err := NewBuilder(reg, SQLite{}).ToSQL(&domain.Nary{}, reg.MustModel("res.partner"), q.Alias, q)
	assert.True(t, IsInvariantError(err))
}
