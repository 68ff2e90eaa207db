package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domex/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	country := NewModel("res.country", "")
	country.AddField(&Field{Name: "name", Type: Char, Store: true, Translate: true})
	country.AddField(&Field{Name: "code", Type: Char, Store: true})

	tag := NewModel("res.partner.category", "")
	tag.AddField(&Field{Name: "name", Type: Char, Store: true})

	partner := NewModel("res.partner", "")
	partner.ParentName = "parent_id"
	partner.ParentStore = true
	partner.AddField(&Field{Name: "name", Type: Char, Store: true, Required: true})
	partner.AddField(&Field{Name: "parent_id", Type: Many2one, Store: true, Relation: "res.partner"})
	partner.AddField(&Field{Name: "child_ids", Type: One2many, Store: true, Relation: "res.partner", InverseName: "parent_id"})
	partner.AddField(&Field{Name: "country_id", Type: Many2one, Store: true, Relation: "res.country"})
	partner.AddField(&Field{Name: "category_ids", Type: Many2many, Store: true, Relation: "res.partner.category"})
	partner.AddField(&Field{Name: "country_code", Type: Char, Related: "country_id.code"})

	users := NewModel("res.users", "")
	users.Inherits = map[string]string{"res.partner": "partner_id"}
	users.AddField(&Field{Name: "login", Type: Char, Store: true})
	users.AddField(&Field{Name: "partner_id", Type: Many2one, Store: true, Relation: "res.partner", Required: true})

	reg := NewRegistry()
	for _, m := range []*Model{country, tag, partner, users} {
		require.NoError(t, reg.Add(m))
	}
	require.NoError(t, reg.Setup())
	return reg
}

func TestSetup_ImplicitFields(t *testing.T) {
	reg := newTestRegistry(t)
	partner := reg.MustModel("res.partner")

	id, ok := partner.Field("id")
	require.True(t, ok)
	assert.True(t, id.Store)
	assert.Equal(t, Integer, id.Type)

	dn, ok := partner.Field("display_name")
	require.True(t, ok)
	assert.False(t, dn.Store)
	require.NotNil(t, dn.Search, "display_name must delegate to the rec name")

	d, err := dn.Search.Resolve(domain.OpILike, "acme")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.MustNew("name", "ilike", "acme"), d))

	pp, ok := partner.Field("parent_path")
	require.True(t, ok, "parent_store adds parent_path")
	assert.True(t, pp.HasColumn())
}

func TestSetup_Many2manyDefaults(t *testing.T) {
	reg := newTestRegistry(t)
	f, _ := reg.MustModel("res.partner").Field("category_ids")

	assert.Equal(t, "res_partner_res_partner_category_rel", f.RelationTable)
	assert.Equal(t, "res_partner_id", f.Column1)
	assert.Equal(t, "res_partner_category_id", f.Column2)
	assert.False(t, f.HasColumn())
}

func TestSetup_Inherits(t *testing.T) {
	reg := newTestRegistry(t)
	users := reg.MustModel("res.users")

	name, ok := users.Field("name")
	require.True(t, ok, "inherited field must be copied")
	assert.True(t, name.Inherited)
	assert.False(t, name.Store)
	assert.Equal(t, "partner_id.name", name.Related)
	assert.Same(t, users, name.Model())

	_, ok = users.Field("parent_path")
	assert.False(t, ok, "parent_path is not inherited")
}

func TestSetup_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		field *Field
	}{
		{"unknown comodel", &Field{Name: "x_id", Type: Many2one, Store: true, Relation: "nope"}},
		{"bad inverse", &Field{Name: "x_ids", Type: One2many, Store: true, Relation: "a", InverseName: "missing"}},
		{"bad type", &Field{Name: "x", Type: "money", Store: true}},
		{"bad related path", &Field{Name: "x", Type: Char, Related: "name.code"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModel("a", "")
			m.AddField(&Field{Name: "name", Type: Char, Store: true})
			m.AddField(tc.field)
			reg := NewRegistry()
			require.NoError(t, reg.Add(m))
			assert.Error(t, reg.Setup())
		})
	}
}

func TestRelatedSearch(t *testing.T) {
	reg := newTestRegistry(t)
	f, _ := reg.MustModel("res.partner").Field("country_code")
	require.NotNil(t, f.Search)

	d, err := f.Search.Resolve(domain.OpIn, domain.MustSet("BE"))
	require.NoError(t, err)
	want := domain.Raw("country_id", domain.OpAny, domain.MustNew("code", "in", []any{"BE"}))
	assert.True(t, domain.Equal(want, d), "got %s", domain.Format(d))

	// unset codes also match partners without a country
	d, err = f.Search.Resolve(domain.OpIn, domain.MustSet(false))
	require.NoError(t, err)
	want2 := domain.Or(
		domain.Raw("country_id", domain.OpAny, domain.MustNew("code", "in", []any{false})),
		domain.Raw("country_id", domain.OpIn, domain.MustSet(false)),
	)
	assert.True(t, domain.Equal(want2, d), "got %s", domain.Format(d))

	d, err = f.Search.Resolve(domain.OpNotIn, domain.MustSet("BE"))
	require.NoError(t, err)
	_, isOr := d.(*domain.Nary)
	assert.True(t, isOr, "negative condition on a set value includes unset paths")
}

func TestFieldType(t *testing.T) {
	v, ok := Integer.FalsyValue()
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)

	_, ok = Char.FalsyValue()
	assert.False(t, ok)

	assert.True(t, Many2many.IsX2Many())
	assert.True(t, Many2one.IsRelational())
	assert.False(t, Many2one.IsX2Many())
	assert.True(t, Selection.IsText())
	assert.False(t, Integer.IsText())
}
