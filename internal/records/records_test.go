package records_test

import (
	"testing"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domex/internal/records"
	"github.com/roach88/domex/internal/testutil"
)

func TestLoad_Values(t *testing.T) {
	reg := testutil.Registry(t)
	ds := testutil.Dataset(t, reg)
	partners, err := ds.Collection("res.partner")
	require.NoError(t, err)

	acme, ok := partners.Get(testutil.Acme)
	require.True(t, ok)
	assert.Equal(t, "Acme", acme.Value("name"))
	assert.Equal(t, true, acme.Value("active"))
	assert.Equal(t, int64(3), acme.Value("color"))
	assert.Equal(t, 1000.0, acme.Value("credit_limit"))
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 15}, acme.Value("date"))
	assert.Equal(t, civil.DateTime{
		Date: civil.Date{Year: 2024, Month: 1, Day: 15},
		Time: civil.Time{Hour: 10, Minute: 30},
	}, acme.Value("create_date"))
	assert.Equal(t, int64(1), acme.Value("country_id"))
	assert.Equal(t, []int64{1}, acme.Value("category_id"))
	assert.Equal(t, acme.ID, acme.Value("id"))

	testA, _ := partners.Get(testutil.TestA)
	assert.Equal(t, int64(0), testA.Value("color"), "zero is a value")
	assert.Equal(t, false, testA.Value("credit_limit"), "unset reads as false")
}

func TestCollection_One2many(t *testing.T) {
	ds := testutil.Dataset(t, testutil.Registry(t))
	partners, err := ds.Collection("res.partner")
	require.NoError(t, err)

	v, err := partners.Value(testutil.TestA, "child_ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{testutil.Zola}, v)

	v, err = partners.Value(testutil.Zola, "child_ids")
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = partners.Value(testutil.TestA, "user_ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, v)

	_, err = partners.Value(testutil.TestA, "nope")
	assert.Error(t, err)
}

func TestCollection_Browse(t *testing.T) {
	ds := testutil.Dataset(t, testutil.Registry(t))
	partners, err := ds.Collection("res.partner")
	require.NoError(t, err)

	sub := partners.Browse(testutil.Zoe, 99, testutil.Acme, testutil.Zoe)
	assert.Equal(t, []int64{testutil.Zoe, testutil.Acme}, sub.IDs())

	_, ok := sub.Get(testutil.TestA)
	assert.False(t, ok, "outside the sub-collection")

	v, err := sub.Value(testutil.Acme, "child_ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{testutil.TestA, testutil.TestB}, v, "one2many sees the whole comodel")
}

func TestParentPaths(t *testing.T) {
	ds := testutil.Dataset(t, testutil.Registry(t))
	partners, err := ds.Collection("res.partner")
	require.NoError(t, err)

	want := map[int64]string{
		testutil.Acme:  "1/",
		testutil.TestA: "1/2/",
		testutil.TestB: "1/3/",
		testutil.Zola:  "1/2/4/",
		testutil.Other: "5/",
		testutil.Zoe:   "5/6/",
	}
	for id, path := range want {
		rec, _ := partners.Get(id)
		assert.Equal(t, path, rec.Value("parent_path"), "partner %d", id)
	}

	ids, err := records.ParentIDs("1/2/4/")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, ids)

	_, err = records.ParentIDs("1/x/")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	reg := testutil.Registry(t)

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "rows: {}\n"},
		{"unknown model", "records: {res.nope: [{id: 1}]}\n"},
		{"unknown field", "records: {res.country: [{id: 1, name: X, flag: true}]}\n"},
		{"missing id", "records: {res.country: [{name: X}]}\n"},
		{"duplicate id", "records: {res.country: [{id: 1, name: X}, {id: 1, name: Y}]}\n"},
		{"dangling many2one", "records: {res.partner: [{id: 1, name: X, country_id: 9}]}\n"},
		{"dangling many2many", "records: {res.partner: [{id: 1, name: X, category_id: [9]}]}\n"},
		{"parent cycle", "records: {res.partner: [{id: 1, name: X, parent_id: 2}, {id: 2, name: Y, parent_id: 1}]}\n"},
		{"one2many value", "records: {res.partner: [{id: 1, child_ids: [2]}]}\n"},
		{"computed value", "records: {res.partner: [{id: 1, is_company: true}]}\n"},
		{"bad integer", "records: {res.partner: [{id: 1, color: blue}]}\n"},
		{"bad date", "records: {res.partner: [{id: 1, date: \"15/01/2024\"}]}\n"},
		{"untranslated map", "records: {res.partner: [{id: 1, ref: {en_US: X}}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := records.Load(reg, []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestInsert(t *testing.T) {
	reg := testutil.Registry(t)
	ds := records.NewDataset(reg)

	require.NoError(t, ds.Insert("res.country", 7, map[string]any{"name": "Spain", "code": nil}))
	require.NoError(t, ds.Insert("res.partner", 1, map[string]any{
		"name":        "X",
		"color":       int64(4),
		"balance":     3,
		"active":      false,
		"category_id": []int64{},
		"country_id":  7,
	}))
	require.NoError(t, ds.Complete())

	countries, _ := ds.Collection("res.country")
	es, _ := countries.Get(7)
	assert.Equal(t, map[string]string{"en_US": "Spain"}, es.Value("name"))
	assert.Equal(t, false, es.Value("code"))

	partners, _ := ds.Collection("res.partner")
	x, _ := partners.Get(1)
	assert.Equal(t, 3.0, x.Value("balance"))
	assert.Equal(t, false, x.Value("active"))
	assert.Equal(t, false, x.Value("category_id"), "empty many2many is unset")
	assert.Equal(t, "1/", x.Value("parent_path"))

	assert.Error(t, ds.Insert("res.partner", 0, nil))
	assert.Error(t, ds.Insert("res.nope", 1, nil))
}

func TestTranslated(t *testing.T) {
	v := map[string]string{"en_US": "Germany", "fr_FR": "Allemagne"}

	s, ok := records.Translated(v, "fr_FR")
	assert.True(t, ok)
	assert.Equal(t, "Allemagne", s)

	s, ok = records.Translated(v, "nl_BE")
	assert.True(t, ok)
	assert.Equal(t, "Germany", s)

	s, ok = records.Translated("plain", "fr_FR")
	assert.True(t, ok)
	assert.Equal(t, "plain", s)

	_, ok = records.Translated(false, "fr_FR")
	assert.False(t, ok)
}
