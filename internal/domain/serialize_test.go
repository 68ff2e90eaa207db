package domain

import (
	"slices"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_RoundTrip(t *testing.T) {
	original := Or(
		MustNew("a", "in", []int{1, 2}),
		And(MustNew("b", "like", "x"), Not(MustNew("c", "=like", "y%"))),
		MustNew("partner_id", "any", MustNew("name", "ilike", "acme")),
	)

	flat := List(original)
	assert.Equal(t, "|", flat[0])
	assert.Equal(t, "|", flat[1])

	back, err := FromList(flat)
	require.NoError(t, err)
	assert.True(t, Equal(original, back), "round trip changed the domain: %s", Format(back))
}

func TestList_Constants(t *testing.T) {
	assert.Equal(t, []any{[]any{int64(1), "=", int64(1)}}, List(True))
	assert.Equal(t, []any{[]any{int64(0), "=", int64(1)}}, List(False))
}

func TestFormat(t *testing.T) {
	testCases := []struct {
		name string
		d    Domain
		want string
	}{
		{
			name: "leaf with set",
			d:    MustNew("id", "in", []int{1, 2}),
			want: "[('id', 'in', [1, 2])]",
		},
		{
			name: "polish operators",
			d:    Or(MustNew("name", "like", "it's"), Not(MustNew("active", "=", true))),
			want: `['|', ('name', 'like', 'it\'s'), '!', ('active', 'in', [True])]`,
		},
		{
			name: "nested domain and scalars",
			d: And(
				MustNew("partner_id", "any", MustNew("credit", ">", 1.0)),
				MustNew("birthday", "<", civil.Date{Year: 2024, Month: 1, Day: 15}),
			),
			want: "['&', ('partner_id', 'any', [('credit', '>', 1.0)]), ('birthday', '<', '2024-01-15')]",
		},
		{
			name: "false constant",
			d:    False,
			want: "[(0, '=', 1)]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.d))
		})
	}
}

func TestConditions(t *testing.T) {
	d := And(
		MustNew("a", "=", 1),
		Or(MustNew("b", "=", 2), Not(MustNew("c", "=", 3))),
	)

	var fields []string
	for leaf := range Conditions(d) {
		fields = append(fields, leaf.Field())
	}
	assert.Equal(t, []string{"a", "b", "c"}, fields)

	var first []string
	for leaf := range Conditions(d) {
		first = append(first, leaf.Field())
		break
	}
	assert.Equal(t, []string{"a"}, first)
}

func TestMapConditions(t *testing.T) {
	d := Or(MustNew("a", "=", 1), Not(MustNew("b", "=", 2)))

	prefixed := MapConditions(d, func(l *Leaf) Domain {
		return Raw("x."+l.Field(), l.Operator(), l.Value())
	})

	var fields []string
	for leaf := range Conditions(prefixed) {
		fields = append(fields, leaf.Field())
	}
	assert.True(t, slices.Equal([]string{"x.a", "x.b"}, fields), "got %v", fields)

	dropped := MapConditions(d, func(l *Leaf) Domain {
		if l.Field() == "a" {
			return False
		}
		return l
	})
	assert.True(t, Equal(Not(MustNew("b", "=", 2)), dropped))
}
