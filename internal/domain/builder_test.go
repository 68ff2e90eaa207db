package domain

import (
	"testing"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesOperatorsAndValues(t *testing.T) {
	testCases := []struct {
		name      string
		field     string
		operator  string
		value     any
		wantOp    string
		wantValue any
	}{
		{"equality becomes in", "a", "=", 5, OpIn, MustSet(int64(5))},
		{"inequality becomes not in", "a", "!=", "x", OpNotIn, MustSet("x")},
		{"operator is lower-cased", "name", "ILIKE", "acme", OpILike, "acme"},
		{"nil becomes false", "parent_id", "=", nil, OpIn, MustSet(false)},
		{"list becomes set", "a", "in", []int{1, 2, 2, 3}, OpIn, MustSet(int64(1), int64(2), int64(3))},
		{"bare scalar with in is wrapped", "a", "in", 7, OpIn, MustSet(int64(7))},
		{"equality with list becomes in", "a", "=", []any{1, 2}, OpIn, MustSet(int64(1), int64(2))},
		{"not any is spelled none", "tag_ids", "not any", []any{}, OpNone, True},
		{"sugar is kept for the optimizer", "a", "=?", 3, OpEqIf, int64(3)},
		{"dates are kept", "d", "<", civil.Date{Year: 2024, Month: 1, Day: 15}, OpLT, civil.Date{Year: 2024, Month: 1, Day: 15}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := New(tc.field, tc.operator, tc.value)
			require.NoError(t, err)
			leaf, ok := d.(*Leaf)
			require.True(t, ok, "expected a leaf, got %T", d)
			assert.Equal(t, tc.field, leaf.Field())
			assert.Equal(t, tc.wantOp, leaf.Operator())
			assert.True(t, ValueEqual(tc.wantValue, leaf.Value()), "value = %v", leaf.Value())
		})
	}
}

func TestNew_SubdomainValues(t *testing.T) {
	sub := MustNew("name", "=", "Acme")

	d, err := New("partner_id", "=", sub)
	require.NoError(t, err)
	leaf := d.(*Leaf)
	assert.Equal(t, OpAny, leaf.Operator())
	assert.True(t, Equal(sub, leaf.Value().(Domain)))

	d, err = New("partner_id", "not in", sub)
	require.NoError(t, err)
	assert.Equal(t, OpNone, d.(*Leaf).Operator())

	d, err = New("tag_ids", "any", []any{T("name", "like", "x")})
	require.NoError(t, err)
	assert.True(t, Equal(MustNew("name", "like", "x"), d.(*Leaf).Value().(Domain)))
}

func TestNew_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		field    string
		operator string
		value    any
		code     SyntaxErrorCode
	}{
		{"empty field", "", "=", 1, ErrCodeEmptyField},
		{"unknown operator", "a", "~=", 1, ErrCodeUnknownOperator},
		{"unsupported value", "a", "=", map[string]int{"x": 1}, ErrCodeUnsupportedValue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.field, tc.operator, tc.value)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.code, se.Code)
			assert.True(t, IsSyntaxError(err))
		})
	}
}

func TestFromList_CanonicalShape(t *testing.T) {
	a := T("a", "=", 5)
	b := T("b", "=", 8)

	implicit, err := FromList([]any{a, b})
	require.NoError(t, err)
	explicit, err := FromList([]any{"&", a, b})
	require.NoError(t, err)
	combined := And(MustNew("a", "=", 5), MustNew("b", "=", 8))

	assert.True(t, Equal(implicit, explicit), "implicit and explicit AND differ")
	assert.True(t, Equal(implicit, combined), "list and combinator forms differ")
}

func TestFromList_Polish(t *testing.T) {
	// A | (B & !C)
	d, err := FromList([]any{
		"|", T("a", "=", 1),
		"&", T("b", "=", 2), "!", T("c", "=", 3),
	})
	require.NoError(t, err)

	want := Or(
		MustNew("a", "=", 1),
		And(MustNew("b", "=", 2), Not(MustNew("c", "=", 3))),
	)
	assert.True(t, Equal(want, d), "got %s", Format(d))
}

func TestFromList_Constants(t *testing.T) {
	d, err := FromList(nil)
	require.NoError(t, err)
	assert.Equal(t, True, d)

	d, err = FromList([]any{[]any{1, "=", 1}})
	require.NoError(t, err)
	assert.Equal(t, True, d)

	d, err = FromList([]any{[]any{0, "=", 1}, T("a", "=", 1)})
	require.NoError(t, err)
	assert.Equal(t, False, d)

	d, err = From(false)
	require.NoError(t, err)
	assert.Equal(t, False, d)
}

func TestFromList_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		items []any
		code  SyntaxErrorCode
	}{
		{"underflow on and", []any{"&", T("a", "=", 1)}, ErrCodeStackUnderflow},
		{"underflow on not", []any{"!"}, ErrCodeStackUnderflow},
		{"unknown token", []any{"^", T("a", "=", 1), T("b", "=", 1)}, ErrCodeUnknownToken},
		{"short term", []any{[]any{"a", "="}}, ErrCodeMalformedTerm},
		{"non string field", []any{[]any{3, "in", 1}}, ErrCodeEmptyField},
		{"bad item type", []any{42}, ErrCodeUnknownToken},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromList(tc.items)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.code, se.Code)
		})
	}
}

func TestFrom_SingleTerm(t *testing.T) {
	d, err := From([]any{"name", "like", "test"})
	require.NoError(t, err)
	assert.True(t, Equal(MustNew("name", "like", "test"), d))

	d, err = From([]any{"&", T("a", "=", 1), T("b", "=", 2)})
	require.NoError(t, err)
	_, isNary := d.(*Nary)
	assert.True(t, isNary, "three-item flat list must not be read as a term")
}

func TestFrom_ThreeItemList(t *testing.T) {
	a := MustNew("a", "=", 1)
	notB := Not(MustNew("b", "=", 2))

	tests := []struct {
		name  string
		items []any
	}{
		{"slice terms", []any{[]any{"a", "=", 1}, "!", []any{"b", "=", 2}}},
		{"Term values", []any{T("a", "=", 1), "!", T("b", "=", 2)}},
		{"Domain values", []any{a, "!", MustNew("b", "=", 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := From(tt.items)
			require.NoError(t, err)
			assert.True(t, Equal(And(a, notB), d), "got %s", Format(d))

			fromList, err := FromList(tt.items)
			require.NoError(t, err)
			assert.True(t, Equal(fromList, d))
		})
	}
}

func TestFrom_ConstantLeaves(t *testing.T) {
	d, err := From([]any{1, "=", 1})
	require.NoError(t, err)
	assert.Equal(t, Domain(True), d)

	d, err = From([]any{0, "=", 1})
	require.NoError(t, err)
	assert.Equal(t, Domain(False), d)

	_, err = From([]any{5, "=", 1})
	assert.True(t, IsSyntaxError(err))
}
