package optimize

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
	"github.com/roach88/domex/internal/testutil"
)

func assertDomain(t *testing.T, want, got domain.Domain) {
	t.Helper()
	if !domain.Equal(want, got) {
		t.Errorf("domain mismatch (-want +got):\n%s", cmp.Diff(domain.List(want), domain.List(got)))
	}
}

func set(values ...any) domain.Set { return domain.MustSet(values...) }

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func dt(y, m, d, hh, mm, ss int) civil.DateTime {
	return civil.DateTime{Date: date(y, m, d), Time: civil.Time{Hour: hh, Minute: mm, Second: ss}}
}

func TestOptimize_Leaves(t *testing.T) {
	reg := testutil.Registry(t)

	tests := []struct {
		name  string
		model string
		in    domain.Domain
		want  domain.Domain
	}{
		{
			name:  "equality becomes in",
			model: "res.partner",
			in:    domain.MustNew("name", "=", "Acme"),
			want:  domain.Raw("name", "in", set("Acme")),
		},
		{
			name:  "empty in is false",
			model: "res.partner",
			in:    domain.Raw("color", "in", set()),
			want:  domain.False,
		},
		{
			name:  "empty not in is true",
			model: "res.partner",
			in:    domain.Raw("color", "not in", set()),
			want:  domain.True,
		},
		{
			name:  "=? with a falsy value",
			model: "res.partner",
			in:    domain.Raw("name", "=?", false),
			want:  domain.True,
		},
		{
			name:  "=? with a value",
			model: "res.partner",
			in:    domain.Raw("name", "=?", "x"),
			want:  domain.Raw("name", "in", set("x")),
		},
		{
			name:  "legacy not equal",
			model: "res.partner",
			in:    domain.Raw("name", "<>", "x"),
			want:  domain.Raw("name", "not in", set("x")),
		},
		{
			name:  "double equal",
			model: "res.partner",
			in:    domain.Raw("ref", "==", "x"),
			want:  domain.Raw("ref", "in", set("x")),
		},
		{
			name:  "scalar in is wrapped",
			model: "res.partner",
			in:    domain.Raw("ref", "in", "x"),
			want:  domain.Raw("ref", "in", set("x")),
		},
		{
			name:  "dotted path",
			model: "res.partner",
			in:    domain.MustNew("country_id.code", "=", "BE"),
			want:  domain.Raw("country_id", "any", domain.Raw("code", "in", set("BE"))),
		},
		{
			name:  "inherited field goes through the link",
			model: "res.users",
			in:    domain.MustNew("name", "ilike", "acme"),
			want:  domain.Raw("partner_id", "any", domain.Raw("name", "ilike", "acme")),
		},
		{
			name:  "computed field uses its delegate",
			model: "res.partner",
			in:    domain.MustNew("is_company", "=", true),
			want:  domain.Raw("company_type", "in", set("company")),
		},
		{
			name:  "computed field with False",
			model: "res.partner",
			in:    domain.MustNew("is_company", "=", false),
			want:  domain.Raw("company_type", "not in", set("company")),
		},
		{
			name:  "related field",
			model: "res.partner",
			in:    domain.MustNew("country_code", "=", "BE"),
			want:  domain.Raw("country_id", "any", domain.Raw("code", "in", set("BE"))),
		},
		{
			name:  "related field matching unset values",
			model: "res.partner",
			in:    domain.MustNew("country_code", "=", false),
			want: domain.Or(
				domain.Raw("country_id", "in", set(false)),
				domain.Raw("country_id", "any", domain.Raw("code", "in", set(false))),
			),
		},
		{
			name:  "display_name delegates to the rec name",
			model: "res.users",
			in:    domain.MustNew("display_name", "=like", "adm%"),
			want:  domain.Raw("login", "=like", "adm%"),
		},
		{
			name:  "id any",
			model: "res.partner",
			in:    domain.MustNew("id", "any", domain.MustNew("name", "=", "x")),
			want:  domain.Raw("name", "in", set("x")),
		},
		{
			name:  "id none",
			model: "res.partner",
			in:    domain.MustNew("id", "none", domain.MustNew("name", "=", "x")),
			want:  domain.Raw("name", "not in", set("x")),
		},
		{
			name:  "any with an empty sub-domain",
			model: "res.partner",
			in:    domain.MustNew("country_id", "any", false),
			want:  domain.False,
		},
		{
			name:  "none with an empty sub-domain",
			model: "res.partner",
			in:    domain.MustNew("country_id", "none", false),
			want:  domain.True,
		},
		{
			name:  "all is none of the negation",
			model: "res.partner",
			in:    domain.MustNew("category_id", "all", domain.MustNew("name", "=", "Vendor")),
			want:  domain.Raw("category_id", "none", domain.Raw("name", "not in", set("Vendor"))),
		},
		{
			name:  "required field never unset",
			model: "res.users",
			in:    domain.Raw("login", "in", set(false, "admin")),
			want:  domain.Raw("login", "in", set("admin")),
		},
		{
			name:  "id never unset",
			model: "res.partner",
			in:    domain.Raw("id", "in", set(false, int64(1))),
			want:  domain.Raw("id", "in", set(int64(1))),
		},
		{
			name:  "optional field keeps False",
			model: "res.partner",
			in:    domain.Raw("ref", "in", set(false, "x")),
			want:  domain.Raw("ref", "in", set(false, "x")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Optimize(context.Background(), tt.in, reg.MustModel(tt.model))
			require.NoError(t, err)
			assertDomain(t, tt.want, got)
		})
	}
}

func TestOptimize_LikeOperators(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")

	tests := []struct {
		name string
		in   domain.Domain
		want domain.Domain
	}{
		{"empty pattern matches everything", domain.Raw("name", "ilike", ""), domain.True},
		{"negated empty pattern matches nothing", domain.Raw("name", "not ilike", false), domain.False},
		{"exact empty pattern is a null check", domain.Raw("name", "=like", ""), domain.Raw("name", "in", set(false))},
		{"relational empty pattern is a null check", domain.Raw("parent_id", "ilike", ""), domain.Raw("parent_id", "not in", set(false))},
		{"numbers are matched as text", domain.Raw("color", "like", int64(5)), domain.Raw("color", "like", "5")},
		{"pattern kept", domain.Raw("name", "not like", "Ac"), domain.Raw("name", "not like", "Ac")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Optimize(context.Background(), tt.in, partner)
			require.NoError(t, err)
			assertDomain(t, tt.want, got)
		})
	}
}

func TestOptimize_Types(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")

	tests := []struct {
		name string
		in   domain.Domain
		want domain.Domain
	}{
		{"integer from string", domain.MustNew("color", "=", "5"), domain.Raw("color", "in", set(int64(5)))},
		{"float from integer", domain.MustNew("credit_limit", ">", 100), domain.Raw("credit_limit", ">", 100.0)},
		{"integer from integral float", domain.MustNew("color", "=", 3.0), domain.Raw("color", "in", set(int64(3)))},
		{"integer from float string", domain.MustNew("color", "in", []any{"3.0", 0.0}), domain.Raw("color", "in", set(int64(3), int64(0)))},
		{"integer keeps fraction", domain.MustNew("color", "=", 2.5), domain.Raw("color", "in", set(2.5))},
		{"integer bound from float", domain.MustNew("color", ">", 2.0), domain.Raw("color", ">", int64(2))},
		{"monetary from string", domain.MustNew("balance", "<=", " 2.5 "), domain.Raw("balance", "<=", 2.5)},
		{"number against False", domain.MustNew("color", "<", false), domain.False},
		{"boolean from string", domain.MustNew("active", "=", "yes"), domain.Raw("active", "in", set(true))},
		{"boolean False flips", domain.MustNew("active", "=", false), domain.Raw("active", "not in", set(true))},
		{"boolean tautology", domain.Raw("active", "in", set(true, false)), domain.True},
		{"boolean contradiction", domain.Raw("active", "not in", set(true, false)), domain.False},
		{"date from string", domain.MustNew("date", "=", "2024-01-15"), domain.Raw("date", "in", set(date(2024, 1, 15)))},
		{"date from datetime", domain.MustNew("date", ">=", dt(2024, 1, 15, 10, 0, 0)), domain.Raw("date", ">=", date(2024, 1, 15))},
		{"date against False", domain.MustNew("date", ">", false), domain.False},
		{"relational like searches names", domain.MustNew("country_id", "ilike", "bel"),
			domain.Raw("country_id", "any", domain.Raw("name", "ilike", "bel"))},
		{"relational negative like", domain.MustNew("country_id", "not ilike", "bel"),
			domain.Raw("country_id", "none", domain.Raw("name", "ilike", "bel"))},
		{"relational names and ids", domain.MustNew("country_id", "in", []any{1, "France"}),
			domain.Or(
				domain.Raw("country_id", "in", set(int64(1))),
				domain.Raw("country_id", "any", domain.Raw("name", "in", set("France"))),
			)},
		{"relational names only, negated", domain.MustNew("country_id", "not in", []any{"France"}),
			domain.Raw("country_id", "none", domain.Raw("name", "in", set("France")))},
		{"attachment existence", domain.MustNew("image", "!=", false), domain.Raw("image", "not in", set(false))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Optimize(context.Background(), tt.in, partner)
			require.NoError(t, err)
			assertDomain(t, tt.want, got)
		})
	}
}

func TestOptimize_Datetime(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")

	tests := []struct {
		name string
		in   domain.Domain
		want domain.Domain
	}{
		{"after a day", domain.MustNew("create_date", ">", "2024-01-15"),
			domain.Raw("create_date", ">=", dt(2024, 1, 16, 0, 0, 0))},
		{"up to a day", domain.MustNew("create_date", "<=", date(2024, 1, 15)),
			domain.Raw("create_date", "<", dt(2024, 1, 16, 0, 0, 0))},
		{"after a second", domain.MustNew("create_date", ">", "2024-01-15 10:30:00"),
			domain.Raw("create_date", ">=", dt(2024, 1, 15, 10, 30, 1))},
		{"up to a second", domain.MustNew("create_date", "<=", "2024-01-15 10:30:00"),
			domain.Raw("create_date", "<", dt(2024, 1, 15, 10, 30, 1))},
		{"strict bounds are kept", domain.MustNew("create_date", "<", "2024-01-15"),
			domain.Raw("create_date", "<", dt(2024, 1, 15, 0, 0, 0))},
		{"equality is a one-second range", domain.MustNew("create_date", "=", "2024-01-15 10:30:00"),
			domain.And(
				domain.Raw("create_date", "<", dt(2024, 1, 15, 10, 30, 1)),
				domain.Raw("create_date", ">=", dt(2024, 1, 15, 10, 30, 0)),
			)},
		{"after the end of time", domain.MustNew("create_date", ">", "9999-12-31"), domain.False},
		{"up to the end of time", domain.MustNew("create_date", "<=", "9999-12-31"),
			domain.Raw("create_date", "not in", set(false))},
		{"unset", domain.MustNew("create_date", "=", false), domain.Raw("create_date", "in", set(false))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Optimize(context.Background(), tt.in, partner)
			require.NoError(t, err)
			assertDomain(t, tt.want, got)
		})
	}
}

func TestOptimize_Errors(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")

	tests := []struct {
		name string
		in   domain.Domain
		code OptimizeErrorCode
	}{
		{"unknown field", domain.MustNew("nope", "=", 1), ErrCodeUnknownField},
		{"unknown path head", domain.MustNew("nope.name", "=", 1), ErrCodeUnknownField},
		{"path through a scalar", domain.MustNew("name.code", "=", 1), ErrCodeInvalidPath},
		{"unknown field in a sub-domain", domain.MustNew("country_id.nope", "=", 1), ErrCodeUnknownField},
		{"relational inequality", domain.MustNew("parent_id", ">", 3), ErrCodeTypeMismatch},
		{"boolean inequality", domain.MustNew("active", ">", 0), ErrCodeTypeMismatch},
		{"binary like", domain.MustNew("signature", "ilike", "x"), ErrCodeTypeMismatch},
		{"any on a scalar", domain.MustNew("name", "any", domain.MustNew("x", "=", 1)), ErrCodeTypeMismatch},
		{"any without a domain", domain.Raw("country_id", "any", int64(3)), ErrCodeInvalidValue},
		{"number from garbage", domain.MustNew("color", ">", "abc"), ErrCodeInvalidValue},
		{"date from garbage", domain.MustNew("date", "=", "15/01/2024"), ErrCodeInvalidValue},
		{"inequality with a set", domain.Raw("color", ">", set(int64(1))), ErrCodeInvalidValue},
		{"exact pattern not a string", domain.Raw("name", "=like", int64(5)), ErrCodeInvalidValue},
		{"hierarchy on a scalar", domain.MustNew("name", "child_of", 1), ErrCodeTypeMismatch},
		{"unknown operator", domain.Raw("name", "regex", "^A"), ErrCodeUnknownOperator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Optimize(context.Background(), tt.in, partner)
			require.Error(t, err)
			assert.True(t, IsOptimizeError(err))
			assert.Equal(t, tt.code, ErrorCode(err), "%v", err)
		})
	}
}

func TestOptimizeError_Message(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")
	_, err := Optimize(context.Background(), domain.MustNew("nope", "=", 1), partner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN_FIELD")
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "res.partner")
}

func TestOptimize_NonSearchableField(t *testing.T) {
	reg := testutil.Registry(t)
	partner := reg.MustModel("res.partner")
	f, _ := partner.Field("is_company")
	f.Search = nil
	d := domain.And(domain.MustNew("is_company", "=", true), domain.MustNew("name", "=", "x"))

	t.Run("lenient", func(t *testing.T) {
		var buf bytes.Buffer
		o := New(nil, slog.New(slog.NewTextHandler(&buf, nil)))
		got, err := o.Optimize(context.Background(), d, partner)
		require.NoError(t, err)
		assertDomain(t, domain.Raw("name", "in", set("x")), got)
		assert.Contains(t, buf.String(), "non-stored field cannot be searched")
	})

	t.Run("strict", func(t *testing.T) {
		o := &Optimizer{Strict: true}
		_, err := o.Optimize(context.Background(), d, partner)
		assert.Equal(t, ErrCodeNotSearchable, ErrorCode(err))
	})
}

func TestOptimize_AttachmentMisuse(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")
	d := domain.MustNew("image", "=", "aW1hZ2U=")

	var buf bytes.Buffer
	got, err := New(nil, slog.New(slog.NewTextHandler(&buf, nil))).Optimize(context.Background(), d, partner)
	require.NoError(t, err)
	assert.Equal(t, domain.Domain(domain.True), got)
	assert.Contains(t, buf.String(), "accepts only existence checks")

	_, err = (&Optimizer{Strict: true}).Optimize(context.Background(), d, partner)
	assert.Equal(t, ErrCodeTypeMismatch, ErrorCode(err))
}

func TestOptimize_NoFixedPoint(t *testing.T) {
	next := int64(0)
	m := schema.NewModel("test.loop", "")
	m.AddField(&schema.Field{Name: "x", Type: schema.Integer, Search: schema.SearchFunc(
		func(string, any) (domain.Domain, error) {
			next++
			return domain.Raw("x", domain.OpIn, set(next)), nil
		})})
	reg := schema.NewRegistry()
	require.NoError(t, reg.Add(m))
	require.NoError(t, reg.Setup())

	_, err := Optimize(context.Background(), domain.MustNew("x", "=", 0), m)
	assert.Equal(t, ErrCodeNoFixedPoint, ErrorCode(err))
}

func TestOptimize_WithoutModel(t *testing.T) {
	ctx := context.Background()

	got, err := Optimize(ctx, domain.Raw("a", "=", int64(1)), nil)
	require.NoError(t, err)
	assertDomain(t, domain.Raw("a", "in", set(int64(1))), got)

	got, err = Optimize(ctx, domain.Or(domain.MustNew("b", "=", 1), domain.MustNew("a", "=", 2)), nil)
	require.NoError(t, err)
	assertDomain(t, domain.Or(domain.MustNew("a", "=", 2), domain.MustNew("b", "=", 1)), got)

	lt := domain.MustNew("a", "<", 1)
	got, err = OptimizeNot(ctx, lt, nil)
	require.NoError(t, err)
	assertDomain(t, domain.Not(lt), got)

	got, err = OptimizeNot(ctx, domain.MustNew("a", "ilike", "x"), nil)
	require.NoError(t, err)
	assertDomain(t, domain.Raw("a", "not ilike", "x"), got)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "none", LevelNone.String())
	assert.Equal(t, "basic", LevelBasic.String())
	assert.Equal(t, "full", LevelFull.String())
}

func TestOptimizeAt_Basic(t *testing.T) {
	partner := testutil.Registry(t).MustModel("res.partner")
	d := domain.And(domain.MustNew("is_company", "=", true), domain.Raw("active", "in", set(true, false)))

	got, err := (&Optimizer{}).OptimizeAt(context.Background(), d, partner, LevelBasic)
	require.NoError(t, err)
	assertDomain(t, domain.And(
		domain.Raw("active", "in", set(true, false)),
		domain.Raw("is_company", "in", set(true)),
	), got)
}
