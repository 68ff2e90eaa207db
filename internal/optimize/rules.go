package optimize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

func init() {
	registerOperator(LevelBasic, false, optimizeEqualIf, domain.OpEqIf)
	registerOperator(LevelBasic, false, optimizeLegacyNotEqual, domain.OpNeLegacy)
	registerOperator(LevelBasic, false, optimizeDoubleEqual, domain.OpEqEq)
	registerOperator(LevelBasic, false, optimizeEqualAsIn, domain.OpEq, domain.OpNe)
	registerOperator(LevelBasic, false, optimizeInSet, domain.OpIn, domain.OpNotIn)
	registerOperator(LevelBasic, true, optimizeInRequired, domain.OpIn, domain.OpNotIn)
	registerOperator(LevelBasic, false, optimizeAll, domain.OpAll)
	registerOperator(LevelBasic, false, checkAnyValue, domain.OpAny, domain.OpNone)
	registerOperator(LevelBasic, true, optimizeAnyDomain, domain.OpAny, domain.OpNone)
	registerOperator(LevelFull, true, optimizeAnyDomainFull, domain.OpAny, domain.OpNone)
	registerOperator(LevelBasic, true, optimizeLikeStr, domain.OpLike, domain.OpNotLike,
		domain.OpILike, domain.OpNotILike, domain.OpEqLike, domain.OpEqILike)
	registerOperator(LevelBasic, false, checkInequalityValue, domain.OpLT, domain.OpLE, domain.OpGT, domain.OpGE)
	registerOperator(LevelFull, true, optimizeHierarchy, domain.OpChildOf, domain.OpParentOf)

	registerType(LevelBasic, optimizeRelationalNameSearch, schema.Many2one, schema.One2many, schema.Many2many)
	registerType(LevelBasic, optimizeBooleanIn, schema.Boolean)
	registerType(LevelFull, optimizeBooleanInAll, schema.Boolean)
	registerType(LevelBasic, optimizeTypeDate, schema.Date)
	registerType(LevelBasic, optimizeTypeDatetime, schema.Datetime)
	registerType(LevelBasic, optimizeTypeBinary, schema.Binary)
	registerType(LevelBasic, optimizeTypeNumber, schema.Integer, schema.Float, schema.Monetary)
}

// a =? b  <=>  not b or a = b
func optimizeEqualIf(_ *run, c *cond) (domain.Domain, error) {
	if domain.IsFalsy(c.value()) {
		return domain.True, nil
	}
	return domain.Raw(c.name(), domain.OpEq, c.value()), nil
}

func optimizeLegacyNotEqual(r *run, c *cond) (domain.Domain, error) {
	r.logger.Warn("operator '<>' is deprecated, use '!='", "condition", c.leaf.String())
	return domain.Raw(c.name(), domain.OpNe, c.value()), nil
}

func optimizeDoubleEqual(r *run, c *cond) (domain.Domain, error) {
	r.logger.Warn("operator '==' is deprecated, use '='", "condition", c.leaf.String())
	return domain.Raw(c.name(), domain.OpEq, c.value()), nil
}

// optimizeEqualAsIn turns what the builder did not already normalize into
// in / not in. Comparing to an empty collection means comparing to False.
func optimizeEqualAsIn(_ *run, c *cond) (domain.Domain, error) {
	op := domain.OpIn
	if c.op() == domain.OpNe {
		op = domain.OpNotIn
	}
	switch v := c.value().(type) {
	case domain.Set:
		if v.Len() == 0 {
			return domain.Raw(c.name(), op, domain.MustSet(false)), nil
		}
		return domain.Raw(c.name(), op, v), nil
	case domain.Domain, domain.Query:
		return domain.Raw(c.name(), op, v), nil
	}
	set, err := domain.NewSet(c.value())
	if err != nil {
		return nil, c.fail(ErrCodeInvalidValue, "%v", err)
	}
	return domain.Raw(c.name(), op, set), nil
}

// optimizeInSet makes sure the value is a Set, or uses any / none for
// sub-domains and queries. An empty set is a constant.
func optimizeInSet(r *run, c *cond) (domain.Domain, error) {
	switch v := c.value().(type) {
	case domain.Domain, domain.Query:
		op := domain.OpAny
		if c.op() == domain.OpNotIn {
			op = domain.OpNone
		}
		return domain.Raw(c.name(), op, v), nil
	case domain.Set:
		if v.Len() == 0 {
			return constFor(c.op() == domain.OpNotIn), nil
		}
		return c.same()
	}
	r.logger.Debug("condition should have a collection value", "condition", c.leaf.String())
	set, err := domain.NewSet(c.value())
	if err != nil {
		return nil, c.fail(ErrCodeInvalidValue, "%v", err)
	}
	return domain.Raw(c.name(), c.op(), set), nil
}

// optimizeInRequired drops False from the set of a required field that
// has no falsy value: it can never be unset.
func optimizeInRequired(_ *run, c *cond) (domain.Domain, error) {
	set, ok := c.value().(domain.Set)
	if !ok || !set.Has(false) {
		return c.same()
	}
	f := c.field
	if _, hasFalsy := f.FalsyValue(); hasFalsy && f.Name != "id" {
		return c.same()
	}
	if !(f.Required || f.Name == "id") || !f.HasColumn() {
		return c.same()
	}
	return domain.Raw(c.name(), c.op(), set.Filter(func(v any) bool { return v != false })), nil
}

// a all D  <=>  a none (not D)
func optimizeAll(_ *run, c *cond) (domain.Domain, error) {
	switch v := c.value().(type) {
	case domain.Domain:
		return domain.Raw(c.name(), domain.OpNone, domain.Not(v)), nil
	case domain.Query:
		return nil, c.fail(ErrCodeInvalidValue, "operator 'all' needs a domain, not a query")
	}
	return nil, c.fail(ErrCodeInvalidValue, "operator 'all' needs a domain")
}

func checkAnyValue(_ *run, c *cond) (domain.Domain, error) {
	switch c.value().(type) {
	case domain.Domain, domain.Query:
		return c.same()
	}
	return nil, c.fail(ErrCodeInvalidValue, "operator %q needs a domain or a query", c.op())
}

// optimizeAnyDomain optimizes the sub-domain on the comodel.
//
//	id any D   <=>  D
//	id none D  <=>  not D
//
// An empty sub-domain makes the condition constant.
func optimizeAnyDomain(r *run, c *cond) (domain.Domain, error) {
	sub, ok := c.value().(domain.Domain)
	if !ok {
		return c.same()
	}
	if c.field.Name == "id" {
		if c.op() == domain.OpAny {
			return sub, nil
		}
		return domain.Not(sub), nil
	}
	comodel, err := comodelOf(c)
	if err != nil {
		return nil, err
	}
	sub, err = r.optimize(sub, comodel, LevelBasic)
	if err != nil {
		return nil, err
	}
	if sub == domain.Domain(domain.False) {
		return constFor(c.op() == domain.OpNone), nil
	}
	return c.with(c.op(), sub), nil
}

func optimizeAnyDomainFull(r *run, c *cond) (domain.Domain, error) {
	sub, ok := c.value().(domain.Domain)
	if !ok {
		return c.same()
	}
	comodel, err := comodelOf(c)
	if err != nil {
		return nil, err
	}
	sub, err = r.optimize(sub, comodel, LevelFull)
	if err != nil {
		return nil, err
	}
	return c.with(c.op(), sub), nil
}

func comodelOf(c *cond) (*schema.Model, error) {
	if !c.field.IsRelational() {
		return nil, c.fail(ErrCodeTypeMismatch, "cannot use %q with non-relational field %s", c.op(), c.field)
	}
	comodel, err := c.field.Comodel()
	if err != nil {
		return nil, c.fail(ErrCodeTypeMismatch, "cannot determine the comodel relation: %v", err)
	}
	return comodel, nil
}

// optimizeLikeStr validates the pattern. An empty pattern matches every
// set value, so the condition becomes a null check or a constant; exact
// patterns only match the empty string, which is stored unset.
func optimizeLikeStr(_ *run, c *cond) (domain.Domain, error) {
	exact := strings.Contains(c.op(), "=")
	if domain.IsFalsy(c.value()) {
		result := domain.IsNegative(c.op()) == exact
		if c.field.IsRelational() || exact {
			op := domain.OpIn
			if result {
				op = domain.OpNotIn
			}
			return domain.Raw(c.name(), op, domain.MustSet(false)), nil
		}
		return constFor(result), nil
	}
	if _, ok := c.value().(string); ok {
		return c.same()
	}
	if exact {
		return nil, c.fail(ErrCodeInvalidValue, "the pattern to match must be a string")
	}
	s, ok := scalarText(c.value())
	if !ok {
		return nil, c.fail(ErrCodeInvalidValue, "the pattern to match must be a scalar")
	}
	return domain.Raw(c.name(), c.op(), s), nil
}

func checkInequalityValue(_ *run, c *cond) (domain.Domain, error) {
	switch c.value().(type) {
	case domain.Set, domain.Domain, domain.Query:
		return nil, c.fail(ErrCodeInvalidValue, "operator %q needs a single value", c.op())
	}
	return c.same()
}

// optimizeRelationalNameSearch searches relational fields by display_name when
// compared to strings. Negative conditions become none.
func optimizeRelationalNameSearch(_ *run, c *cond) (domain.Domain, error) {
	op := c.op()
	positive := domain.Positive(op)
	anyOp := domain.OpAny
	if positive != op {
		anyOp = domain.OpNone
	}

	if domain.IsLike(op) {
		return domain.Raw(c.name(), anyOp, domain.Raw("display_name", positive, c.value())), nil
	}
	if domain.IsInequality(op) {
		return nil, c.fail(ErrCodeTypeMismatch, "inequality not supported for relational field %s", c.field)
	}
	set, ok := c.value().(domain.Set)
	if positive != domain.OpIn || !ok {
		return c.same()
	}
	strs := set.Filter(func(v any) bool {
		_, ok := v.(string)
		return ok
	})
	if strs.Len() == 0 {
		return c.same()
	}
	byName := domain.Raw(c.name(), anyOp, domain.Raw("display_name", domain.OpIn, strs))
	others := set.Minus(strs)
	if others.Len() == 0 {
		return byName, nil
	}
	rest := domain.Raw(c.name(), op, others)
	if op == domain.OpIn {
		return domain.Or(byName, rest), nil
	}
	return domain.And(byName, rest), nil
}

// optimizeBooleanIn only accepts in / not in and always compares to True
// when it can, which eases the implementation of search methods.
func optimizeBooleanIn(r *run, c *cond) (domain.Domain, error) {
	set, ok := c.value().(domain.Set)
	if !ok || (c.op() != domain.OpIn && c.op() != domain.OpNotIn) {
		return nil, c.fail(ErrCodeTypeMismatch, "cannot compare boolean field %s with %q", c.field, c.op())
	}
	values := make([]any, 0, set.Len())
	for _, v := range set.Values() {
		switch x := v.(type) {
		case bool:
			values = append(values, x)
		case string:
			r.logger.Debug("comparing boolean with a string", "condition", c.leaf.String())
			values = append(values, str2bool(x))
		default:
			values = append(values, !domain.IsFalsy(x))
		}
	}
	parsed := domain.MustSet(values...)
	op := c.op()
	if parsed.Len() == 1 && parsed.Has(false) {
		op, _ = domain.Inverse(op)
		parsed = domain.MustSet(true)
	}
	if op == c.op() && parsed.Len() == set.Len() && parsed.Equal(set) {
		return c.same()
	}
	return domain.Raw(c.name(), op, parsed), nil
}

// optimizeBooleanInAll turns the tautology b in {True, False} into a
// constant. Only at full level, since it removes the field (active,
// typically) from the domain.
func optimizeBooleanInAll(_ *run, c *cond) (domain.Domain, error) {
	set, ok := c.value().(domain.Set)
	if ok && set.Len() == 2 && set.Has(true) && set.Has(false) {
		return constFor(c.op() == domain.OpIn), nil
	}
	return c.same()
}

func optimizeTypeBinary(r *run, c *cond) (domain.Domain, error) {
	if domain.IsLike(c.op()) {
		return nil, c.fail(ErrCodeTypeMismatch, "cannot use like operators with binary field %s", c.field)
	}
	if !c.field.Attachment {
		return c.same()
	}
	set, ok := c.value().(domain.Set)
	if (c.op() == domain.OpIn || c.op() == domain.OpNotIn) && ok && set.Len() == 1 && set.Has(false) {
		return c.same()
	}
	if r.Strict {
		return nil, c.fail(ErrCodeTypeMismatch, "binary field %s stored in attachment accepts only existence checks", c.field)
	}
	r.logger.Error("binary field stored in attachment accepts only existence checks, condition ignored",
		"field", c.field.String(),
		"condition", c.leaf.String())
	return domain.True, nil
}

// optimizeTypeNumber parses string values of numeric fields.
func optimizeTypeNumber(_ *run, c *cond) (domain.Domain, error) {
	op := c.op()
	if op != domain.OpIn && op != domain.OpNotIn && !domain.IsInequality(op) {
		return c.same()
	}
	conv := func(v any) (any, error) { return toNumber(c.field.Type, v) }
	if set, ok := c.value().(domain.Set); ok {
		values := make([]any, 0, set.Len())
		for _, v := range set.Values() {
			nv, err := conv(v)
			if err != nil {
				return nil, c.fail(ErrCodeInvalidValue, "%v", err)
			}
			values = append(values, nv)
		}
		return c.with(op, domain.MustSet(values...)), nil
	}
	nv, err := conv(c.value())
	if err != nil {
		return nil, c.fail(ErrCodeInvalidValue, "%v", err)
	}
	if nv == false {
		return domain.False, nil
	}
	return c.with(op, nv), nil
}

func toNumber(t schema.FieldType, v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if t != schema.Integer {
			return float64(x), nil
		}
		return x, nil
	case float64:
		if t == schema.Integer {
			return integral(x), nil
		}
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if t == schema.Integer {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if t == schema.Integer {
				return integral(f), nil
			}
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert %q to a number", x)
	}
	return nil, fmt.Errorf("cannot compare %s field with %s", t, domain.TypeName(v))
}

// integral returns f as an int64 when it has no fractional part, so that
// integer columns compare it as the integer it spells.
func integral(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// str2bool reads the usual spellings of booleans; anything else is false.
func str2bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "1", "true", "t", "on":
		return true
	}
	return false
}

func constFor(b bool) domain.Const {
	if b {
		return domain.True
	}
	return domain.False
}

func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		if x {
			return "True", true
		}
		return "False", true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case civil.Date:
		return x.String(), true
	case civil.DateTime:
		return domain.FormatDateTime(x), true
	}
	return "", false
}
