package optimize

import (
	"strings"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// cond is the leaf a rule is applied to, with its resolved field. field is
// nil for rules that run without a model.
type cond struct {
	leaf  *domain.Leaf
	model *schema.Model
	field *schema.Field
	level Level
}

func (c *cond) name() string { return c.leaf.Field() }
func (c *cond) op() string   { return c.leaf.Operator() }
func (c *cond) value() any   { return c.leaf.Value() }

func (c *cond) same() (domain.Domain, error) { return c.leaf, nil }

// with returns the same leaf when nothing changes, so that rules compose
// without spurious steps.
func (c *cond) with(op string, value any) domain.Domain {
	if op == c.op() && domain.ValueEqual(value, c.value()) {
		return c.leaf
	}
	return domain.Raw(c.name(), op, value)
}

type ruleFunc func(r *run, c *cond) (domain.Domain, error)

type leafRule struct {
	level      Level
	needsField bool
	apply      ruleFunc
}

var (
	operatorRules = make(map[string][]leafRule)
	typeRules     = make(map[schema.FieldType][]leafRule)
)

func registerOperator(level Level, needsField bool, fn ruleFunc, operators ...string) {
	for _, op := range operators {
		operatorRules[op] = append(operatorRules[op], leafRule{level: level, needsField: needsField, apply: fn})
	}
}

func registerType(level Level, fn ruleFunc, types ...schema.FieldType) {
	for _, t := range types {
		typeRules[t] = append(typeRules[t], leafRule{level: level, needsField: true, apply: fn})
	}
}

func (r *run) leaf(l *domain.Leaf, m *schema.Model, level Level) (domain.Domain, error) {
	c := &cond{leaf: l, model: m, level: level}

	if m == nil {
		return r.applyRules(c, operatorRules[l.Operator()])
	}

	head, rest, dotted := strings.Cut(l.Field(), ".")
	f, ok := m.Field(head)
	if !ok {
		return nil, c.fail(ErrCodeUnknownField, "invalid field %s.%s", m.Name, head)
	}
	if dotted {
		if !f.IsRelational() {
			return nil, c.fail(ErrCodeInvalidPath, "field %s is not relational", f)
		}
		return domain.Raw(head, domain.OpAny, domain.Raw(rest, l.Operator(), l.Value())), nil
	}
	c.field = f

	if level == LevelFull {
		if f.Inherited {
			link, _, _ := strings.Cut(f.Related, ".")
			return domain.Raw(link, domain.OpAny, domain.Raw(f.Name, l.Operator(), l.Value())), nil
		}
		if !f.Store {
			return r.searchComputed(c)
		}
	}

	d, err := r.applyRules(c, operatorRules[l.Operator()])
	if err != nil || d != domain.Domain(l) {
		return d, err
	}
	d, err = r.applyRules(c, typeRules[f.Type])
	if err != nil || d != domain.Domain(l) {
		return d, err
	}

	if level == LevelFull && !domain.IsStandard(l.Operator()) {
		return nil, c.fail(ErrCodeUnknownOperator, "operator %q is not standard", l.Operator())
	}
	return l, nil
}

func (r *run) applyRules(c *cond, rules []leafRule) (domain.Domain, error) {
	for _, rule := range rules {
		if rule.level != c.level || (rule.needsField && c.field == nil) {
			continue
		}
		d, err := rule.apply(r, c)
		if err != nil {
			return nil, err
		}
		if d != domain.Domain(c.leaf) {
			return d, nil
		}
	}
	return c.leaf, nil
}

// searchComputed replaces a condition on a non-stored field by the domain
// its search delegate returns. A field without a delegate cannot be
// searched; unless strict, the condition is logged and ignored.
func (r *run) searchComputed(c *cond) (domain.Domain, error) {
	f := c.field
	if f.Search == nil {
		if r.Strict {
			return nil, c.fail(ErrCodeNotSearchable, "non-stored field %s cannot be searched", f)
		}
		r.logger.Error("non-stored field cannot be searched, condition ignored",
			"field", f.String(),
			"condition", c.leaf.String())
		return domain.True, nil
	}

	d, err := f.Search.Resolve(c.op(), c.value())
	if err != nil {
		inv, ok := domain.Inverse(c.op())
		if !ok {
			return nil, c.fail(ErrCodeNotSearchable, "search of %s failed: %v", f, err)
		}
		positive, err2 := f.Search.Resolve(inv, c.value())
		if err2 != nil {
			return nil, c.fail(ErrCodeNotSearchable, "search of %s failed: %v", f, err)
		}
		d = domain.Not(positive)
	}

	d, err = r.optimize(d, c.model, LevelBasic)
	if err != nil {
		return nil, err
	}
	return d, nil
}
