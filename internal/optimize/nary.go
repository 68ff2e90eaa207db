package optimize

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// mergeFunc rewrites the sorted children of an AND / OR node. It returns
// the children unchanged when it does not apply.
type mergeFunc func(op domain.Combinator, children []domain.Domain, m *schema.Model) []domain.Domain

// mergeRules run in order until one of them shortens the list.
var mergeRules = []mergeFunc{
	mergeSetConditions,
	mergeBounds,
	mergeRelationalConditions,
	propagateNullChecks,
	dropRedundantNullChecks,
	dropAdjacentDuplicates,
}

func (r *run) nary(n *domain.Nary, m *schema.Model, level Level) (domain.Domain, error) {
	op := n.Op()
	var children []domain.Domain
	for _, c := range n.Children() {
		oc, err := r.optimize(c, m, level)
		if err != nil {
			return nil, err
		}
		switch x := oc.(type) {
		case domain.Const:
			if x == op.Absorbing() {
				return x, nil
			}
			continue
		case *domain.Nary:
			if x.Op() == op {
				children = append(children, x.Children()...)
				continue
			}
		}
		children = append(children, oc)
	}

	if size := len(children); size > 1 {
		slices.SortStableFunc(children, compareChildren)
		for _, merge := range mergeRules {
			children = merge(op, children, m)
			if len(children) < size {
				break
			}
		}
	}
	return domain.Combine(op, children), nil
}

// sortKey groups conditions on the same field and similar operators
// together. Other nodes sort last.
type sortKey struct {
	field, class, operator, valueType, valueText string
}

func keyOf(d domain.Domain) sortKey {
	switch x := d.(type) {
	case *domain.Leaf:
		positive := domain.Positive(x.Operator())
		class := positive
		switch {
		case positive == domain.OpIn:
			class = "0in"
		case positive == domain.OpAny:
			class = "1any"
		case domain.IsLike(positive):
			class = "like"
		}
		return sortKey{
			field:     x.Field(),
			class:     class,
			operator:  x.Operator(),
			valueType: domain.TypeName(x.Value()),
			valueText: valueText(x.Value()),
		}
	case *domain.Nary:
		return sortKey{field: "~", operator: x.Op().Token(), valueText: domain.Format(x)}
	case *domain.Negation:
		return sortKey{field: "~", operator: domain.TokenNot, valueText: domain.Format(x)}
	}
	return sortKey{field: "~", class: "~"}
}

func compareChildren(a, b domain.Domain) int {
	ka, kb := keyOf(a), keyOf(b)
	return cmp.Or(
		cmp.Compare(ka.field, kb.field),
		cmp.Compare(ka.class, kb.class),
		cmp.Compare(ka.operator, kb.operator),
		cmp.Compare(ka.valueType, kb.valueType),
		cmp.Compare(ka.valueText, kb.valueText),
	)
}

func valueText(v any) string {
	switch x := v.(type) {
	case domain.Domain:
		return domain.Format(x)
	case domain.Set:
		return fmt.Sprint(x.Values())
	case domain.Query:
		return "<query>"
	}
	return fmt.Sprint(v)
}

// group calls fn on every run of adjacent leaves with the same key; ok is
// false for children that never group. fn returns the replacement of the
// run.
func group(children []domain.Domain, key func(*domain.Leaf) (string, bool), fn func([]*domain.Leaf) []domain.Domain) []domain.Domain {
	out := make([]domain.Domain, 0, len(children))
	for i := 0; i < len(children); {
		l, ok := children[i].(*domain.Leaf)
		var k string
		if ok {
			k, ok = key(l)
		}
		if !ok {
			out = append(out, children[i])
			i++
			continue
		}
		seq := []*domain.Leaf{l}
		j := i + 1
		for ; j < len(children); j++ {
			lj, ok := children[j].(*domain.Leaf)
			if !ok {
				break
			}
			kj, ok := key(lj)
			if !ok || kj != k {
				break
			}
			seq = append(seq, lj)
		}
		if len(seq) > 1 {
			out = append(out, fn(seq)...)
		} else {
			out = append(out, l)
		}
		i = j
	}
	return out
}

func fieldOf(m *schema.Model, name string) *schema.Field {
	if m == nil {
		return nil
	}
	f, _ := m.Field(name)
	return f
}

// mergeSetConditions combines in / not in conditions on the same field.
//
//	a in {1} or a in {2}             <=>  a in {1, 2}
//	a in {1, 2} and a not in {2, 5}  <=>  a in {1}
//
// Multi-valued fields only merge in under OR and not in under AND.
func mergeSetConditions(op domain.Combinator, children []domain.Domain, m *schema.Model) []domain.Domain {
	key := func(l *domain.Leaf) (string, bool) {
		if l.Operator() != domain.OpIn && l.Operator() != domain.OpNotIn {
			return "", false
		}
		if _, ok := l.Value().(domain.Set); !ok {
			return "", false
		}
		f := fieldOf(m, l.Field())
		if f == nil {
			return "", false
		}
		if f.Type.IsX2Many() {
			if (op == domain.OrOp) != (l.Operator() == domain.OpIn) {
				return "", false
			}
			return l.Field() + "\x00" + l.Operator(), true
		}
		return l.Field(), true
	}
	return group(children, key, func(seq []*domain.Leaf) []domain.Domain {
		return []domain.Domain{mergeSets(op, seq)}
	})
}

func mergeSets(op domain.Combinator, seq []*domain.Leaf) domain.Domain {
	var in, notIn []domain.Set
	for _, l := range seq {
		if l.Operator() == domain.OpIn {
			in = append(in, l.Value().(domain.Set))
		} else {
			notIn = append(notIn, l.Value().(domain.Set))
		}
	}
	name := seq[0].Field()
	if op == domain.AndOp {
		if len(in) > 0 {
			return domain.Raw(name, domain.OpIn, intersection(in).Minus(union(notIn)))
		}
		return domain.Raw(name, domain.OpNotIn, union(notIn))
	}
	if len(notIn) > 0 {
		return domain.Raw(name, domain.OpNotIn, intersection(notIn).Minus(union(in)))
	}
	return domain.Raw(name, domain.OpIn, union(in))
}

func intersection(sets []domain.Set) domain.Set {
	result := sets[0]
	for _, s := range sets[1:] {
		result = result.Intersect(s)
	}
	return result
}

func union(sets []domain.Set) domain.Set {
	var result domain.Set
	for _, s := range sets {
		result = result.Union(s)
	}
	return result
}

// mergeBounds keeps one of several inequalities bounding a field from the
// same side: the tightest under AND, the loosest under OR.
//
//	a > 10 and a >= 5  <=>  a > 10
//	a < 3 or a <= 3    <=>  a <= 3
//
// Only numbers and dates merge; text order depends on the collation.
func mergeBounds(op domain.Combinator, children []domain.Domain, _ *schema.Model) []domain.Domain {
	key := func(l *domain.Leaf) (string, bool) {
		side, ok := boundSide(l.Operator())
		if !ok {
			return "", false
		}
		kind, ok := boundKind(l.Value())
		if !ok {
			return "", false
		}
		return l.Field() + "\x00" + side + "\x00" + kind, true
	}
	return group(children, key, func(seq []*domain.Leaf) []domain.Domain {
		best := seq[0]
		for _, l := range seq[1:] {
			if (op == domain.AndOp && tighter(l, best)) || (op == domain.OrOp && tighter(best, l)) {
				best = l
			}
		}
		return []domain.Domain{best}
	})
}

func boundSide(op string) (string, bool) {
	switch op {
	case domain.OpGT, domain.OpGE:
		return "lower", true
	case domain.OpLT, domain.OpLE:
		return "upper", true
	}
	return "", false
}

func boundKind(v any) (string, bool) {
	switch v.(type) {
	case int64, float64:
		return "number", true
	case civil.Date:
		return "date", true
	case civil.DateTime:
		return "datetime", true
	}
	return "", false
}

// tighter reports whether bound a selects strictly fewer values than b,
// both bounding the same field from the same side.
func tighter(a, b *domain.Leaf) bool {
	c := compareBound(a.Value(), b.Value())
	if side, _ := boundSide(a.Operator()); side == "upper" {
		c = -c
	}
	if c != 0 {
		return c > 0
	}
	strict := func(op string) bool { return op == domain.OpGT || op == domain.OpLT }
	return strict(a.Operator()) && !strict(b.Operator())
}

func compareBound(a, b any) int {
	switch x := a.(type) {
	case civil.Date:
		y := b.(civil.Date)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	case civil.DateTime:
		y := b.(civil.DateTime)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	}
	return cmp.Compare(toFloat(a), toFloat(b))
}

func toFloat(v any) float64 {
	if n, ok := v.(int64); ok {
		return float64(n)
	}
	f, _ := v.(float64)
	return f
}

// mergeRelationalConditions combines the sub-domains of any / none
// conditions on the same relational field.
//
// A many2one has at most one target, so both quantifiers merge:
//
//	a any A and a any B    <=>  a any (A and B)
//	a any A and a none B   <=>  a any (A and not B)
//	a none A or a any B    <=>  a none (A and not B)
//
// Multi-valued fields only merge any under OR and none under AND.
func mergeRelationalConditions(op domain.Combinator, children []domain.Domain, m *schema.Model) []domain.Domain {
	key := func(l *domain.Leaf) (string, bool) {
		if l.Operator() != domain.OpAny && l.Operator() != domain.OpNone {
			return "", false
		}
		if _, ok := l.Value().(domain.Domain); !ok {
			return "", false
		}
		f := fieldOf(m, l.Field())
		if f == nil || !f.IsRelational() {
			return "", false
		}
		if f.Type == schema.Many2one {
			return l.Field(), true
		}
		if (op == domain.OrOp) != (l.Operator() == domain.OpAny) {
			return "", false
		}
		return l.Field() + "\x00" + l.Operator(), true
	}
	return group(children, key, func(seq []*domain.Leaf) []domain.Domain {
		return []domain.Domain{mergeSubdomains(op, seq)}
	})
}

func mergeSubdomains(op domain.Combinator, seq []*domain.Leaf) domain.Domain {
	var pos, neg []domain.Domain
	for _, l := range seq {
		if l.Operator() == domain.OpAny {
			pos = append(pos, l.Value().(domain.Domain))
		} else {
			neg = append(neg, l.Value().(domain.Domain))
		}
	}
	name := seq[0].Field()
	if op == domain.AndOp {
		if len(pos) > 0 {
			sub := domain.And(domain.And(pos...), domain.Not(domain.Or(neg...)))
			return domain.Raw(name, domain.OpAny, sub)
		}
		return domain.Raw(name, domain.OpNone, domain.Or(neg...))
	}
	if len(neg) > 0 {
		sub := domain.And(domain.And(neg...), domain.Not(domain.Or(pos...)))
		return domain.Raw(name, domain.OpNone, sub)
	}
	return domain.Raw(name, domain.OpAny, domain.Or(pos...))
}

// propagateNullChecks simplifies children using a sibling that fixes
// whether a field is set.
//
//	a not in {False, ...} and (a in {False} or B)  <=>  a not in {False, ...} and B
//	a in {False, ...} or (a not in {False} and B)  <=>  a in {False, ...} or B
//
// The removed condition must select a subset of the sibling's set.
func propagateNullChecks(op domain.Combinator, children []domain.Domain, _ *schema.Model) []domain.Domain {
	siblingOp, innerOp := domain.OpNotIn, domain.OpIn
	if op == domain.OrOp {
		siblingOp, innerOp = domain.OpIn, domain.OpNotIn
	}
	known := make(map[string]domain.Set)
	for _, c := range children {
		l, ok := c.(*domain.Leaf)
		if !ok || l.Operator() != siblingOp {
			continue
		}
		if set, ok := l.Value().(domain.Set); ok && set.Has(false) {
			known[l.Field()] = set
		}
	}
	if len(known) == 0 {
		return children
	}

	out := make([]domain.Domain, len(children))
	for i, c := range children {
		out[i] = c
		inner, ok := c.(*domain.Nary)
		if !ok || inner.Op() != op.Inverse() {
			continue
		}
		kept := inner.Children()
		kept = slices.DeleteFunc(kept, func(d domain.Domain) bool {
			l, ok := d.(*domain.Leaf)
			if !ok || l.Operator() != innerOp {
				return false
			}
			set, ok := l.Value().(domain.Set)
			outer, found := known[l.Field()]
			return ok && found && set.Has(false) && subset(set, outer)
		})
		if len(kept) < len(inner.Children()) {
			out[i] = domain.Combine(inner.Op(), kept)
		}
	}
	return out
}

func subset(a, b domain.Set) bool {
	return a.Minus(b).Len() == 0
}

// dropRedundantNullChecks removes a not in {False} next to an inequality
// on the same field: an inequality never matches an unset field without a
// falsy value.
func dropRedundantNullChecks(op domain.Combinator, children []domain.Domain, m *schema.Model) []domain.Domain {
	if op != domain.AndOp || m == nil {
		return children
	}
	compared := make(map[string]bool)
	for _, c := range children {
		if l, ok := c.(*domain.Leaf); ok && domain.IsInequality(l.Operator()) {
			if f := fieldOf(m, l.Field()); f != nil {
				if _, hasFalsy := f.FalsyValue(); !hasFalsy {
					compared[l.Field()] = true
				}
			}
		}
	}
	if len(compared) == 0 {
		return children
	}
	return slices.DeleteFunc(slices.Clone(children), func(d domain.Domain) bool {
		l, ok := d.(*domain.Leaf)
		if !ok || l.Operator() != domain.OpNotIn || !compared[l.Field()] {
			return false
		}
		set, ok := l.Value().(domain.Set)
		return ok && set.Len() == 1 && set.Has(false)
	})
}

func dropAdjacentDuplicates(_ domain.Combinator, children []domain.Domain, _ *schema.Model) []domain.Domain {
	return slices.CompactFunc(slices.Clone(children), domain.Equal)
}
