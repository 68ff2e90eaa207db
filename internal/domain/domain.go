package domain

import "slices"

// Domain is a node of a filter expression tree.
//
// This is a sealed interface: only Const, *Negation, *Nary and *Leaf
// implement it.
type Domain interface {
	domainNode()
}

// Const is the constant True or False domain.
type Const struct {
	value bool
}

// The two constants. An empty domain means True.
var (
	True  = Const{value: true}
	False = Const{value: false}
)

func (Const) domainNode() {}

// Truthy reports whether the constant is True.
func (c Const) Truthy() bool { return c.value }

// Invert returns the opposite constant.
func (c Const) Invert() Const { return Const{value: !c.value} }

// Negation is the logical NOT of its child.
type Negation struct {
	child Domain
}

func (*Negation) domainNode() {}

// Child returns the negated domain.
func (n *Negation) Child() Domain { return n.child }

// Combinator identifies an n-ary node as AND or OR.
type Combinator int

const (
	AndOp Combinator = iota
	OrOp
)

// Identity is the constant that a combinator ignores (True for AND).
func (c Combinator) Identity() Const {
	if c == AndOp {
		return True
	}
	return False
}

// Absorbing is the constant that short-circuits a combinator (False for AND).
func (c Combinator) Absorbing() Const { return c.Identity().Invert() }

// Inverse returns the De Morgan dual.
func (c Combinator) Inverse() Combinator {
	if c == AndOp {
		return OrOp
	}
	return AndOp
}

// Token returns the flat-list token, "&" or "|".
func (c Combinator) Token() string {
	if c == AndOp {
		return TokenAnd
	}
	return TokenOr
}

// Joiner returns the SQL keyword joining the children.
func (c Combinator) Joiner() string {
	if c == AndOp {
		return " AND "
	}
	return " OR "
}

func (c Combinator) String() string {
	if c == AndOp {
		return "AND"
	}
	return "OR"
}

// Nary is an AND or OR over at least two children. Constructors never
// produce a Nary with fewer children, nor one whose child has the same
// combinator.
type Nary struct {
	op       Combinator
	children []Domain
}

func (*Nary) domainNode() {}

// Op returns the combinator.
func (n *Nary) Op() Combinator { return n.op }

// Children returns a copy of the child list.
func (n *Nary) Children() []Domain { return slices.Clone(n.children) }

// Leaf is a single condition on a field.
//
// Value is one of: a scalar (bool, int64, float64, string, civil.Date,
// civil.DateTime), a Set, a nested Domain (any / none) or a Query.
type Leaf struct {
	field    string
	operator string
	value    any
}

func (*Leaf) domainNode() {}

// Field returns the field name or dotted path.
func (l *Leaf) Field() string { return l.field }

// Operator returns the (lower-case) operator.
func (l *Leaf) Operator() string { return l.operator }

// Value returns the condition value.
func (l *Leaf) Value() any { return l.value }

// String renders the leaf as a 3-tuple, for messages.
func (l *Leaf) String() string { return formatLeaf(l) }

// Raw builds a leaf without any check or normalization. The optimizer uses
// it to emit nodes it has already validated.
func Raw(field, operator string, value any) *Leaf {
	return &Leaf{field: field, operator: operator, value: value}
}

// And combines domains with AND, flattening nested ANDs and absorbing
// constants.
func And(items ...Domain) Domain { return Combine(AndOp, items) }

// Or combines domains with OR.
func Or(items ...Domain) Domain { return Combine(OrOp, items) }

// Combine builds an n-ary node: children of the same combinator are
// spliced, identity constants are dropped and an absorbing constant wins.
func Combine(op Combinator, items []Domain) Domain {
	var children []Domain
	for _, item := range items {
		switch x := item.(type) {
		case Const:
			if x == op.Absorbing() {
				return x
			}
			continue
		case *Nary:
			if x.op == op {
				children = append(children, x.children...)
				continue
			}
		}
		children = append(children, item)
	}
	switch len(children) {
	case 0:
		return op.Identity()
	case 1:
		return children[0]
	}
	return &Nary{op: op, children: children}
}

// Not negates a domain. Constants are inverted and double negation is
// removed; anything else is wrapped.
func Not(d Domain) Domain {
	switch x := d.(type) {
	case Const:
		return x.Invert()
	case *Negation:
		return x.child
	}
	return &Negation{child: d}
}

// Equal reports structural equality. Set values compare by membership and
// Query values by identity.
func Equal(a, b Domain) bool {
	switch x := a.(type) {
	case Const:
		y, ok := b.(Const)
		return ok && x == y
	case *Negation:
		y, ok := b.(*Negation)
		return ok && Equal(x.child, y.child)
	case *Nary:
		y, ok := b.(*Nary)
		if !ok || x.op != y.op || len(x.children) != len(y.children) {
			return false
		}
		for i := range x.children {
			if !Equal(x.children[i], y.children[i]) {
				return false
			}
		}
		return true
	case *Leaf:
		y, ok := b.(*Leaf)
		return ok && x.field == y.field && x.operator == y.operator && ValueEqual(x.value, y.value)
	}
	return false
}

// ValueEqual compares two leaf values.
func ValueEqual(a, b any) bool {
	switch x := a.(type) {
	case Set:
		y, ok := b.(Set)
		return ok && x.Equal(y)
	case Domain:
		y, ok := b.(Domain)
		return ok && Equal(x, y)
	case Query:
		y, ok := b.(Query)
		return ok && x == y
	}
	switch b.(type) {
	case Set, Domain, Query:
		return false
	}
	return a == b
}
