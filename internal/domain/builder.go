package domain

import (
	"log/slog"
	"strings"
)

// Term is a (field, operator, value) triple as written in flat-list input.
type Term struct {
	Field    string
	Operator string
	Value    any
}

// T is shorthand for a Term literal inside a flat list.
func T(field, operator string, value any) Term {
	return Term{Field: field, Operator: operator, Value: value}
}

// New builds one checked leaf.
//
// The operator is lower-cased and must be known. Values are normalized:
// nil becomes false, collections become a Set, "=" and "!=" become "in"
// and "not in" (or "any" and "none" for a Domain or Query value), and a
// scalar given to "in" / "not in" is wrapped in a singleton set.
func New(field, operator string, value any) (Domain, error) {
	if field == "" {
		return nil, newSyntaxError(ErrCodeEmptyField, nil, "empty field name")
	}
	op := strings.ToLower(operator)
	if op == OpNotAny {
		op = OpNone
	}
	if !IsKnown(op) {
		return nil, newSyntaxError(ErrCodeUnknownOperator, formatTerm(field, operator, value), "invalid operator %q", operator)
	}

	switch v := value.(type) {
	case Domain:
		return newSubdomainLeaf(field, op, v), nil
	case Query:
		return newSubdomainLeaf(field, op, v), nil
	}

	if op == OpAny || op == OpNone || op == OpAll {
		switch v := value.(type) {
		case bool:
			if v {
				return &Leaf{field: field, operator: op, value: True}, nil
			}
			return &Leaf{field: field, operator: op, value: False}, nil
		case Set:
		default:
			if items, ok := asCollection(value); ok {
				sub, err := FromList(items)
				if err != nil {
					return nil, err
				}
				return &Leaf{field: field, operator: op, value: sub}, nil
			}
		}
	}

	if items, ok := asCollection(value); ok {
		set, err := NewSet(items...)
		if err != nil {
			return nil, newSyntaxError(ErrCodeUnsupportedValue, formatTerm(field, op, value), "%v", err)
		}
		switch op {
		case OpEq:
			op = OpIn
		case OpNe:
			op = OpNotIn
		}
		return &Leaf{field: field, operator: op, value: set}, nil
	}

	scalar, err := normalizeScalar(value)
	if err != nil {
		return nil, newSyntaxError(ErrCodeUnsupportedValue, formatTerm(field, op, value), "%v", err)
	}
	switch op {
	case OpEq:
		return &Leaf{field: field, operator: OpIn, value: MustSet(scalar)}, nil
	case OpNe:
		return &Leaf{field: field, operator: OpNotIn, value: MustSet(scalar)}, nil
	case OpIn, OpNotIn:
		slog.Warn("operator expects a collection, wrapping scalar",
			"field", field,
			"operator", op,
			"value", scalar)
		return &Leaf{field: field, operator: op, value: MustSet(scalar)}, nil
	}
	return &Leaf{field: field, operator: op, value: scalar}, nil
}

// MustNew is New for literals known to be valid.
func MustNew(field, operator string, value any) Domain {
	d, err := New(field, operator, value)
	if err != nil {
		panic(err)
	}
	return d
}

func newSubdomainLeaf(field, op string, value any) *Leaf {
	switch op {
	case OpEq, OpIn:
		op = OpAny
	case OpNe, OpNotIn:
		op = OpNone
	case OpAny, OpNone, OpAll, OpChildOf, OpParentOf:
	default:
		slog.Warn("sub-domain value used with a non-relational operator",
			"field", field,
			"operator", op)
	}
	return &Leaf{field: field, operator: op, value: value}
}

// From converts any accepted domain spelling into a Domain: a Domain, a
// bool, a Term, a 3-element []any term, or a flat list.
func From(arg any) (Domain, error) {
	switch x := arg.(type) {
	case Domain:
		return x, nil
	case bool:
		if x {
			return True, nil
		}
		return False, nil
	case Term:
		return New(x.Field, x.Operator, x.Value)
	case []any:
		if isTerm(x) {
			return sliceTerm(x)
		}
		return FromList(x)
	}
	return nil, newSyntaxError(ErrCodeUnknownToken, arg, "cannot build a domain from %T", arg)
}

// MustFrom is From for literals known to be valid.
func MustFrom(arg any) Domain {
	d, err := From(arg)
	if err != nil {
		panic(err)
	}
	return d
}

// FromList parses a flat prefix list. Items are processed right to left
// with a stack: "!" pops one operand, "&" and "|" pop two. Whatever remains
// on the stack at the end is combined with AND, in list order.
func FromList(items []any) (Domain, error) {
	stack := make([]Domain, 0, len(items))
	pop := func(token string) (Domain, error) {
		if len(stack) == 0 {
			return nil, newSyntaxError(ErrCodeStackUnderflow, token, "domain operator without enough operands")
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for i := len(items) - 1; i >= 0; i-- {
		switch item := items[i].(type) {
		case string:
			switch item {
			case TokenNot:
				a, err := pop(item)
				if err != nil {
					return nil, err
				}
				stack = append(stack, Not(a))
			case TokenAnd, TokenOr:
				a, err := pop(item)
				if err != nil {
					return nil, err
				}
				b, err := pop(item)
				if err != nil {
					return nil, err
				}
				op := AndOp
				if item == TokenOr {
					op = OrOp
				}
				stack = append(stack, Combine(op, []Domain{a, b}))
			default:
				return nil, newSyntaxError(ErrCodeUnknownToken, item, "domain item is not a term nor an operator")
			}
		case Domain:
			stack = append(stack, item)
		case Term:
			d, err := New(item.Field, item.Operator, item.Value)
			if err != nil {
				return nil, err
			}
			stack = append(stack, d)
		case []any:
			if len(item) != 3 {
				return nil, newSyntaxError(ErrCodeMalformedTerm, item, "term must have 3 elements, got %d", len(item))
			}
			d, err := sliceTerm(item)
			if err != nil {
				return nil, err
			}
			stack = append(stack, d)
		default:
			return nil, newSyntaxError(ErrCodeUnknownToken, items[i], "domain item is not a term nor an operator")
		}
	}

	children := make([]Domain, len(stack))
	for i, d := range stack {
		children[len(stack)-1-i] = d
	}
	return And(children...), nil
}

// isTerm tells a 3-element term from a 3-element flat list such as
// ['&', A, B] or [A, '!', B]. A term starts with a field name, or with the
// integer of a TRUE/FALSE leaf.
func isTerm(items []any) bool {
	if len(items) != 3 {
		return false
	}
	if _, ok := items[1].(string); !ok {
		return false
	}
	switch x := items[0].(type) {
	case string:
		return x != TokenNot && x != TokenAnd && x != TokenOr
	case Domain, Term, []any:
		return false
	}
	v, err := normalizeScalar(items[0])
	if err != nil {
		return false
	}
	_, ok := v.(int64)
	return ok
}

func sliceTerm(items []any) (Domain, error) {
	op, ok := items[1].(string)
	if !ok {
		return nil, newSyntaxError(ErrCodeMalformedTerm, items, "operator must be a string")
	}
	if c, ok := constantTerm(items[0], op, items[2]); ok {
		return c, nil
	}
	field, ok := items[0].(string)
	if !ok {
		return nil, newSyntaxError(ErrCodeEmptyField, items, "field must be a string")
	}
	return New(field, op, items[2])
}

// constantTerm recognizes the legacy TRUE_LEAF (1, '=', 1) and
// FALSE_LEAF (0, '=', 1).
func constantTerm(field any, op string, value any) (Const, bool) {
	if op != OpEq {
		return Const{}, false
	}
	f, err := normalizeScalar(field)
	if err != nil {
		return Const{}, false
	}
	v, err := normalizeScalar(value)
	if err != nil || v != int64(1) {
		return Const{}, false
	}
	switch f {
	case int64(1):
		return True, true
	case int64(0):
		return False, true
	}
	return Const{}, false
}
