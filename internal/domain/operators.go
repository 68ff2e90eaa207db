package domain

// Standard operators. A fully optimized leaf only ever uses these.
const (
	OpIn       = "in"
	OpNotIn    = "not in"
	OpLT       = "<"
	OpLE       = "<="
	OpGT       = ">"
	OpGE       = ">="
	OpLike     = "like"
	OpNotLike  = "not like"
	OpILike    = "ilike"
	OpNotILike = "not ilike"
	OpEqLike   = "=like"
	OpEqILike  = "=ilike"
	OpAny      = "any"
	OpNone     = "none"
)

// Surface operators rewritten by the optimizer into the standard set.
const (
	OpEq       = "="
	OpNe       = "!="
	OpNeLegacy = "<>"
	OpEqEq     = "=="
	OpEqIf     = "=?"
	OpChildOf  = "child_of"
	OpParentOf = "parent_of"
	OpAll      = "all"

	// OpNotAny is the older spelling of OpNone, accepted on input.
	OpNotAny = "not any"
)

// Domain tokens of the flat-list form.
const (
	TokenNot = "!"
	TokenAnd = "&"
	TokenOr  = "|"
)

var standardOperators = map[string]bool{
	OpIn: true, OpNotIn: true,
	OpLT: true, OpLE: true, OpGT: true, OpGE: true,
	OpLike: true, OpNotLike: true, OpILike: true, OpNotILike: true,
	OpEqLike: true, OpEqILike: true,
	OpAny: true, OpNone: true,
}

var sugarOperators = map[string]bool{
	OpEq: true, OpNe: true, OpNeLegacy: true, OpEqEq: true, OpEqIf: true,
	OpChildOf: true, OpParentOf: true, OpAll: true,
}

// inverseOperators pairs each negatable operator with its negation.
// Inequalities are not listed: their negation depends on the field (NULL
// handling) and lives in the optimizer.
var inverseOperators = map[string]string{
	OpIn:       OpNotIn,
	OpNotIn:    OpIn,
	OpLike:     OpNotLike,
	OpNotLike:  OpLike,
	OpILike:    OpNotILike,
	OpNotILike: OpILike,
	OpAny:      OpNone,
	OpNone:     OpAny,
	OpEq:       OpNe,
	OpNe:       OpEq,
}

var inverseInequalities = map[string]string{
	OpLT: OpGE,
	OpGE: OpLT,
	OpGT: OpLE,
	OpLE: OpGT,
}

var negativeOperators = map[string]bool{
	OpNotIn:    true,
	OpNotLike:  true,
	OpNotILike: true,
	OpNone:     true,
	OpNe:       true,
}

// IsStandard reports whether op belongs to the standard operator set.
func IsStandard(op string) bool { return standardOperators[op] }

// IsKnown reports whether op is accepted by the builder.
func IsKnown(op string) bool { return standardOperators[op] || sugarOperators[op] }

// Inverse returns the negation of op, if it has one.
func Inverse(op string) (string, bool) {
	inv, ok := inverseOperators[op]
	return inv, ok
}

// InverseInequality maps < to >=, <= to >, and back.
func InverseInequality(op string) (string, bool) {
	inv, ok := inverseInequalities[op]
	return inv, ok
}

// IsNegative reports whether op is the negative form of a pair.
func IsNegative(op string) bool { return negativeOperators[op] }

// Positive returns the positive form of a negative operator, or op itself.
func Positive(op string) string {
	if negativeOperators[op] {
		return inverseOperators[op]
	}
	return op
}

// IsInequality reports whether op is one of <, <=, >, >=.
func IsInequality(op string) bool {
	_, ok := inverseInequalities[op]
	return ok
}

// IsLike reports whether op is a pattern operator, positive or negative.
func IsLike(op string) bool {
	switch op {
	case OpLike, OpNotLike, OpILike, OpNotILike, OpEqLike, OpEqILike:
		return true
	}
	return false
}
