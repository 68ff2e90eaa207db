// Package optimize rewrites domains into their canonical, executable form.
//
// Optimization runs in levels. The basic level only depends on field
// metadata: operators are normalized to the standard set, dotted paths are
// decomposed into nested any conditions and values are coerced to the
// field's type. The full level also resolves what depends on the data or
// on field behavior: inherited and computed fields, hierarchy operators.
//
// LEAF RULES:
//
// Rules are registered in init() per operator and per field type, each at
// a level. A leaf step applies the rules of one level in registration
// order and returns the first result that differs from the leaf:
//
//	field lookup -> path -> inherited / computed (full) -> operator rules
//	-> type rules -> standard operator check (full)
//
// N-ARY RULES:
//
// AND / OR children are optimized, flattened and sorted so that conditions
// on the same field are adjacent. Merge passes then combine set conditions,
// relational sub-domains and null checks on the same field.
//
// FIXED POINT:
//
// Every step returns a new node or the same one. A node that no longer
// changes at a level is recorded in a memo owned by the call, so shared
// subtrees are not optimized twice. A call gives up after 1000 steps.
package optimize
