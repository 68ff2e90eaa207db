// Package domain provides the immutable AST for record filter expressions
// ("domains") and the builder that reads the legacy flat-list form.
//
// A domain selects a subset of a model's records. It is a tree of:
//   - Const: the constants True and False
//   - Negation: unary NOT
//   - Nary: n-ary AND / OR over an ordered list of children
//   - Leaf: a single (field, operator, value) condition
//
// SEALED INTERFACE:
//
// Domain is sealed with the marker method pattern, so type switches over
// the five node kinds in the optimizer, SQL builder and evaluator are
// exhaustive.
//
// FLAT-LIST FORM:
//
// The historical representation is a prefix ("polish") list where the
// tokens "!", "&" and "|" precede their operands, and terms are 3-tuples:
//
//	['|', ('name', 'like', 'acme'), '!', ('active', '=', True)]
//
// FromList parses that form and List re-linearizes a tree into it. The
// flat form is a serialization format only; nothing downstream of the
// builder works on lists.
//
// IMMUTABILITY:
//
// Nodes are never modified after construction. Every rewrite returns new
// nodes, which makes a domain safe to share between goroutines.
package domain
