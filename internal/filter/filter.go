// Package filter evaluates optimized domains against in-memory records.
//
// The evaluator mirrors the SQL the querysql builder generates, NULL
// handling included, so that filtering a collection and searching the same
// records in a database return the same ids:
//
//   - an unset value is NULL; for numbers and booleans it equals the
//     type's falsy value (0, false)
//   - negative pattern operators match unset values
//   - a negation is the exact complement within the candidates
//
// Evaluation is set based. AND narrows the candidates child by child, OR
// removes what a child matched before trying the next one, and a leaf
// builds its predicate once (sub-domains are filtered once per leaf, not
// per record).
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/optimize"
	"github.com/roach88/domex/internal/records"
)

// Evaluator filters the collections of one dataset.
type Evaluator struct {
	Dataset *records.Dataset

	// Unaccent makes ilike accent-insensitive.
	Unaccent bool

	// Lang selects the translation of translated values.
	Lang string

	// Optimizer optimizes domains before evaluation. Its Env searches
	// the dataset.
	Optimizer *optimize.Optimizer

	Logger *slog.Logger
}

// New creates an evaluator over ds whose optimizer searches ds itself.
func New(ds *records.Dataset, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		Dataset:  ds,
		Unaccent: true,
		Lang:     records.DefaultLang,
		Logger:   logger,
	}
	e.Optimizer = optimize.New(&Env{Evaluator: e}, logger)
	return e
}

// Filtered returns the ids of coll's records satisfying d, in collection
// order, with a default evaluator over coll's dataset.
func Filtered(ctx context.Context, d domain.Domain, coll *records.Collection) ([]int64, error) {
	return New(coll.Dataset(), nil).Filtered(ctx, d, coll)
}

// Filtered optimizes d against coll's model and evaluates it.
func (e *Evaluator) Filtered(ctx context.Context, d domain.Domain, coll *records.Collection) ([]int64, error) {
	optimized, err := e.Optimizer.Optimize(ctx, d, coll.Model)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, optimized, coll)
}

// Evaluate filters coll with an already optimized domain.
func (e *Evaluator) Evaluate(ctx context.Context, d domain.Domain, coll *records.Collection) ([]int64, error) {
	return e.filter(ctx, d, coll, coll.IDs())
}

// filter returns the candidates satisfying d, keeping their order.
func (e *Evaluator) filter(ctx context.Context, d domain.Domain, coll *records.Collection, candidates []int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch x := d.(type) {
	case domain.Const:
		if x.Truthy() {
			return candidates, nil
		}
		return nil, nil
	case *domain.Negation:
		matched, err := e.filter(ctx, x.Child(), coll, candidates)
		if err != nil {
			return nil, err
		}
		return minus(candidates, matched), nil
	case *domain.Nary:
		children := x.Children()
		if len(children) < 2 {
			return nil, fmt.Errorf("%s node with %d children", x.Op(), len(children))
		}
		if x.Op() == domain.AndOp {
			current := candidates
			for _, c := range children {
				if len(current) == 0 {
					break
				}
				next, err := e.filter(ctx, c, coll, current)
				if err != nil {
					return nil, err
				}
				current = next
			}
			return current, nil
		}
		matched := make(map[int64]bool)
		remaining := candidates
		for _, c := range children {
			if len(remaining) == 0 {
				break
			}
			found, err := e.filter(ctx, c, coll, remaining)
			if err != nil {
				return nil, err
			}
			for _, id := range found {
				matched[id] = true
			}
			remaining = minus(remaining, found)
		}
		return keep(candidates, func(id int64) bool { return matched[id] }), nil
	case *domain.Leaf:
		match, err := e.predicate(ctx, x, coll)
		if err != nil {
			return nil, fmt.Errorf("condition %s on %s: %w", x, coll.Model.Name, err)
		}
		var out []int64
		for _, id := range candidates {
			ok, err := match(id)
			if err != nil {
				return nil, fmt.Errorf("condition %s on %s(%d): %w", x, coll.Model.Name, id, err)
			}
			if ok {
				out = append(out, id)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported domain node %T", d)
}

func minus(ids, drop []int64) []int64 {
	if len(drop) == 0 {
		return ids
	}
	dropped := make(map[int64]bool, len(drop))
	for _, id := range drop {
		dropped[id] = true
	}
	return keep(ids, func(id int64) bool { return !dropped[id] })
}

func keep(ids []int64, fn func(int64) bool) []int64 {
	var out []int64
	for _, id := range ids {
		if fn(id) {
			out = append(out, id)
		}
	}
	return out
}

func intersects(a, b []int64) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
