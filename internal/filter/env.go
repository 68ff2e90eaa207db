package filter

import (
	"context"
	"slices"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/querysql"
	"github.com/roach88/domex/internal/records"
)

// Env searches an in-memory dataset. It implements optimize.Env, so that
// hierarchy operators and name searches can be optimized without a
// database.
type Env struct {
	Evaluator *Evaluator
}

// NewEnv creates an Env with a default evaluator over ds.
func NewEnv(ds *records.Dataset) *Env {
	return New(ds, nil).Optimizer.Env.(*Env)
}

// Search returns the ids of model's records matching d, sorted by order:
// a comma-separated list of "field [asc|desc]", "id" when empty.
func (env *Env) Search(ctx context.Context, model string, d domain.Domain, order string) ([]int64, error) {
	coll, err := env.Evaluator.Dataset.Collection(model)
	if err != nil {
		return nil, err
	}
	ids, err := env.Evaluator.Filtered(ctx, d, coll)
	if err != nil {
		return nil, err
	}
	if err := sortIDs(ids, coll, order); err != nil {
		return nil, err
	}
	return ids, nil
}

// Read returns the value of field for each id. Unset values are false.
func (env *Env) Read(_ context.Context, model string, ids []int64, field string) (map[int64]any, error) {
	coll, err := env.Evaluator.Dataset.Collection(model)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]any, len(ids))
	for _, id := range ids {
		v, err := coll.Value(id, field)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// sortIDs sorts in place. Ties are broken by id.
func sortIDs(ids []int64, coll *records.Collection, order string) error {
	terms, err := querysql.ParseOrder(coll.Model, order)
	if err != nil {
		return err
	}
	var failed error
	slices.SortStableFunc(ids, func(a, b int64) int {
		for _, t := range terms {
			va, err := coll.Value(a, t.Field.Name)
			if err != nil {
				failed = err
				return 0
			}
			vb, err := coll.Value(b, t.Field.Name)
			if err != nil {
				failed = err
				return 0
			}
			if c := compareForOrder(va, vb, t.Desc); c != 0 {
				return c
			}
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return failed
}

// compareForOrder puts unset values last in both directions, like NULLS
// LAST.
func compareForOrder(a, b any, desc bool) int {
	if m, ok := a.(map[string]string); ok {
		a, _ = records.Translated(m, records.DefaultLang)
	}
	if m, ok := b.(map[string]string); ok {
		b, _ = records.Translated(m, records.DefaultLang)
	}
	unsetA, unsetB := a == false, b == false
	switch {
	case unsetA && unsetB:
		return 0
	case unsetA:
		return 1
	case unsetB:
		return -1
	}
	c, _ := compareValues(a, b)
	if desc {
		return -c
	}
	return c
}
