package filter

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// related returns the comodel ids a sub-domain or query selects. all
// reports the True sub-domain, which selects every record.
func (e *Evaluator) related(ctx context.Context, f *schema.Field, value any) (ids []int64, all bool, err error) {
	switch v := value.(type) {
	case domain.Query:
		ids, err := v.ResultIDs(ctx)
		return ids, false, err
	case domain.Domain:
		if v == domain.Domain(domain.True) {
			return nil, true, nil
		}
		co, err := e.Dataset.Collection(f.Relation)
		if err != nil {
			return nil, false, err
		}
		ids, err := e.Evaluate(ctx, v, co)
		return ids, false, err
	}
	return nil, false, fmt.Errorf("operator needs a domain or a query, got %T", value)
}

// anyScalar handles any / none on a many2one, and on other fields with a
// query value (id any <query>).
func (e *Evaluator) anyScalar(ctx context.Context, f *schema.Field, op string, value any, read func(int64) (any, error)) (predicate, error) {
	if f.Type != schema.Many2one {
		if _, ok := value.(domain.Query); !ok {
			return nil, fmt.Errorf("operator %q on scalar field %s needs a query", op, f)
		}
	}
	ids, all, err := e.related(ctx, f, value)
	if err != nil {
		return nil, err
	}
	positive := op == domain.OpAny
	return func(id int64) (bool, error) {
		v, err := read(id)
		if err != nil {
			return false, err
		}
		ref, set := v.(int64)
		if !set {
			// NULL is in no subquery; only many2one none adds OR IS NULL
			return !positive && f.Type == schema.Many2one, nil
		}
		return (all || slices.Contains(ids, ref)) == positive, nil
	}, nil
}

// x2many handles one2many and many2many conditions: in / not in on ids,
// and any / none on a sub-domain or query. in {False} means no related
// record at all.
func (e *Evaluator) x2many(ctx context.Context, f *schema.Field, op string, value any, read func(int64) (any, error)) (predicate, error) {
	exists := op == domain.OpIn || op == domain.OpAny

	var ids []int64
	all := false
	nullIn := false
	switch v := value.(type) {
	case domain.Set:
		if op != domain.OpIn && op != domain.OpNotIn {
			return nil, fmt.Errorf("operator %q needs a domain or a query", op)
		}
		for _, x := range v.Values() {
			switch id := x.(type) {
			case bool:
				if id {
					return nil, fmt.Errorf("invalid id %v", x)
				}
				nullIn = true
			case int64:
				ids = append(ids, id)
			default:
				return nil, fmt.Errorf("invalid id %v", x)
			}
		}
	default:
		if op != domain.OpAny && op != domain.OpNone {
			return nil, fmt.Errorf("operator %q needs a set", op)
		}
		var err error
		ids, all, err = e.related(ctx, f, value)
		if err != nil {
			return nil, err
		}
	}

	return func(id int64) (bool, error) {
		v, err := read(id)
		if err != nil {
			return false, err
		}
		refs, _ := v.([]int64)
		found := len(refs) > 0 && (all || intersects(refs, ids))
		if nullIn && len(refs) == 0 {
			found = true
		}
		return found == exists, nil
	}, nil
}
