package optimize

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// optimizeHierarchy resolves child_of and parent_of into an explicit set of
// ids.
//
// The field is either id, which follows the model's parent field, or a
// relational field. A many2one to the model itself is followed as the
// parent field and the result applies to id. The values are ids, or names
// searched with display_name ilike.
func optimizeHierarchy(r *run, c *cond) (domain.Domain, error) {
	if c.value() == false {
		return domain.False, nil
	}
	field := c.field
	var comodel *schema.Model
	switch {
	case field.IsRelational():
		cm, err := comodelOf(c)
		if err != nil {
			return nil, err
		}
		comodel = cm
	case field.Name == "id":
		comodel = c.model
	default:
		return nil, c.fail(ErrCodeTypeMismatch, "cannot execute %q for %s, works only for relational fields", c.op(), field)
	}

	parent := comodel.ParentName
	resultField := field.Name
	if comodel == c.model {
		if field.Name != "id" {
			parent = field.Name
		}
		if field.Type == schema.Many2one {
			resultField = "id"
		}
	}
	if parent == "" {
		return nil, c.fail(ErrCodeTypeMismatch, "model %s has no parent field", comodel.Name)
	}
	if r.Env == nil {
		return nil, c.fail(ErrCodeNoEnv, "operator %q needs an environment to search", c.op())
	}

	var values []any
	switch v := c.value().(type) {
	case domain.Set:
		values = v.Values()
	case int64, string:
		values = []any{v}
	default:
		return nil, c.fail(ErrCodeInvalidValue, "value of type %s is not supported", domain.TypeName(v))
	}

	var ids []int64
	var names []domain.Domain
	for _, v := range values {
		switch x := v.(type) {
		case int64:
			ids = append(ids, x)
		case string:
			names = append(names, domain.Raw("display_name", domain.OpILike, x))
		case bool:
			// False ids never match
		default:
			return nil, c.fail(ErrCodeInvalidValue, "value of type %s is not supported", domain.TypeName(v))
		}
	}

	search := domain.Or(names...)
	if field.Type == schema.Many2many {
		search = domain.Or(search, domain.Raw("id", domain.OpIn, idSet(ids)))
		ids = nil
	}
	if search != domain.Domain(domain.False) {
		found, err := r.Env.Search(r.ctx, comodel.Name, search, "id")
		if err != nil {
			return nil, err
		}
		ids = appendUnique(ids, found...)
	}
	if len(ids) == 0 {
		return domain.False, nil
	}

	var result []int64
	var err error
	if c.op() == domain.OpChildOf {
		result, err = r.children(comodel, parent, ids)
	} else {
		result, err = r.parents(comodel, parent, ids)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved hierarchy",
		"model", comodel.Name,
		"operator", c.op(),
		"ids", len(result))
	return domain.Raw(resultField, domain.OpIn, idSet(result)), nil
}

// children returns ids and all their descendants, through the
// materialized parent_path when the model keeps one.
func (r *run) children(m *schema.Model, parent string, ids []int64) ([]int64, error) {
	if m.ParentStore && parent == m.ParentName {
		paths, err := r.Env.Read(r.ctx, m.Name, ids, "parent_path")
		if err != nil {
			return nil, err
		}
		prefixes := make([]domain.Domain, 0, len(ids))
		for _, id := range ids {
			if path, ok := paths[id].(string); ok && path != "" {
				prefixes = append(prefixes, domain.Raw("parent_path", domain.OpEqLike, path+"%"))
			}
		}
		if len(prefixes) == 0 {
			return nil, nil
		}
		return r.Env.Search(r.ctx, m.Name, domain.Or(prefixes...), "id")
	}

	seen := make(map[int64]bool)
	var result []int64
	frontier := ids
	for len(frontier) > 0 {
		for _, id := range frontier {
			seen[id] = true
		}
		result = append(result, frontier...)
		found, err := r.Env.Search(r.ctx, m.Name, domain.Raw(parent, domain.OpIn, idSet(frontier)), "id")
		if err != nil {
			return nil, err
		}
		frontier = slices.DeleteFunc(found, func(id int64) bool { return seen[id] })
	}
	return result, nil
}

// parents returns ids and all their ancestors. A self-referencing x2many
// parent field is followed through every record it holds.
func (r *run) parents(m *schema.Model, parent string, ids []int64) ([]int64, error) {
	if m.ParentStore && parent == m.ParentName {
		paths, err := r.Env.Read(r.ctx, m.Name, ids, "parent_path")
		if err != nil {
			return nil, err
		}
		var result []int64
		for _, id := range ids {
			path, _ := paths[id].(string)
			for _, label := range strings.Split(strings.TrimSuffix(path, "/"), "/") {
				if label == "" {
					continue
				}
				n, err := strconv.ParseInt(label, 10, 64)
				if err != nil {
					return nil, &OptimizeError{Code: ErrCodeInvalidValue, Message: "corrupt parent_path " + strconv.Quote(path), Model: m.Name}
				}
				result = appendUnique(result, n)
			}
		}
		return result, nil
	}

	seen := make(map[int64]bool)
	var result []int64
	frontier := ids
	for len(frontier) > 0 {
		for _, id := range frontier {
			seen[id] = true
		}
		result = append(result, frontier...)
		values, err := r.Env.Read(r.ctx, m.Name, frontier, parent)
		if err != nil {
			return nil, err
		}
		var next []int64
		for _, id := range frontier {
			for _, p := range refs(values[id]) {
				if !seen[p] {
					seen[p] = true
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return result, nil
}

// refs returns the ids held by a many2one or x2many value.
func refs(v any) []int64 {
	switch x := v.(type) {
	case int64:
		return []int64{x}
	case []int64:
		return x
	}
	return nil
}

func idSet(ids []int64) domain.Set {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return domain.MustSet(values...)
}

func appendUnique(ids []int64, more ...int64) []int64 {
	for _, id := range more {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
