package schema

import (
	"fmt"

	"github.com/roach88/domex/internal/domain"
)

// SearchDelegate resolves a condition on a computed field into an
// equivalent domain over stored fields of the same model.
type SearchDelegate interface {
	Resolve(operator string, value any) (domain.Domain, error)
}

// SearchFunc adapts a function to the SearchDelegate interface.
type SearchFunc func(operator string, value any) (domain.Domain, error)

// Resolve calls f.
func (f SearchFunc) Resolve(operator string, value any) (domain.Domain, error) {
	return f(operator, value)
}

// NameSearch returns the delegate of display_name: the condition is applied
// to the model's rec-name field unchanged.
func NameSearch(recName string) SearchDelegate {
	return SearchFunc(func(operator string, value any) (domain.Domain, error) {
		return domain.New(recName, operator, value)
	})
}

// relatedSearch resolves ('x', op, v) for a field related to "a.b.x" into
// a any (b any (x op v)). When the condition also holds for unset values,
// every optional many2one along the path may be unset as well.
type relatedSearch struct {
	model *Model
	path  []string
}

func (s *relatedSearch) Resolve(operator string, value any) (domain.Domain, error) {
	fields := make([]*Field, 0, len(s.path))
	current := s.model
	for i, name := range s.path {
		f, ok := current.Field(name)
		if !ok {
			return nil, fmt.Errorf("related path %v: no field %q on %s", s.path, name, current.Name)
		}
		fields = append(fields, f)
		if i < len(s.path)-1 {
			next, err := f.Comodel()
			if err != nil {
				return nil, err
			}
			current = next
		}
	}

	last := fields[len(fields)-1]
	canBeNull := domain.IsNegative(operator) != matchesNull(last, value)

	d, err := domain.New(last.Name, operator, value)
	if err != nil {
		return nil, err
	}
	for i := len(fields) - 2; i >= 0; i-- {
		f := fields[i]
		d = domain.Raw(f.Name, domain.OpAny, d)
		if canBeNull && f.Type == Many2one && !f.Required {
			d = domain.Or(d, domain.Raw(f.Name, domain.OpIn, domain.MustSet(false)))
		}
	}
	return d, nil
}

// matchesNull reports whether value denotes an unset field value: false,
// nil, or the field's falsy value, directly or inside a collection.
func matchesNull(f *Field, value any) bool {
	falsy, hasFalsy := f.FalsyValue()
	isNull := func(v any) bool {
		switch v {
		case nil, false:
			return true
		}
		return hasFalsy && domain.ValueEqual(v, falsy)
	}
	if set, ok := value.(domain.Set); ok {
		for _, v := range set.Values() {
			if isNull(v) {
				return true
			}
		}
		return false
	}
	if items, ok := value.([]any); ok {
		for _, v := range items {
			if isNull(v) {
				return true
			}
		}
		return false
	}
	return isNull(value)
}
