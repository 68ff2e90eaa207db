package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/domex/internal/schema"
)

// OrderTerm is one "field [asc|desc]" item of an order clause.
type OrderTerm struct {
	Field *schema.Field
	Desc  bool
}

// ParseOrder parses a comma-separated order clause on m, "id"
// when blank. Only stored fields with a column can be ordered by.
func ParseOrder(m *schema.Model, order string) ([]OrderTerm, error) {
	if strings.TrimSpace(order) == "" {
		order = "id"
	}
	var terms []OrderTerm
	for _, part := range strings.Split(order, ",") {
		words := strings.Fields(part)
		if len(words) == 0 || len(words) > 2 {
			return nil, fmt.Errorf("invalid order %q", order)
		}
		var term OrderTerm
		if len(words) == 2 {
			switch strings.ToLower(words[1]) {
			case "asc":
			case "desc":
				term.Desc = true
			default:
				return nil, fmt.Errorf("invalid order %q", order)
			}
		}
		f, ok := m.Field(words[0])
		if !ok || !f.HasColumn() {
			return nil, fmt.Errorf("cannot order %s by %q", m.Name, words[0])
		}
		term.Field = f
		terms = append(terms, term)
	}
	return terms, nil
}

// OrderBy renders an order clause for the table aliased alias.
// Unset values come last in both directions and ties are broken by id.
// Translated columns are ordered by their en_US text.
func (b *Builder) OrderBy(m *schema.Model, alias, order string) (SQL, error) {
	terms, err := ParseOrder(m, order)
	if err != nil {
		return SQL{}, err
	}
	items := make([]SQL, 0, len(terms)+1)
	hasID := false
	for _, t := range terms {
		column := Ident(alias, t.Field.Name)
		if t.Field.Translate {
			column = b.Dialect.Translated(column, "en_US")
		}
		direction := "ASC"
		if t.Desc {
			direction = "DESC"
		}
		items = append(items, Sprintf("%s "+direction+" NULLS LAST", column))
		hasID = hasID || t.Field.Name == "id"
	}
	if !hasID {
		items = append(items, Ident(alias, "id"))
	}
	return Join(", ", items...), nil
}
