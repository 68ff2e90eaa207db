package querysql

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/schema"
)

// AttachmentTable holds the binary fields stored as attachments, one row
// per (res_model, res_field, res_id).
const AttachmentTable = "ir_attachment"

// Builder compiles optimized domains to parameterized SQL conditions.
//
// CRITICAL: the domain must be fully optimized first. Anything the
// optimizer would have rewritten (dotted paths, sugar operators, computed
// fields) is an *InvariantError here.
// CRITICAL: values are always parameters, never interpolated.
type Builder struct {
	Registry *schema.Registry
	Dialect  Dialect

	// Unaccent makes ilike accent-insensitive.
	Unaccent bool

	// Lang selects the translation read from translated columns.
	Lang string

	Logger *slog.Logger
}

// NewBuilder creates a builder with unaccent on and the en_US language.
func NewBuilder(reg *schema.Registry, dialect Dialect) *Builder {
	return &Builder{
		Registry: reg,
		Dialect:  dialect,
		Unaccent: true,
		Lang:     "en_US",
	}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *Builder) lang() string {
	if b.Lang == "" {
		return "en_US"
	}
	return b.Lang
}

// SearchQuery builds the query selecting the ids of m's records that
// satisfy d.
func (b *Builder) SearchQuery(d domain.Domain, m *schema.Model) (*Query, error) {
	q := NewQuery(m.Table)
	if err := b.Build(d, m, q.Alias, q); err != nil {
		return nil, err
	}
	b.logger().Debug("built search query", "model", m.Name, "where", q.Where().Text())
	return q, nil
}

// Build adds the condition of d on the table aliased alias to q. A True
// domain adds nothing.
func (b *Builder) Build(d domain.Domain, m *schema.Model, alias string, q *Query) error {
	if d == domain.Domain(domain.True) {
		return nil
	}
	cond, err := b.ToSQL(d, m, alias, q)
	if err != nil {
		return err
	}
	q.AddWhere(cond)
	return nil
}

// ToSQL returns the condition of d on the table aliased alias. Joins that
// the condition needs are added to q.
func (b *Builder) ToSQL(d domain.Domain, m *schema.Model, alias string, q *Query) (SQL, error) {
	switch x := d.(type) {
	case domain.Const:
		return constSQL(x.Truthy()), nil
	case *domain.Negation:
		child, err := b.ToSQL(x.Child(), m, alias, q)
		if err != nil {
			return SQL{}, err
		}
		// NULL is not TRUE: the negation stays the exact complement
		return Sprintf("(%s) IS NOT TRUE", child), nil
	case *domain.Nary:
		children := x.Children()
		if len(children) < 2 {
			return SQL{}, newInvariantError("%s node with %d children", x.Op(), len(children))
		}
		parts := make([]SQL, len(children))
		for i, c := range children {
			part, err := b.ToSQL(c, m, alias, q)
			if err != nil {
				return SQL{}, err
			}
			parts[i] = part
		}
		return Sprintf("(%s)", Join(x.Op().Joiner(), parts...)), nil
	case *domain.Leaf:
		cond, err := b.leaf(x, m, alias, q)
		var ie *InvariantError
		if errors.As(err, &ie) && ie.Condition == "" {
			ie.Condition = x.String()
		}
		return cond, err
	}
	return SQL{}, newInvariantError("unsupported domain node %T", d)
}

func (b *Builder) leaf(l *domain.Leaf, m *schema.Model, alias string, q *Query) (SQL, error) {
	op := l.Operator()
	if !domain.IsStandard(op) {
		return SQL{}, newInvariantError("non-standard operator %q", op)
	}
	f, ok := m.Field(l.Field())
	if !ok {
		return SQL{}, newInvariantError("no field %q on %s", l.Field(), m.Name)
	}
	if !f.Store {
		return SQL{}, newInvariantError("field %s is not stored", f)
	}

	switch {
	case f.Type == schema.Binary && f.Attachment:
		return b.attachment(f, op, l.Value(), alias)
	case f.Type.IsX2Many():
		return b.x2many(f, op, l.Value(), alias)
	case f.Type == schema.Many2one && (op == domain.OpAny || op == domain.OpNone):
		return b.many2one(f, op, l.Value(), alias, q)
	}

	column := b.column(f, alias)
	switch {
	case op == domain.OpAny || op == domain.OpNone:
		// id any <query>
		sub, ok := l.Value().(domain.Query)
		if !ok {
			return SQL{}, newInvariantError("operator %q on scalar field %s needs a query", op, f)
		}
		return Sprintf("%s "+inKeyword(op == domain.OpAny)+" %s", column, subselectOf(sub)), nil
	case op == domain.OpIn || op == domain.OpNotIn:
		set, ok := l.Value().(domain.Set)
		if !ok {
			return SQL{}, newInvariantError("operator %q needs a set", op)
		}
		return b.membership(f, column, op == domain.OpIn, set), nil
	case domain.IsLike(op):
		pattern, ok := l.Value().(string)
		if !ok {
			return SQL{}, newInvariantError("operator %q needs a string", op)
		}
		return b.like(f, column, op, pattern), nil
	case domain.IsInequality(op):
		return b.inequality(f, column, op, l.Value())
	}
	return SQL{}, newInvariantError("operator %q cannot be used on %s", op, f)
}

// column is the SQL expression of a scalar field.
func (b *Builder) column(f *schema.Field, alias string) SQL {
	column := Ident(alias, f.Name)
	if f.Translate {
		return b.Dialect.Translated(column, b.lang())
	}
	return column
}

func constSQL(b bool) SQL {
	if b {
		return Raw("TRUE")
	}
	return Raw("FALSE")
}

func inKeyword(positive bool) string {
	if positive {
		return "IN"
	}
	return "NOT IN"
}

func subselectOf(q domain.Query) SQL {
	if own, ok := q.(*Query); ok {
		return own.Subquery()
	}
	text, params := q.SubSelect()
	return SQL{text: text, params: params}
}

// membership renders in / not in. False stands for NULL, and so does the
// falsy value of the field type: an unset integer equals 0.
func (b *Builder) membership(f *schema.Field, column SQL, positive bool, set domain.Set) SQL {
	if set.Len() == 0 {
		return constSQL(!positive)
	}
	if f.Type == schema.Boolean && set.Len() == 1 && set.Has(true) {
		if positive {
			return Sprintf("%s = %s", column, Param(true))
		}
		return Sprintf("(%s IS NULL OR %s = %s)", column, column, Param(false))
	}

	var params []any
	nullIn := false
	for _, v := range set.Values() {
		if v == false {
			nullIn = true
			continue
		}
		params = append(params, v)
	}
	if falsy, ok := f.FalsyValue(); ok {
		if containsValue(params, falsy) {
			nullIn = true
		} else if nullIn {
			params = append(params, falsy)
		}
	}

	var cond SQL
	if len(params) > 0 {
		cond = Sprintf("%s "+inKeyword(positive)+" %s", column, List(params))
	}
	if positive == nullIn {
		// f in {v, False}  => f IN (v) OR f IS NULL
		// f not in {v}     => f NOT IN (v) OR f IS NULL
		isNull := Sprintf("%s IS NULL", column)
		if cond.IsZero() {
			return isNull
		}
		return Sprintf("(%s OR %s)", cond, isNull)
	}
	if cond.IsZero() {
		// f not in {False}
		return Sprintf("%s IS NOT NULL", column)
	}
	return cond
}

// containsValue compares numbers by value, as the database does.
func containsValue(values []any, v any) bool {
	n, isNumber := numeric(v)
	for _, x := range values {
		if domain.ValueEqual(x, v) {
			return true
		}
		if m, ok := numeric(x); ok && isNumber && m == n {
			return true
		}
	}
	return false
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case int64, float64:
		return number(v)
	}
	return 0, false
}

func (b *Builder) like(f *schema.Field, column SQL, op, pattern string) SQL {
	left := column
	if !f.Type.IsText() && !f.Translate {
		left = b.Dialect.TextCast(column)
	}
	if !strings.Contains(op, "=") {
		pattern = "%" + pattern + "%"
	}
	negative := strings.HasPrefix(op, "not ")

	var cond SQL
	if strings.HasSuffix(op, "ilike") {
		keyword := b.Dialect.ILike()
		if negative {
			keyword = "NOT " + keyword
		}
		cond = Sprintf("%s "+keyword+" %s ESCAPE '\\'",
			b.Dialect.Fold(left, b.Unaccent), b.Dialect.Fold(Param(pattern), b.Unaccent))
	} else {
		keyword := "LIKE"
		if negative {
			keyword = "NOT LIKE"
		}
		cond = Sprintf("%s "+keyword+" %s ESCAPE '\\'", left, Param(pattern))
	}
	if negative {
		return Sprintf("(%s OR %s IS NULL)", cond, column)
	}
	return cond
}

// inequality compares to a single value. When the field's falsy value
// satisfies the comparison, unset values do as well.
func (b *Builder) inequality(f *schema.Field, column SQL, op string, value any) (SQL, error) {
	switch value.(type) {
	case domain.Set, domain.Domain, domain.Query:
		return SQL{}, newInvariantError("operator %q needs a single value", op)
	}
	canBeNull := false
	if falsy, ok := f.FalsyValue(); ok {
		if value == false {
			value = falsy
		}
		holds, err := compare(op, falsy, value)
		if err != nil {
			return SQL{}, newInvariantError("%v", err)
		}
		canBeNull = holds
	}
	cond := Sprintf("%s "+op+" %s", column, Param(value))
	if canBeNull {
		return Sprintf("(%s OR %s IS NULL)", cond, column), nil
	}
	return cond, nil
}

// compare evaluates a op b for the falsy values of numbers and booleans.
func compare(op string, a, b any) (bool, error) {
	x, okA := number(a)
	y, okB := number(b)
	if !okA || !okB {
		return false, fmt.Errorf("cannot compare %v with %v", a, b)
	}
	switch op {
	case domain.OpLT:
		return x < y, nil
	case domain.OpLE:
		return x <= y, nil
	case domain.OpGT:
		return x > y, nil
	case domain.OpGE:
		return x >= y, nil
	}
	return false, fmt.Errorf("not an inequality: %q", op)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// attachment renders the existence check of a binary stored as an
// attachment. Only in / not in {False} is meaningful.
func (b *Builder) attachment(f *schema.Field, op string, value any, alias string) (SQL, error) {
	set, ok := value.(domain.Set)
	if !ok || set.Len() != 1 || !set.Has(false) || (op != domain.OpIn && op != domain.OpNotIn) {
		return SQL{}, newInvariantError("attachment field %s only supports existence checks", f)
	}
	exists := Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s = %s AND %s = %s AND %s = %s)",
		Ident(AttachmentTable),
		Ident(AttachmentTable, "res_model"), Param(f.Model().Name),
		Ident(AttachmentTable, "res_field"), Param(f.Name),
		Ident(AttachmentTable, "res_id"), Ident(alias, "id"))
	if op == domain.OpIn {
		return Sprintf("NOT %s", exists), nil
	}
	return exists, nil
}

// many2one renders any / none on a many2one. With auto_join, any becomes a
// LEFT JOIN of the comodel; otherwise the foreign key is compared to a
// subquery.
func (b *Builder) many2one(f *schema.Field, op string, value any, alias string, q *Query) (SQL, error) {
	comodel, err := f.Comodel()
	if err != nil {
		return SQL{}, newInvariantError("%v", err)
	}
	fk := Ident(alias, f.Name)
	positive := op == domain.OpAny
	canBeNull := !f.Required

	var subselect SQL
	switch v := value.(type) {
	case domain.Query:
		subselect = subselectOf(v)
	case domain.Domain:
		if v == domain.Domain(domain.True) {
			if positive {
				return Sprintf("%s IS NOT NULL", fk), nil
			}
			return Sprintf("%s IS NULL", fk), nil
		}
		coalias := MakeAlias(alias, f.Name)
		if f.AutoJoin && positive {
			if err := q.AddJoin(LeftJoin, coalias, comodel.Table, Sprintf("%s = %s", fk, Ident(coalias, "id"))); err != nil {
				return SQL{}, err
			}
			cond, err := b.ToSQL(v, comodel, coalias, q)
			if err != nil {
				return SQL{}, err
			}
			if canBeNull {
				return Sprintf("(%s IS NOT NULL AND %s)", fk, cond), nil
			}
			return cond, nil
		}
		coquery, err := b.coquery(v, comodel, coalias)
		if err != nil {
			return SQL{}, err
		}
		if coquery.IsEmpty() {
			return constSQL(!positive), nil
		}
		subselect = coquery.Subquery()
	default:
		return SQL{}, newInvariantError("operator %q needs a domain or a query", op)
	}

	cond := Sprintf("%s "+inKeyword(positive)+" %s", fk, subselect)
	if canBeNull && !positive {
		return Sprintf("(%s IS NULL OR %s)", fk, cond), nil
	}
	return cond, nil
}

// coquery builds the query of the comodel records satisfying d.
func (b *Builder) coquery(d domain.Domain, comodel *schema.Model, alias string) (*Query, error) {
	cq := &Query{Table: comodel.Table, Alias: alias}
	if err := b.Build(d, comodel, alias, cq); err != nil {
		return nil, err
	}
	return cq, nil
}

// x2many renders conditions on one2many and many2many fields, which all
// reduce to the existence of a related record in a coquery.
func (b *Builder) x2many(f *schema.Field, op string, value any, alias string) (SQL, error) {
	comodel, err := f.Comodel()
	if err != nil {
		return SQL{}, newInvariantError("%v", err)
	}
	exists := op == domain.OpIn || op == domain.OpAny
	coalias := MakeAlias(alias, f.Name)

	var coquery *Query
	switch v := value.(type) {
	case domain.Set:
		if op != domain.OpIn && op != domain.OpNotIn {
			return SQL{}, newInvariantError("operator %q needs a domain or a query", op)
		}
		if v.Has(false) {
			rest := v.Filter(func(x any) bool { return x != false })
			if rest.Len() > 0 {
				// records with one of the ids, or with none at all
				nulls, err := b.x2many(f, op, domain.MustSet(false), alias)
				if err != nil {
					return SQL{}, err
				}
				others, err := b.x2many(f, op, rest, alias)
				if err != nil {
					return SQL{}, err
				}
				if exists {
					return Sprintf("(%s OR %s)", nulls, others), nil
				}
				return Sprintf("(%s AND %s)", nulls, others), nil
			}
			// in {False} => none (True); not in {False} => any (True)
			exists = !exists
			coquery = &Query{Table: comodel.Table, Alias: coalias}
			break
		}
		if v.Len() == 0 {
			return constSQL(!exists), nil
		}
		coquery = &Query{Table: comodel.Table, Alias: coalias}
		coquery.AddWhere(Sprintf("%s IN %s", Ident(coalias, "id"), List(v.Values())))
	case domain.Query:
		if op != domain.OpAny && op != domain.OpNone {
			return SQL{}, newInvariantError("operator %q needs a set", op)
		}
		coquery = &Query{Table: comodel.Table, Alias: coalias}
		coquery.AddWhere(Sprintf("%s IN %s", Ident(coalias, "id"), subselectOf(v)))
	case domain.Domain:
		if op != domain.OpAny && op != domain.OpNone {
			return SQL{}, newInvariantError("operator %q needs a set", op)
		}
		coquery, err = b.coquery(v, comodel, coalias)
		if err != nil {
			return SQL{}, err
		}
	default:
		return SQL{}, newInvariantError("unsupported value %v", value)
	}

	if coquery.IsEmpty() {
		return constSQL(!exists), nil
	}
	if f.Type == schema.One2many {
		return b.one2many(f, comodel, exists, coquery, alias)
	}
	return b.many2many(f, exists, coquery, alias), nil
}

func (b *Builder) one2many(f *schema.Field, comodel *schema.Model, exists bool, coquery *Query, alias string) (SQL, error) {
	inverse, ok := comodel.Field(f.InverseName)
	if !ok || !inverse.HasColumn() {
		return SQL{}, newInvariantError("inverse %q of %s has no column", f.InverseName, f)
	}
	inv := Ident(coquery.Alias, inverse.Name)
	if exists {
		if !inverse.Required {
			coquery.AddWhere(Sprintf("%s IS NOT NULL", inv))
		}
		return Sprintf("%s IN %s", Ident(alias, "id"), coquery.Subquery(inv)), nil
	}
	coquery.where = append([]SQL{Sprintf("%s = %s", inv, Ident(alias, "id"))}, coquery.where...)
	return Sprintf("NOT EXISTS %s", coquery.Subquery(Raw("1"))), nil
}

func (b *Builder) many2many(f *schema.Field, exists bool, coquery *Query, alias string) SQL {
	relAlias := MakeAlias(alias, f.RelationTable)
	prefix := ""
	if !exists {
		prefix = "NOT "
	}
	link := Sprintf("%s = %s", Ident(relAlias, f.Column1), Ident(alias, "id"))
	if coquery.Where().IsZero() && len(coquery.joins) == 0 {
		// every bridge row points to an existing record
		return Sprintf(prefix+"EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
			Ident(f.RelationTable), Ident(relAlias), link)
	}
	return Sprintf(prefix+"EXISTS (SELECT 1 FROM %s AS %s WHERE %s AND %s IN %s)",
		Ident(f.RelationTable), Ident(relAlias), link, Ident(relAlias, f.Column2), coquery.Subquery())
}
