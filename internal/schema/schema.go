package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the semantic type of a field.
type FieldType string

const (
	Boolean   FieldType = "boolean"
	Integer   FieldType = "integer"
	Float     FieldType = "float"
	Monetary  FieldType = "monetary"
	Char      FieldType = "char"
	Text      FieldType = "text"
	HTML      FieldType = "html"
	Selection FieldType = "selection"
	Date      FieldType = "date"
	Datetime  FieldType = "datetime"
	Binary    FieldType = "binary"
	Many2one  FieldType = "many2one"
	One2many  FieldType = "one2many"
	Many2many FieldType = "many2many"
)

var knownTypes = map[FieldType]bool{
	Boolean: true, Integer: true, Float: true, Monetary: true,
	Char: true, Text: true, HTML: true, Selection: true,
	Date: true, Datetime: true, Binary: true,
	Many2one: true, One2many: true, Many2many: true,
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool { return knownTypes[t] }

// IsRelational reports whether values of t are records of another model.
func (t FieldType) IsRelational() bool {
	return t == Many2one || t == One2many || t == Many2many
}

// IsX2Many reports whether t is multi-valued.
func (t FieldType) IsX2Many() bool { return t == One2many || t == Many2many }

// IsText reports whether the column holds text, so pattern matching needs
// no cast.
func (t FieldType) IsText() bool {
	switch t {
	case Char, Text, HTML, Selection:
		return true
	}
	return false
}

// FalsyValue returns the value that an unset field of type t is treated as
// equal to, if any. Unset numbers behave as 0 and unset booleans as false.
func (t FieldType) FalsyValue() (any, bool) {
	switch t {
	case Integer:
		return int64(0), true
	case Float, Monetary:
		return float64(0), true
	case Boolean:
		return false, true
	}
	return nil, false
}

// Field is the metadata of one field of a model.
type Field struct {
	Name string
	Type FieldType

	// Store is false for computed fields, which have no column.
	Store bool

	// Relation is the comodel name of a relational field.
	Relation string

	// InverseName is the many2one on the comodel backing a one2many.
	InverseName string

	// RelationTable, Column1 and Column2 describe the bridge table of a
	// many2many: Column1 references this model, Column2 the comodel.
	RelationTable string
	Column1       string
	Column2       string

	Translate  bool
	Required   bool
	Index      bool
	AutoJoin   bool
	Attachment bool

	// Inherited marks a field delegated to a parent model through the
	// link field given by Related ("partner_id.name").
	Inherited bool

	// Related is the dotted path a related field reads from.
	Related string

	// Search resolves conditions on a non-stored field.
	Search SearchDelegate

	model *Model
}

// Model returns the model owning the field.
func (f *Field) Model() *Model { return f.model }

// IsRelational reports whether the field points to another model.
func (f *Field) IsRelational() bool { return f.Type.IsRelational() }

// FalsyValue is the field type's falsy value.
func (f *Field) FalsyValue() (any, bool) { return f.Type.FalsyValue() }

// HasColumn reports whether the field is stored as a column of the model's
// table.
func (f *Field) HasColumn() bool {
	if !f.Store || f.Type.IsX2Many() {
		return false
	}
	return !(f.Type == Binary && f.Attachment)
}

// Comodel returns the target model of a relational field.
func (f *Field) Comodel() (*Model, error) {
	if !f.IsRelational() {
		return nil, fmt.Errorf("field %s is not relational", f.qualified())
	}
	if f.model == nil || f.model.registry == nil {
		return nil, fmt.Errorf("field %s is not attached to a registry", f.qualified())
	}
	return f.model.registry.lookup(f.Relation)
}

func (f *Field) qualified() string {
	if f.model == nil {
		return f.Name
	}
	return f.model.Name + "." + f.Name
}

func (f *Field) String() string { return f.qualified() }

// Model is the metadata of a model: its table and fields.
type Model struct {
	Name  string
	Table string

	// RecName names the field that display_name searches delegate to.
	RecName string

	// ParentName names the many2one forming the model's tree, if any.
	ParentName string

	// ParentStore enables the materialized parent_path column.
	ParentStore bool

	// Inherits maps parent model names to the many2one linking to them.
	Inherits map[string]string

	fields   map[string]*Field
	order    []string
	registry *Registry
}

// NewModel creates a model. The table defaults to the model name with dots
// replaced by underscores.
func NewModel(name, table string) *Model {
	if table == "" {
		table = strings.ReplaceAll(name, ".", "_")
	}
	return &Model{Name: name, Table: table, fields: make(map[string]*Field)}
}

// AddField adds or replaces a field and returns the model for chaining.
func (m *Model) AddField(f *Field) *Model {
	f.model = m
	if _, ok := m.fields[f.Name]; !ok {
		m.order = append(m.order, f.Name)
	}
	m.fields[f.Name] = f
	return m
}

// Field looks up a field by name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Fields returns the fields in declaration order.
func (m *Model) Fields() []*Field {
	out := make([]*Field, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.fields[name])
	}
	return out
}

// Registry returns the registry the model belongs to.
func (m *Model) Registry() *Registry { return m.registry }

// Registry holds all models. It is built once, set up, and then only read.
type Registry struct {
	models map[string]*Model
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Add registers a model. Call Setup once all models are added.
func (r *Registry) Add(m *Model) error {
	if m.Name == "" {
		return fmt.Errorf("model without a name")
	}
	if _, dup := r.models[m.Name]; dup {
		return fmt.Errorf("model %s registered twice", m.Name)
	}
	m.registry = r
	r.models[m.Name] = m
	r.order = append(r.order, m.Name)
	return nil
}

// Model looks up a model by name.
func (r *Registry) Model(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// MustModel is Model for names known to exist.
func (r *Registry) MustModel(name string) *Model {
	m, err := r.lookup(name)
	if err != nil {
		panic(err)
	}
	return m
}

func (r *Registry) lookup(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return m, nil
}

// Models returns the models in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Setup completes the metadata once every model is registered:
//   - adds the implicit id and display_name fields
//   - copies inherited fields from parent models
//   - fills default many2many bridge tables and columns
//   - attaches search delegates to related and display_name fields
//   - checks that relations, inverses and related paths resolve
func (r *Registry) Setup() error {
	for _, m := range r.Models() {
		if _, ok := m.fields["id"]; !ok {
			m.AddField(&Field{Name: "id", Type: Integer, Store: true, Required: true, Index: true})
		}
	}

	for _, m := range r.Models() {
		if err := r.setupInherits(m); err != nil {
			return err
		}
	}

	for _, m := range r.Models() {
		if m.RecName == "" {
			if _, ok := m.fields["name"]; ok {
				m.RecName = "name"
			}
		}
		if _, ok := m.fields["display_name"]; !ok {
			f := &Field{Name: "display_name", Type: Char}
			if m.RecName != "" {
				f.Search = NameSearch(m.RecName)
			}
			m.AddField(f)
		}
		if m.ParentStore {
			if m.ParentName == "" {
				return fmt.Errorf("model %s: parent_store requires parent_name", m.Name)
			}
			if _, ok := m.fields["parent_path"]; !ok {
				m.AddField(&Field{Name: "parent_path", Type: Char, Store: true, Index: true})
			}
		}
	}

	for _, m := range r.Models() {
		for _, f := range m.Fields() {
			if err := r.setupField(m, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) setupInherits(m *Model) error {
	parents := make([]string, 0, len(m.Inherits))
	for parent := range m.Inherits {
		parents = append(parents, parent)
	}
	sort.Strings(parents)

	for _, parent := range parents {
		link := m.Inherits[parent]
		pm, err := r.lookup(parent)
		if err != nil {
			return fmt.Errorf("model %s inherits: %w", m.Name, err)
		}
		lf, ok := m.fields[link]
		if !ok || lf.Type != Many2one || lf.Relation != parent {
			return fmt.Errorf("model %s inherits %s through %q, which must be a many2one to it", m.Name, parent, link)
		}
		for _, pf := range pm.Fields() {
			switch pf.Name {
			case "id", "display_name", "parent_path":
				continue
			}
			if _, exists := m.fields[pf.Name]; exists {
				continue
			}
			inherited := *pf
			inherited.Store = false
			inherited.Inherited = true
			inherited.Related = link + "." + pf.Name
			inherited.Search = nil
			m.AddField(&inherited)
		}
	}
	return nil
}

func (r *Registry) setupField(m *Model, f *Field) error {
	if !f.Type.Valid() {
		return fmt.Errorf("field %s: unknown type %q", f, f.Type)
	}
	if f.IsRelational() {
		comodel, err := r.lookup(f.Relation)
		if err != nil {
			return fmt.Errorf("field %s: %w", f, err)
		}
		switch f.Type {
		case One2many:
			inv, ok := comodel.fields[f.InverseName]
			if !ok || inv.Type != Many2one {
				return fmt.Errorf("field %s: inverse %q must be a many2one on %s", f, f.InverseName, comodel.Name)
			}
		case Many2many:
			if f.RelationTable == "" {
				tables := []string{m.Table, comodel.Table}
				sort.Strings(tables)
				f.RelationTable = fmt.Sprintf("%s_%s_rel", tables[0], tables[1])
			}
			if f.Column1 == "" {
				f.Column1 = m.Table + "_id"
			}
			if f.Column2 == "" {
				f.Column2 = comodel.Table + "_id"
			}
			if f.Column1 == f.Column2 {
				return fmt.Errorf("field %s: bridge columns must differ", f)
			}
		}
	}
	if f.Related != "" && !f.Inherited && !f.Store && f.Search == nil {
		if err := r.checkPath(m, f.Related); err != nil {
			return fmt.Errorf("field %s: %w", f, err)
		}
		f.Search = &relatedSearch{model: m, path: strings.Split(f.Related, ".")}
	}
	return nil
}

// checkPath verifies that every step but the last of a dotted path is
// relational.
func (r *Registry) checkPath(m *Model, path string) error {
	parts := strings.Split(path, ".")
	current := m
	for i, name := range parts {
		f, ok := current.fields[name]
		if !ok {
			return fmt.Errorf("related path %q: no field %q on %s", path, name, current.Name)
		}
		if i == len(parts)-1 {
			return nil
		}
		if !f.IsRelational() {
			return fmt.Errorf("related path %q: %s is not relational", path, f)
		}
		next, err := r.lookup(f.Relation)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}
