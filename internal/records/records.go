// Package records holds materialized records in memory: the rows the
// in-memory evaluator filters and the store loads into its tables.
//
// Values are kept in their domain form: int64 ids and integers, float64,
// string, bool, civil.Date, civil.DateTime, map[string]string for
// translated text and []int64 for many2many. A missing value reads as
// false. One2many values are never stored; they are derived from the
// inverse many2one on the comodel.
package records

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/domex/internal/schema"
)

// DefaultLang is the language translated values fall back to.
const DefaultLang = "en_US"

// Record is one row of a model.
type Record struct {
	ID     int64
	values map[string]any
}

// Value returns the stored value of a field, false when unset.
func (r *Record) Value(name string) any {
	if name == "id" {
		return r.ID
	}
	if v, ok := r.values[name]; ok {
		return v
	}
	return false
}

// Collection is an ordered set of records of one model.
type Collection struct {
	Model *schema.Model

	ids     []int64
	byID    map[int64]*Record
	dataset *Dataset
}

// IDs returns the record ids in collection order.
func (c *Collection) IDs() []int64 { return slices.Clone(c.ids) }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.ids) }

// Dataset returns the dataset the collection belongs to.
func (c *Collection) Dataset() *Dataset { return c.dataset }

// Get returns the record with the given id, if it is part of the
// collection.
func (c *Collection) Get(id int64) (*Record, bool) {
	if !slices.Contains(c.ids, id) {
		return nil, false
	}
	r, ok := c.byID[id]
	return r, ok
}

// Browse returns the sub-collection of the given ids, in the order given.
// Unknown ids are skipped.
func (c *Collection) Browse(ids ...int64) *Collection {
	sub := &Collection{Model: c.Model, byID: c.byID, dataset: c.dataset}
	for _, id := range ids {
		if _, ok := c.byID[id]; ok && !slices.Contains(sub.ids, id) {
			sub.ids = append(sub.ids, id)
		}
	}
	return sub
}

// Value returns the value of a field of record id. One2many values are
// the ids of the comodel records whose inverse field points to id, in the
// comodel's collection order.
func (c *Collection) Value(id int64, name string) (any, error) {
	rec, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s(%d) does not exist", c.Model.Name, id)
	}
	f, ok := c.Model.Field(name)
	if !ok {
		return nil, fmt.Errorf("invalid field %s.%s", c.Model.Name, name)
	}
	if f.Type != schema.One2many {
		return rec.Value(name), nil
	}
	co, err := c.dataset.Collection(f.Relation)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, coid := range co.all() {
		if co.byID[coid].Value(f.InverseName) == id {
			ids = append(ids, coid)
		}
	}
	return ids, nil
}

// all returns every id of the model, not only the collection's.
func (c *Collection) all() []int64 {
	return c.dataset.collections[c.Model.Name].ids
}

// Dataset holds one collection per model of a registry.
type Dataset struct {
	Registry *schema.Registry

	collections map[string]*Collection
}

// NewDataset creates an empty dataset for the registry's models.
func NewDataset(reg *schema.Registry) *Dataset {
	ds := &Dataset{Registry: reg, collections: make(map[string]*Collection)}
	for _, m := range reg.Models() {
		ds.collections[m.Name] = &Collection{Model: m, byID: make(map[int64]*Record), dataset: ds}
	}
	return ds
}

// Collection returns all the records of a model.
func (ds *Dataset) Collection(model string) (*Collection, error) {
	c, ok := ds.collections[model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	return c, nil
}

// Insert adds a record. Values are converted to their domain form; keys
// must be stored fields of the model.
func (ds *Dataset) Insert(model string, id int64, values map[string]any) error {
	c, err := ds.Collection(model)
	if err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("%s: invalid id %d", model, id)
	}
	if _, dup := c.byID[id]; dup {
		return fmt.Errorf("%s(%d) inserted twice", model, id)
	}
	rec := &Record{ID: id, values: make(map[string]any, len(values))}
	for name, v := range values {
		if name == "id" {
			continue
		}
		f, ok := c.Model.Field(name)
		if !ok {
			return fmt.Errorf("%s(%d): invalid field %q", model, id, name)
		}
		cv, set, err := convert(f, v)
		if err != nil {
			return fmt.Errorf("%s(%d): %w", model, id, err)
		}
		if set {
			rec.values[name] = cv
		}
	}
	c.byID[id] = rec
	c.ids = append(c.ids, id)
	return nil
}

// Complete checks that every relational value points to an existing
// record and computes parent_path for models with a parent store.
func (ds *Dataset) Complete() error {
	for _, m := range ds.Registry.Models() {
		c := ds.collections[m.Name]
		for _, f := range m.Fields() {
			if f.Type != schema.Many2one && f.Type != schema.Many2many {
				continue
			}
			co := ds.collections[f.Relation]
			for _, id := range c.ids {
				for _, ref := range refs(c.byID[id].Value(f.Name)) {
					if _, ok := co.byID[ref]; !ok {
						return fmt.Errorf("%s(%d).%s: %s(%d) does not exist", m.Name, id, f.Name, f.Relation, ref)
					}
				}
			}
		}
		if m.ParentStore {
			if err := c.computeParentPaths(); err != nil {
				return err
			}
		}
	}
	return nil
}

func refs(v any) []int64 {
	switch x := v.(type) {
	case int64:
		return []int64{x}
	case []int64:
		return x
	}
	return nil
}

// computeParentPaths stores "1/4/9/" style paths: the ids from the root
// down to the record, each followed by a slash.
func (c *Collection) computeParentPaths() error {
	parent := c.Model.ParentName
	paths := make(map[int64]string, len(c.ids))
	var pathOf func(id int64, depth int) (string, error)
	pathOf = func(id int64, depth int) (string, error) {
		if p, ok := paths[id]; ok {
			return p, nil
		}
		if depth > len(c.ids) {
			return "", fmt.Errorf("%s(%d): recursion in %s", c.Model.Name, id, parent)
		}
		prefix := ""
		if pid, ok := c.byID[id].Value(parent).(int64); ok {
			p, err := pathOf(pid, depth+1)
			if err != nil {
				return "", err
			}
			prefix = p
		}
		paths[id] = prefix + strconv.FormatInt(id, 10) + "/"
		return paths[id], nil
	}
	for _, id := range c.ids {
		p, err := pathOf(id, 0)
		if err != nil {
			return err
		}
		c.byID[id].values["parent_path"] = p
	}
	return nil
}

// Translated returns the text of a value in lang, falling back to
// DefaultLang. Plain strings are returned as is.
func Translated(v any, lang string) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case map[string]string:
		if s, ok := x[lang]; ok {
			return s, true
		}
		s, ok := x[DefaultLang]
		return s, ok
	}
	return "", false
}

// ParentIDs splits a parent_path into ids.
func ParentIDs(path string) ([]int64, error) {
	var ids []int64
	for _, label := range strings.Split(strings.TrimSuffix(path, "/"), "/") {
		if label == "" {
			continue
		}
		id, err := strconv.ParseInt(label, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid parent_path %q", path)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
