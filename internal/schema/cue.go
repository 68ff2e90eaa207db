package schema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed models.cue
var modelsSchema string

// LoadError reports a model file that does not load or does not match the
// model schema.
type LoadError struct {
	Code    LoadErrorCode
	Message string
	Pos     token.Pos
}

// LoadErrorCode categorizes load errors.
type LoadErrorCode string

const (
	// ErrCodeReadFailed indicates the file could not be read.
	ErrCodeReadFailed LoadErrorCode = "READ_FAILED"

	// ErrCodeInvalidCUE indicates a CUE syntax or unification error.
	ErrCodeInvalidCUE LoadErrorCode = "INVALID_CUE"

	// ErrCodeInvalidModel indicates metadata that is consistent CUE but not
	// a usable registry (unknown comodel, bad inverse, ...).
	ErrCodeInvalidModel LoadErrorCode = "INVALID_MODEL"
)

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadFile reads a CUE model file and returns the set-up registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}
	return Load(path, data)
}

// Load decodes CUE model metadata of the form
//
//	models: "res.partner": {
//		parent_name: "parent_id"
//		fields: {
//			name:      {type: "char", required: true}
//			parent_id: {type: "many2one", relation: "res.partner"}
//		}
//	}
//
// The document is unified with the embedded model schema, so unknown keys
// and bad field types are reported with their position.
func Load(filename string, data []byte) (*Registry, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(modelsSchema, cue.Filename("models.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := schema.Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	reg := NewRegistry()
	models, err := v.LookupPath(cue.ParsePath("models")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for models.Next() {
		m, err := decodeModel(models.Label(), models.Value())
		if err != nil {
			return nil, err
		}
		if err := reg.Add(m); err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidModel, Message: err.Error(), Pos: models.Value().Pos()}
		}
	}
	if err := reg.Setup(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidModel, Message: err.Error()}
	}
	return reg, nil
}

func decodeModel(name string, v cue.Value) (*Model, error) {
	table, err := optionalString(v, "table")
	if err != nil {
		return nil, err
	}
	m := NewModel(name, table)
	if m.RecName, err = optionalString(v, "rec_name"); err != nil {
		return nil, err
	}
	if m.ParentName, err = optionalString(v, "parent_name"); err != nil {
		return nil, err
	}
	if m.ParentStore, err = optionalBool(v, "parent_store", false); err != nil {
		return nil, err
	}

	if inh := v.LookupPath(cue.ParsePath("inherits")); inh.Exists() {
		iter, err := inh.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Inherits = make(map[string]string)
		for iter.Next() {
			link, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			m.Inherits[iter.Label()] = link
		}
	}

	iter, err := v.LookupPath(cue.ParsePath("fields")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := decodeField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		m.AddField(f)
	}
	return m, nil
}

func decodeField(name string, v cue.Value) (*Field, error) {
	typ, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	f := &Field{Name: name, Type: FieldType(typ)}

	strs := []struct {
		key string
		dst *string
	}{
		{"relation", &f.Relation},
		{"inverse", &f.InverseName},
		{"relation_table", &f.RelationTable},
		{"column1", &f.Column1},
		{"column2", &f.Column2},
		{"related", &f.Related},
	}
	for _, s := range strs {
		if *s.dst, err = optionalString(v, s.key); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"translate", &f.Translate},
		{"required", &f.Required},
		{"index", &f.Index},
		{"auto_join", &f.AutoJoin},
		{"attachment", &f.Attachment},
	}
	for _, b := range bools {
		if *b.dst, err = optionalBool(v, b.key, false); err != nil {
			return nil, err
		}
	}

	// related fields are computed unless explicitly stored
	if f.Store, err = optionalBool(v, "store", f.Related == ""); err != nil {
		return nil, err
	}
	return f, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() || !fv.IsConcrete() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, key string, def bool) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() || !fv.IsConcrete() {
		return def, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeInvalidCUE, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: ErrCodeInvalidCUE, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
