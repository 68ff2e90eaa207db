// Package testutil provides the shared fixtures of the package tests: a
// small partner registry, its dataset, and deterministic search ids.
package testutil

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/domex/internal/domain"
	"github.com/roach88/domex/internal/records"
	"github.com/roach88/domex/internal/schema"
)

//go:embed fixtures/models.cue
var modelsCUE []byte

//go:embed fixtures/dataset.yaml
var datasetYAML []byte

// Registry loads the fixture models:
//
//	res.country           translated name, code
//	res.partner.category  tree without parent_path
//	res.partner           tree with parent_path, every field type
//	res.users             inherits res.partner through partner_id
//
// res.partner.is_company is computed from company_type and searchable.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	reg, err := LoadRegistry()
	require.NoError(t, err)
	return reg
}

// LoadRegistry is Registry outside of tests.
func LoadRegistry() (*schema.Registry, error) {
	reg, err := schema.Load("models.cue", modelsCUE)
	if err != nil {
		return nil, err
	}
	f, ok := reg.MustModel("res.partner").Field("is_company")
	if !ok {
		return nil, fmt.Errorf("fixture models lack res.partner.is_company")
	}
	f.Search = schema.SearchFunc(searchIsCompany)
	return reg, nil
}

// searchIsCompany resolves is_company in / not in {True, False} on
// company_type.
func searchIsCompany(operator string, value any) (domain.Domain, error) {
	set, ok := value.(domain.Set)
	if !ok || (operator != domain.OpIn && operator != domain.OpNotIn) {
		return nil, fmt.Errorf("unsupported condition is_company %s %v", operator, value)
	}
	company, person := set.Has(true), set.Has(false)
	if operator == domain.OpNotIn {
		company, person = !company, !person
	}
	companies := domain.MustSet("company")
	switch {
	case company && person:
		return domain.True, nil
	case company:
		return domain.Raw("company_type", domain.OpIn, companies), nil
	case person:
		return domain.Raw("company_type", domain.OpNotIn, companies), nil
	}
	return domain.False, nil
}

// Dataset loads the fixture records for reg, which must come from
// Registry.
func Dataset(t testing.TB, reg *schema.Registry) *records.Dataset {
	t.Helper()
	ds, err := records.Load(reg, datasetYAML)
	require.NoError(t, err)
	return ds
}

// WriteFixtures writes the fixture model and dataset files to a temporary
// directory and returns their paths.
func WriteFixtures(t testing.TB) (modelsPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	modelsPath = filepath.Join(dir, "models.cue")
	dataPath = filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(modelsPath, modelsCUE, 0o644))
	require.NoError(t, os.WriteFile(dataPath, datasetYAML, 0o644))
	return modelsPath, dataPath
}

// Partner ids of the fixture dataset.
const (
	Acme int64 = iota + 1
	TestA
	TestB
	Zola
	Other
	Zoe
)
