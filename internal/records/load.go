package records

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/domex/internal/schema"
)

// file is the YAML layout of a dataset:
//
//	records:
//	  res.partner:
//	    - {id: 1, name: Acme, is_company: true}
//	    - {id: 2, name: Jane, parent_id: 1}
type file struct {
	Records map[string][]map[string]any `yaml:"records"`
}

// LoadFile reads a YAML dataset for the registry's models.
func LoadFile(reg *schema.Registry, path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Load(reg, data)
}

// Load parses a YAML dataset. Models are inserted in registry order and
// records in file order; unknown models and fields are rejected.
func Load(reg *schema.Registry, data []byte) (*Dataset, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	for model := range f.Records {
		if _, ok := reg.Model(model); !ok {
			return nil, fmt.Errorf("dataset: unknown model %q", model)
		}
	}

	ds := NewDataset(reg)
	for _, m := range reg.Models() {
		for i, values := range f.Records[m.Name] {
			id, ok := toInt(values["id"])
			if !ok {
				return nil, fmt.Errorf("dataset: %s record %d has no integer id", m.Name, i)
			}
			if err := ds.Insert(m.Name, id, values); err != nil {
				return nil, fmt.Errorf("dataset: %w", err)
			}
		}
	}
	if err := ds.Complete(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	return ds, nil
}
