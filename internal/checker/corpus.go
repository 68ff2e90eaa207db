package checker

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Corpus is a named list of search cases, checked against a database and
// the in-memory evaluator.
//
//	name: partners
//	cases:
//	  - name: ilike on name
//	    model: res.partner
//	    domain: "[('name', 'ilike', 'acme')]"
//	    expect: [1]
type Corpus struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Cases       []Case `yaml:"cases"`
}

// Case is one search.
type Case struct {
	Name  string `yaml:"name"`
	Model string `yaml:"model"`

	// Domain is in textual flat-list form.
	Domain string `yaml:"domain"`

	// Order is a search order such as "name desc"; "id" when empty.
	Order string `yaml:"order,omitempty"`

	// Expect, when present, is the exact id list both backends must
	// return. An empty list expects no match.
	Expect []int64 `yaml:"expect,omitempty"`

	// Error expects both backends to reject the search.
	Error bool `yaml:"error,omitempty"`
}

// LoadCorpus reads a corpus YAML file. Unknown keys are rejected.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes and validates a corpus.
func ParseCorpus(data []byte) (*Corpus, error) {
	var c Corpus
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if err := validateCorpus(&c); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}
	return &c, nil
}

func validateCorpus(c *Corpus) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(c.Cases))
	for i, tc := range c.Cases {
		switch {
		case tc.Name == "":
			return fmt.Errorf("cases[%d]: name is required", i)
		case seen[tc.Name]:
			return fmt.Errorf("cases[%d]: duplicate name %q", i, tc.Name)
		case tc.Model == "":
			return fmt.Errorf("cases[%d]: model is required", i)
		case tc.Domain == "":
			return fmt.Errorf("cases[%d]: domain is required (use [] for all records)", i)
		case tc.Error && tc.Expect != nil:
			return fmt.Errorf("cases[%d]: expect and error are exclusive", i)
		}
		seen[tc.Name] = true
	}
	return nil
}
