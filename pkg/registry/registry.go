// Package registry holds the set of companies that reports can be generated
// for. Mass generation walks this set, and entity lookups resolve aliases
// and spelling variants to one canonical name.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"hoadon/pkg/models"
)

// Company is one known reporting entity.
type Company struct {
	Name      string   `yaml:"name"`
	TaxNumber string   `yaml:"tax_number"`
	Aliases   []string `yaml:"aliases,omitempty"`
}

// Registry is the list of known companies, in file order.
type Registry struct {
	Companies []Company `yaml:"companies"`
}

// Load reads a registry from a YAML file, expanding a leading ~. A missing
// file yields an empty registry, so unconfigured setups still run.
func Load(path string) (*Registry, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return &r, nil
}

// Names lists the canonical company names in file order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Companies))
	for i, c := range r.Companies {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a company by canonical name or alias. Matching ignores case,
// diacritics and extra whitespace.
func (r *Registry) Lookup(name string) (Company, bool) {
	key := models.NormalizeName(name)
	if key == "" {
		return Company{}, false
	}
	for _, c := range r.Companies {
		if models.NormalizeName(c.Name) == key {
			return c, true
		}
		for _, alias := range c.Aliases {
			if models.NormalizeName(alias) == key {
				return c, true
			}
		}
	}
	return Company{}, false
}

// LookupTaxNumber finds a company by its tax code.
func (r *Registry) LookupTaxNumber(tax string) (Company, bool) {
	key := models.NormalizeTaxNumber(tax)
	if key == "" {
		return Company{}, false
	}
	for _, c := range r.Companies {
		if models.NormalizeTaxNumber(c.TaxNumber) == key {
			return c, true
		}
	}
	return Company{}, false
}

// Canonical maps an alias or spelling variant to the canonical company name.
// Unknown names pass through unchanged.
func (r *Registry) Canonical(name string) string {
	if c, ok := r.Lookup(name); ok {
		return c.Name
	}
	return name
}
