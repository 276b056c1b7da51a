package reward

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is one reward type a user can be granted. The catalog is
// configuration: the built-in default matches the launch promotion and can be
// replaced by a YAML file.
type CatalogEntry struct {
	Type   string  `yaml:"type" json:"type"`
	Amount float64 `yaml:"amount" json:"amount"`
}

func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Type: "10$ Amazon Gift Card", Amount: 10},
		{Type: "10$ Starbucks Gift Card", Amount: 10},
		{Type: "10$ Target Gift Card", Amount: 10},
	}
}

// LoadCatalog reads reward types from a YAML file of the form:
//
//   - type: "10$ Amazon Gift Card"
//     amount: 10
func LoadCatalog(path string) ([]CatalogEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reward: read catalog: %w", err)
	}
	var entries []CatalogEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("reward: parse catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("reward: catalog %s is empty", path)
	}
	for i, e := range entries {
		if e.Type == "" || e.Amount <= 0 {
			return nil, fmt.Errorf("reward: catalog entry %d needs a type and a positive amount", i)
		}
	}
	return entries, nil
}
