package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/references.yaml
var builtin []byte

// Catalog indexes categories by id and alias. Lookups are case-insensitive
// and treat '-' and ' ' like '_'.
type Catalog struct {
	Categories []Category
	byKey      map[string]Category
}

// Parse builds a catalog from a YAML references table.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing references: %w", err)
	}
	cat := &Catalog{byKey: make(map[string]Category)}
	for _, c := range f.Categories {
		if c.ID == "" {
			return nil, fmt.Errorf("category %q has no id", c.Name)
		}
		key := normalize(c.ID)
		if _, dup := cat.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		cat.Categories = append(cat.Categories, c)
		cat.byKey[key] = c
	}
	// Aliases never shadow a real id.
	for _, c := range cat.Categories {
		for _, a := range c.Aliases {
			if _, taken := cat.byKey[normalize(a)]; !taken {
				cat.byKey[normalize(a)] = c
			}
		}
	}
	return cat, nil
}

// LoadFile reads a references table from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading references %s: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(builtin)
		if err != nil {
			panic(fmt.Sprintf("taxonomy: built-in references: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup finds a category by id or alias.
func (c *Catalog) Lookup(category string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	cat, ok := c.byKey[normalize(category)]
	return cat, ok
}

// References returns the references for a category, or nil if unknown.
func (c *Catalog) References(category string) []string {
	cat, ok := c.Lookup(category)
	if !ok {
		return nil
	}
	return cat.References()
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
