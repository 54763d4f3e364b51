package provider

import (
	_ "embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogEntry is one curated event page.
type CatalogEntry struct {
	URL         string   `yaml:"url" json:"url"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Country     string   `yaml:"country,omitempty" json:"country,omitempty"`
	City        string   `yaml:"city,omitempty" json:"city,omitempty"`
	Date        string   `yaml:"date,omitempty" json:"date,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Catalog is the curated set behind the local provider.
type Catalog struct {
	Entries []CatalogEntry `yaml:"entries"`
}

// DefaultCatalog parses the embedded curated catalog.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog from an external YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eserrors.New(eserrors.ErrCodeConfigNotFound,
				"catalog file not found: "+path, err)
		}
		return nil, eserrors.ConfigError("read catalog file "+path, err)
	}
	return parseCatalog(data)
}

// parseCatalog decodes and normalizes: entries without a URL are dropped,
// country codes upper-cased, whitespace trimmed.
func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eserrors.ConfigError("catalog is not valid YAML", err)
	}

	kept := make([]CatalogEntry, 0, len(c.Entries))
	for _, e := range c.Entries {
		e.URL = strings.TrimSpace(e.URL)
		if e.URL == "" {
			continue
		}
		e.Title = strings.TrimSpace(e.Title)
		e.Country = strings.ToUpper(strings.TrimSpace(e.Country))
		e.City = strings.TrimSpace(e.City)
		e.Date = strings.TrimSpace(e.Date)
		kept = append(kept, e)
	}
	c.Entries = kept
	return &c, nil
}
