package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kasuganosora/gildedrose/stock"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for catalog files that are neither YAML
// nor JSON.
var ErrUnsupportedFormat = errors.New("resource: unsupported catalog format")

// Catalog is the on-disk shape of a seed file:
//
//	items:
//	  - name: Aged Brie
//	    sell_in: 2
//	    quality: 0
type Catalog struct {
	Items []stock.Item `json:"items" yaml:"items"`
}

// LoadCatalog reads a seed catalog. An empty path yields the built-in
// reference shelf.
func LoadCatalog(path string) ([]stock.Item, error) {
	if path == "" {
		return stock.DefaultFixture(), nil
	}
	var cat Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := loadFile(path, &cat, yaml.Unmarshal); err != nil {
			return nil, err
		}
	case ".json":
		if err := loadFile(path, &cat, json.Unmarshal); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	for i, it := range cat.Items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("resource: %s: item %d has no name", path, i)
		}
	}
	return cat.Items, nil
}

func loadFile[T any](path string, out *T, unmarshal func([]byte, any) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", path, err)
	}
	if err := unmarshal(data, out); err != nil {
		return fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return nil
}
