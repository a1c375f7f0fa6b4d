package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"gopkg.in/yaml.v3"
)

// ItemsFile is the on-disk layout of an item import file
type ItemsFile struct {
	Items []models.ItemInput `toml:"items" yaml:"items"`
}

// ParseItemsFile decodes TOML or YAML content based on the file extension
func ParseItemsFile(path string, data []byte) (*ItemsFile, error) {
	var file ItemsFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML items file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML items file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported items file extension: %s", filepath.Ext(path))
	}

	return &file, nil
}

// LoadItemsFromFile upserts every valid item in the file and returns how many were stored.
// A missing file is not an error; invalid entries are skipped with a warning.
func LoadItemsFromFile(ctx context.Context, catalog interfaces.CatalogStorage, path string, logger arbor.ILogger) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("file", path).Msg("Items file does not exist, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read items file: %w", err)
	}

	file, err := ParseItemsFile(path, data)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for i, input := range file.Items {
		item := input.ToItem()
		if item.ID == "" {
			logger.Warn().Int("index", i).Str("file", path).Msg("Item without id skipped")
			continue
		}
		if err := catalog.Upsert(ctx, item); err != nil {
			logger.Warn().Err(err).Str("item_id", item.ID).Str("file", path).Msg("Failed to load item")
			continue
		}
		loaded++
	}

	logger.Info().Str("file", path).Int("loaded", loaded).Int("declared", len(file.Items)).Msg("Items loaded from file")
	return loaded, nil
}
