package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	catalog interfaces.CatalogStorage
	history interfaces.HistoryStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return newManager(db, logger), nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	manager := &Manager{
		db:      db,
		catalog: NewCatalogStorage(db, logger),
		history: NewHistoryStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager
}

// CatalogStorage returns the tracked item store
func (m *Manager) CatalogStorage() interfaces.CatalogStorage {
	return m.catalog
}

// HistoryStorage returns the price history store
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// LoadItemsFromFile upserts the items declared in a .toml or .yaml file
func (m *Manager) LoadItemsFromFile(ctx context.Context, path string) (int, error) {
	return LoadItemsFromFile(ctx, m.catalog, path, m.logger)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
