package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CatalogStorage implements interfaces.CatalogStorage for Badger
type CatalogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // serializes read-modify-write updates
}

// NewCatalogStorage creates a new CatalogStorage instance
func NewCatalogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CatalogStorage {
	return &CatalogStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CatalogStorage) find(query *badgerhold.Query) ([]*models.TrackedItem, error) {
	var items []models.TrackedItem
	if err := s.db.Store().Find(&items, query.SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	result := make([]*models.TrackedItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

// List returns every item, oldest first
func (s *CatalogStorage) List(ctx context.Context) ([]*models.TrackedItem, error) {
	return s.find(badgerhold.Where("ID").Ne(""))
}

// ListEnabled returns the enabled items, oldest first
func (s *CatalogStorage) ListEnabled(ctx context.Context) ([]*models.TrackedItem, error) {
	return s.find(badgerhold.Where("Enabled").Eq(true))
}

// Get returns one item or interfaces.ErrItemNotFound
func (s *CatalogStorage) Get(ctx context.Context, id string) (*models.TrackedItem, error) {
	var item models.TrackedItem
	if err := s.db.Store().Get(id, &item); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return &item, nil
}

// Add stores a new item, generating an ID when none is given
func (s *CatalogStorage) Add(ctx context.Context, item *models.TrackedItem) error {
	if item.ID == "" {
		item.ID = common.NewItemID()
	}
	if item.Currency == "" {
		item.Currency = models.DefaultCurrency
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.db.Store().Insert(item.ID, item); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return interfaces.ErrItemExists
		}
		return fmt.Errorf("failed to add item %s: %w", item.ID, err)
	}

	s.logger.Info().Str("item_id", item.ID).Str("name", item.Name).Msg("Item added")
	return nil
}

// Upsert inserts the item or replaces an existing one, keeping its creation time
func (s *CatalogStorage) Upsert(ctx context.Context, item *models.TrackedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	item.CreatedAt = now
	if existing, err := s.Get(ctx, item.ID); err == nil {
		item.CreatedAt = existing.CreatedAt
	}
	item.UpdatedAt = now

	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// Update applies a partial patch and returns the updated item
func (s *CatalogStorage) Update(ctx context.Context, id string, patch models.ItemPatch) (*models.TrackedItem, error) {
	return s.modify(ctx, id, func(item *models.TrackedItem) {
		patch.Apply(item)
	})
}

// SetEnabled enables or disables an item
func (s *CatalogStorage) SetEnabled(ctx context.Context, id string, enabled bool) (*models.TrackedItem, error) {
	return s.modify(ctx, id, func(item *models.TrackedItem) {
		item.Enabled = enabled
	})
}

// Toggle flips the enabled flag
func (s *CatalogStorage) Toggle(ctx context.Context, id string) (*models.TrackedItem, error) {
	return s.modify(ctx, id, func(item *models.TrackedItem) {
		item.Enabled = !item.Enabled
	})
}

func (s *CatalogStorage) modify(ctx context.Context, id string, change func(item *models.TrackedItem)) (*models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	change(item)
	item.ID = id
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item: %w", err)
	}
	item.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, item); err != nil {
		return nil, fmt.Errorf("failed to update item %s: %w", id, err)
	}

	s.logger.Debug().Str("item_id", id).Bool("enabled", item.Enabled).Msg("Item updated")
	return item, nil
}

// Remove deletes an item
func (s *CatalogStorage) Remove(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.TrackedItem{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrItemNotFound
		}
		return fmt.Errorf("failed to remove item %s: %w", id, err)
	}

	s.logger.Info().Str("item_id", id).Msg("Item removed")
	return nil
}
