package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/pricewatch/internal/models"
)

var (
	// ErrItemNotFound is returned when a tracked item does not exist
	ErrItemNotFound = errors.New("item not found")
	// ErrItemExists is returned when adding an item whose ID is taken
	ErrItemExists = errors.New("item already exists")
)

// CatalogStorage is the keyed store of tracked items
type CatalogStorage interface {
	List(ctx context.Context) ([]*models.TrackedItem, error)
	// ListEnabled returns a read-only snapshot of enabled items for one cycle
	ListEnabled(ctx context.Context) ([]*models.TrackedItem, error)
	Get(ctx context.Context, id string) (*models.TrackedItem, error)
	Add(ctx context.Context, item *models.TrackedItem) error
	Update(ctx context.Context, id string, patch models.ItemPatch) (*models.TrackedItem, error)
	Upsert(ctx context.Context, item *models.TrackedItem) error
	Remove(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) (*models.TrackedItem, error)
	Toggle(ctx context.Context, id string) (*models.TrackedItem, error)
}

// HistoryStorage is the append-only store of price observations
type HistoryStorage interface {
	Append(ctx context.Context, itemID string, price float64, currency string, capturedAt time.Time) (*models.PriceObservation, error)
	// Recent returns up to n observations, newest first
	Recent(ctx context.Context, itemID string, n int) ([]models.PriceObservation, error)
	// Minimum returns the lowest observation, or nil when the item has none
	Minimum(ctx context.Context, itemID string) (*models.PriceObservation, error)
	Latest(ctx context.Context, itemID string) (*models.PriceObservation, error)
	// Range returns observations captured at or after since, oldest first
	Range(ctx context.Context, itemID string, since time.Time) ([]models.PriceObservation, error)
	Rollup(ctx context.Context) ([]models.ItemRollup, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	CatalogStorage() CatalogStorage
	HistoryStorage() HistoryStorage
	LoadItemsFromFile(ctx context.Context, path string) (int, error)
	Close() error
}
