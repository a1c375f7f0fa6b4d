package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements interfaces.HistoryStorage for Badger.
// Observations are insert-only; appends for the same item are serialized.
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	locks  sync.Map // item id -> *sync.Mutex
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) itemLock(itemID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(itemID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Append records a new observation
func (s *HistoryStorage) Append(ctx context.Context, itemID string, price float64, currency string, capturedAt time.Time) (*models.PriceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	obs := &models.PriceObservation{
		ID:         common.NewObservationID(),
		ItemID:     itemID,
		Price:      price,
		Currency:   currency,
		CapturedAt: capturedAt,
	}

	if err := s.db.Store().Insert(obs.ID, obs); err != nil {
		return nil, fmt.Errorf("failed to append observation for %s: %w", itemID, err)
	}

	return obs, nil
}

// Recent returns up to n observations for the item, newest first
func (s *HistoryStorage) Recent(ctx context.Context, itemID string, n int) ([]models.PriceObservation, error) {
	var observations []models.PriceObservation
	query := badgerhold.Where("ItemID").Eq(itemID).SortBy("CapturedAt").Reverse()
	if n > 0 {
		query = query.Limit(n)
	}
	if err := s.db.Store().Find(&observations, query); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", itemID, err)
	}
	return observations, nil
}

// Minimum returns the lowest-priced observation, or nil if the item has none
func (s *HistoryStorage) Minimum(ctx context.Context, itemID string) (*models.PriceObservation, error) {
	var observations []models.PriceObservation
	query := badgerhold.Where("ItemID").Eq(itemID).SortBy("Price", "CapturedAt").Limit(1)
	if err := s.db.Store().Find(&observations, query); err != nil {
		return nil, fmt.Errorf("failed to read minimum for %s: %w", itemID, err)
	}
	if len(observations) == 0 {
		return nil, nil
	}
	return &observations[0], nil
}

// Latest returns the newest observation, or nil if the item has none
func (s *HistoryStorage) Latest(ctx context.Context, itemID string) (*models.PriceObservation, error) {
	observations, err := s.Recent(ctx, itemID, 1)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, nil
	}
	return &observations[0], nil
}

// Range returns observations captured at or after since, oldest first
func (s *HistoryStorage) Range(ctx context.Context, itemID string, since time.Time) ([]models.PriceObservation, error) {
	var observations []models.PriceObservation
	query := badgerhold.Where("ItemID").Eq(itemID).And("CapturedAt").Ge(since).SortBy("CapturedAt")
	if err := s.db.Store().Find(&observations, query); err != nil {
		return nil, fmt.Errorf("failed to read history range for %s: %w", itemID, err)
	}
	return observations, nil
}

// Rollup summarises every item that has at least one observation
func (s *HistoryStorage) Rollup(ctx context.Context) ([]models.ItemRollup, error) {
	var observations []models.PriceObservation
	if err := s.db.Store().Find(&observations, badgerhold.Where("ItemID").Ne("").SortBy("CapturedAt")); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	byItem := make(map[string]*models.ItemRollup)
	for _, obs := range observations {
		rollup, ok := byItem[obs.ItemID]
		if !ok {
			rollup = &models.ItemRollup{ItemID: obs.ItemID, Lowest: obs.Price, Highest: obs.Price}
			byItem[obs.ItemID] = rollup
		}
		// Ascending order, so the last one seen is the current price
		rollup.Current = obs.Price
		rollup.Currency = obs.Currency
		rollup.LastChecked = obs.CapturedAt
		rollup.TotalChecks++
		if obs.Price < rollup.Lowest {
			rollup.Lowest = obs.Price
		}
		if obs.Price > rollup.Highest {
			rollup.Highest = obs.Price
		}
	}

	rollups := make([]models.ItemRollup, 0, len(byItem))
	for _, rollup := range byItem {
		rollups = append(rollups, *rollup)
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].ItemID < rollups[j].ItemID })

	return rollups, nil
}

// DeleteItem removes every observation of an item
func (s *HistoryStorage) DeleteItem(ctx context.Context, itemID string) error {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.db.Store().DeleteMatching(&models.PriceObservation{}, badgerhold.Where("ItemID").Eq(itemID)); err != nil {
		return fmt.Errorf("failed to delete history for %s: %w", itemID, err)
	}
	s.locks.Delete(itemID)
	return nil
}
