package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// ErrNoObservations is returned when an item has no recorded prices
var ErrNoObservations = errors.New("no observations recorded")

// Service computes ComparisonStats from the history store. It never caches.
type Service struct {
	history interfaces.HistoryStorage
}

// NewService creates a new analyzer
func NewService(history interfaces.HistoryStorage) *Service {
	return &Service{history: history}
}

// Compare reads the two newest observations and the all-time minimum for itemID
func (s *Service) Compare(ctx context.Context, itemID string) (*models.ComparisonStat, error) {
	recent, err := s.history.Recent(ctx, itemID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent observations: %w", err)
	}
	if len(recent) == 0 {
		return nil, ErrNoObservations
	}

	lowest, err := s.history.Minimum(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read minimum observation: %w", err)
	}

	var previous *models.PriceObservation
	if len(recent) > 1 {
		previous = &recent[1]
	}

	return Compute(recent[0], previous, lowest), nil
}

// CompareObservation compares a freshly appended observation against the rest of its item's history.
// current is taken as given, so equal or out-of-order capture times cannot displace it.
func (s *Service) CompareObservation(ctx context.Context, current models.PriceObservation) (*models.ComparisonStat, error) {
	recent, err := s.history.Recent(ctx, current.ItemID, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent observations: %w", err)
	}

	var previous *models.PriceObservation
	skipped := false
	for i := range recent {
		if !skipped && recent[i].ID == current.ID {
			skipped = true
			continue
		}
		previous = &recent[i]
		break
	}

	lowest, err := s.history.Minimum(ctx, current.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read minimum observation: %w", err)
	}
	if lowest != nil && lowest.Price > current.Price {
		lowest = nil
	}

	return Compute(current, previous, lowest), nil
}

// Compute builds a ComparisonStat. A nil lowest means current is the only observation.
func Compute(current models.PriceObservation, previous *models.PriceObservation, lowest *models.PriceObservation) *models.ComparisonStat {
	stat := &models.ComparisonStat{
		Current: current,
		Lowest:  current,
	}
	if lowest != nil {
		stat.Lowest = *lowest
	}
	stat.IsLowestEver = stat.Lowest.Price == current.Price

	if previous == nil {
		return stat
	}

	prev := *previous
	stat.Previous = &prev

	change := decimal.NewFromFloat(current.Price).Sub(decimal.NewFromFloat(prev.Price))
	stat.Change = change.InexactFloat64()

	if prev.Price != 0 {
		stat.ChangePercent = change.
			Div(decimal.NewFromFloat(prev.Price)).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}

	return stat
}
