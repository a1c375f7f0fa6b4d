package models

import "time"

// PriceObservation is one timestamped price reading. Never modified once stored.
type PriceObservation struct {
	ID         string    `json:"id" badgerhold:"key"`
	ItemID     string    `json:"item_id" badgerhold:"index"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	CapturedAt time.Time `json:"captured_at"`
}

// ItemRollup summarises the history of one item
type ItemRollup struct {
	ItemID      string    `json:"item_id"`
	Current     float64   `json:"current_price"`
	Lowest      float64   `json:"lowest_price"`
	Highest     float64   `json:"highest_price"`
	Currency    string    `json:"currency"`
	LastChecked time.Time `json:"last_checked"`
	TotalChecks int       `json:"total_checks"`
}

// ComparisonStat compares the current observation against history.
// Previous is nil when fewer than two observations exist.
type ComparisonStat struct {
	Current       PriceObservation  `json:"current"`
	Previous      *PriceObservation `json:"previous"`
	Lowest        PriceObservation  `json:"lowest"`
	Change        float64           `json:"change"`
	ChangePercent float64           `json:"change_percent"`
	IsLowestEver  bool              `json:"is_lowest_ever"`
}

// HasPrevious reports whether there is an earlier observation to compare against
func (s *ComparisonStat) HasPrevious() bool {
	return s != nil && s.Previous != nil
}
