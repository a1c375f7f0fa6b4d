package models

import "time"

// CycleOutcome is the result of checking one item during a cycle
type CycleOutcome struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Success   bool            `json:"success"`
	Price     float64         `json:"price,omitempty"`
	Error     string          `json:"error,omitempty"`
	Alerted   bool            `json:"alerted"`
	Reason    string          `json:"reason,omitempty"`
	Stat      *ComparisonStat `json:"stat,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}

// CycleSummary aggregates the outcomes of one tracking cycle
type CycleSummary struct {
	CycleID     string         `json:"cycle_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Alerts      int            `json:"alerts"`
	Cancelled   bool           `json:"cancelled,omitempty"`
	Outcomes    []CycleOutcome `json:"outcomes"`
}

// Duration returns how long the cycle ran
func (s *CycleSummary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}
