package alerting

import (
	"math"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/models"
)

// Reason explains why a decision was reached
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonDropped      Reason = "drop_threshold"
	ReasonLowestEver   Reason = "lowest_ever"
	ReasonAnyChange    Reason = "any_change"
	ReasonAboveTarget  Reason = "above_target"
	ReasonBelowTrigger Reason = "below_threshold"
)

// Policy decides whether a price observation warrants a notification.
// Settings are fixed at construction.
type Policy struct {
	dropThreshold     float64
	notifyOnAnyChange bool
}

// NewPolicy creates a policy from the alerting configuration
func NewPolicy(config common.AlertingConfig) *Policy {
	return &Policy{
		dropThreshold:     config.DropThreshold,
		notifyOnAnyChange: config.NotifyOnAnyChange,
	}
}

// Decide evaluates item against the current price and its comparison stat.
// The returned reason is set for both outcomes; it is informational only.
func (p *Policy) Decide(item *models.TrackedItem, currentPrice float64, stat *models.ComparisonStat) (bool, Reason) {
	if stat == nil {
		return false, ReasonNone
	}

	reason := ReasonAboveTarget
	if currentPrice < item.TargetPrice {
		threshold := item.EffectiveDropThreshold(p.dropThreshold)
		if math.Abs(stat.ChangePercent) >= threshold {
			return true, ReasonDropped
		}
		if item.NotifyOnLowestEver && stat.IsLowestEver {
			return true, ReasonLowestEver
		}
		reason = ReasonBelowTrigger
	}

	// Applies regardless of target price
	if p.notifyOnAnyChange && stat.HasPrevious() && stat.ChangePercent != 0 {
		return true, ReasonAnyChange
	}

	return false, reason
}
