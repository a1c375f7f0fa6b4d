package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TrackedItem is a page whose price is checked on every cycle
type TrackedItem struct {
	ID                 string    `json:"id" toml:"id" yaml:"id" badgerhold:"key" validate:"required,max=64"`
	Name               string    `json:"name" toml:"name" yaml:"name" validate:"required"`
	URL                string    `json:"url" toml:"url" yaml:"url" validate:"required,url"`
	Selector           string    `json:"selector" toml:"selector" yaml:"selector" validate:"required"`
	Currency           string    `json:"currency" toml:"currency" yaml:"currency"`
	TargetPrice        float64   `json:"target_price" toml:"target_price" yaml:"target_price" validate:"gte=0"`
	DropThreshold      *float64  `json:"drop_threshold,omitempty" toml:"drop_threshold" yaml:"drop_threshold" validate:"omitempty,gte=0"` // Percent; nil uses the global default
	NotifyOnLowestEver bool      `json:"notify_on_lowest_ever" toml:"notify_on_lowest_ever" yaml:"notify_on_lowest_ever"`
	Enabled            bool      `json:"enabled" toml:"enabled" yaml:"enabled" badgerhold:"index"`
	CreatedAt          time.Time `json:"created_at" toml:"-" yaml:"-"`
	UpdatedAt          time.Time `json:"updated_at" toml:"-" yaml:"-"`
}

// Validate checks required fields, URL shape and non-negative prices
func (i *TrackedItem) Validate() error {
	return validate.Struct(i)
}

// EffectiveDropThreshold returns the item threshold, or fallback when the item sets none
func (i *TrackedItem) EffectiveDropThreshold(fallback float64) float64 {
	if i.DropThreshold != nil {
		return *i.DropThreshold
	}
	return fallback
}

// ItemPatch is a partial update; nil fields are left unchanged
type ItemPatch struct {
	Name               *string  `json:"name,omitempty"`
	URL                *string  `json:"url,omitempty"`
	Selector           *string  `json:"selector,omitempty"`
	Currency           *string  `json:"currency,omitempty"`
	TargetPrice        *float64 `json:"target_price,omitempty"`
	DropThreshold      *float64 `json:"drop_threshold,omitempty"`
	ClearDropThreshold bool     `json:"clear_drop_threshold,omitempty"`
	NotifyOnLowestEver *bool    `json:"notify_on_lowest_ever,omitempty"`
	Enabled            *bool    `json:"enabled,omitempty"`
}

// Apply copies the set fields of p onto item
func (p ItemPatch) Apply(item *TrackedItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.URL != nil {
		item.URL = *p.URL
	}
	if p.Selector != nil {
		item.Selector = *p.Selector
	}
	if p.Currency != nil {
		item.Currency = *p.Currency
	}
	if p.TargetPrice != nil {
		item.TargetPrice = *p.TargetPrice
	}
	if p.DropThreshold != nil {
		threshold := *p.DropThreshold
		item.DropThreshold = &threshold
	}
	if p.ClearDropThreshold {
		item.DropThreshold = nil
	}
	if p.NotifyOnLowestEver != nil {
		item.NotifyOnLowestEver = *p.NotifyOnLowestEver
	}
	if p.Enabled != nil {
		item.Enabled = *p.Enabled
	}
}

// ItemInput is the wire/file form of a new item; unset flags take their defaults
type ItemInput struct {
	ID                 string   `json:"id" toml:"id" yaml:"id"`
	Name               string   `json:"name" toml:"name" yaml:"name"`
	URL                string   `json:"url" toml:"url" yaml:"url"`
	Selector           string   `json:"selector" toml:"selector" yaml:"selector"`
	Currency           string   `json:"currency" toml:"currency" yaml:"currency"`
	TargetPrice        float64  `json:"target_price" toml:"target_price" yaml:"target_price"`
	DropThreshold      *float64 `json:"drop_threshold" toml:"drop_threshold" yaml:"drop_threshold"`
	NotifyOnLowestEver *bool    `json:"notify_on_lowest_ever" toml:"notify_on_lowest_ever" yaml:"notify_on_lowest_ever"`
	Enabled            *bool    `json:"enabled" toml:"enabled" yaml:"enabled"`
}

// DefaultCurrency is used for items that do not name one
const DefaultCurrency = "$"

// ToItem builds a TrackedItem, defaulting currency to "$" and both flags to true
func (in ItemInput) ToItem() *TrackedItem {
	item := &TrackedItem{
		ID:                 in.ID,
		Name:               in.Name,
		URL:                in.URL,
		Selector:           in.Selector,
		Currency:           in.Currency,
		TargetPrice:        in.TargetPrice,
		DropThreshold:      in.DropThreshold,
		NotifyOnLowestEver: true,
		Enabled:            true,
	}
	if item.Currency == "" {
		item.Currency = DefaultCurrency
	}
	if in.NotifyOnLowestEver != nil {
		item.NotifyOnLowestEver = *in.NotifyOnLowestEver
	}
	if in.Enabled != nil {
		item.Enabled = *in.Enabled
	}
	return item
}
