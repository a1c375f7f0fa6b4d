package models

// Listing is one normalized search result from a marketplace source
type Listing struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Price  int64  `json:"price"`
	Image  string `json:"image,omitempty"`
	Link   string `json:"link,omitempty"`
}

// AggregateResult is the merged and ranked view of one query across all sources
type AggregateResult struct {
	Query        string         `json:"query"`
	TotalResults int            `json:"total_results"`
	Cheapest     *Listing       `json:"cheapest"`
	TypicalPrice int64          `json:"typical_price"`
	AveragePrice int64          `json:"average_price"`
	Listings     []Listing      `json:"listings"`
	Demo         bool           `json:"demo"`
	Currency     string         `json:"currency"`
	Sources      []SourceReport `json:"sources"`
}

// SourceReport records how one source fared during a search
type SourceReport struct {
	Source   string `json:"source"`
	Listings int    `json:"listings"`
	Skipped  bool   `json:"skipped,omitempty"` // breaker was open
	Error    string `json:"error,omitempty"`
}
