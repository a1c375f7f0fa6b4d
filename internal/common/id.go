package common

import (
	"github.com/google/uuid"
)

// NewObservationID generates a unique price observation ID
// Format: obs_<uuid>
func NewObservationID() string {
	return "obs_" + uuid.New().String()
}

// NewCycleID generates a correlation ID for one tracking cycle
func NewCycleID() string {
	return "cycle_" + uuid.New().String()
}

// NewItemID generates an ID for a tracked item added without one
func NewItemID() string {
	return "item_" + uuid.New().String()[:8]
}

// NewRequestID generates a correlation ID for one HTTP request
func NewRequestID() string {
	return "req_" + uuid.New().String()[:8]
}
