package models

import "time"

// SchedulerStatus describes the tracking schedule and the most recent run
type SchedulerStatus struct {
	Schedule    string        `json:"schedule"`
	Running     bool          `json:"running"`
	LastRun     *time.Time    `json:"last_run,omitempty"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	LastSummary *CycleSummary `json:"last_summary,omitempty"`
	Skipped     int           `json:"skipped_ticks"`
}
