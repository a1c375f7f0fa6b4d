package models

// CycleLogEntry is one log line emitted while a tracking cycle ran
type CycleLogEntry struct {
	CycleID   string `json:"cycle_id"`
	Timestamp string `json:"timestamp"` // RFC3339
	Level     string `json:"level"`     // INF, WRN, ERR, DBG
	Message   string `json:"message"`
}
