package models

// LogEntry is one log line of an analysis run, streamed to the review UI.
// SessionID is the correlation id the run logged with.
type LogEntry struct {
	Timestamp     string `json:"timestamp"`      // HH:MM:SS for display
	FullTimestamp string `json:"full_timestamp"` // RFC3339 for sorting
	Level         string `json:"level"`          // 3-letter level: DBG, INF, WRN, ERR
	Message       string `json:"message"`
	SessionID     string `json:"session_id"`
}
