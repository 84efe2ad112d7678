package models

// ProcessingState is the orchestrator's externally observable stage
type ProcessingState string

const (
	StatusIdle         ProcessingState = "idle"
	StatusProcessing   ProcessingState = "processing"
	StatusTranscribing ProcessingState = "transcribing"
	StatusAnalyzing    ProcessingState = "analyzing"
	StatusCompleted    ProcessingState = "completed"
	StatusError        ProcessingState = "error"
)

// ProcessingStatus is the single status record of a session
type ProcessingStatus struct {
	Status      ProcessingState `json:"status"`
	CurrentUnit int             `json:"current_unit,omitempty"`
	TotalUnits  int             `json:"total_units,omitempty"`
	Message     string          `json:"message,omitempty"`
	Progress    float64         `json:"progress"`
}

// Active reports whether a run is in progress
func (s ProcessingStatus) Active() bool {
	switch s.Status {
	case StatusProcessing, StatusTranscribing, StatusAnalyzing:
		return true
	}
	return false
}
