package models

import "fmt"

// AudioCategory classifies a PII detection found in a transcript
type AudioCategory string

const (
	AudioCategoryName     AudioCategory = "Name"
	AudioCategoryAge      AudioCategory = "Age"
	AudioCategoryLocation AudioCategory = "Location"
	AudioCategoryAddress  AudioCategory = "Address"
	AudioCategoryPhone    AudioCategory = "Phone"
	AudioCategoryEmail    AudioCategory = "Email"
	AudioCategoryDate     AudioCategory = "Date"
	AudioCategoryID       AudioCategory = "ID"
	AudioCategoryOther    AudioCategory = "Other"
)

// AudioDetection is an AI-proposed redaction in an audio recording. Times are in seconds.
type AudioDetection struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Category    AudioCategory `json:"category"`
	StartTime   float64       `json:"start_time"`
	EndTime     float64       `json:"end_time"`
	Explanation string        `json:"explanation,omitempty"`
	Confidence  float64       `json:"confidence"`
	Accepted    bool          `json:"accepted"`
}

// NewDetectionID returns the identifier for the index-th detection of a run
func NewDetectionID(index int) string {
	return fmt.Sprintf("pii_%d", index)
}

func (d *AudioDetection) ReviewID() string { return d.ID }
func (d *AudioDetection) IsAccepted() bool { return d.Accepted }
func (d *AudioDetection) Toggle()          { d.Accepted = !d.Accepted }

// Treatment is the transform applied to a redacted time range
type Treatment string

const (
	TreatmentSilence   Treatment = "silence"
	TreatmentBeep      Treatment = "beep"
	TreatmentAnonymize Treatment = "anonymize"
)

// DefaultTreatment is applied to actions derived from accepted detections
const DefaultTreatment = TreatmentBeep

// Valid reports whether t is a known treatment
func (t Treatment) Valid() bool {
	switch t {
	case TreatmentSilence, TreatmentBeep, TreatmentAnonymize:
		return true
	}
	return false
}

// RedactionAction is a concrete, exportable audio redaction.
// SourceDetectionID is empty for manually created actions.
type RedactionAction struct {
	ID                string    `json:"id"`
	StartTime         float64   `json:"start_time"`
	EndTime           float64   `json:"end_time"`
	Action            Treatment `json:"action"`
	SourceDetectionID string    `json:"source_detection_id,omitempty"`
}

// Manual reports whether the action was created by the user rather than derived from a detection
func (a RedactionAction) Manual() bool {
	return a.SourceDetectionID == ""
}

// TranscriptWord is a single transcribed word with timing in seconds
type TranscriptWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AudioAnalysis is the combined result of transcription and PII analysis
type AudioAnalysis struct {
	Transcript string           `json:"transcript"`
	Words      []TranscriptWord `json:"words"`
	Detections []AudioDetection `json:"pii_detections"`
}
