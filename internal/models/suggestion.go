package models

import "fmt"

// Category classifies a document suggestion
type Category string

const (
	CategoryPII       Category = "PII"
	CategoryFinancial Category = "FINANCIAL"
	CategoryMedical   Category = "MEDICAL"
	CategoryLegal     Category = "LEGAL"
	CategoryContact   Category = "CONTACT"
	CategoryFaces     Category = "FACES"
)

// DocumentCategories lists every category the analyzer may return, in display order
var DocumentCategories = []Category{
	CategoryPII,
	CategoryFinancial,
	CategoryMedical,
	CategoryLegal,
	CategoryContact,
	CategoryFaces,
}

// Coordinates locates a suggestion on a page in native page units (top-left origin).
// Unit is the 1-based page number.
type Coordinates struct {
	Unit   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DocumentSuggestion is an AI-proposed redaction on a document page
type DocumentSuggestion struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	Category    Category    `json:"category"`
	Coordinates Coordinates `json:"coordinates"`
	Accepted    bool        `json:"accepted"`
	Reason      string      `json:"reason,omitempty"`
}

// NewSuggestionID returns the identifier for the index-th suggestion of a page
func NewSuggestionID(unit, index int) string {
	return fmt.Sprintf("page_%d_redaction_%d", unit, index)
}

func (s *DocumentSuggestion) ReviewID() string { return s.ID }
func (s *DocumentSuggestion) IsAccepted() bool { return s.Accepted }
func (s *DocumentSuggestion) Toggle()          { s.Accepted = !s.Accepted }

// UnitState records how analysis of a unit ended
type UnitState string

const (
	UnitAnalyzed UnitState = "analyzed"
	UnitFailed   UnitState = "failed"
)

// UnitOutcome is the per-unit result marker kept alongside suggestions.
// A failed outcome distinguishes "analysis failed" from "no PII found".
type UnitOutcome struct {
	Unit            int       `json:"unit"`
	State           UnitState `json:"state"`
	Error           string    `json:"error,omitempty"`
	SuggestionCount int       `json:"suggestion_count"`
}
