package models

// Reviewable is the capability shared by document suggestions and audio detections
type Reviewable interface {
	ReviewID() string
	IsAccepted() bool
	Toggle()
}

var (
	_ Reviewable = (*DocumentSuggestion)(nil)
	_ Reviewable = (*AudioDetection)(nil)
)
