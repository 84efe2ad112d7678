package models

// ViewportGeometry is captured from a render-completion event
type ViewportGeometry struct {
	RenderedWidth  float64 `json:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height"`
	NativeWidth    float64 `json:"native_width"`
	NativeHeight   float64 `json:"native_height"`
}

// Scale returns the native-to-rendered scale factors
func (g ViewportGeometry) Scale() (float64, float64) {
	return g.RenderedWidth / g.NativeWidth, g.RenderedHeight / g.NativeHeight
}

// Rect is a rectangle in display pixels
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OverlayState is the visual state of a suggestion overlay
type OverlayState string

const (
	OverlaySelected OverlayState = "selected"
	OverlayAccepted OverlayState = "accepted"
	OverlayPending  OverlayState = "pending"
)

// Overlay is a suggestion positioned in the rendered viewport
type Overlay struct {
	SuggestionID string       `json:"suggestion_id"`
	Category     Category     `json:"category"`
	Rect         Rect         `json:"rect"`
	State        OverlayState `json:"state"`
}

// Medium is the kind of source a selection was made on
type Medium string

const (
	MediumDocument Medium = "document"
	MediumAudio    Medium = "audio"
)

// SelectedRegion is the single pending ad-hoc selection.
// Start/End are seconds for audio. Unit is zero for audio, a recording has no units.
type SelectedRegion struct {
	Medium Medium  `json:"medium"`
	Unit   int     `json:"unit"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}
