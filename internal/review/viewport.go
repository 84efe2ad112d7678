package review

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// DefaultOverlayPadding compensates for the border drawn around the page surface
const DefaultOverlayPadding = 8.0

// RenderSurface receives viewport commands for the document renderer
type RenderSurface interface {
	NavigateTo(unit int)
	SetScale(factor float64)
}

// Viewport maps native suggestion geometry onto the rendered page.
// Geometry is unknown after every zoom or navigation until the next render completes,
// and no overlays are produced while it is unknown.
type Viewport struct {
	mu          sync.RWMutex
	totalUnits  int
	currentUnit int
	scale       float64
	padding     float64
	geometry    *models.ViewportGeometry
	selectedID  string
	surface     RenderSurface
	onNavigate  func(unit int)
	logger      arbor.ILogger
}

// NewViewport creates a viewport showing unit 1 at scale 1
func NewViewport(padding float64, logger arbor.ILogger) *Viewport {
	return &Viewport{
		currentUnit: 1,
		scale:       1.0,
		padding:     padding,
		logger:      logger,
	}
}

// SetSurface attaches the renderer that receives navigate/scale commands
func (v *Viewport) SetSurface(surface RenderSurface) {
	v.mu.Lock()
	v.surface = surface
	v.mu.Unlock()
}

// OnNavigate registers a callback invoked after the displayed unit changes
func (v *Viewport) OnNavigate(fn func(unit int)) {
	v.mu.Lock()
	v.onNavigate = fn
	v.mu.Unlock()
}

// UnitLoaded records the number of units in the loaded document
func (v *Viewport) UnitLoaded(totalUnits int) {
	v.mu.Lock()
	v.totalUnits = totalUnits
	if v.currentUnit > totalUnits && totalUnits > 0 {
		v.currentUnit = 1
	}
	v.geometry = nil
	v.mu.Unlock()
}

// UnitRendered captures geometry for the displayed unit
func (v *Viewport) UnitRendered(nativeWidth, nativeHeight, renderedWidth, renderedHeight float64) error {
	if nativeWidth <= 0 || nativeHeight <= 0 {
		return fmt.Errorf("native page size must be positive, got %.2fx%.2f", nativeWidth, nativeHeight)
	}

	v.mu.Lock()
	v.geometry = &models.ViewportGeometry{
		RenderedWidth:  renderedWidth,
		RenderedHeight: renderedHeight,
		NativeWidth:    nativeWidth,
		NativeHeight:   nativeHeight,
	}
	unit := v.currentUnit
	v.mu.Unlock()

	v.logger.Debug().
		Int("unit", unit).
		Float64("rendered_width", renderedWidth).
		Float64("native_width", nativeWidth).
		Msg("Viewport geometry captured")
	return nil
}

// SetScale changes the zoom factor, invalidating geometry before the renderer is told
func (v *Viewport) SetScale(factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("scale must be positive, got %.2f", factor)
	}

	v.mu.Lock()
	if factor == v.scale {
		v.mu.Unlock()
		return nil
	}
	v.scale = factor
	v.geometry = nil
	surface := v.surface
	v.mu.Unlock()

	if surface != nil {
		surface.SetScale(factor)
	}
	return nil
}

// NavigateTo displays another unit, invalidating geometry before the renderer is told
func (v *Viewport) NavigateTo(unit int) error {
	v.mu.Lock()
	if unit < 1 || (v.totalUnits > 0 && unit > v.totalUnits) {
		total := v.totalUnits
		v.mu.Unlock()
		return fmt.Errorf("unit %d out of range 1-%d", unit, total)
	}
	if unit == v.currentUnit {
		v.mu.Unlock()
		return nil
	}
	v.currentUnit = unit
	v.geometry = nil
	surface := v.surface
	onNavigate := v.onNavigate
	v.mu.Unlock()

	if onNavigate != nil {
		onNavigate(unit)
	}
	if surface != nil {
		surface.NavigateTo(unit)
	}
	return nil
}

// Select marks a suggestion as inspected and shows its unit
func (v *Viewport) Select(s models.DocumentSuggestion) error {
	v.mu.Lock()
	v.selectedID = s.ID
	current := v.currentUnit
	v.mu.Unlock()

	if s.Coordinates.Unit != current {
		return v.NavigateTo(s.Coordinates.Unit)
	}
	return nil
}

// ClearSelection drops the inspected suggestion
func (v *Viewport) ClearSelection() {
	v.mu.Lock()
	v.selectedID = ""
	v.mu.Unlock()
}

// CurrentUnit returns the displayed unit
func (v *Viewport) CurrentUnit() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentUnit
}

// TotalUnits returns the unit count reported by the renderer
func (v *Viewport) TotalUnits() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalUnits
}

// Scale returns the current zoom factor
func (v *Viewport) Scale() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scale
}

// SelectedID returns the inspected suggestion id, or empty
func (v *Viewport) SelectedID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selectedID
}

// Geometry returns the captured geometry, false when unknown
func (v *Viewport) Geometry() (models.ViewportGeometry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.geometry == nil {
		return models.ViewportGeometry{}, false
	}
	return *v.geometry, true
}

// Overlays positions the displayed unit's suggestions in rendered pixels.
// It returns false, and nothing to draw, while geometry is unknown.
func (v *Viewport) Overlays(suggestions []models.DocumentSuggestion) ([]models.Overlay, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.geometry == nil {
		return nil, false
	}

	overlays := make([]models.Overlay, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Coordinates.Unit != v.currentUnit {
			continue
		}
		overlays = append(overlays, models.Overlay{
			SuggestionID: s.ID,
			Category:     s.Category,
			Rect:         Project(s.Coordinates, *v.geometry, v.padding),
			State:        overlayState(s, v.selectedID),
		})
	}
	return overlays, true
}

// Project maps a native rectangle into display pixels
func Project(c models.Coordinates, g models.ViewportGeometry, padding float64) models.Rect {
	scaleX, scaleY := g.Scale()
	return models.Rect{
		X:      c.X*scaleX + padding,
		Y:      c.Y*scaleY + padding,
		Width:  c.Width * scaleX,
		Height: c.Height * scaleY,
	}
}

func overlayState(s models.DocumentSuggestion, selectedID string) models.OverlayState {
	switch {
	case selectedID != "" && s.ID == selectedID:
		return models.OverlaySelected
	case s.Accepted:
		return models.OverlayAccepted
	default:
		return models.OverlayPending
	}
}
