package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

type fakeRenderSurface struct {
	viewport  *Viewport
	navigated []int
	scales    []float64
	// geometryKnownOnCall records whether geometry was still known when the surface was called
	geometryKnownOnCall []bool
}

func (f *fakeRenderSurface) NavigateTo(unit int) {
	f.navigated = append(f.navigated, unit)
	_, ok := f.viewport.Geometry()
	f.geometryKnownOnCall = append(f.geometryKnownOnCall, ok)
}

func (f *fakeRenderSurface) SetScale(factor float64) {
	f.scales = append(f.scales, factor)
	_, ok := f.viewport.Geometry()
	f.geometryKnownOnCall = append(f.geometryKnownOnCall, ok)
}

func newTestViewport(totalUnits int) (*Viewport, *fakeRenderSurface) {
	v := NewViewport(DefaultOverlayPadding, arbor.NewNoOpLogger())
	surface := &fakeRenderSurface{viewport: v}
	v.SetSurface(surface)
	v.UnitLoaded(totalUnits)
	return v, surface
}

func TestProject(t *testing.T) {
	g := models.ViewportGeometry{RenderedWidth: 918, RenderedHeight: 1188, NativeWidth: 612, NativeHeight: 792}
	c := models.Coordinates{Unit: 1, X: 100, Y: 200, Width: 50, Height: 10}

	r := Project(c, g, 8)

	assert.InDelta(t, 158, r.X, 1e-9)
	assert.InDelta(t, 308, r.Y, 1e-9)
	assert.InDelta(t, 75, r.Width, 1e-9)
	assert.InDelta(t, 15, r.Height, 1e-9)
}

func TestProject_RoundTrip(t *testing.T) {
	geometries := []models.ViewportGeometry{
		{RenderedWidth: 612, RenderedHeight: 792, NativeWidth: 612, NativeHeight: 792},
		{RenderedWidth: 306, RenderedHeight: 396, NativeWidth: 612, NativeHeight: 792},
		{RenderedWidth: 1785, RenderedHeight: 2525, NativeWidth: 595, NativeHeight: 842},
	}
	c := models.Coordinates{X: 72.5, Y: 401.25, Width: 33, Height: 11.5}
	padding := 8.0

	for _, g := range geometries {
		r := Project(c, g, padding)
		sx, sy := g.Scale()
		assert.InDelta(t, c.X, (r.X-padding)/sx, 1e-9)
		assert.InDelta(t, c.Y, (r.Y-padding)/sy, 1e-9)
		assert.InDelta(t, c.Width, r.Width/sx, 1e-9)
		assert.InDelta(t, c.Height, r.Height/sy, 1e-9)
	}
}

func TestOverlays_ZoomInvalidatesGeometry(t *testing.T) {
	v, surface := newTestViewport(3)
	suggestions := []models.DocumentSuggestion{{
		ID:          "page_1_redaction_0",
		Category:    models.CategoryPII,
		Coordinates: models.Coordinates{Unit: 1, X: 100, Y: 200, Width: 50, Height: 10},
	}}

	require.NoError(t, v.UnitRendered(612, 792, 918, 1188))
	overlays, ok := v.Overlays(suggestions)
	require.True(t, ok)
	require.Len(t, overlays, 1)
	assert.InDelta(t, 158, overlays[0].Rect.X, 1e-9)

	require.NoError(t, v.SetScale(2.0))
	assert.Equal(t, []float64{2.0}, surface.scales)
	assert.Equal(t, []bool{false}, surface.geometryKnownOnCall)

	overlays, ok = v.Overlays(suggestions)
	assert.False(t, ok)
	assert.Empty(t, overlays)

	require.NoError(t, v.UnitRendered(612, 792, 1224, 1584))
	overlays, ok = v.Overlays(suggestions)
	require.True(t, ok)
	require.Len(t, overlays, 1)
	assert.InDelta(t, 208, overlays[0].Rect.X, 1e-9)
	assert.InDelta(t, 408, overlays[0].Rect.Y, 1e-9)
	assert.InDelta(t, 100, overlays[0].Rect.Width, 1e-9)
	assert.InDelta(t, 20, overlays[0].Rect.Height, 1e-9)
}

func TestSetScale_SameFactorIsNoop(t *testing.T) {
	v, surface := newTestViewport(1)
	require.NoError(t, v.UnitRendered(612, 792, 612, 792))

	require.NoError(t, v.SetScale(1.0))

	_, ok := v.Geometry()
	assert.True(t, ok)
	assert.Empty(t, surface.scales)
	assert.Error(t, v.SetScale(0))
}

func TestNavigateTo(t *testing.T) {
	v, surface := newTestViewport(3)
	require.NoError(t, v.UnitRendered(612, 792, 612, 792))

	var navigated []int
	v.OnNavigate(func(unit int) { navigated = append(navigated, unit) })

	require.NoError(t, v.NavigateTo(2))
	assert.Equal(t, 2, v.CurrentUnit())
	assert.Equal(t, []int{2}, surface.navigated)
	assert.Equal(t, []int{2}, navigated)
	assert.Equal(t, []bool{false}, surface.geometryKnownOnCall)

	require.NoError(t, v.NavigateTo(2))
	assert.Len(t, surface.navigated, 1)

	assert.Error(t, v.NavigateTo(0))
	assert.Error(t, v.NavigateTo(4))
	assert.Equal(t, 2, v.CurrentUnit())
}

func TestUnitRendered_RejectsZeroNativeSize(t *testing.T) {
	v, _ := newTestViewport(1)
	assert.Error(t, v.UnitRendered(0, 792, 612, 792))
	_, ok := v.Geometry()
	assert.False(t, ok)
}

func TestOverlays_StatePrecedence(t *testing.T) {
	v, _ := newTestViewport(1)
	require.NoError(t, v.UnitRendered(612, 792, 612, 792))

	suggestions := []models.DocumentSuggestion{
		{ID: "a", Coordinates: models.Coordinates{Unit: 1}, Accepted: true},
		{ID: "b", Coordinates: models.Coordinates{Unit: 1}, Accepted: true},
		{ID: "c", Coordinates: models.Coordinates{Unit: 1}},
		{ID: "d", Coordinates: models.Coordinates{Unit: 2}},
	}
	require.NoError(t, v.Select(suggestions[0]))

	overlays, ok := v.Overlays(suggestions)
	require.True(t, ok)
	require.Len(t, overlays, 3)
	assert.Equal(t, models.OverlaySelected, overlays[0].State)
	assert.Equal(t, models.OverlayAccepted, overlays[1].State)
	assert.Equal(t, models.OverlayPending, overlays[2].State)

	v.ClearSelection()
	overlays, _ = v.Overlays(suggestions)
	assert.Equal(t, models.OverlayAccepted, overlays[0].State)
}

func TestSelect_NavigatesToSuggestionUnit(t *testing.T) {
	v, surface := newTestViewport(5)

	require.NoError(t, v.Select(models.DocumentSuggestion{ID: "page_4_redaction_0", Coordinates: models.Coordinates{Unit: 4}}))

	assert.Equal(t, 4, v.CurrentUnit())
	assert.Equal(t, "page_4_redaction_0", v.SelectedID())
	assert.Equal(t, []int{4}, surface.navigated)

	// Same unit, no navigation
	require.NoError(t, v.Select(models.DocumentSuggestion{ID: "page_4_redaction_1", Coordinates: models.Coordinates{Unit: 4}}))
	assert.Len(t, surface.navigated, 1)
}
