package review

import (
	"errors"
	"sync"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// ErrNoPendingRegion is returned when promoting without a pending selection
var ErrNoPendingRegion = errors.New("no pending region")

// RegionSelector holds at most one ad-hoc user selection
type RegionSelector struct {
	mu      sync.Mutex
	pending *models.SelectedRegion
	engine  *RedactionEngine
}

// NewRegionSelector creates a selector that promotes regions into the engine
func NewRegionSelector(engine *RedactionEngine) *RegionSelector {
	return &RegionSelector{engine: engine}
}

// Begin replaces any pending region with a new one
func (r *RegionSelector) Begin(medium models.Medium, unit int, start, end float64) models.SelectedRegion {
	if end < start {
		start, end = end, start
	}
	region := models.SelectedRegion{Medium: medium, Unit: unit, Start: start, End: end}

	r.mu.Lock()
	r.pending = &region
	r.mu.Unlock()
	return region
}

// Pending returns the pending region, if any
func (r *RegionSelector) Pending() (models.SelectedRegion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return models.SelectedRegion{}, false
	}
	return *r.pending, true
}

// Promote turns the pending region into a manual redaction and clears it.
// The region stays pending if the engine rejects it.
func (r *RegionSelector) Promote(action models.Treatment) (models.RedactionAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return models.RedactionAction{}, ErrNoPendingRegion
	}

	a, err := r.engine.AddManualRedaction(r.pending.Start, r.pending.End, action)
	if err != nil {
		return models.RedactionAction{}, err
	}
	r.pending = nil
	return a, nil
}

// Cancel discards the pending region
func (r *RegionSelector) Cancel() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

// UnitChanged clears a document region scoped to a unit other than the one now displayed.
// Audio regions are untouched by document navigation.
func (r *RegionSelector) UnitChanged(unit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil && r.pending.Medium == models.MediumDocument && r.pending.Unit != unit {
		r.pending = nil
	}
}
