package review

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

var (
	// ErrInvalidRange is returned for a time range whose end is not after its start
	ErrInvalidRange = errors.New("invalid time range")
	// ErrUnknownTreatment is returned for an action type outside silence/beep/anonymize
	ErrUnknownTreatment = errors.New("unknown redaction treatment")
	// ErrRedactionNotFound is returned when no action has the requested id
	ErrRedactionNotFound = errors.New("redaction not found")
)

// RedactionEngine owns audio detections and the redaction actions derived from them.
// Acceptance of a detection and the presence of its bound action change under one lock.
type RedactionEngine struct {
	mu         sync.RWMutex
	detections []models.AudioDetection
	actions    []models.RedactionAction
	newID      func() string
	logger     arbor.ILogger
}

// NewRedactionEngine creates an empty engine
func NewRedactionEngine(logger arbor.ILogger) *RedactionEngine {
	return &RedactionEngine{
		newID:  common.NewRedactionID,
		logger: logger,
	}
}

// LoadDetections replaces every detection and every action with a fresh run's results
func (e *RedactionEngine) LoadDetections(detections []models.AudioDetection) {
	list := make([]models.AudioDetection, len(detections))
	copy(list, detections)

	e.mu.Lock()
	e.detections = list
	e.actions = nil
	e.mu.Unlock()

	e.logger.Debug().Int("detections", len(list)).Msg("Loaded audio detections")
}

// ToggleDetectionAcceptance flips a detection and adds or removes its bound action.
// Unknown ids are ignored.
func (e *RedactionEngine) ToggleDetectionAcceptance(detectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfDetection(detectionID)
	if idx < 0 {
		e.logger.Debug().Str("detection_id", detectionID).Msg("Ignoring toggle for unknown detection")
		return false
	}

	d := &e.detections[idx]
	d.Toggle()

	if d.Accepted {
		e.actions = append(e.actions, e.deriveAction(*d))
	} else {
		e.removeBound(detectionID)
	}
	return true
}

// AcceptAllDetections accepts every detection, deriving actions only where none are bound yet
func (e *RedactionEngine) AcceptAllDetections() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	created := 0
	for i := range e.detections {
		d := &e.detections[i]
		if d.Accepted {
			continue
		}
		d.Accepted = true
		if e.indexOfBound(d.ID) >= 0 {
			continue
		}
		e.actions = append(e.actions, e.deriveAction(*d))
		created++
	}

	e.logger.Debug().Int("created", created).Msg("Accepted all detections")
	return created
}

// AddManualRedaction appends an action that is not bound to any detection
func (e *RedactionEngine) AddManualRedaction(start, end float64, action models.Treatment) (models.RedactionAction, error) {
	if end <= start || start < 0 {
		return models.RedactionAction{}, fmt.Errorf("%w: %.3f-%.3f", ErrInvalidRange, start, end)
	}
	if !action.Valid() {
		return models.RedactionAction{}, fmt.Errorf("%w: %q", ErrUnknownTreatment, action)
	}

	a := models.RedactionAction{
		ID:        e.newID(),
		StartTime: start,
		EndTime:   end,
		Action:    action,
	}

	e.mu.Lock()
	e.actions = append(e.actions, a)
	e.mu.Unlock()

	return a, nil
}

// RemoveRedaction removes an action by id regardless of origin.
// The bound detection, if any, keeps its accepted flag.
func (e *RedactionEngine) RemoveRedaction(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, a := range e.actions {
		if a.ID == id {
			e.actions = append(e.actions[:i], e.actions[i+1:]...)
			if !a.Manual() {
				e.logger.Debug().
					Str("redaction_id", id).
					Str("detection_id", a.SourceDetectionID).
					Msg("Removed derived redaction; detection stays accepted")
			}
			return true
		}
	}
	return false
}

// SetRedactionTreatment changes the treatment of an existing action
func (e *RedactionEngine) SetRedactionTreatment(id string, action models.Treatment) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTreatment, action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.actions {
		if e.actions[i].ID == id {
			e.actions[i].Action = action
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRedactionNotFound, id)
}

// Detections returns a copy of all detections in analysis order
func (e *RedactionEngine) Detections() []models.AudioDetection {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.AudioDetection, len(e.detections))
	copy(out, e.detections)
	return out
}

// AcceptedDetections returns the accepted detections
func (e *RedactionEngine) AcceptedDetections() []models.AudioDetection {
	var out []models.AudioDetection
	for _, d := range e.Detections() {
		if d.Accepted {
			out = append(out, d)
		}
	}
	return out
}

// Actions returns a copy of all actions in creation order
func (e *RedactionEngine) Actions() []models.RedactionAction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.RedactionAction, len(e.actions))
	copy(out, e.actions)
	return out
}

// ActionsSorted returns all actions ordered by start time
func (e *RedactionEngine) ActionsSorted() []models.RedactionAction {
	out := e.Actions()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// BoundAction returns the action derived from a detection, if present
func (e *RedactionEngine) BoundAction(detectionID string) (models.RedactionAction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if idx := e.indexOfBound(detectionID); idx >= 0 {
		return e.actions[idx], true
	}
	return models.RedactionAction{}, false
}

func (e *RedactionEngine) deriveAction(d models.AudioDetection) models.RedactionAction {
	return models.RedactionAction{
		ID:                e.newID(),
		StartTime:         d.StartTime,
		EndTime:           d.EndTime,
		Action:            models.DefaultTreatment,
		SourceDetectionID: d.ID,
	}
}

func (e *RedactionEngine) removeBound(detectionID string) {
	kept := e.actions[:0]
	for _, a := range e.actions {
		if a.SourceDetectionID != detectionID {
			kept = append(kept, a)
		}
	}
	e.actions = kept
}

func (e *RedactionEngine) indexOfDetection(id string) int {
	for i := range e.detections {
		if e.detections[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *RedactionEngine) indexOfBound(detectionID string) int {
	for i := range e.actions {
		if e.actions[i].SourceDetectionID == detectionID {
			return i
		}
	}
	return -1
}
