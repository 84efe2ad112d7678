package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// Service holds the processing status of the session and broadcasts every change
type Service struct {
	mu           sync.RWMutex
	status       models.ProcessingStatus
	updatedAt    time.Time
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewService creates a status service in the idle state
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		status:       models.ProcessingStatus{Status: models.StatusIdle},
		updatedAt:    time.Now(),
		eventService: eventService,
		logger:       logger,
	}
}

// Get returns a copy of the current status
func (s *Service) Get() models.ProcessingStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt returns when the status last changed
func (s *Service) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Set replaces the status and broadcasts the change
func (s *Service) Set(status models.ProcessingStatus) {
	s.mu.Lock()
	old := s.status
	s.status = status
	s.updatedAt = time.Now()
	s.mu.Unlock()

	if old.Status != status.Status {
		s.logger.Info().
			Str("old_state", string(old.Status)).
			Str("new_state", string(status.Status)).
			Str("message", status.Message).
			Msg("Processing state changed")
	}

	if s.eventService == nil {
		return
	}

	eventType := interfaces.EventProcessingStatus
	if old.Status == status.Status && status.Status == models.StatusProcessing {
		// Same-state unit updates are high frequency and throttled downstream
		eventType = interfaces.EventUnitProgress
	}

	s.eventService.Publish(context.Background(), interfaces.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"status":       string(status.Status),
			"current_unit": status.CurrentUnit,
			"total_units":  status.TotalUnits,
			"message":      status.Message,
			"progress":     status.Progress,
			"timestamp":    time.Now(),
		},
	})
}

// Reset returns the status to idle
func (s *Service) Reset() {
	s.Set(models.ProcessingStatus{Status: models.StatusIdle})
}
