package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

// broadcastEvents are forwarded to WebSocket clients under their own type name
var broadcastEvents = []interfaces.EventType{
	interfaces.EventProcessingStatus,
	interfaces.EventUnitProgress,
	interfaces.EventUnitAnalyzed,
	interfaces.EventUnitFailed,
	interfaces.EventSuggestionsChanged,
	interfaces.EventRedactionsChanged,
	interfaces.EventExportCompleted,
	interfaces.EventRenderCommand,
	interfaces.EventSessionReset,
	interfaces.EventLogEntry,
}

// Broadcaster sends one typed message to every connected client
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// EventSubscriber forwards review events to WebSocket clients
type EventSubscriber struct {
	handler       Broadcaster
	eventService  interfaces.EventService
	logger        arbor.ILogger
	allowedEvents map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[string]*rate.Limiter // Rate limiters for high-frequency events
}

// NewEventSubscriber creates the subscriber and registers it with the event service.
// Filtering and throttling come from the websocket config section.
func NewEventSubscriber(handler Broadcaster, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:       handler,
		eventService:  eventService,
		logger:        logger,
		allowedEvents: make(map[string]bool),
		throttlers:    make(map[string]*rate.Limiter),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}

		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
				continue
			}
			// 1 event per interval (burst=1)
			s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Throttler initialized for event type")
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	s.SubscribeAll()
	return s
}

// SubscribeAll registers the forwarding handler for every broadcast event type
func (s *EventSubscriber) SubscribeAll() {
	for _, eventType := range broadcastEvents {
		if err := s.eventService.Subscribe(eventType, s.forward); err != nil {
			s.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe to event")
		}
	}
	s.logger.Debug().Int("event_types", len(broadcastEvents)).Msg("WebSocket event subscriber registered")
}

func (s *EventSubscriber) forward(ctx context.Context, event interfaces.Event) error {
	eventType := string(event.Type)
	if !s.shouldBroadcastEvent(eventType) {
		return nil
	}
	s.handler.Broadcast(eventType, event.Payload)
	return nil
}

// shouldBroadcastEvent checks if an event should be broadcast based on whitelist and throttling
func (s *EventSubscriber) shouldBroadcastEvent(eventType string) bool {
	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return false
	}

	if limiter, ok := s.throttlers[eventType]; ok {
		if !limiter.Allow() {
			return false
		}
	}

	return true
}
