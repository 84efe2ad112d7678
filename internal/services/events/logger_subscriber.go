package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// loggedEvents are the event types traced at debug level. log_event is excluded,
// it carries log entries and tracing it would echo every entry back.
var loggedEvents = []interfaces.EventType{
	interfaces.EventProcessingStatus,
	interfaces.EventUnitAnalyzed,
	interfaces.EventUnitFailed,
	interfaces.EventUnitProgress,
	interfaces.EventSuggestionsChanged,
	interfaces.EventRedactionsChanged,
	interfaces.EventExportCompleted,
	interfaces.EventRenderCommand,
	interfaces.EventSessionReset,
}

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case map[string]interface{}:
			if id, ok := payload["session_id"].(string); ok {
				logEvent = logEvent.Str("session_id", id)
			}
			if unit, ok := payload["unit"].(int); ok {
				logEvent = logEvent.Int("unit", unit)
			}
			if status, ok := payload["status"].(string); ok {
				logEvent = logEvent.Str("status", status)
			}
		case models.ProcessingStatus:
			logEvent = logEvent.
				Str("status", string(payload.Status)).
				Int("unit", payload.CurrentUnit)
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to every traced event type
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range loggedEvents {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(loggedEvents)).
		Msg("Logger subscribed to event types")
	return nil
}
