package handlers

import (
	"context"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// EventSurface drives the browser's document and waveform renderers by publishing
// render_command events, which the WebSocket subscriber forwards to clients.
type EventSurface struct {
	eventService interfaces.EventService
}

// NewEventSurface creates a surface publishing on the given event service
func NewEventSurface(eventService interfaces.EventService) *EventSurface {
	return &EventSurface{eventService: eventService}
}

func (s *EventSurface) publish(target, command string, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	payload["target"] = target
	payload["command"] = command
	s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRenderCommand,
		Payload: payload,
	})
}

// NavigateTo asks the document renderer to show a page
func (s *EventSurface) NavigateTo(unit int) {
	s.publish("document", "navigate", map[string]interface{}{"unit": unit})
}

// SetScale asks the document renderer to zoom
func (s *EventSurface) SetScale(factor float64) {
	s.publish("document", "scale", map[string]interface{}{"scale": factor})
}

func (s *EventSurface) Seek(seconds float64) {
	s.publish("audio", "seek", map[string]interface{}{"time": seconds})
}

func (s *EventSurface) SetVolume(volume float64) {
	s.publish("audio", "volume", map[string]interface{}{"volume": volume})
}

// RenderRegions replaces the waveform's redaction regions
func (s *EventSurface) RenderRegions(actions []models.RedactionAction) {
	if actions == nil {
		actions = []models.RedactionAction{}
	}
	s.publish("audio", "regions", map[string]interface{}{"regions": actions})
}
