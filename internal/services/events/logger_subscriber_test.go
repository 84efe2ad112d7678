package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

func TestNewLoggerSubscriber_HandlesPayloadShapes(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewNoOpLogger())
	ctx := context.Background()

	payloads := []interface{}{
		map[string]interface{}{"session_id": "s-1", "unit": 2, "status": "analyzed"},
		models.ProcessingStatus{Status: models.StatusProcessing, CurrentUnit: 3},
		nil,
	}
	for _, payload := range payloads {
		assert.NoError(t, subscriber(ctx, interfaces.Event{Type: interfaces.EventUnitAnalyzed, Payload: payload}))
	}
}

func TestSubscribeLoggerToAllEvents_SkipsLogEvents(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())
	defer svc.Close()

	require.NoError(t, SubscribeLoggerToAllEvents(svc, arbor.NewNoOpLogger()))

	for _, eventType := range loggedEvents {
		assert.Len(t, svc.handlersFor(eventType), 1, string(eventType))
	}
	assert.Empty(t, svc.handlersFor(interfaces.EventLogEntry))
}

func TestLoggerSubscriberDoesNotInterfere(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())
	defer svc.Close()
	require.NoError(t, SubscribeLoggerToAllEvents(svc, arbor.NewNoOpLogger()))

	calls := 0
	require.NoError(t, svc.Subscribe(interfaces.EventExportCompleted, func(ctx context.Context, event interfaces.Event) error {
		calls++
		return nil
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventExportCompleted,
		Payload: map[string]interface{}{"path": "/out/doc_redacted.pdf"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
