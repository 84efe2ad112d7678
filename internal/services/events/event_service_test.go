package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

func TestSubscribe_RejectsNilHandler(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventUnitAnalyzed, nil))
}

func TestPublishSync_DeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())

	var calls int32
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Subscribe(interfaces.EventUnitAnalyzed, func(ctx context.Context, e interfaces.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}))
	}

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventUnitAnalyzed})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPublishSync_ReportsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())
	require.NoError(t, svc.Subscribe(interfaces.EventUnitFailed, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("boom")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventUnitFailed})
	assert.Error(t, err)
}

func TestPublish_IsAsynchronous(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())

	received := make(chan interfaces.Event, 1)
	require.NoError(t, svc.Subscribe(interfaces.EventProcessingStatus, func(ctx context.Context, e interfaces.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventProcessingStatus,
		Payload: "done",
	}))

	select {
	case e := <-received:
		assert.Equal(t, "done", e.Payload)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())
	assert.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSessionReset}))
}

func TestClose_DropsSubscribers(t *testing.T) {
	svc := NewService(arbor.NewNoOpLogger())

	var calls int32
	require.NoError(t, svc.Subscribe(interfaces.EventUnitAnalyzed, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, svc.Close())

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventUnitAnalyzed}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
