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

	"github.com/ternarybob/pricewatch/internal/interfaces"
)

func TestPublishSync_CallsAllHandlers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	require.NoError(t, service.Subscribe(interfaces.EventCycleCompleted, handler))
	require.NoError(t, service.Subscribe(interfaces.EventCycleCompleted, handler))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventCycleCompleted})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPublishSync_ReportsFailuresWithoutStoppingOthers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var ok int32
	require.NoError(t, service.Subscribe(interfaces.EventAlertTriggered, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, service.Subscribe(interfaces.EventAlertTriggered, func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&ok, 1)
		return nil
	}))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventAlertTriggered})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok))
}

func TestPublish_IsAsynchronous(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, service.Subscribe(interfaces.EventItemChecked, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	payload := map[string]interface{}{"item_id": "abc"}
	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventItemChecked, Payload: payload}))

	select {
	case event := <-received:
		assert.Equal(t, interfaces.EventItemChecked, event.Type)
		assert.Equal(t, payload, event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestUnsubscribe(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	require.NoError(t, service.Subscribe(interfaces.EventCycleStarted, handler))
	require.NoError(t, service.Unsubscribe(interfaces.EventCycleStarted, handler))
	assert.Error(t, service.Unsubscribe(interfaces.EventCycleStarted, handler))

	require.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventCycleStarted}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSubscribe_NilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	assert.Error(t, service.Subscribe(interfaces.EventCycleStarted, nil))
}

func TestLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())

	err := subscriber(context.Background(), interfaces.Event{
		Type:    interfaces.EventItemChecked,
		Payload: map[string]interface{}{"cycle_id": "cycle_1", "item_id": "item_1"},
	})
	assert.NoError(t, err)
	assert.NoError(t, subscriber(context.Background(), interfaces.Event{Type: interfaces.EventCycleStarted}))

	service := NewService(arbor.NewLogger())
	require.NoError(t, SubscribeLoggerToAllEvents(service, arbor.NewLogger()))
}
