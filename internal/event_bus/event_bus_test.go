package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishRunsHandlersInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var calls []int
	for i := 1; i <= 5; i++ {
		i := i
		bus.Subscribe("test", func(Event) error {
			calls = append(calls, i)
			return nil
		})
	}

	err := bus.Publish(NewEvent(context.Background(), "test", nil))

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	called := 0
	unsubscribe := bus.Subscribe("test", func(Event) error {
		called++
		return nil
	})

	require.NoError(t, bus.Publish(NewEvent(context.Background(), "test", nil)))
	unsubscribe()
	unsubscribe()
	require.NoError(t, bus.Publish(NewEvent(context.Background(), "test", nil)))

	assert.Equal(t, 1, called)
	assert.Equal(t, 0, bus.Subscribers("test"))
}

func TestEventBus_ErrorsAndPanicsAreCollected(t *testing.T) {
	bus := NewEventBus()
	reached := false
	bus.Subscribe("test", func(Event) error { return errors.New("boom") })
	bus.Subscribe("test", func(Event) error { panic("handler exploded") })
	bus.Subscribe("test", func(Event) error {
		reached = true
		return nil
	})

	err := bus.Publish(NewEvent(context.Background(), "test", nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 handler(s) failed")
	assert.True(t, reached)
}

func TestEventBus_CancelledContext(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe("test", func(Event) error {
		called = true
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(NewEvent(ctx, "test", nil))

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSubscribeTyped(t *testing.T) {
	bus := NewEventBus()
	var received []UserCreated
	SubscribeTyped[UserCreated](bus, UserCreatedType, func(e EventT[UserCreated]) error {
		received = append(received, e.Data)
		assert.NotNil(t, e.Context())
		return nil
	})

	require.NoError(t, bus.Publish(NewEvent(context.Background(), UserCreatedType, UserCreated{Uid: "device_1", Username: "zoe"})))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), UserCreatedType, "not a user")))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), UserCreatedType, nil)))

	assert.Equal(t, []UserCreated{{Uid: "device_1", Username: "zoe"}}, received)
}
