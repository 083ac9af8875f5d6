package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for event handlers")
	}
}

func TestBus(t *testing.T) {
	t.Run("Subscribe and Publish", func(t *testing.T) {
		bus := NewBus(EventChannelSize)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		bus.Start(ctx)

		var wg sync.WaitGroup
		wg.Add(1)
		var received Event
		bus.Subscribe(EventItemAdded, func(ctx context.Context, event Event) error {
			received = event
			wg.Done()
			return nil
		})

		bus.Publish(7, EventItemAdded, map[string]interface{}{"item_id": 3})
		waitGroup(t, &wg)

		assert.Equal(t, EventItemAdded, received.Type)
		assert.Equal(t, uint(7), received.OwnerID)
		assert.Equal(t, map[string]interface{}{"item_id": 3}, received.Payload)
		assert.False(t, received.Timestamp.IsZero())
	})

	t.Run("Different Event Types and SubscribeAll", func(t *testing.T) {
		bus := NewBus(EventChannelSize)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		bus.Start(ctx)

		var wg sync.WaitGroup
		wg.Add(4)
		var mu sync.Mutex
		typed := map[EventType]int{}
		all := 0

		bus.Subscribe(EventFeaturesCommitted, func(ctx context.Context, event Event) error {
			mu.Lock()
			typed[event.Type]++
			mu.Unlock()
			wg.Done()
			return nil
		})
		bus.Subscribe(EventFeaturesDeleted, func(ctx context.Context, event Event) error {
			mu.Lock()
			typed[event.Type]++
			mu.Unlock()
			wg.Done()
			return nil
		})
		bus.SubscribeAll(func(ctx context.Context, event Event) error {
			mu.Lock()
			all++
			mu.Unlock()
			wg.Done()
			return nil
		})

		bus.Publish(1, EventFeaturesCommitted, nil)
		bus.Publish(1, EventFeaturesDeleted, nil)
		waitGroup(t, &wg)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, typed[EventFeaturesCommitted])
		assert.Equal(t, 1, typed[EventFeaturesDeleted])
		assert.Equal(t, 2, all)
	})

	t.Run("Publish never blocks when full", func(t *testing.T) {
		bus := NewBus(2)

		done := make(chan struct{})
		go func() {
			for i := 0; i < 5; i++ {
				bus.Publish(1, EventJobStatus, i)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish blocked on a full buffer")
		}
		assert.Equal(t, int64(3), bus.Dropped())
	})

	t.Run("Listeners only see their owner", func(t *testing.T) {
		bus := NewBus(EventChannelSize)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		bus.Start(ctx)

		mine, release := bus.Listen(1)
		defer release()
		other, releaseOther := bus.Listen(2)

		bus.Publish(2, EventItemDeleted, "other")
		bus.Publish(1, EventItemDeleted, "mine")

		select {
		case event := <-mine:
			assert.Equal(t, "mine", event.Payload)
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not receive event")
		}
		select {
		case event := <-other:
			assert.Equal(t, "other", event.Payload)
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not receive event")
		}

		releaseOther()
		releaseOther()
		_, open := <-other
		require.False(t, open)
	})
}
