package service

import (
	"sync"
	"testing"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	require.Equal(t, 2, bus.SubscriberCount())

	item := &domain.QueueItem{ID: 3, Status: domain.ItemStatusWaiting}
	bus.Publish(newEvent(EventItemAdded, item, QueueIdle))

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, EventItemAdded, ev.Type)
		assert.Equal(t, int64(3), ev.Item.ID)
		assert.Equal(t, QueueIdle, ev.QueueStatus)
	}
}

func TestEventBus_EventCarriesSnapshot(t *testing.T) {
	item := &domain.QueueItem{ID: 1, Status: domain.ItemStatusWaiting}

	ev := newEvent(EventItemStarted, item, QueueProcessing)
	item.Status = domain.ItemStatusComplete

	assert.Equal(t, domain.ItemStatusWaiting, ev.Item.Status)
	assert.Nil(t, newEvent(EventQueueStatusChanged, nil, QueueIdle).Item)
}

func TestEventBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	slow := bus.SubscribeBuffered(1)

	for i := 0; i < 10; i++ {
		bus.Publish(newEvent(EventItemUpdated, nil, QueueIdle))
	}

	assert.Len(t, slow, 1)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()

	bus.Unsubscribe(ch)
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, bus.SubscriberCount())
	bus.Publish(newEvent(EventItemAdded, nil, QueueIdle))
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	ch := bus.SubscribeBuffered(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(newEvent(EventItemUpdated, nil, QueueProcessing))
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 50)
}
