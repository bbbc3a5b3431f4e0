package service

import (
	"sync"
	"time"

	"github.com/bnema/convqueue/internal/domain"
	"github.com/google/uuid"
)

type EventType string

const (
	EventItemAdded            EventType = "item_added"
	EventItemStarted          EventType = "item_started"
	EventItemUpdated          EventType = "item_updated"
	EventItemCompleted        EventType = "item_completed"
	EventItemDeleted          EventType = "item_deleted"
	EventStatusDetailAppended EventType = "status_detail_appended"
	EventQueueStatusChanged   EventType = "queue_status_changed"
)

// Event is a lifecycle notification. Item is a snapshot taken when the event
// fired; it is nil for queue status changes.
type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	Item        *domain.QueueItem `json:"item,omitempty"`
	QueueStatus QueueStatus       `json:"queue_status"`
	Detail      string            `json:"detail,omitempty"`
	At          time.Time         `json:"at"`
}

func newEvent(t EventType, item *domain.QueueItem, status QueueStatus) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		Item:        item.Clone(),
		QueueStatus: status,
		At:          time.Now().UTC(),
	}
}

type EventPublisher interface {
	Publish(event Event)
}

// EventBus fans lifecycle events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (eb *EventBus) Subscribe() chan Event {
	return eb.SubscribeBuffered(64)
}

func (eb *EventBus) SubscribeBuffered(size int) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, size)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}

func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
