package device

import (
	"sync"
	"time"
)

// Event type constants
const (
	EventDeviceAdded      = "device_added"
	EventDeviceUpdated    = "device_updated"
	EventDeviceRemoved    = "device_removed"
	EventStatusChanged    = "status_changed"
	EventExecutionUpdated = "execution_updated"
)

// Event describes a change in the registry or an execution transition
type Event struct {
	Type      string     `json:"type"`
	DeviceID  string     `json:"deviceId"`
	Device    *Device    `json:"device,omitempty"`
	Execution *Execution `json:"execution,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// EventSubscriber defines the interface for subscribing to device events
type EventSubscriber interface {
	// Subscribe returns a channel that receives events
	Subscribe() chan Event

	// Unsubscribe removes a subscription and closes its channel
	Unsubscribe(ch chan Event)
}

// Hub fans events out to subscribers. Slow subscribers miss events rather
// than blocking publishers.
type Hub struct {
	mu          sync.Mutex
	subscribers []chan Event
}

// NewHub creates an event hub with no subscribers.
func NewHub() *Hub {
	return &Hub{}
}

// Publish delivers evt to every subscriber that has room for it.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}
