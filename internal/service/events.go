package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/forgo/craftlink/internal/clock"
)

// EventType represents the type of event
type EventType string

const (
	// EventNotification carries a newly stored inbox entry
	EventNotification EventType = "notification"

	// EventHeartbeat keeps idle streams open through proxies
	EventHeartbeat EventType = "heartbeat"
)

// DefaultHeartbeatInterval is how often idle streams get a heartbeat
const DefaultHeartbeatInterval = 30 * time.Second

// subscriberBuffer bounds the events queued for a slow stream
const subscriberBuffer = 64

// Event represents a server-sent event
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Format returns the SSE formatted string
func (e *Event) Format() string {
	data, _ := json.Marshal(e.Data)
	return "event: " + string(e.Type) + "\ndata: " + string(data) + "\n\n"
}

// Subscriber represents a connected SSE client
type Subscriber struct {
	ID     string
	UserID string
	Events chan *Event
	Done   chan struct{}
}

// EventHub fans inbox events out to each user's open streams.
// Delivery is best effort: a subscriber whose buffer is full misses the
// event and catches up from the inbox listing.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // userID -> subscriberID -> subscriber
	heartbeat   clock.Ticker
	clock       clock.Clock
	done        chan struct{}
	closeOnce   sync.Once
}

// NewEventHub creates a hub that sends heartbeats every interval
func NewEventHub(clk clock.Clock, interval time.Duration) *EventHub {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	hub := &EventHub{
		subscribers: make(map[string]map[string]*Subscriber),
		heartbeat:   clk.NewTicker(interval),
		clock:       clk,
		done:        make(chan struct{}),
	}
	go hub.sendHeartbeats()
	return hub
}

// Subscribe adds a new stream for a user
func (h *EventHub) Subscribe(userID, subscriberID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     subscriberID,
		UserID: userID,
		Events: make(chan *Event, subscriberBuffer),
		Done:   make(chan struct{}),
	}
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[string]*Subscriber)
	}
	h.subscribers[userID][subscriberID] = sub
	return sub
}

// Unsubscribe removes a stream. Unknown subscribers are ignored.
func (h *EventHub) Unsubscribe(userID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userSubs, ok := h.subscribers[userID]
	if !ok {
		return
	}
	if sub, ok := userSubs[subscriberID]; ok {
		close(sub.Done)
		close(sub.Events)
		delete(userSubs, subscriberID)
	}
	if len(userSubs) == 0 {
		delete(h.subscribers, userID)
	}
}

// SendToUser queues an event on every stream of a user
func (h *EventHub) SendToUser(userID string, event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[userID] {
		select {
		case sub.Events <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of open streams for a user
func (h *EventHub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

func (h *EventHub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C():
			event := &Event{
				Type: EventHeartbeat,
				Data: map[string]string{"timestamp": h.clock.Now().UTC().Format(time.RFC3339)},
			}
			h.mu.RLock()
			for _, userSubs := range h.subscribers {
				for _, sub := range userSubs {
					select {
					case sub.Events <- event:
					default:
					}
				}
			}
			h.mu.RUnlock()
		case <-h.done:
			return
		}
	}
}

// Close stops the heartbeat and ends every open stream
func (h *EventHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.heartbeat.Stop()

		h.mu.Lock()
		defer h.mu.Unlock()
		for userID, userSubs := range h.subscribers {
			for _, sub := range userSubs {
				close(sub.Done)
				close(sub.Events)
			}
			delete(h.subscribers, userID)
		}
	})
}
