package relay

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueSize is the number of frames buffered per subscriber.
const DefaultQueueSize = 32

// subscriber is one SSE connection.
type subscriber struct {
	id      string
	channel string
	frames  chan []byte
}

// Hub tracks subscribers per channel and fans frames out to them. Delivery
// never blocks: a subscriber whose queue is full misses the frame.
type Hub struct {
	mu        sync.RWMutex
	channels  map[string]map[string]*subscriber
	queueSize int
}

// NewHub creates a Hub. A non-positive queueSize selects DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		channels:  make(map[string]map[string]*subscriber),
		queueSize: queueSize,
	}
}

func (h *Hub) subscribe(channel string) *subscriber {
	sub := &subscriber{
		id:      uuid.NewString(),
		channel: channel,
		frames:  make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]*subscriber)
		h.channels[channel] = subs
	}
	subs[sub.id] = sub
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[sub.channel]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.channels, sub.channel)
	}
}

// Broadcast queues frame for every subscriber of channel except skip, and
// returns how many subscribers it was queued for.
func (h *Hub) Broadcast(channel string, frame []byte, skip string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, sub := range h.channels[channel] {
		if id == skip {
			continue
		}
		select {
		case sub.frames <- frame:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Channels returns the number of channels with at least one subscriber.
func (h *Hub) Channels() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}
