package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mockbird/mockbird/pkg/logging"
)

// subscriberBuffer bounds how far one subscriber may fall behind before
// events are dropped for it.
const subscriberBuffer = 16

// Hub is an in-process Bus.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan *Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub creates an empty in-process bus.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{
		log:  log,
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish implements Bus. Subscribers that cannot keep up lose events
// rather than stalling the serving path.
func (h *Hub) Publish(ctx context.Context, userID string, ev *Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber", "user_id", userID)
		}
	}
	return nil
}

// Subscribe implements Bus.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan *Event, func(), error) {
	sub := &subscriber{ch: make(chan *Event, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[userID], sub)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel, nil
}

// Close implements Bus. Every subscriber channel is closed so attached
// readers unblock immediately instead of waiting for a timeout.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.subs {
		for sub := range subs {
			sub.close()
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
	return nil
}
