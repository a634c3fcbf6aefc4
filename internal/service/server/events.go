package server

import (
	"sync"
	"time"

	"voip_chat/internal/model"
)

const eventBufferSize = 32

// Event is one lifecycle notification for presentation layers. Code is CONNECT or
// DISCONNECT for sessions and SERVER_START or SERVER_STOP for the server itself.
type Event struct {
	Code     model.Code `json:"code"`
	Type     string     `json:"type"`
	ID       string     `json:"id,omitempty"`
	Username string     `json:"username,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	At       time.Time  `json:"at"`
}

func newEvent(code model.Code, entry model.RosterEntry, reason string) Event {
	return Event{
		Code:     code,
		Type:     code.String(),
		ID:       entry.ID,
		Username: entry.Username,
		Reason:   reason,
		At:       time.Now().UTC(),
	}
}

// eventHub fans events out to subscribers. Slow subscribers miss events rather than
// stall the publisher.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan Event]struct{})}
}

func (h *eventHub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *eventHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
