// Package events subscribes to the execution layer's event stream and
// correlates submitted transactions with the events they produce.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"casino-gateway/internal/model"
)

// listenerBuffer holds events that arrive before the listener is awaited.
const listenerBuffer = 8

// Match selects the events a listener receives.
type Match func(model.Event) bool

// Stream is a subscription to execution layer events.
type Stream interface {
	// Listen registers a listener. The channel is closed when the stream
	// ends or cancel is called.
	Listen(match Match) (<-chan model.Event, func())
	// Done is closed when the stream ends.
	Done() <-chan struct{}
	Close() error
}

type listener struct {
	match Match
	ch    chan model.Event
}

// Hub is an in-process Stream fed by Publish.
type Hub struct {
	mu        sync.Mutex
	listeners map[uint64]*listener
	nextID    uint64
	done      chan struct{}
	closed    bool
}

// NewHub creates an open Hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[uint64]*listener),
		done:      make(chan struct{}),
	}
}

// Listen registers a listener for events accepted by match.
func (h *Hub) Listen(match Match) (<-chan model.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.Event, listenerBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.listeners[id] = &listener{match: match, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if l, ok := h.listeners[id]; ok {
				delete(h.listeners, id)
				close(l.ch)
			}
		})
	}
}

// Publish delivers ev to every matching listener. A listener whose buffer
// is full misses the event.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		if l.match != nil && !l.match(ev) {
			continue
		}
		select {
		case l.ch <- ev:
		default:
			log.Warn().Str("kind", string(ev.Kind)).Uint64("session_id", ev.SessionID).Msg("Dropping event for slow listener")
		}
	}
}

// Done is closed when the hub is closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Close ends the hub and closes every listener channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for id, l := range h.listeners {
		close(l.ch)
		delete(h.listeners, id)
	}
	return nil
}

// Kinds matches events of any of the given kinds.
func Kinds(kinds ...model.EventKind) Match {
	return func(ev model.Event) bool {
		for _, k := range kinds {
			if ev.Kind == k {
				return true
			}
		}
		return false
	}
}

// ForSession narrows m to events of one game session. Events that carry no
// session id (such as some errors) still match.
func ForSession(sessionID uint64, m Match) Match {
	return func(ev model.Event) bool {
		if ev.SessionID != 0 && ev.SessionID != sessionID {
			return false
		}
		return m == nil || m(ev)
	}
}

// ForPlayer narrows m to events of one player. Events without a player match.
func ForPlayer(player string, m Match) Match {
	return func(ev model.Event) bool {
		if ev.Player != "" && player != "" && ev.Player != player {
			return false
		}
		return m == nil || m(ev)
	}
}
