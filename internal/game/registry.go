package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Registry maps client message types and game types to handlers.
type Registry struct {
	mu       sync.RWMutex
	byType   map[model.GameType]Handler
	messages map[string]Handler
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:   make(map[model.GameType]Handler),
		messages: make(map[string]Handler),
	}
}

// Register adds a handler. A handler for the same game type is replaced
// together with its message types.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("cannot register nil handler")
	}
	if !h.GameType().Valid() {
		return fmt.Errorf("unknown game type %d", h.GameType())
	}
	msgs := h.Messages()
	if len(msgs) == 0 {
		return fmt.Errorf("%s handler accepts no messages", h.GameType())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range msgs {
		if other, ok := r.messages[m]; ok && other.GameType() != h.GameType() {
			return fmt.Errorf("message %q already handled by %s", m, other.GameType())
		}
	}
	if old, ok := r.byType[h.GameType()]; ok {
		for _, m := range old.Messages() {
			delete(r.messages, m)
		}
	}
	r.byType[h.GameType()] = h
	for _, m := range msgs {
		r.messages[m] = h
	}
	return nil
}

// Get returns the handler for a game type.
func (r *Registry) Get(gt model.GameType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byType[gt]
	return h, ok
}

// ForMessage returns the handler for a client message type.
func (r *Registry) ForMessage(msgType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.messages[msgType]
	return h, ok
}

// Messages returns every registered message type, sorted.
func (r *Registry) Messages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.messages))
	for m := range r.messages {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Dispatch routes msg to its handler.
func (r *Registry) Dispatch(ctx context.Context, sess *session.Session, msg Message) model.HandleResult {
	h, ok := r.ForMessage(msg.Type)
	if !ok {
		return model.Fail(model.CodeUnknownGame, fmt.Sprintf("unknown message type %q", msg.Type))
	}
	return h.HandleMessage(ctx, sess, msg)
}
