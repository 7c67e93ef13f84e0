// Package gametest provides a scripted in-memory execution layer for
// testing game handlers.
package gametest

import (
	"context"
	"encoding/binary"
	"sync"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/events"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// sealed transaction trailer: ed25519 public key and signature
const txTrailer = 32 + 64

// Submitted is one transaction the fake backend accepted.
type Submitted struct {
	Nonce       uint64
	Instruction []byte
}

// Tag returns the instruction tag.
func (s Submitted) Tag() byte {
	return s.Instruction[0]
}

// GameType returns the game type of a start instruction.
func (s Submitted) GameType() model.GameType {
	return model.GameType(s.Instruction[1])
}

// Bet returns the bet of a start instruction.
func (s Submitted) Bet() uint64 {
	return binary.BigEndian.Uint64(s.Instruction[2:10])
}

// SessionID returns the session id of a start or move instruction, or 0.
func (s Submitted) SessionID() uint64 {
	switch s.Tag() {
	case backend.TagCasinoStartGame:
		return binary.BigEndian.Uint64(s.Instruction[10:18])
	case backend.TagCasinoGameMove:
		return binary.BigEndian.Uint64(s.Instruction[1:9])
	}
	return 0
}

// Payload returns the move payload of a move instruction.
func (s Submitted) Payload() []byte {
	return s.Instruction[13:]
}

// Backend is a fake execution layer. It enforces nonces like the real one,
// then publishes the events Respond returns.
type Backend struct {
	// Respond scripts the events produced by an accepted transaction.
	Respond func(Submitted) []model.Event
	// Reject, when set, can refuse a transaction with a non-nil error.
	Reject func(Submitted) error

	// Stream is the account event stream.
	Stream *events.Hub

	mu        sync.Mutex
	nonce     uint64
	player    *backend.Account
	submitted []Submitted
	sessions  []*events.Hub
	attempts  int
}

// NewBackend creates a fake backend with an open account stream.
func NewBackend() *Backend {
	return &Backend{Stream: events.NewHub()}
}

// Submit accepts a sealed transaction.
func (b *Backend) Submit(_ context.Context, tx []byte) error {
	n := binary.BigEndian.Uint64(tx[:8])
	s := Submitted{Nonce: n, Instruction: append([]byte(nil), tx[8:len(tx)-txTrailer]...)}

	b.mu.Lock()
	b.attempts++
	if n != b.nonce {
		b.mu.Unlock()
		return &backend.RejectedError{Status: 400, Message: "invalid nonce"}
	}
	if b.Reject != nil {
		if err := b.Reject(s); err != nil {
			b.mu.Unlock()
			return err
		}
	}
	b.nonce++
	b.submitted = append(b.submitted, s)
	var sessionHub *events.Hub
	if len(b.sessions) > 0 {
		sessionHub = b.sessions[len(b.sessions)-1]
	}
	b.mu.Unlock()

	if b.Respond == nil {
		return nil
	}
	for _, ev := range b.Respond(s) {
		if ev.Kind == model.EventMoved && sessionHub != nil {
			sessionHub.Publish(ev)
			continue
		}
		b.Stream.Publish(ev)
	}
	return nil
}

// Nonce returns the next nonce the backend expects.
func (b *Backend) Nonce(context.Context, string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

// SetNonce moves the backend's expected nonce.
func (b *Backend) SetNonce(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonce = n
}

// SetPlayer makes the backend report a registered player.
func (b *Backend) SetPlayer(name string, chips uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player = &backend.Account{Registered: true, Name: name, Chips: chips}
}

// Account returns the account document the backend would serve.
func (b *Backend) Account(context.Context, string) (*backend.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := backend.Account{Nonce: b.nonce}
	if b.player != nil {
		acct.Registered = true
		acct.Name = b.player.Name
		acct.Chips = b.player.Chips
	}
	return &acct, nil
}

// OpenAccount returns the shared account stream.
func (b *Backend) OpenAccount(context.Context, string) (events.Stream, error) {
	return b.Stream, nil
}

// OpenSession returns a fresh session stream that receives moved events.
func (b *Backend) OpenSession(context.Context, uint64) (events.Stream, error) {
	h := events.NewHub()
	b.mu.Lock()
	b.sessions = append(b.sessions, h)
	b.mu.Unlock()
	return h, nil
}

// Submitted returns the accepted transactions in order.
func (b *Backend) Submitted() []Submitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Submitted(nil), b.submitted...)
}

// Attempts returns how many transactions were offered, accepted or not.
func (b *Backend) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Moves returns the payloads of accepted move instructions in order.
func (b *Backend) Moves() [][]byte {
	var out [][]byte
	for _, s := range b.Submitted() {
		if s.Tag() == backend.TagCasinoGameMove {
			out = append(out, s.Payload())
		}
	}
	return out
}

// NewSession creates a session with a fresh key on the account stream.
func (b *Backend) NewSession(registered bool) *session.Session {
	sealer, err := backend.GenerateEd25519Sealer()
	if err != nil {
		panic(err)
	}
	s := session.New("test", sealer)
	s.SetRegistered(registered)
	s.SetAccountStream(b.Stream)
	return s
}

// Script confirms every start instruction and answers moves with move,
// which may be nil.
func Script(move func(Submitted) []model.Event) func(Submitted) []model.Event {
	return func(s Submitted) []model.Event {
		switch {
		case s.Tag() == backend.TagCasinoStartGame:
			return []model.Event{Started(s, nil)}
		case move == nil:
			return nil
		}
		return move(s)
	}
}

// Started is the event confirming a start instruction.
func Started(s Submitted, state []byte) model.Event {
	return model.Event{
		Kind:         model.EventStarted,
		SessionID:    s.SessionID(),
		GameType:     s.GameType(),
		Bet:          s.Bet(),
		InitialState: state,
	}
}

// Moved is an interim move event.
func Moved(s Submitted, moveNumber uint32, state []byte) model.Event {
	return model.Event{Kind: model.EventMoved, SessionID: s.SessionID(), MoveNumber: moveNumber, NewState: state}
}

// Completed is a final game event.
func Completed(s Submitted, payout int64, finalChips uint64) model.Event {
	return model.Event{Kind: model.EventCompleted, SessionID: s.SessionID(), Payout: payout, FinalChips: &finalChips}
}

// Failed is an error event.
func Failed(s Submitted, msg string) model.Event {
	return model.Event{Kind: model.EventError, SessionID: s.SessionID(), ErrorMessage: msg}
}
