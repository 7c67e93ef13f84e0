// Package session holds the per-account state threaded between game calls.
package session

import (
	"hash/fnv"
	"sync"
	"time"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/events"
	"casino-gateway/internal/model"
)

// Session is the mutable record of one connected account. Game state is
// changed under the account's nonce lock or from a correlated event.
type Session struct {
	ID     string
	Sealer backend.Sealer

	mu            sync.Mutex
	registered    bool
	activeGameID  *uint64
	gameType      *model.GameType
	confirmed     bool
	balance       uint64
	balanceSeq    uint64
	gameCounter   uint64
	accountStream events.Stream
	sessionStream events.Stream
	awaiting      int
	settled       eventKey
}

// eventKey identifies an event well enough to recognize a redelivery.
type eventKey struct {
	kind       model.EventKind
	sessionID  uint64
	moveNumber uint32
	message    string
}

func keyOf(ev model.Event) eventKey {
	return eventKey{kind: ev.Kind, sessionID: ev.SessionID, moveNumber: ev.MoveNumber, message: ev.ErrorMessage}
}

// New creates a session for a connection.
func New(id string, sealer backend.Sealer) *Session {
	return &Session{
		ID:          id,
		Sealer:      sealer,
		gameCounter: uint64(time.Now().UnixMilli()) & 0xffffffff,
	}
}

// PublicKey returns the account key.
func (s *Session) PublicKey() string {
	return s.Sealer.PublicKey()
}

// Registered reports whether the account is registered with the casino.
func (s *Session) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// SetRegistered marks the account registered.
func (s *Session) SetRegistered(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = v
}

// ActiveGame returns the on-chain session id and game type in progress.
func (s *Session) ActiveGame() (uint64, model.GameType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeGameID == nil || s.gameType == nil {
		return 0, 0, false
	}
	return *s.activeGameID, *s.gameType, true
}

// BeginGame records a game in progress.
func (s *Session) BeginGame(sessionID uint64, gt model.GameType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGameID = &sessionID
	s.gameType = &gt
	s.confirmed = false
}

// ConfirmGame marks the game in progress as seen by the backend when it
// is sessionID.
func (s *Session) ConfirmGame(sessionID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeGameID == nil || *s.activeGameID != sessionID {
		return false
	}
	s.confirmed = true
	return true
}

// GameConfirmed reports whether an event has confirmed the game in progress.
func (s *Session) GameConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeGameID != nil && s.confirmed
}

// AdoptSessionID replaces the active session id with the one the backend
// assigned. It does nothing when no game is active.
func (s *Session) AdoptSessionID(sessionID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeGameID != nil {
		s.activeGameID = &sessionID
	}
}

// EndGame clears the game in progress.
func (s *Session) EndGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGameID = nil
	s.gameType = nil
	s.confirmed = false
}

// EndGameIf clears the game in progress when it is sessionID.
func (s *Session) EndGameIf(sessionID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeGameID == nil || *s.activeGameID != sessionID {
		return false
	}
	s.activeGameID = nil
	s.gameType = nil
	s.confirmed = false
	return true
}

// Balance returns the last known chip balance and its sequence number.
func (s *Session) Balance() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, s.balanceSeq
}

// SetBalance stores a new chip balance and bumps the sequence.
func (s *Session) SetBalance(chips uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = chips
	s.balanceSeq++
	return s.balanceSeq
}

// BumpBalanceSeq marks a balance-affecting event without a known balance.
func (s *Session) BumpBalanceSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceSeq++
	return s.balanceSeq
}

// NextSessionID proposes a game session id: the high 32 bits are derived
// from the account key, the low 32 bits from a per-account counter.
func (s *Session) NextSessionID() uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.PublicKey()))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameCounter++
	id := uint64(h.Sum32())<<32 | (s.gameCounter & 0xffffffff)
	if id == 0 {
		s.gameCounter++
		id = s.gameCounter & 0xffffffff
	}
	return id
}

// AccountStream returns the account-scoped event stream.
func (s *Session) AccountStream() events.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountStream
}

// SetAccountStream attaches the account-scoped event stream.
func (s *Session) SetAccountStream(stream events.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountStream = stream
}

// SessionStream returns the stream bound to the active game, if any.
func (s *Session) SessionStream() events.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionStream
}

// BindSessionStream replaces the session-scoped stream, closing the old one.
func (s *Session) BindSessionStream(stream events.Stream) {
	s.mu.Lock()
	old := s.sessionStream
	s.sessionStream = stream
	s.mu.Unlock()
	if old != nil && old != stream {
		_ = old.Close()
	}
}

// CloseSessionStream closes and forgets the session-scoped stream.
func (s *Session) CloseSessionStream() {
	s.BindSessionStream(nil)
}

// BeginAwait marks a handler as waiting for events; EndAwait undoes it.
func (s *Session) BeginAwait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting++
}

// EndAwait undoes BeginAwait.
func (s *Session) EndAwait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting > 0 {
		s.awaiting--
	}
}

// Settle records ev as answered by the request that was waiting for it.
func (s *Session) Settle(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = keyOf(ev)
}

// Settled reports whether ev is the event last passed to Settle.
func (s *Session) Settled(ev model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled != eventKey{} && s.settled == keyOf(ev)
}

// Awaiting reports whether a handler is waiting for events.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting > 0
}

// Close releases both event streams.
func (s *Session) Close() {
	s.CloseSessionStream()
	s.mu.Lock()
	acct := s.accountStream
	s.accountStream = nil
	s.mu.Unlock()
	if acct != nil {
		_ = acct.Close()
	}
}
