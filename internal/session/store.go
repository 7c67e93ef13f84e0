package session

import "sync"

// Store indexes live sessions by account public key.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put adds s, replacing any session for the same account.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.PublicKey()] = s
}

// Get returns the session for an account.
func (st *Store) Get(publicKey string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[publicKey]
	return s, ok
}

// Remove deletes s if it is still the account's current session.
func (st *Store) Remove(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.sessions[s.PublicKey()]; ok && cur == s {
		delete(st.sessions, s.PublicKey())
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
