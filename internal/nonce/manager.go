// Package nonce serializes submissions per account and keeps the account's
// transaction nonce in step with the execution layer.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"casino-gateway/internal/metrics"
	"casino-gateway/internal/model"
	"casino-gateway/internal/pkg/lock"
)

var (
	// ErrRetryExhausted is returned when the single retry after a resync fails too.
	ErrRetryExhausted = errors.New("submission failed after nonce resync")
	// ErrResyncFailed is returned when the authoritative nonce cannot be read.
	ErrResyncFailed = errors.New("nonce resync failed")
)

// AccountReader reads an account's authoritative nonce.
type AccountReader interface {
	Nonce(ctx context.Context, account string) (uint64, error)
}

// SendFunc submits one transaction built for nonce.
type SendFunc func(ctx context.Context, nonce uint64) error

// Manager is the per-account nonce authority.
type Manager struct {
	locks       *lock.AccountLock
	reader      AccountReader
	log         SubmissionLog
	lockTimeout time.Duration

	mu     sync.Mutex
	nonces map[string]*record
}

type record struct {
	current uint64
	synced  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockTimeout bounds how long a caller queues for the account lock.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// WithSubmissionLog replaces the in-memory submission log.
func WithSubmissionLog(l SubmissionLog) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a new nonce manager.
func NewManager(reader AccountReader, opts ...Option) *Manager {
	m := &Manager{
		locks:  lock.NewAccountLock(),
		reader: reader,
		log:    NewMemoryLog(),
		nonces: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithLock runs fn while holding the account's lock. fn receives the nonce
// to use for its next submission; the first use of an account reads the
// nonce from the execution layer.
func (m *Manager) WithLock(ctx context.Context, account string, fn func(ctx context.Context, nonce uint64) error) error {
	return m.locks.WithLock(ctx, account, m.lockTimeout, func(ctx context.Context) error {
		current, ok := m.Current(account)
		if !ok {
			synced, err := m.SyncFromBackend(ctx, account)
			if err != nil {
				return err
			}
			current = synced
		}
		return fn(ctx, current)
	})
}

// Current returns the locally tracked nonce, if the account has been synced.
func (m *Manager) Current(account string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.nonces[account]
	if !ok || !r.synced {
		return 0, false
	}
	return r.current, true
}

// SetCurrentNonce stores the next nonce to use for account.
func (m *Manager) SetCurrentNonce(account string, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.nonces[account]
	if !ok {
		r = &record{}
		m.nonces[account] = r
	}
	r.current = nonce
	r.synced = true
}

// SyncFromBackend replaces the local nonce with the authoritative one.
func (m *Manager) SyncFromBackend(ctx context.Context, account string) (uint64, error) {
	n, err := m.reader.Nonce(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResyncFailed, err)
	}
	m.SetCurrentNonce(account, n)
	log.Debug().Str("account", account).Uint64("nonce", n).Msg("Nonce synced from backend")
	return n, nil
}

// HandleRejection reports whether a rejection message is a nonce mismatch,
// in which case the caller resyncs once and retries once.
func (m *Manager) HandleRejection(account, message string) bool {
	if !strings.Contains(strings.ToLower(message), "nonce") {
		return false
	}
	m.mu.Lock()
	if r, ok := m.nonces[account]; ok {
		r.synced = false
	}
	m.mu.Unlock()
	log.Warn().Str("account", account).Str("error", message).Msg("Nonce mismatch detected")
	return true
}

// Forget drops the local nonce for account.
func (m *Manager) Forget(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nonces, account)
}

// Submit sends one transaction with nonce and advances the stored nonce on
// acceptance. A nonce mismatch triggers exactly one resync and one retry.
// It must be called from inside WithLock for the same account. The nonce
// actually used is returned.
func (m *Manager) Submit(ctx context.Context, account, kind string, nonce uint64, send SendFunc) (uint64, error) {
	err := m.attempt(ctx, account, kind, nonce, send)
	if err == nil {
		m.SetCurrentNonce(account, nonce+1)
		return nonce, nil
	}
	if !m.HandleRejection(account, err.Error()) {
		return nonce, err
	}

	metrics.RecordNonceResync()
	synced, serr := m.SyncFromBackend(ctx, account)
	if serr != nil {
		return nonce, fmt.Errorf("%w: %w", ErrRetryExhausted, serr)
	}

	if err := m.attempt(ctx, account, kind, synced, send); err != nil {
		return synced, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
	}
	m.SetCurrentNonce(account, synced+1)
	return synced, nil
}

func (m *Manager) attempt(ctx context.Context, account, kind string, nonce uint64, send SendFunc) error {
	if err := m.log.Record(ctx, model.SubmissionRecord{
		Account:   account,
		Nonce:     nonce,
		Kind:      kind,
		Status:    model.SubmissionInFlight,
		CreatedAt: time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("account", account).Uint64("nonce", nonce).Msg("Failed to record submission")
	}

	err := send(ctx, nonce)

	status := model.SubmissionAccepted
	var errMsg *string
	if err != nil {
		status = model.SubmissionRejected
		msg := err.Error()
		errMsg = &msg
	}
	if lerr := m.log.Resolve(ctx, account, nonce, status, errMsg); lerr != nil {
		log.Warn().Err(lerr).Str("account", account).Uint64("nonce", nonce).Msg("Failed to resolve submission")
	}
	metrics.RecordSubmission(kind, status)
	return err
}
