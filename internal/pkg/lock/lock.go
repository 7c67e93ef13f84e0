// Package lock provides account-level mutual exclusion for ordered submissions.
package lock

import (
	"context"
	"sync"
	"time"
)

// accountMutex is a channel-backed mutex so that waiters can give up on
// context cancellation. refs counts holders and waiters for cleanup.
type accountMutex struct {
	ch   chan struct{}
	refs int
}

// AccountLock provides per-account locking. Waiters for one account are
// served one at a time; different accounts never block each other.
type AccountLock struct {
	mu    sync.Mutex
	locks map[string]*accountMutex
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{locks: make(map[string]*accountMutex)}
}

// acquireRef returns the mutex for account, creating it on first use.
func (al *AccountLock) acquireRef(account string) *accountMutex {
	al.mu.Lock()
	defer al.mu.Unlock()

	m, ok := al.locks[account]
	if !ok {
		m = &accountMutex{ch: make(chan struct{}, 1)}
		al.locks[account] = m
	}
	m.refs++
	return m
}

// releaseRef drops one reference and forgets idle mutexes.
func (al *AccountLock) releaseRef(account string, m *accountMutex) {
	al.mu.Lock()
	defer al.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(al.locks, account)
	}
}

// Lock blocks until the account's lock is held or ctx is done.
func (al *AccountLock) Lock(ctx context.Context, account string) error {
	m := al.acquireRef(account)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		al.releaseRef(account, m)
		return ctx.Err()
	}
}

// Unlock releases the account's lock. Unlocking an account that is not
// locked is a no-op.
func (al *AccountLock) Unlock(account string) {
	al.mu.Lock()
	m, ok := al.locks[account]
	al.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.ch:
		al.releaseRef(account, m)
	default:
	}
}

// TryLock attempts to acquire the lock without blocking.
func (al *AccountLock) TryLock(account string) bool {
	m := al.acquireRef(account)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		al.releaseRef(account, m)
		return false
	}
}

// WithLock executes fn while holding the account's lock. It returns
// ErrLockTimeout when the lock is not acquired within timeout; a zero
// timeout waits until ctx is done.
func (al *AccountLock) WithLock(ctx context.Context, account string, timeout time.Duration, fn func(ctx context.Context) error) error {
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := al.Lock(lockCtx, account); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	defer al.Unlock(account)

	return fn(ctx)
}

// IsLocked reports whether the account's lock is currently held.
func (al *AccountLock) IsLocked(account string) bool {
	al.mu.Lock()
	defer al.mu.Unlock()

	m, ok := al.locks[account]
	return ok && len(m.ch) == 1
}

// Len returns the number of accounts with a holder or waiter.
func (al *AccountLock) Len() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return len(al.locks)
}
