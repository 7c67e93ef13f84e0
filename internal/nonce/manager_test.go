package nonce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-gateway/internal/model"
	"casino-gateway/internal/pkg/lock"
)

// fakeLedger accepts a transaction only when its nonce matches the
// account's next expected nonce, like the execution layer does.
type fakeLedger struct {
	mu        sync.Mutex
	next      map[string]uint64
	submitted map[string][]uint64
	reads     atomic.Int32
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{next: make(map[string]uint64), submitted: make(map[string][]uint64)}
}

func (l *fakeLedger) Nonce(_ context.Context, account string) (uint64, error) {
	l.reads.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next[account], nil
}

func (l *fakeLedger) send(account string) SendFunc {
	return func(_ context.Context, nonce uint64) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if nonce != l.next[account] {
			return fmt.Errorf("invalid nonce: expected %d got %d", l.next[account], nonce)
		}
		l.submitted[account] = append(l.submitted[account], nonce)
		l.next[account]++
		return nil
	}
}

func submitOnce(ctx context.Context, m *Manager, account string, send SendFunc) error {
	return m.WithLock(ctx, account, func(ctx context.Context, nonce uint64) error {
		_, err := m.Submit(ctx, account, model.KindGameMove, nonce, send)
		return err
	})
}

// For any number of concurrent submitters per account, every accepted
// nonce is unique and the sequence is gap-free.
func TestConcurrentSubmissionsAreGapFreeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAccounts := rapid.IntRange(1, 4).Draw(t, "numAccounts")
		perAccount := rapid.IntRange(1, 20).Draw(t, "perAccount")
		start := rapid.Uint64Range(0, 1000).Draw(t, "start")

		ledger := newFakeLedger()
		for a := 0; a < numAccounts; a++ {
			ledger.next[fmt.Sprintf("acct-%d", a)] = start
		}
		m := NewManager(ledger)

		var wg sync.WaitGroup
		var failures atomic.Int32
		for a := 0; a < numAccounts; a++ {
			account := fmt.Sprintf("acct-%d", a)
			for j := 0; j < perAccount; j++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := submitOnce(context.Background(), m, account, ledger.send(account)); err != nil {
						failures.Add(1)
					}
				}()
			}
		}
		wg.Wait()

		if failures.Load() != 0 {
			t.Fatalf("%d submissions failed", failures.Load())
		}
		for a := 0; a < numAccounts; a++ {
			account := fmt.Sprintf("acct-%d", a)
			got := ledger.submitted[account]
			if len(got) != perAccount {
				t.Fatalf("%s: expected %d submissions, got %d", account, perAccount, len(got))
			}
			for i, n := range got {
				if n != start+uint64(i) {
					t.Fatalf("%s: nonce %d at position %d, want %d", account, n, i, start+uint64(i))
				}
			}
			current, ok := m.Current(account)
			if !ok || current != start+uint64(perAccount) {
				t.Fatalf("%s: local nonce %d, want %d", account, current, start+uint64(perAccount))
			}
		}
	})
}

// For any number of consecutive nonce rejections, the manager resyncs at
// most once and sends at most twice.
func TestRetryIsBoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rejections := rapid.IntRange(0, 5).Draw(t, "rejections")

		ledger := newFakeLedger()
		m := NewManager(ledger)
		m.SetCurrentNonce("a", 0)

		var sends int
		send := func(_ context.Context, nonce uint64) error {
			sends++
			if sends <= rejections {
				return errors.New("Invalid Nonce")
			}
			return nil
		}

		err := submitOnce(context.Background(), m, "a", send)

		if sends > 2 {
			t.Fatalf("sent %d times", sends)
		}
		if ledger.reads.Load() > 1 {
			t.Fatalf("resynced %d times", ledger.reads.Load())
		}
		switch {
		case rejections == 0:
			if err != nil || sends != 1 {
				t.Fatalf("clean submit: err=%v sends=%d", err, sends)
			}
		case rejections == 1:
			if err != nil || sends != 2 {
				t.Fatalf("one rejection: err=%v sends=%d", err, sends)
			}
		default:
			if !errors.Is(err, ErrRetryExhausted) {
				t.Fatalf("expected ErrRetryExhausted, got %v", err)
			}
		}
	})
}

func TestStaleLocalNonceRecoversWithOneRetry(t *testing.T) {
	ledger := newFakeLedger()
	ledger.next["a"] = 9
	m := NewManager(ledger)
	m.SetCurrentNonce("a", 4)

	require.NoError(t, submitOnce(context.Background(), m, "a", ledger.send("a")))

	assert.Equal(t, []uint64{9}, ledger.submitted["a"])
	current, ok := m.Current("a")
	require.True(t, ok)
	assert.Equal(t, uint64(10), current)
	assert.Equal(t, int32(1), ledger.reads.Load())
}

func TestNonNonceRejectionIsNotRetried(t *testing.T) {
	ledger := newFakeLedger()
	m := NewManager(ledger)
	m.SetCurrentNonce("a", 0)

	boom := errors.New("insufficient chips")
	sends := 0
	err := submitOnce(context.Background(), m, "a", func(context.Context, uint64) error {
		sends++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 1, sends)
	current, _ := m.Current("a")
	assert.Equal(t, uint64(0), current, "rejected submission must not advance the nonce")
}

func TestWithLockSyncsLazily(t *testing.T) {
	ledger := newFakeLedger()
	ledger.next["a"] = 42
	m := NewManager(ledger)

	var seen uint64
	require.NoError(t, m.WithLock(context.Background(), "a", func(_ context.Context, nonce uint64) error {
		seen = nonce
		return nil
	}))
	assert.Equal(t, uint64(42), seen)

	require.NoError(t, m.WithLock(context.Background(), "a", func(context.Context, uint64) error { return nil }))
	assert.Equal(t, int32(1), ledger.reads.Load())
}

func TestHandleRejectionClassifiesNonceErrors(t *testing.T) {
	m := NewManager(newFakeLedger())
	m.SetCurrentNonce("a", 3)

	assert.False(t, m.HandleRejection("a", "game not found"))
	_, ok := m.Current("a")
	assert.True(t, ok)

	assert.True(t, m.HandleRejection("a", "transaction rejected (400): NONCE too low"))
	_, ok = m.Current("a")
	assert.False(t, ok, "a nonce mismatch invalidates the local nonce")
}

func TestLockTimeout(t *testing.T) {
	m := NewManager(newFakeLedger(), WithLockTimeout(20*time.Millisecond))
	m.SetCurrentNonce("a", 0)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), "a", func(context.Context, uint64) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := m.WithLock(context.Background(), "a", func(context.Context, uint64) error { return nil })
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	close(release)
}

func TestMemoryLogTracksInFlight(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()

	require.NoError(t, l.Record(ctx, model.SubmissionRecord{Account: "a", Nonce: 2, Status: model.SubmissionInFlight}))
	require.NoError(t, l.Record(ctx, model.SubmissionRecord{Account: "a", Nonce: 1, Status: model.SubmissionInFlight}))
	require.NoError(t, l.Record(ctx, model.SubmissionRecord{Account: "b", Nonce: 1, Status: model.SubmissionInFlight}))

	inFlight, err := l.ListInFlight(ctx, "a")
	require.NoError(t, err)
	require.Len(t, inFlight, 2)
	assert.Equal(t, uint64(1), inFlight[0].Nonce)

	require.NoError(t, l.Resolve(ctx, "a", 1, model.SubmissionAccepted, nil))
	msg := "nonce"
	require.NoError(t, l.Resolve(ctx, "a", 2, model.SubmissionRejected, &msg))

	inFlight, err = l.ListInFlight(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, inFlight)
}
