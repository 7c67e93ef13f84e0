package nonce

import (
	"context"
	"sort"
	"sync"

	"casino-gateway/internal/model"
)

// SubmissionLog records submissions keyed by account and nonce.
type SubmissionLog interface {
	Record(ctx context.Context, rec model.SubmissionRecord) error
	Resolve(ctx context.Context, account string, nonce uint64, status string, errMsg *string) error
	ListInFlight(ctx context.Context, account string) ([]model.SubmissionRecord, error)
}

type logKey struct {
	account string
	nonce   uint64
}

// MemoryLog is the default in-process SubmissionLog. Resolved accepted
// entries are dropped; the latest rejection per account is kept.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[logKey]model.SubmissionRecord
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[logKey]model.SubmissionRecord)}
}

// Record stores rec, replacing an earlier entry for the same nonce.
func (l *MemoryLog) Record(_ context.Context, rec model.SubmissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[logKey{rec.Account, rec.Nonce}] = rec
	return nil
}

// Resolve sets the outcome of a recorded submission.
func (l *MemoryLog) Resolve(_ context.Context, account string, nonce uint64, status string, errMsg *string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := logKey{account, nonce}
	rec, ok := l.entries[key]
	if !ok {
		return nil
	}
	if status == model.SubmissionAccepted {
		delete(l.entries, key)
		return nil
	}
	rec.Status = status
	rec.Error = errMsg
	l.entries[key] = rec
	return nil
}

// ListInFlight returns the account's unresolved submissions ordered by nonce.
func (l *MemoryLog) ListInFlight(_ context.Context, account string) ([]model.SubmissionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.SubmissionRecord
	for k, rec := range l.entries {
		if k.account == account && rec.Status == model.SubmissionInFlight {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out, nil
}
