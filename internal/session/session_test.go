package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/events"
	"casino-gateway/internal/model"
)

type staticSealer string

func (s staticSealer) PublicKey() string { return string(s) }
func (s staticSealer) Seal(uint64, []byte) []byte { return nil }

func TestGameLifecycle(t *testing.T) {
	s := New("conn", staticSealer("aa"))

	_, _, ok := s.ActiveGame()
	assert.False(t, ok)

	s.BeginGame(5, model.GameHiLo)
	id, gt, ok := s.ActiveGame()
	require.True(t, ok)
	assert.Equal(t, uint64(5), id)
	assert.Equal(t, model.GameHiLo, gt)

	s.AdoptSessionID(9)
	id, _, _ = s.ActiveGame()
	assert.Equal(t, uint64(9), id)

	assert.False(t, s.EndGameIf(5))
	assert.True(t, s.EndGameIf(9))
	_, _, ok = s.ActiveGame()
	assert.False(t, ok)

	s.AdoptSessionID(3)
	_, _, ok = s.ActiveGame()
	assert.False(t, ok, "adopting without a game must not start one")
}

func TestGameConfirmation(t *testing.T) {
	s := New("conn", staticSealer("aa"))

	assert.False(t, s.ConfirmGame(5))
	s.BeginGame(5, model.GameRoulette)
	assert.False(t, s.GameConfirmed())
	assert.False(t, s.ConfirmGame(6))
	assert.True(t, s.ConfirmGame(5))
	assert.True(t, s.GameConfirmed())

	s.BeginGame(8, model.GameRoulette)
	assert.False(t, s.GameConfirmed(), "a new round starts unconfirmed")

	s.ConfirmGame(8)
	s.EndGame()
	assert.False(t, s.GameConfirmed())
}

func TestSettled(t *testing.T) {
	s := New("conn", staticSealer("aa"))
	rejected := model.Event{Kind: model.EventError, SessionID: 3, ErrorMessage: "bad move"}

	assert.False(t, s.Settled(model.Event{}))
	assert.False(t, s.Settled(rejected))

	s.Settle(rejected)
	assert.True(t, s.Settled(rejected))
	assert.False(t, s.Settled(model.Event{Kind: model.EventError, SessionID: 3, ErrorMessage: "other"}))
	assert.False(t, s.Settled(model.Event{Kind: model.EventCompleted, SessionID: 3}))
}

func TestBalanceSequence(t *testing.T) {
	s := New("conn", staticSealer("aa"))

	assert.Equal(t, uint64(1), s.SetBalance(100))
	assert.Equal(t, uint64(2), s.BumpBalanceSeq())
	chips, seq := s.Balance()
	assert.Equal(t, uint64(100), chips)
	assert.Equal(t, uint64(2), seq)
}

func TestNextSessionIDIsUniquePerAccount(t *testing.T) {
	s := New("conn", staticSealer("aa"))

	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := s.NextSessionID()
		assert.NotZero(t, id)
		assert.False(t, seen[id], "duplicate session id %d", id)
		seen[id] = true
	}
}

func TestBindSessionStreamClosesPrevious(t *testing.T) {
	s := New("conn", staticSealer("aa"))
	first, second := events.NewHub(), events.NewHub()

	s.BindSessionStream(first)
	s.BindSessionStream(second)

	select {
	case <-first.Done():
	default:
		t.Fatal("previous session stream was not closed")
	}
	assert.Equal(t, events.Stream(second), s.SessionStream())

	s.CloseSessionStream()
	assert.Nil(t, s.SessionStream())
	select {
	case <-second.Done():
	default:
		t.Fatal("session stream was not closed")
	}
}

func TestCloseReleasesStreams(t *testing.T) {
	s := New("conn", staticSealer("aa"))
	acct := events.NewHub()
	s.SetAccountStream(acct)
	s.BindSessionStream(events.NewHub())

	s.Close()

	assert.Nil(t, s.AccountStream())
	assert.Nil(t, s.SessionStream())
	select {
	case <-acct.Done():
	default:
		t.Fatal("account stream was not closed")
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := New("1", staticSealer("aa"))
	b := New("2", staticSealer("aa"))

	st.Put(a)
	st.Put(b)
	assert.Equal(t, 1, st.Len())

	st.Remove(a)
	got, ok := st.Get("aa")
	require.True(t, ok)
	assert.Same(t, b, got)

	st.Remove(b)
	assert.Equal(t, 0, st.Len())
}
