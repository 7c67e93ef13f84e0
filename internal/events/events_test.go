package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/model"
)

func TestAwaitReturnsFirstEvent(t *testing.T) {
	session, account := NewHub(), NewHub()
	c := NewCorrelator(time.Second)

	p := c.Expect(
		Wait{Stream: session, Kinds: []model.EventKind{model.EventMoved}, SessionID: 7},
		Wait{Stream: account, Kinds: []model.EventKind{model.EventCompleted, model.EventError}, SessionID: 7},
	)

	// published before Await: buffered by the registered listener
	account.Publish(model.Event{Kind: model.EventCompleted, SessionID: 7, Payout: 10})

	ev, ok := p.Await(context.Background())
	require.True(t, ok)
	assert.Equal(t, model.EventCompleted, ev.Kind)
	assert.Equal(t, int64(10), ev.Payout)
}

func TestAwaitTimesOut(t *testing.T) {
	hub := NewHub()
	c := NewCorrelator(20 * time.Millisecond)

	p := c.Expect(Wait{Stream: hub, Kinds: []model.EventKind{model.EventMoved}})
	hub.Publish(model.Event{Kind: model.EventCompleted})

	start := time.Now()
	_, ok := p.Await(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStartedWaitResolvesOnError(t *testing.T) {
	hub := NewHub()
	p := NewCorrelator(time.Second).Expect(Wait{Stream: hub, Kinds: []model.EventKind{model.EventStarted}})

	go hub.Publish(model.Event{Kind: model.EventError, ErrorMessage: "insufficient chips"})

	ev, ok := p.Await(context.Background())
	require.True(t, ok)
	assert.Equal(t, model.EventError, ev.Kind)
	assert.Equal(t, "insufficient chips", ev.ErrorMessage)
}

func TestSessionScopedWaitIgnoresOtherSessions(t *testing.T) {
	hub := NewHub()
	p := NewCorrelator(50*time.Millisecond).Expect(Wait{
		Stream:    hub,
		Kinds:     []model.EventKind{model.EventCompleted},
		SessionID: 1,
	})

	hub.Publish(model.Event{Kind: model.EventCompleted, SessionID: 2})

	_, ok := p.Await(context.Background())
	assert.False(t, ok)
}

func TestPlayerScopedWait(t *testing.T) {
	hub := NewHub()
	p := NewCorrelator(time.Second).Expect(Wait{
		Stream: hub,
		Kinds:  []model.EventKind{model.EventDeposited},
		Player: "aa",
	})

	hub.Publish(model.Event{Kind: model.EventDeposited, Player: "bb", Amount: 1})
	hub.Publish(model.Event{Kind: model.EventDeposited, Player: "aa", Amount: 2})

	ev, ok := p.Await(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint64(2), ev.Amount)
}

func TestDroppedStreamCountsAsNoEvent(t *testing.T) {
	dropped, live := NewHub(), NewHub()
	p := NewCorrelator(time.Second).Expect(
		Wait{Stream: dropped, Kinds: []model.EventKind{model.EventMoved}},
		Wait{Stream: live, Kinds: []model.EventKind{model.EventCompleted}},
	)

	require.NoError(t, dropped.Close())
	go func() {
		time.Sleep(10 * time.Millisecond)
		live.Publish(model.Event{Kind: model.EventCompleted})
	}()

	ev, ok := p.Await(context.Background())
	require.True(t, ok)
	assert.Equal(t, model.EventCompleted, ev.Kind)
}

func TestAllStreamsDroppedReturnsEarly(t *testing.T) {
	hub := NewHub()
	p := NewCorrelator(time.Minute).Expect(Wait{Stream: hub, Kinds: []model.EventKind{model.EventMoved}})
	require.NoError(t, hub.Close())

	done := make(chan bool)
	go func() {
		_, ok := p.Await(context.Background())
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after its stream dropped")
	}
}

func TestAwaitReleasesListeners(t *testing.T) {
	hub := NewHub()
	p := NewCorrelator(10 * time.Millisecond).Expect(Wait{Stream: hub, Kinds: []model.EventKind{model.EventMoved}})
	_, _ = p.Await(context.Background())

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.listeners)
}

func TestNilStreamWaitIsSkipped(t *testing.T) {
	p := NewCorrelator(time.Minute).Expect(Wait{Kinds: []model.EventKind{model.EventMoved}})
	_, ok := p.Await(context.Background())
	assert.False(t, ok)
}

func TestDecodeFrame(t *testing.T) {
	frame := `{"events":[
		{"type":"CasinoGameStarted","sessionId":"12","player":"AB","gameType":1,"bet":100,"initialState":"0a0b"},
		{"type":"casino_game_moved","sessionId":12,"moveNumber":2,"newState":[1,2,3],"logs":["hit",{"total":21}],"balanceSnapshot":{"chips":900,"vusdt":0,"rng":5}},
		{"type":"completed","sessionId":12,"payout":-100,"finalChips":800},
		{"type":"CasinoError","errorCode":3,"message":"bad move"},
		{"type":"CasinoPlayerRegistered","player":"ab","name":"alice","chips":1000},
		{"type":"CasinoDeposited","amount":50,"newChips":1050},
		{"type":"Transfer"}
	]}`

	evs, err := DecodeFrame([]byte(frame))
	require.NoError(t, err)
	require.Len(t, evs, 6)

	assert.Equal(t, model.EventStarted, evs[0].Kind)
	assert.Equal(t, uint64(12), evs[0].SessionID)
	assert.Equal(t, "ab", evs[0].Player)
	assert.Equal(t, model.GameBlackjack, evs[0].GameType)
	assert.Equal(t, []byte{0x0a, 0x0b}, evs[0].InitialState)

	assert.Equal(t, uint32(2), evs[1].MoveNumber)
	assert.Equal(t, []byte{1, 2, 3}, evs[1].NewState)
	assert.Equal(t, []string{"hit", `{"total":21}`}, evs[1].Logs)
	require.NotNil(t, evs[1].Balance)
	assert.Equal(t, uint64(900), evs[1].Balance.Chips)

	assert.Equal(t, int64(-100), evs[2].Payout)
	require.NotNil(t, evs[2].FinalChips)
	assert.Equal(t, uint64(800), *evs[2].FinalChips)

	assert.Equal(t, uint8(3), evs[3].ErrorCode)
	assert.Equal(t, "bad move", evs[3].ErrorMessage)

	assert.Equal(t, "alice", evs[4].Name)
	assert.Equal(t, uint64(1050), evs[5].NewChips)

	_, err = DecodeFrame([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestWSStreamPublishesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/updates/session/9", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// give the client time to register its listener
		time.Sleep(50 * time.Millisecond)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"moved","sessionId":9,"moveNumber":1}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	factory := NewWSFactory("ws" + strings.TrimPrefix(srv.URL, "http"))
	stream, err := factory.OpenSession(context.Background(), 9)
	require.NoError(t, err)
	defer stream.Close()

	p := NewCorrelator(2*time.Second).Expect(Wait{Stream: stream, Kinds: []model.EventKind{model.EventMoved}, SessionID: 9})
	ev, ok := p.Await(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint32(1), ev.MoveNumber)

	require.NoError(t, stream.Close())
	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("stream not done after Close")
	}
}
