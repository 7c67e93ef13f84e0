package roulette

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/game/gametest"
	"casino-gateway/internal/model"
	"casino-gateway/internal/nonce"
)

func newHandler(b *gametest.Backend) *Handler {
	engine := game.NewEngine(nonce.NewManager(b), b, events.NewCorrelator(time.Second), game.WithStreams(b))
	return New(engine)
}

func TestSpinStraightUp(t *testing.T) {
	b := gametest.NewBackend()
	b.Respond = gametest.Script(func(s gametest.Submitted) []model.Event {
		return []model.Event{gametest.Completed(s, -25, 975)}
	})
	h := newHandler(b)
	sess := b.NewSession(true)

	res := h.HandleMessage(context.Background(), sess, game.NewMessage(MsgSpin, `{"betType":"STRAIGHT","number":17,"amount":25}`))

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "loss", res.Response["outcome"])
	assert.Equal(t, uint64(975), res.Response["balance"])

	moves := b.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, []byte{OpAtomicBatch, 1, BetStraight, 17, 0, 0, 0, 0, 0, 0, 0, 25}, moves[0])
}

func TestSpinMixedBetList(t *testing.T) {
	b := gametest.NewBackend()
	b.Respond = gametest.Script(func(s gametest.Submitted) []model.Event {
		return []model.Event{gametest.Completed(s, 0, 1000)}
	})
	h := newHandler(b)

	res := h.HandleMessage(context.Background(), b.NewSession(true), game.NewMessage(MsgSpin,
		`{"bets":[{"type":"red","amount":10},{"type":"DOZEN","target":2,"amount":5},{"type":"CORNER","value":"8","amount":1}]}`))

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "push", res.Response["outcome"])
	moves := b.Moves()
	require.Len(t, moves, 1)
	assert.Len(t, moves[0], 2+3*game.BatchRecordWidth)
}

func TestSpinInsideBetNeedsTarget(t *testing.T) {
	b := gametest.NewBackend()
	h := newHandler(b)

	res := h.HandleMessage(context.Background(), b.NewSession(true), game.NewMessage(MsgSpin, `{"bets":{"STRAIGHT":25}}`))

	assert.Equal(t, model.CodeInvalidBet, res.ErrorCode())
	assert.Zero(t, b.Attempts())
}

func TestSpinWhileGameActive(t *testing.T) {
	b := gametest.NewBackend()
	h := newHandler(b)
	sess := b.NewSession(true)
	sess.BeginGame(9, model.GameRoulette)

	res := h.HandleMessage(context.Background(), sess, game.NewMessage(MsgSpin, `{"bets":{"RED":5}}`))

	assert.Equal(t, model.CodeGameInProgress, res.ErrorCode())
	assert.Zero(t, b.Attempts())
}
