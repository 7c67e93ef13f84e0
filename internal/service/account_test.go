package service

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/game/gametest"
	"casino-gateway/internal/model"
	"casino-gateway/internal/nonce"
)

func newService(b *gametest.Backend, timeout time.Duration) *AccountService {
	engine := game.NewEngine(nonce.NewManager(b), b, events.NewCorrelator(timeout), game.WithStreams(b))
	return NewAccountService(engine, b)
}

func TestRegisterConfirmed(t *testing.T) {
	b := gametest.NewBackend()
	b.Respond = func(s gametest.Submitted) []model.Event {
		return []model.Event{{Kind: model.EventRegistered, Name: "alice", NewChips: 1000}}
	}
	svc := newService(b, time.Second)
	sess := b.NewSession(false)

	res := svc.HandleMessage(context.Background(), sess, game.NewMessage(MsgRegister, `{"name":"alice"}`))

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, model.ResponseRegistered, res.ResponseType())
	assert.Equal(t, uint64(1000), res.Response["balance"])
	assert.Equal(t, true, res.Response["confirmed"])
	assert.True(t, sess.Registered())

	submitted := b.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, backend.TagCasinoRegister, submitted[0].Tag())
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(submitted[0].Instruction[1:5]))
	assert.Equal(t, "alice", string(submitted[0].Instruction[5:]))
}

func TestRegisterTimeoutIsOptimistic(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, 20*time.Millisecond)
	sess := b.NewSession(false)

	res := svc.Register(context.Background(), sess, "bob")

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, false, res.Response["confirmed"])
	assert.True(t, sess.Registered())
}

func TestRegisterRejectedByEvent(t *testing.T) {
	b := gametest.NewBackend()
	b.Respond = func(gametest.Submitted) []model.Event {
		return []model.Event{{Kind: model.EventError, ErrorMessage: "name taken"}}
	}
	svc := newService(b, time.Second)
	sess := b.NewSession(false)

	res := svc.Register(context.Background(), sess, "carol")

	assert.Equal(t, model.CodeTransactionRejected, res.ErrorCode())
	assert.Equal(t, "name taken", res.Error.Message)
	assert.False(t, sess.Registered())
}

func TestRegisterValidatesName(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, time.Second)

	for _, name := range []string{"", "   ", strings.Repeat("x", backend.MaxNameLength+1)} {
		res := svc.Register(context.Background(), b.NewSession(false), name)
		assert.Equal(t, model.CodeInvalidMessage, res.ErrorCode(), name)
	}
	assert.Zero(t, b.Attempts())
}

func TestRegisterInstruction(t *testing.T) {
	_, err := registerInstruction("")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = registerInstruction("\xff\xfe")
	assert.ErrorIs(t, err, ErrNameInvalid)

	_, err = registerInstruction(strings.Repeat("x", backend.MaxNameLength+1))
	assert.ErrorIs(t, err, game.ErrInvalidMessage)
	assert.Contains(t, err.Error(), "too long")

	instruction, err := registerInstruction("erin")
	require.NoError(t, err)
	assert.Equal(t, backend.TagCasinoRegister, instruction[0])

	res := game.ResultFromError(ErrNameRequired)
	assert.Equal(t, model.CodeInvalidMessage, res.ErrorCode())
	assert.Equal(t, "player name is required", res.Error.Message)
}

func TestRegisterWhenAlreadyRegistered(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, time.Second)

	res := svc.Register(context.Background(), b.NewSession(true), "dave")

	require.True(t, res.Success)
	assert.Equal(t, true, res.Response["alreadyRegistered"])
	assert.Zero(t, b.Attempts())
}

func TestDeposit(t *testing.T) {
	b := gametest.NewBackend()
	b.Respond = func(gametest.Submitted) []model.Event {
		return []model.Event{{Kind: model.EventDeposited, Amount: 500, NewChips: 1500}}
	}
	svc := newService(b, time.Second)
	sess := b.NewSession(true)

	res := svc.HandleMessage(context.Background(), sess, game.NewMessage(MsgDeposit, `{"amount":500}`))

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, uint64(1500), res.Response["balance"])
	chips, seq := sess.Balance()
	assert.Equal(t, uint64(1500), chips)
	assert.Equal(t, seq, res.Response["balanceSeq"])

	submitted := b.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, backend.EncodeDeposit(500), submitted[0].Instruction)
}

func TestDepositPreconditions(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, time.Second)

	res := svc.Deposit(context.Background(), b.NewSession(false), 10)
	assert.Equal(t, model.CodeNotRegistered, res.ErrorCode())

	res = svc.HandleMessage(context.Background(), b.NewSession(true), game.NewMessage(MsgDeposit, `{"amount":0}`))
	assert.Equal(t, model.CodeInvalidBet, res.ErrorCode())

	assert.Zero(t, b.Attempts())
}

func TestDepositTransportFailure(t *testing.T) {
	b := gametest.NewBackend()
	b.Reject = func(gametest.Submitted) error { return errors.New("connection refused") }
	svc := newService(b, time.Second)

	res := svc.Deposit(context.Background(), b.NewSession(true), 10)

	assert.Equal(t, model.CodeTransactionRejected, res.ErrorCode())
}

func TestRestore(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, time.Second)

	sess := b.NewSession(false)
	require.NoError(t, svc.Restore(context.Background(), sess))
	assert.False(t, sess.Registered())

	b.SetPlayer("erin", 750)
	require.NoError(t, svc.Restore(context.Background(), sess))
	assert.True(t, sess.Registered())
	chips, _ := sess.Balance()
	assert.Equal(t, uint64(750), chips)
}

func TestBalance(t *testing.T) {
	b := gametest.NewBackend()
	svc := newService(b, time.Second)
	sess := b.NewSession(true)
	sess.SetBalance(42)
	sess.BeginGame(9, model.GameRoulette)

	res := svc.HandleMessage(context.Background(), sess, game.NewMessage(MsgBalance, `{}`))

	require.True(t, res.Success)
	assert.Equal(t, uint64(42), res.Response["balance"])
	assert.Equal(t, map[string]any{"sessionId": uint64(9), "gameType": "roulette"}, res.Response["activeGame"])
	assert.True(t, svc.Handles(MsgBalance))
	assert.False(t, svc.Handles("hilo_deal"))
}
