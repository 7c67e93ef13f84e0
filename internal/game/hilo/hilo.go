// Package hilo plays hi-lo: guess whether the next card ranks higher,
// lower or the same, or cash out the running multiplier.
package hilo

import (
	"context"
	"encoding/binary"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpHigher  byte = 0
	OpLower   byte = 1
	OpCashout byte = 2
	OpSame    byte = 3
)

// Message types.
const (
	MsgDeal    = "hilo_deal"
	MsgHigher  = "hilo_higher"
	MsgLower   = "hilo_lower"
	MsgSame    = "hilo_same"
	MsgCashout = "hilo_cashout"
)

var actions = map[string]game.Action{
	MsgHigher:  {Payload: []byte{OpHigher}},
	MsgLower:   {Payload: []byte{OpLower}},
	MsgSame:    {Payload: []byte{OpSame}},
	MsgCashout: {Payload: []byte{OpCashout}},
}

// State is the decoded hi-lo state blob.
type State struct {
	Card uint8 `json:"card"`
	// Rank is 1 (ace) through 13 (king).
	Rank uint8 `json:"rank"`
	// Accumulator is the pot multiplier in basis points.
	Accumulator int64 `json:"accumulator"`
}

// ParseState decodes [card:u8][accumulator:i64].
func ParseState(blob []byte) any {
	if len(blob) < 9 {
		return nil
	}
	return State{
		Card:        blob[0],
		Rank:        blob[0]%13 + 1,
		Accumulator: int64(binary.BigEndian.Uint64(blob[1:9])),
	}
}

// Handler handles hi-lo messages.
type Handler struct {
	game.Base
}

// New creates a hi-lo handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameHiLo, ParseState)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgHigher, MsgLower, MsgSame, MsgCashout}
}

// HandleMessage dispatches one hi-lo message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	if a, ok := actions[msg.Type]; ok {
		return h.Play(ctx, sess, a)
	}
	if msg.Type != MsgDeal {
		return model.Fail(model.CodeInvalidMessage, "unsupported hilo message "+msg.Type)
	}
	amount, err := msg.Amount("amount")
	if err != nil {
		return game.ResultFromError(err)
	}
	return h.StartGame(ctx, sess, amount, 0)
}
