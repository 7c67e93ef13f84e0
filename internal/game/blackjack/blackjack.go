// Package blackjack plays blackjack with the optional 21+3 side bet.
package blackjack

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpHit        byte = 0
	OpStand      byte = 1
	OpDouble     byte = 2
	OpSplit      byte = 3
	OpDeal       byte = 4
	OpSet21Plus3 byte = 5
	OpReveal     byte = 6
	OpSurrender  byte = 7
)

// Message types.
const (
	MsgDeal      = "blackjack_deal"
	MsgHit       = "blackjack_hit"
	MsgStand     = "blackjack_stand"
	MsgDouble    = "blackjack_double"
	MsgSplit     = "blackjack_split"
	MsgSurrender = "blackjack_surrender"
)

// Standing or doubling ends the player's turn, so the dealer hand is
// revealed right away.
var actions = map[string]game.Action{
	MsgHit:       {Payload: []byte{OpHit}},
	MsgStand:     {Payload: []byte{OpStand}, Reveal: []byte{OpReveal}},
	MsgDouble:    {Payload: []byte{OpDouble}, Reveal: []byte{OpReveal}},
	MsgSplit:     {Payload: []byte{OpSplit}},
	MsgSurrender: {Payload: []byte{OpSurrender}},
}

// DealMoves returns the moves that follow the start: the side bet when
// placed, then the deal.
func DealMoves(sideBet uint64) [][]byte {
	if sideBet == 0 {
		return [][]byte{{OpDeal}}
	}
	return [][]byte{game.EncodeAmount(OpSet21Plus3, sideBet), {OpDeal}}
}

// Handler handles blackjack messages.
type Handler struct {
	game.Base
}

// New creates a blackjack handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameBlackjack, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgHit, MsgStand, MsgDouble, MsgSplit, MsgSurrender}
}

// HandleMessage dispatches one blackjack message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	if a, ok := actions[msg.Type]; ok {
		return h.Play(ctx, sess, a)
	}
	if msg.Type != MsgDeal {
		return model.Fail(model.CodeInvalidMessage, "unsupported blackjack message "+msg.Type)
	}

	amount, err := msg.Amount("amount")
	if err != nil {
		return game.ResultFromError(err)
	}
	side, err := msg.OptionalAmount("sideBet21Plus3")
	if err != nil {
		return game.ResultFromError(err)
	}
	return h.StartThenMoves(ctx, sess, amount, DealMoves(side)...)
}
