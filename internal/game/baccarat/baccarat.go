// Package baccarat plays a full baccarat round per request: every bet and
// the deal commit as one atomic batch.
package baccarat

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlaceBet    byte = 0
	OpDeal        byte = 1
	OpClearBets   byte = 2
	OpAtomicBatch byte = 3
	OpSetRules    byte = 4
)

// MsgDeal places bets and deals.
const MsgDeal = "baccarat_deal"

// Bets is the baccarat bet table. No bet takes a target.
var Bets = game.BetTable{
	Names: map[string]uint8{
		"PLAYER":       0,
		"BANKER":       1,
		"TIE":          2,
		"P_PAIR":       3,
		"B_PAIR":       4,
		"LUCKY6":       5,
		"P_DRAGON":     6,
		"B_DRAGON":     7,
		"PANDA8":       8,
		"PERFECT_PAIR": 9,
	},
}

// EncodeDeal encodes bets followed by the deal as one batch of 9-byte records.
func EncodeDeal(bets []game.BatchBet) ([]byte, error) {
	return game.EncodeAtomicBatch(OpAtomicBatch, bets, false)
}

// Handler handles baccarat messages.
type Handler struct {
	game.Base
}

// New creates a baccarat handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameBaccarat, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal}
}

// HandleMessage plays one round.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	return h.StartBatch(ctx, sess, msg, Bets, OpAtomicBatch, false)
}
