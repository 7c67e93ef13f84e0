// Package roulette spins one roulette wheel per request with every bet
// placed in the same atomic batch.
package roulette

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlaceBet    byte = 0
	OpSpin        byte = 1
	OpClearBets   byte = 2
	OpSetRules    byte = 3
	OpAtomicBatch byte = 4
)

// MsgSpin places bets and spins.
const MsgSpin = "roulette_spin"

// Bet type codes that need a target.
const (
	BetStraight uint8 = 0
	BetDozen    uint8 = 7
	BetColumn   uint8 = 8
	BetSplitH   uint8 = 9
	BetSplitV   uint8 = 10
	BetStreet   uint8 = 11
	BetCorner   uint8 = 12
	BetSixLine  uint8 = 13
)

// Bets is the roulette bet table. Inside bets, dozens and columns take the
// number or index they cover as target.
var Bets = game.BetTable{
	Names: map[string]uint8{
		"STRAIGHT": BetStraight,
		"RED":      1,
		"BLACK":    2,
		"EVEN":     3,
		"ODD":      4,
		"LOW":      5,
		"HIGH":     6,
		"DOZEN":    BetDozen,
		"COLUMN":   BetColumn,
		"SPLIT_H":  BetSplitH,
		"SPLIT_V":  BetSplitV,
		"STREET":   BetStreet,
		"CORNER":   BetCorner,
		"SIX_LINE": BetSixLine,
	},
	Targeted: map[uint8]bool{
		BetStraight: true,
		BetDozen:    true,
		BetColumn:   true,
		BetSplitH:   true,
		BetSplitV:   true,
		BetStreet:   true,
		BetCorner:   true,
		BetSixLine:  true,
	},
}

// EncodeSpin encodes bets followed by the spin as one batch.
func EncodeSpin(bets []game.BatchBet) ([]byte, error) {
	return game.EncodeAtomicBatch(OpAtomicBatch, bets, true)
}

// Handler handles roulette messages.
type Handler struct {
	game.Base
}

// New creates a roulette handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameRoulette, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgSpin}
}

// HandleMessage plays one spin.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	return h.StartBatch(ctx, sess, msg, Bets, OpAtomicBatch, true)
}
