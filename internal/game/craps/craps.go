// Package craps plays craps. A session spans many rolls: the first roll
// request opens it, later requests add bets and roll on the live session.
package craps

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlaceBet    byte = 0
	OpAddOdds     byte = 1
	OpRoll        byte = 2
	OpClearBets   byte = 3
	OpAtomicBatch byte = 4
)

// Message types.
const (
	MsgRoll  = "craps_roll"
	MsgOdds  = "craps_odds"
	MsgClear = "craps_clear"
)

// Bet type codes that need a target.
const (
	BetYes     uint8 = 5
	BetNo      uint8 = 6
	BetNext    uint8 = 7
	BetHardway uint8 = 8
)

// Bets is the craps bet table. Yes/no and next take a total, hardways the
// doubled total.
var Bets = game.BetTable{
	Names: map[string]uint8{
		"PASS":         0,
		"DONT_PASS":    1,
		"COME":         2,
		"DONT_COME":    3,
		"FIELD":        4,
		"YES":          BetYes,
		"NO":           BetNo,
		"NEXT":         BetNext,
		"HARDWAY":      BetHardway,
		"FIRE":         9,
		"ATS_SMALL":    10,
		"ATS_TALL":     11,
		"ATS_ALL":      12,
		"MUGGSY":       13,
		"DIFF_DOUBLES": 14,
		"RIDE_LINE":    15,
		"REPLAY":       16,
		"HOT_ROLLER":   17,
	},
	Targeted: map[uint8]bool{
		BetYes:     true,
		BetNo:      true,
		BetNext:    true,
		BetHardway: true,
	},
}

// EncodeRoll encodes bets followed by a roll. Without bets it is a bare roll.
func EncodeRoll(bets []game.BatchBet) ([]byte, error) {
	if len(bets) == 0 {
		return []byte{OpRoll}, nil
	}
	return game.EncodeAtomicBatch(OpAtomicBatch, bets, true)
}

// Handler handles craps messages.
type Handler struct {
	game.Base
}

// New creates a craps handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameCraps, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgRoll, MsgOdds, MsgClear}
}

// HandleMessage dispatches one craps message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	switch msg.Type {
	case MsgRoll:
		return h.roll(ctx, sess, msg)
	case MsgOdds:
		amount, err := msg.Amount("amount")
		if err != nil {
			return game.ResultFromError(err)
		}
		return h.Move(ctx, sess, game.EncodeAmount(OpAddOdds, amount))
	case MsgClear:
		return h.Move(ctx, sess, []byte{OpClearBets})
	}
	return model.Fail(model.CodeInvalidMessage, "unsupported craps message "+msg.Type)
}

func (h *Handler) roll(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	var bets []game.BatchBet
	if msg.Get("bets").Exists() || msg.Get("betType").Exists() {
		var err error
		if bets, err = Bets.Normalize(msg); err != nil {
			return game.ResultFromError(err)
		}
	}
	payload, err := EncodeRoll(bets)
	if err != nil {
		return game.ResultFromError(err)
	}

	if _, gt, active := sess.ActiveGame(); (!active || gt != model.GameCraps) && len(bets) == 0 {
		return model.Fail(model.CodeInvalidBet, "a new craps session needs at least one bet")
	}
	return h.PlaceBatch(ctx, sess, payload, bets)
}
