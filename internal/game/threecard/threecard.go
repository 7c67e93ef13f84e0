// Package threecard plays three card poker with pair plus, six card bonus
// and progressive side bets.
package threecard

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlay        byte = 0
	OpFold        byte = 1
	OpDeal        byte = 2
	OpSetPairPlus byte = 3
	OpReveal      byte = 4
	OpAtomicDeal  byte = 7
)

// Message types.
const (
	MsgDeal = "threecard_deal"
	MsgPlay = "threecard_play"
	MsgFold = "threecard_fold"
)

// Playing or folding ends the decision, so the dealer hand is revealed.
var actions = map[string]game.Action{
	MsgPlay: {Payload: []byte{OpPlay}, Reveal: []byte{OpReveal}},
	MsgFold: {Payload: []byte{OpFold}, Reveal: []byte{OpReveal}},
}

// SideBets are the optional wagers placed with the deal.
type SideBets struct {
	PairPlus    uint64
	SixCard     uint64
	Progressive uint64
}

// Any reports whether a side bet is placed.
func (s SideBets) Any() bool {
	return s.PairPlus > 0 || s.SixCard > 0 || s.Progressive > 0
}

// ParseSideBets reads the optional side bet amounts of a deal request.
func ParseSideBets(msg game.Message) (SideBets, error) {
	var s SideBets
	var err error
	if s.PairPlus, err = msg.OptionalAmount("pairPlus"); err != nil {
		return s, err
	}
	if s.SixCard, err = msg.OptionalAmount("sixCard"); err != nil {
		return s, err
	}
	if s.Progressive, err = msg.OptionalAmount("progressive"); err != nil {
		return s, err
	}
	return s, nil
}

// EncodeDeal deals with every side bet in one move, or plainly without any.
func EncodeDeal(s SideBets) []byte {
	if !s.Any() {
		return []byte{OpDeal}
	}
	return game.EncodeAmounts(OpAtomicDeal, s.PairPlus, s.SixCard, s.Progressive)
}

// Handler handles three card poker messages.
type Handler struct {
	game.Base
}

// New creates a three card poker handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameThreeCard, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgPlay, MsgFold}
}

// HandleMessage dispatches one three card poker message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	if a, ok := actions[msg.Type]; ok {
		return h.Play(ctx, sess, a)
	}
	if msg.Type != MsgDeal {
		return model.Fail(model.CodeInvalidMessage, "unsupported three card message "+msg.Type)
	}
	ante, err := msg.Amount("ante")
	if err != nil {
		return game.ResultFromError(err)
	}
	side, err := ParseSideBets(msg)
	if err != nil {
		return game.ResultFromError(err)
	}
	return h.StartThenMoves(ctx, sess, ante, EncodeDeal(side))
}
