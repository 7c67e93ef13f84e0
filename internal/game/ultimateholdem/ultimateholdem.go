// Package ultimateholdem plays ultimate texas hold'em with trips, six card
// bonus and progressive side bets.
package ultimateholdem

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpCheck      byte = 0
	OpBet4x      byte = 1
	OpBet2x      byte = 2
	OpBet1x      byte = 3
	OpFold       byte = 4
	OpDeal       byte = 5
	OpReveal     byte = 7
	OpBet3x      byte = 8
	OpAtomicDeal byte = 11
)

// Message types.
const (
	MsgDeal  = "ultimateholdem_deal"
	MsgCheck = "ultimateholdem_check"
	MsgBet4x = "ultimateholdem_bet4x"
	MsgBet3x = "ultimateholdem_bet3x"
	MsgBet2x = "ultimateholdem_bet2x"
	MsgBet1x = "ultimateholdem_bet1x"
	MsgFold  = "ultimateholdem_fold"
)

// A play bet or fold is the player's last decision; the board and dealer
// hand are revealed after it.
var actions = map[string]game.Action{
	MsgCheck: {Payload: []byte{OpCheck}},
	MsgBet4x: {Payload: []byte{OpBet4x}, Reveal: []byte{OpReveal}},
	MsgBet3x: {Payload: []byte{OpBet3x}, Reveal: []byte{OpReveal}},
	MsgBet2x: {Payload: []byte{OpBet2x}, Reveal: []byte{OpReveal}},
	MsgBet1x: {Payload: []byte{OpBet1x}, Reveal: []byte{OpReveal}},
	MsgFold:  {Payload: []byte{OpFold}, Reveal: []byte{OpReveal}},
}

// SideBets are the optional wagers placed with the deal.
type SideBets struct {
	Trips       uint64
	SixCard     uint64
	Progressive uint64
}

// ParseSideBets reads the optional side bet amounts of a deal request.
func ParseSideBets(msg game.Message) (SideBets, error) {
	var s SideBets
	var err error
	if s.Trips, err = msg.OptionalAmount("trips"); err != nil {
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
	if s.Trips == 0 && s.SixCard == 0 && s.Progressive == 0 {
		return []byte{OpDeal}
	}
	return game.EncodeAmounts(OpAtomicDeal, s.Trips, s.SixCard, s.Progressive)
}

// Handler handles ultimate hold'em messages.
type Handler struct {
	game.Base
}

// New creates an ultimate hold'em handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameUltimateHoldem, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgCheck, MsgBet4x, MsgBet3x, MsgBet2x, MsgBet1x, MsgFold}
}

// HandleMessage dispatches one ultimate hold'em message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	if a, ok := actions[msg.Type]; ok {
		return h.Play(ctx, sess, a)
	}
	if msg.Type != MsgDeal {
		return model.Fail(model.CodeInvalidMessage, "unsupported ultimate hold'em message "+msg.Type)
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
