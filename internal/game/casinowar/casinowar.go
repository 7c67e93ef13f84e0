// Package casinowar plays casino war with the optional tie bet.
package casinowar

import (
	"context"
	"encoding/binary"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlay      byte = 0
	OpWar       byte = 1
	OpSurrender byte = 2
	OpSetTieBet byte = 3
	OpSetRules  byte = 5
)

// Message types.
const (
	MsgDeal      = "casinowar_deal"
	MsgWar       = "casinowar_war"
	MsgSurrender = "casinowar_surrender"
)

// StateVersion is the only state layout this package decodes.
const StateVersion = 1

// HiddenCard marks a card not dealt yet.
const HiddenCard = 0xFF

// Going to war deals again, so Play follows when war leaves the hand open.
var actions = map[string]game.Action{
	MsgWar:       {Payload: []byte{OpWar}, Reveal: []byte{OpPlay}},
	MsgSurrender: {Payload: []byte{OpSurrender}},
}

// State is the decoded casino war state blob.
type State struct {
	Stage      string `json:"stage"`
	PlayerCard *uint8 `json:"playerCard,omitempty"`
	DealerCard *uint8 `json:"dealerCard,omitempty"`
	TieBet     uint64 `json:"tieBet"`
}

var stages = map[byte]string{0: "betting", 1: "war", 2: "complete"}

func card(c byte) *uint8 {
	if c == HiddenCard {
		return nil
	}
	return &c
}

// ParseState decodes [version][stage][player][dealer][tieBet:u64].
func ParseState(blob []byte) any {
	if len(blob) < 12 || blob[0] != StateVersion {
		return nil
	}
	stage, ok := stages[blob[1]]
	if !ok {
		return nil
	}
	return State{
		Stage:      stage,
		PlayerCard: card(blob[2]),
		DealerCard: card(blob[3]),
		TieBet:     binary.BigEndian.Uint64(blob[4:12]),
	}
}

// DealMoves returns the moves that follow the start: the tie bet when
// placed, then play.
func DealMoves(tieBet uint64) [][]byte {
	if tieBet == 0 {
		return [][]byte{{OpPlay}}
	}
	return [][]byte{game.EncodeAmount(OpSetTieBet, tieBet), {OpPlay}}
}

// Handler handles casino war messages.
type Handler struct {
	game.Base
}

// New creates a casino war handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameCasinoWar, ParseState)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgWar, MsgSurrender}
}

// HandleMessage dispatches one casino war message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	if a, ok := actions[msg.Type]; ok {
		return h.Play(ctx, sess, a)
	}
	if msg.Type != MsgDeal {
		return model.Fail(model.CodeInvalidMessage, "unsupported casino war message "+msg.Type)
	}
	amount, err := msg.Amount("amount")
	if err != nil {
		return game.ResultFromError(err)
	}
	tie, err := msg.OptionalAmount("tieBet")
	if err != nil {
		return game.ResultFromError(err)
	}
	return h.StartThenMoves(ctx, sess, amount, DealMoves(tie)...)
}
