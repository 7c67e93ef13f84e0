// Package videopoker plays jacks-or-better video poker: deal five cards,
// hold any of them, draw once.
package videopoker

import (
	"context"

	"github.com/tidwall/gjson"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// OpSetRules selects the paytable before the draw.
const OpSetRules byte = 0xFF

// HandSize is the number of cards in a hand.
const HandSize = 5

// Message types.
const (
	MsgDeal = "videopoker_deal"
	MsgHold = "videopoker_hold"
)

// State is the decoded video poker state blob.
type State struct {
	Stage string          `json:"stage"`
	Cards [HandSize]uint8 `json:"cards"`
	Rules *uint8          `json:"rules,omitempty"`
}

var stages = map[byte]string{0: "deal", 1: "draw"}

// ParseState decodes [stage:u8][cards:5][rules:u8?].
func ParseState(blob []byte) any {
	if len(blob) != 1+HandSize && len(blob) != 2+HandSize {
		return nil
	}
	stage, ok := stages[blob[0]]
	if !ok {
		return nil
	}
	s := State{Stage: stage}
	for i := range s.Cards {
		if blob[1+i] >= 52 {
			return nil
		}
		s.Cards[i] = blob[1+i]
	}
	if len(blob) == 2+HandSize {
		rules := blob[1+HandSize]
		s.Rules = &rules
	}
	return s
}

// EncodeHold packs hold flags into a mask, bit i holding card i.
func EncodeHold(holds [HandSize]bool) byte {
	var mask byte
	for i, h := range holds {
		if h {
			mask |= 1 << i
		}
	}
	return mask
}

// ParseHolds reads a list of exactly five booleans.
func ParseHolds(r gjson.Result) ([HandSize]bool, error) {
	var holds [HandSize]bool
	if !r.IsArray() {
		return holds, game.Errorf(model.CodeInvalidMessage, "holds must be a list of %d booleans", HandSize)
	}
	items := r.Array()
	if len(items) != HandSize {
		return holds, game.Errorf(model.CodeInvalidMessage, "holds must have %d entries, got %d", HandSize, len(items))
	}
	for i, item := range items {
		if item.Type != gjson.True && item.Type != gjson.False {
			return holds, game.Errorf(model.CodeInvalidMessage, "hold %d is not a boolean", i)
		}
		holds[i] = item.Bool()
	}
	return holds, nil
}

// Handler handles video poker messages.
type Handler struct {
	game.Base
}

// New creates a video poker handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameVideoPoker, ParseState)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgDeal, MsgHold}
}

// HandleMessage dispatches one video poker message.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	switch msg.Type {
	case MsgDeal:
		amount, err := msg.Amount("amount")
		if err != nil {
			return game.ResultFromError(err)
		}
		var moves [][]byte
		if rules := msg.Get("rules"); rules.Exists() {
			if rules.Type != gjson.Number || rules.Num < 0 || rules.Num > 255 || rules.Num != float64(uint8(rules.Num)) {
				return model.Fail(model.CodeInvalidMessage, "rules must be a paytable id between 0 and 255")
			}
			moves = append(moves, []byte{OpSetRules, uint8(rules.Num)})
		}
		return h.StartThenMoves(ctx, sess, amount, moves...)
	case MsgHold:
		holds, err := ParseHolds(msg.Get("holds"))
		if err != nil {
			return game.ResultFromError(err)
		}
		return h.Move(ctx, sess, []byte{EncodeHold(holds)})
	}
	return model.Fail(model.CodeInvalidMessage, "unsupported video poker message "+msg.Type)
}
