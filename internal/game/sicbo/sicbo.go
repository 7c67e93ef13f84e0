// Package sicbo rolls three dice per request with every bet placed in the
// same atomic batch.
package sicbo

import (
	"context"

	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Move opcodes.
const (
	OpPlaceBet    byte = 0
	OpRoll        byte = 1
	OpClearBets   byte = 2
	OpAtomicBatch byte = 3
	OpSetRules    byte = 4
)

// MsgRoll places bets and rolls.
const MsgRoll = "sicbo_roll"

// Bet type codes.
const (
	BetSmall          uint8 = 0
	BetBig            uint8 = 1
	BetOdd            uint8 = 2
	BetEven           uint8 = 3
	BetSpecificTriple uint8 = 4
	BetAnyTriple      uint8 = 5
	BetSpecificDouble uint8 = 6
	BetTotal          uint8 = 7
	BetSingle         uint8 = 8
	BetDomino         uint8 = 9
	BetHop3Easy       uint8 = 10
	BetHop3Hard       uint8 = 11
	BetHop4Easy       uint8 = 12
)

// Bets is the sic bo bet table. Number bets take the die face, total or
// packed combination as target.
var Bets = game.BetTable{
	Names: map[string]uint8{
		"SMALL":           BetSmall,
		"BIG":             BetBig,
		"ODD":             BetOdd,
		"EVEN":            BetEven,
		"SPECIFIC_TRIPLE": BetSpecificTriple,
		"ANY_TRIPLE":      BetAnyTriple,
		"SPECIFIC_DOUBLE": BetSpecificDouble,
		"TOTAL":           BetTotal,
		"SINGLE":          BetSingle,
		"DOMINO":          BetDomino,
		"HOP3_EASY":       BetHop3Easy,
		"HOP3_HARD":       BetHop3Hard,
		"HOP4_EASY":       BetHop4Easy,
	},
	Targeted: map[uint8]bool{
		BetSpecificTriple: true,
		BetSpecificDouble: true,
		BetTotal:          true,
		BetSingle:         true,
		BetDomino:         true,
		BetHop3Easy:       true,
		BetHop3Hard:       true,
		BetHop4Easy:       true,
	},
}

// ValidTarget reports whether target is possible for a bet type.
// Faces are 1-6 and a total of three dice is 3-18.
func ValidTarget(betType, target uint8) bool {
	switch betType {
	case BetSpecificTriple, BetSpecificDouble, BetSingle:
		return target >= 1 && target <= 6
	case BetTotal:
		return target >= 3 && target <= 18
	case BetDomino, BetHop3Easy, BetHop3Hard, BetHop4Easy:
		return target != 0
	}
	return true
}

// EncodeRoll validates bets and encodes them followed by the roll.
func EncodeRoll(bets []game.BatchBet) ([]byte, error) {
	for _, b := range bets {
		if !ValidTarget(b.Type, b.Target) {
			return nil, game.Errorf(model.CodeInvalidBet, "target %d is not valid for bet type %d", b.Target, b.Type)
		}
	}
	return game.EncodeAtomicBatch(OpAtomicBatch, bets, true)
}

// Handler handles sic bo messages.
type Handler struct {
	game.Base
}

// New creates a sic bo handler.
func New(engine *game.Engine) *Handler {
	return &Handler{Base: game.NewBase(engine, model.GameSicBo, nil)}
}

// Messages returns the accepted message types.
func (h *Handler) Messages() []string {
	return []string{MsgRoll}
}

// HandleMessage plays one roll.
func (h *Handler) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	bets, err := Bets.Normalize(msg)
	if err != nil {
		return game.ResultFromError(err)
	}
	payload, err := EncodeRoll(bets)
	if err != nil {
		return game.ResultFromError(err)
	}
	return h.PlaceBatch(ctx, sess, payload, bets)
}
