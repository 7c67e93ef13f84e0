// Package game defines the handler capability every casino game exposes,
// the registry that dispatches client messages to handlers, and the engine
// that turns moves into ordered, confirmed transactions.
package game

import (
	"context"

	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Handler is implemented once per game type.
// Adding a game means registering one more Handler.
type Handler interface {
	// GameType returns the execution layer game type.
	GameType() model.GameType

	// Messages returns the client message types the handler accepts.
	Messages() []string

	// HandleMessage validates and executes one client message.
	HandleMessage(ctx context.Context, sess *session.Session, msg Message) model.HandleResult

	// StartGame opens a game session on the execution layer.
	StartGame(ctx context.Context, sess *session.Session, bet, proposedSessionID uint64) model.HandleResult

	// MakeMove submits a version-prefixed move payload for the active game.
	MakeMove(ctx context.Context, sess *session.Session, payload []byte) model.HandleResult
}

// StateParser turns a game state blob into a client-facing value.
type StateParser func(state []byte) any

// Descriptor identifies a game to the engine.
type Descriptor struct {
	Type       model.GameType
	ParseState StateParser
}

func (d Descriptor) parse(state []byte) any {
	if len(state) == 0 {
		return nil
	}
	if d.ParseState != nil {
		if v := d.ParseState(state); v != nil {
			return v
		}
	}
	return RawState(state)
}

// Base implements StartGame and MakeMove for a game on top of an Engine.
// Game packages embed it and add HandleMessage.
type Base struct {
	Engine *Engine
	Game   Descriptor
}

// NewBase creates a Base for one game.
func NewBase(engine *Engine, gt model.GameType, parse StateParser) Base {
	return Base{Engine: engine, Game: Descriptor{Type: gt, ParseState: parse}}
}

// GameType returns the execution layer game type.
func (b Base) GameType() model.GameType {
	return b.Game.Type
}

// StartGame opens a game session on the execution layer.
func (b Base) StartGame(ctx context.Context, sess *session.Session, bet, proposedSessionID uint64) model.HandleResult {
	return b.Engine.StartGame(ctx, sess, b.Game, bet, proposedSessionID)
}

// MakeMove submits a version-prefixed move payload for the active game.
func (b Base) MakeMove(ctx context.Context, sess *session.Session, payload []byte) model.HandleResult {
	return b.Engine.MakeMove(ctx, sess, b.Game, payload)
}

// Move submits a codec payload, adding the protocol version header.
func (b Base) Move(ctx context.Context, sess *session.Session, payload []byte) model.HandleResult {
	if err := CheckPayloadSize(payload); err != nil {
		return ResultFromError(err)
	}
	return b.MakeMove(ctx, sess, WithVersion(payload))
}

// MoveThenReveal submits payload and, when the game is not yet resolved,
// immediately submits reveal and returns its result instead.
func (b Base) MoveThenReveal(ctx context.Context, sess *session.Session, payload, reveal []byte) model.HandleResult {
	res := b.Move(ctx, sess, payload)
	if res.ResponseType() != model.ResponseGameMove {
		return res
	}
	return b.Move(ctx, sess, reveal)
}

// StartThenMoves starts a game with bet and then submits moves in order.
// It stops at the first failure or once the game resolves. The final
// response carries the start's session id, bet and balance sequence.
func (b Base) StartThenMoves(ctx context.Context, sess *session.Session, bet uint64, moves ...[]byte) model.HandleResult {
	for _, m := range moves {
		if err := CheckPayloadSize(m); err != nil {
			return ResultFromError(err)
		}
	}

	started := b.StartGame(ctx, sess, bet, 0)
	if !started.Success || len(moves) == 0 {
		return started
	}

	res := started
	for _, m := range moves {
		res = b.Move(ctx, sess, m)
		if !res.Success || res.ResponseType() == model.ResponseGameResult {
			break
		}
	}
	if !res.Success {
		return res
	}

	for _, key := range []string{"bet", "gameType"} {
		if _, ok := res.Response[key]; !ok {
			res.Response[key] = started.Response[key]
		}
	}
	if _, ok := res.Response["initialState"]; !ok && started.Response["initialState"] != nil {
		res.Response["initialState"] = started.Response["initialState"]
	}
	return res
}

// Action is a fixed move. When Reveal is set and the move leaves the game
// unresolved, Reveal is submitted straight after.
type Action struct {
	Payload []byte
	Reveal  []byte
}

// Play submits a.
func (b Base) Play(ctx context.Context, sess *session.Session, a Action) model.HandleResult {
	if a.Reveal == nil {
		return b.Move(ctx, sess, a.Payload)
	}
	return b.MoveThenReveal(ctx, sess, a.Payload, a.Reveal)
}

// StartBatch normalizes the bets of msg against table and places them as
// one atomic batch move.
func (b Base) StartBatch(ctx context.Context, sess *session.Session, msg Message, table BetTable, opcode byte, withTarget bool) model.HandleResult {
	bets, err := table.Normalize(msg)
	if err != nil {
		return ResultFromError(err)
	}
	payload, err := EncodeAtomicBatch(opcode, bets, withTarget)
	if err != nil {
		return ResultFromError(err)
	}
	return b.PlaceBatch(ctx, sess, payload, bets)
}

// PlaceBatch submits a batch payload. A live round of this game takes it
// as a move, which is how a round left open by a rejected batch is reused.
// Otherwise a new round is started for it.
func (b Base) PlaceBatch(ctx context.Context, sess *session.Session, payload []byte, bets []BatchBet) model.HandleResult {
	var res model.HandleResult
	if _, gt, active := sess.ActiveGame(); active && gt == b.Game.Type {
		res = b.Move(ctx, sess, payload)
	} else {
		res = b.StartThenMoves(ctx, sess, 0, payload)
	}
	if res.Success {
		res.Response["totalWager"] = TotalWager(bets)
	}
	return res
}
