package game

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/events"
	"casino-gateway/internal/model"
	"casino-gateway/internal/nonce"
	"casino-gateway/internal/session"
)

// Submitter delivers sealed transactions to the execution layer.
type Submitter interface {
	Submit(ctx context.Context, tx []byte) error
}

// History persists game sessions. Failures are logged, never surfaced.
type History interface {
	SaveStarted(ctx context.Context, rec model.GameRecord) error
	SaveCompleted(ctx context.Context, sessionID uint64, payout int64, finalChips *uint64, at time.Time) error
}

// Engine runs the start/move pipeline shared by every game.
type Engine struct {
	nonces     *nonce.Manager
	submitter  Submitter
	correlator *events.Correlator
	streams    events.StreamFactory
	history    History
	verbose    bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStreams opens a session-scoped event stream for every started game.
func WithStreams(f events.StreamFactory) EngineOption {
	return func(e *Engine) { e.streams = f }
}

// WithHistory records started and completed games.
func WithHistory(h History) EngineOption {
	return func(e *Engine) { e.history = h }
}

// WithVerbosePayloads logs every submitted move payload at debug level.
func WithVerbosePayloads(v bool) EngineOption {
	return func(e *Engine) { e.verbose = v }
}

// NewEngine creates an Engine.
func NewEngine(nonces *nonce.Manager, submitter Submitter, correlator *events.Correlator, opts ...EngineOption) *Engine {
	e := &Engine{nonces: nonces, submitter: submitter, correlator: correlator}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange is one submission under an account's nonce lock and the
// correlated wait that follows it.
type Exchange struct {
	Kind        string
	Instruction []byte
	Waits       []events.Wait
	// Check runs under the lock before anything is submitted.
	Check func() error
	// Accepted runs under the lock once the backend accepts the transaction.
	Accepted func()
	// Resolve runs under the lock with the correlated event, if any.
	Resolve func(ev model.Event, ok bool)
	// Payload is logged with the nonce when verbose payload logging is on.
	Payload []byte
}

// Run executes x. It returns the correlated event and whether one arrived
// before the timeout; err is non-nil only when nothing was accepted.
func (e *Engine) Run(ctx context.Context, sess *session.Session, x Exchange) (model.Event, bool, error) {
	sess.BeginAwait()
	defer sess.EndAwait()

	account := sess.PublicKey()
	var (
		ev  model.Event
		got bool
	)
	err := e.nonces.WithLock(ctx, account, func(ctx context.Context, n uint64) error {
		if x.Check != nil {
			if err := x.Check(); err != nil {
				return err
			}
		}

		pending := e.correlator.Expect(x.Waits...)
		defer pending.Cancel()

		_, err := e.nonces.Submit(ctx, account, x.Kind, n, func(ctx context.Context, n uint64) error {
			if e.verbose && x.Payload != nil {
				log.Debug().
					Str("account", account).
					Uint64("nonce", n).
					Str("payload", hex.EncodeToString(x.Payload)).
					Msg("Submitting move payload")
			}
			return e.submitter.Submit(ctx, sess.Sealer.Seal(n, x.Instruction))
		})
		if err != nil {
			return err
		}
		if x.Accepted != nil {
			x.Accepted()
		}

		ev, got = pending.Await(ctx)
		if got {
			sess.Settle(ev)
		}
		if x.Resolve != nil {
			x.Resolve(ev, got)
		}
		return nil
	})
	return ev, got, err
}

func startPreconditions(sess *session.Session) error {
	if _, _, active := sess.ActiveGame(); active {
		return Errorf(model.CodeGameInProgress, "a game is already in progress")
	}
	if !sess.Registered() {
		return Errorf(model.CodeNotRegistered, "player is not registered")
	}
	return nil
}

// StartGame opens a game on the execution layer. Without a confirming
// event before the timeout the optimistic local state is kept.
func (e *Engine) StartGame(ctx context.Context, sess *session.Session, g Descriptor, bet, proposedSessionID uint64) model.HandleResult {
	if err := startPreconditions(sess); err != nil {
		return ResultFromError(err)
	}
	if proposedSessionID == 0 {
		proposedSessionID = sess.NextSessionID()
	}

	account := sess.PublicKey()
	sessionID := proposedSessionID

	ev, got, err := e.Run(ctx, sess, Exchange{
		Kind:        model.KindStartGame,
		Instruction: backend.EncodeStartGame(g.Type, bet, proposedSessionID),
		Waits: []events.Wait{{
			Stream: sess.AccountStream(),
			Kinds:  []model.EventKind{model.EventStarted},
			Player: account,
		}},
		Check: func() error { return startPreconditions(sess) },
		Accepted: func() {
			sess.BeginGame(proposedSessionID, g.Type)
		},
		Resolve: func(ev model.Event, ok bool) {
			if ok && ev.Kind == model.EventError {
				sess.EndGame()
				return
			}
			if ok && ev.SessionID != 0 && ev.SessionID != proposedSessionID {
				log.Info().
					Str("account", account).
					Uint64("proposed", proposedSessionID).
					Uint64("assigned", ev.SessionID).
					Msg("Adopting backend session id")
				sess.AdoptSessionID(ev.SessionID)
				sessionID = ev.SessionID
			}
			if ok {
				sess.ConfirmGame(sessionID)
			}
			e.bindSessionStream(ctx, sess, sessionID)
		},
	})
	if err != nil {
		return ResultFromError(err)
	}
	if got && ev.Kind == model.EventError {
		return RejectedByEvent(ev, "game start rejected")
	}

	seq := sess.BumpBalanceSeq()
	if e.history != nil {
		if err := e.history.SaveStarted(ctx, model.GameRecord{
			SessionID: sessionID,
			Account:   account,
			GameType:  g.Type,
			Bet:       bet,
			Status:    model.GameStatusActive,
			StartedAt: time.Now(),
		}); err != nil {
			log.Warn().Err(err).Uint64("session_id", sessionID).Msg("Failed to record game start")
		}
	}

	resp := map[string]any{
		"type":       model.ResponseGameStarted,
		"sessionId":  sessionID,
		"gameType":   g.Type.String(),
		"bet":        bet,
		"balanceSeq": seq,
		"confirmed":  got,
	}
	if got {
		if state := g.parse(ev.InitialState); state != nil {
			resp["initialState"] = state
		}
	}
	return model.OK(resp)
}

// MakeMove submits a version-prefixed move for the active game and returns
// the first of moved, completed or error, or move_accepted on timeout.
func (e *Engine) MakeMove(ctx context.Context, sess *session.Session, g Descriptor, payload []byte) model.HandleResult {
	sessionID, gt, ok := sess.ActiveGame()
	if !ok {
		return model.Fail(model.CodeNoActiveGame, "no game in progress")
	}
	move, err := StripVersion(payload)
	if err != nil {
		return ResultFromError(err)
	}
	if len(move) == 0 {
		return model.Fail(model.CodeInvalidMessage, "empty move payload")
	}
	if len(move) > MaxPayloadLen {
		return model.Fail(model.CodeInvalidMessage, "move payload too large")
	}
	instruction, err := backend.EncodeGameMove(sessionID, move)
	if err != nil {
		return model.Fail(model.CodeInvalidMessage, err.Error())
	}
	if gt != g.Type {
		log.Warn().Str("active", gt.String()).Str("move", g.Type.String()).Uint64("session_id", sessionID).Msg("Move for a different game type")
	}

	account := sess.AccountStream()
	moved := sess.SessionStream()
	if moved == nil {
		moved = account
	}

	var (
		balanceSeq uint64
		balance    *uint64
	)
	ev, got, err := e.Run(ctx, sess, Exchange{
		Kind:        model.KindGameMove,
		Instruction: instruction,
		Payload:     move,
		Waits: []events.Wait{
			{Stream: moved, Kinds: []model.EventKind{model.EventMoved}, SessionID: sessionID},
			{Stream: account, Kinds: []model.EventKind{model.EventCompleted, model.EventError}, SessionID: sessionID},
		},
		Check: func() error {
			if cur, _, ok := sess.ActiveGame(); !ok || cur != sessionID {
				return Errorf(model.CodeNoActiveGame, "game %d is no longer active", sessionID)
			}
			return nil
		},
		Resolve: func(ev model.Event, ok bool) {
			if !ok {
				return
			}
			switch ev.Kind {
			case model.EventCompleted:
				if sess.EndGameIf(sessionID) {
					sess.CloseSessionStream()
				}
				if chips, known := ev.Chips(); known {
					balance = &chips
					balanceSeq = sess.SetBalance(chips)
				} else {
					balanceSeq = sess.BumpBalanceSeq()
				}
			case model.EventMoved:
				sess.ConfirmGame(sessionID)
				if ev.Balance != nil {
					chips := ev.Balance.Chips
					balance = &chips
					balanceSeq = sess.SetBalance(chips)
				}
			}
		},
	})
	if err != nil {
		return ResultFromError(err)
	}
	if !got {
		return model.OK(map[string]any{
			"type":      model.ResponseMoveAccepted,
			"sessionId": sessionID,
		})
	}

	switch ev.Kind {
	case model.EventError:
		return RejectedByEvent(ev, "move rejected")

	case model.EventCompleted:
		if e.history != nil {
			if err := e.history.SaveCompleted(ctx, sessionID, ev.Payout, ev.FinalChips, time.Now()); err != nil {
				log.Warn().Err(err).Uint64("session_id", sessionID).Msg("Failed to record game result")
			}
		}
		resp := map[string]any{
			"type":       model.ResponseGameResult,
			"sessionId":  sessionID,
			"gameType":   g.Type.String(),
			"payout":     ev.Payout,
			"outcome":    Outcome(ev.Payout),
			"won":        ev.Payout > 0,
			"balanceSeq": balanceSeq,
		}
		if balance != nil {
			resp["balance"] = *balance
		}
		mergeLogs(resp, ev.Logs)
		return model.OK(resp)

	default:
		resp := map[string]any{
			"type":       model.ResponseGameMove,
			"sessionId":  sessionID,
			"gameType":   g.Type.String(),
			"moveNumber": ev.MoveNumber,
		}
		if state := g.parse(ev.NewState); state != nil {
			resp["state"] = state
		}
		if balance != nil {
			resp["balance"] = *balance
			resp["balanceSeq"] = balanceSeq
		}
		mergeLogs(resp, ev.Logs)
		return model.OK(resp)
	}
}

func (e *Engine) bindSessionStream(ctx context.Context, sess *session.Session, sessionID uint64) {
	if e.streams == nil {
		return
	}
	stream, err := e.streams.OpenSession(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Uint64("session_id", sessionID).Msg("Session event stream unavailable, using account stream")
		sess.CloseSessionStream()
		return
	}
	sess.BindSessionStream(stream)
}

// Outcome classifies a payout: positive wins, negative loses, zero pushes.
func Outcome(payout int64) string {
	switch {
	case payout > 0:
		return "win"
	case payout < 0:
		return "loss"
	}
	return "push"
}

// reservedKeys are never overwritten by log fields.
var reservedKeys = map[string]bool{
	"type": true, "sessionId": true, "success": true, "requestId": true, "error": true,
}

// mergeLogs copies the fields of JSON object logs into resp; other log
// lines are returned under "logs".
func mergeLogs(resp map[string]any, logs []string) {
	var plain []string
	for _, line := range logs {
		if !gjson.Valid(line) || !gjson.Parse(line).IsObject() {
			plain = append(plain, line)
			continue
		}
		gjson.Parse(line).ForEach(func(k, v gjson.Result) bool {
			if !reservedKeys[k.String()] {
				resp[k.String()] = v.Value()
			}
			return true
		})
	}
	if len(plain) > 0 {
		resp["logs"] = plain
	}
}
