// Package service provides the account operations that sit beside the games:
// registration, faucet deposits and balance reads.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

// Message types handled by the account service.
const (
	MsgRegister = "casino_register"
	MsgDeposit  = "casino_deposit"
	MsgBalance  = "get_balance"
)

// Name validation errors, reported as INVALID_MESSAGE.
var (
	ErrNameRequired = &game.CodedError{Code: model.CodeInvalidMessage, Message: "player name is required"}
	ErrNameInvalid  = &game.CodedError{Code: model.CodeInvalidMessage, Message: "player name must be valid UTF-8"}
)

// AccountReader reads an account from the execution layer.
type AccountReader interface {
	Account(ctx context.Context, publicKey string) (*backend.Account, error)
}

// AccountService handles player account operations.
type AccountService struct {
	engine *game.Engine
	reader AccountReader
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(engine *game.Engine, reader AccountReader) *AccountService {
	return &AccountService{engine: engine, reader: reader}
}

// Messages returns the message types the service handles.
func (s *AccountService) Messages() []string {
	return []string{MsgRegister, MsgDeposit, MsgBalance}
}

// Handles reports whether msgType is an account message.
func (s *AccountService) Handles(msgType string) bool {
	switch msgType {
	case MsgRegister, MsgDeposit, MsgBalance:
		return true
	}
	return false
}

// HandleMessage dispatches one account message.
func (s *AccountService) HandleMessage(ctx context.Context, sess *session.Session, msg game.Message) model.HandleResult {
	switch msg.Type {
	case MsgRegister:
		return s.Register(ctx, sess, msg.Get("name").String())
	case MsgDeposit:
		amount, err := msg.Amount("amount")
		if err != nil {
			return game.ResultFromError(err)
		}
		return s.Deposit(ctx, sess, amount)
	case MsgBalance:
		return s.Balance(sess)
	}
	return model.Fail(model.CodeUnknownGame, fmt.Sprintf("unknown message type %q", msg.Type))
}

// Restore loads the player's registration and chips from the execution
// layer. An unknown account leaves the session unregistered.
func (s *AccountService) Restore(ctx context.Context, sess *session.Session) error {
	acct, err := s.reader.Account(ctx, sess.PublicKey())
	if err != nil {
		return fmt.Errorf("failed to restore account: %w", err)
	}
	if acct.Registered {
		sess.SetRegistered(true)
		sess.SetBalance(acct.Chips)
	}
	return nil
}

// Register creates the casino player for the session's key. Without a
// confirming event the player is assumed registered.
func (s *AccountService) Register(ctx context.Context, sess *session.Session, name string) model.HandleResult {
	name = strings.TrimSpace(name)
	instruction, err := registerInstruction(name)
	if err != nil {
		return game.ResultFromError(err)
	}
	if sess.Registered() {
		chips, seq := sess.Balance()
		return model.OK(map[string]any{
			"type":              model.ResponseRegistered,
			"alreadyRegistered": true,
			"balance":           chips,
			"balanceSeq":        seq,
		})
	}

	account := sess.PublicKey()
	var seq uint64
	ev, got, err := s.engine.Run(ctx, sess, game.Exchange{
		Kind:        model.KindRegister,
		Instruction: instruction,
		Waits: []events.Wait{{
			Stream: sess.AccountStream(),
			Kinds:  []model.EventKind{model.EventRegistered, model.EventError},
			Player: account,
		}},
		Resolve: func(ev model.Event, ok bool) {
			if ok && ev.Kind == model.EventError {
				return
			}
			sess.SetRegistered(true)
			if ok && ev.NewChips > 0 {
				seq = sess.SetBalance(ev.NewChips)
				return
			}
			seq = sess.BumpBalanceSeq()
		},
	})
	if err != nil {
		return game.ResultFromError(err)
	}
	if got && ev.Kind == model.EventError {
		return game.RejectedByEvent(ev, "registration rejected")
	}

	log.Info().Str("account", account).Str("name", name).Bool("confirmed", got).Msg("Player registered")
	chips, _ := sess.Balance()
	return model.OK(map[string]any{
		"type":       model.ResponseRegistered,
		"name":       name,
		"balance":    chips,
		"balanceSeq": seq,
		"confirmed":  got,
	})
}

// Deposit claims faucet chips for a registered player.
func (s *AccountService) Deposit(ctx context.Context, sess *session.Session, amount uint64) model.HandleResult {
	if !sess.Registered() {
		return model.Fail(model.CodeNotRegistered, "player is not registered")
	}

	var (
		seq     uint64
		balance *uint64
	)
	ev, got, err := s.engine.Run(ctx, sess, game.Exchange{
		Kind:        model.KindDeposit,
		Instruction: backend.EncodeDeposit(amount),
		Waits: []events.Wait{{
			Stream: sess.AccountStream(),
			Kinds:  []model.EventKind{model.EventDeposited, model.EventError},
			Player: sess.PublicKey(),
		}},
		Resolve: func(ev model.Event, ok bool) {
			if ok && ev.Kind == model.EventError {
				return
			}
			if ok {
				if chips, known := ev.Chips(); known {
					balance = &chips
					seq = sess.SetBalance(chips)
					return
				}
			}
			seq = sess.BumpBalanceSeq()
		},
	})
	if err != nil {
		return game.ResultFromError(err)
	}
	if got && ev.Kind == model.EventError {
		return game.RejectedByEvent(ev, "deposit rejected")
	}

	resp := map[string]any{
		"type":       model.ResponseDeposited,
		"amount":     amount,
		"balanceSeq": seq,
		"confirmed":  got,
	}
	if balance != nil {
		resp["balance"] = *balance
	}
	return model.OK(resp)
}

// Balance returns the session's last known chips and active game.
func (s *AccountService) Balance(sess *session.Session) model.HandleResult {
	chips, seq := sess.Balance()
	resp := map[string]any{
		"type":       model.ResponseBalance,
		"balance":    chips,
		"balanceSeq": seq,
		"registered": sess.Registered(),
		"publicKey":  sess.PublicKey(),
	}
	if id, gt, ok := sess.ActiveGame(); ok {
		resp["activeGame"] = map[string]any{"sessionId": id, "gameType": gt.String()}
	}
	return model.OK(resp)
}

// registerInstruction validates a player name and encodes it.
func registerInstruction(name string) ([]byte, error) {
	switch {
	case name == "":
		return nil, ErrNameRequired
	case !utf8.ValidString(name):
		return nil, ErrNameInvalid
	}
	instruction, err := backend.EncodeRegister(name)
	if err != nil {
		return nil, game.Errorf(model.CodeInvalidMessage, "%v", err)
	}
	return instruction, nil
}
