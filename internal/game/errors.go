package game

import (
	"errors"
	"fmt"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/model"
	"casino-gateway/internal/nonce"
	"casino-gateway/internal/pkg/lock"
)

// CodedError pairs a client-facing error code with a message.
type CodedError struct {
	Code    model.ErrorCode
	Message string
}

func (e *CodedError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any CodedError with the same code.
func (e *CodedError) Is(target error) bool {
	var t *CodedError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Errorf builds a CodedError.
func Errorf(code model.ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidMessage = &CodedError{Code: model.CodeInvalidMessage}
	ErrInvalidBet     = &CodedError{Code: model.CodeInvalidBet}
	ErrGameInProgress = &CodedError{Code: model.CodeGameInProgress}
	ErrNotRegistered  = &CodedError{Code: model.CodeNotRegistered}
	ErrNoActiveGame   = &CodedError{Code: model.CodeNoActiveGame}
)

// ResultFromError converts an error into a failed HandleResult. Errors
// without a code are backend or transport failures.
func ResultFromError(err error) model.HandleResult {
	var coded *CodedError
	if errors.As(err, &coded) {
		return model.Fail(coded.Code, coded.Message)
	}

	var rejected *backend.RejectedError
	switch {
	case errors.As(err, &rejected):
		return model.Fail(model.CodeTransactionRejected, rejected.Message)
	case errors.Is(err, lock.ErrLockTimeout):
		return model.Fail(model.CodeTransactionRejected, "account is busy, try again")
	case errors.Is(err, nonce.ErrRetryExhausted):
		return model.Fail(model.CodeTransactionRejected, err.Error())
	}
	return model.Fail(model.CodeTransactionRejected, fmt.Sprintf("submission failed: %v", err))
}

// RejectedByEvent converts an error event into a TRANSACTION_REJECTED
// result carrying the backend's message, or fallback when it has none.
func RejectedByEvent(ev model.Event, fallback string) model.HandleResult {
	msg := ev.ErrorMessage
	if msg == "" {
		msg = fallback
	}
	return model.Fail(model.CodeTransactionRejected, msg)
}
