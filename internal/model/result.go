package model

// ErrorCode is a machine-readable failure code surfaced to clients.
type ErrorCode string

const (
	// Request validation, detected before any submission.
	CodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	CodeInvalidBet     ErrorCode = "INVALID_BET"

	// Local state preconditions.
	CodeGameInProgress ErrorCode = "GAME_IN_PROGRESS"
	CodeNotRegistered  ErrorCode = "NOT_REGISTERED"
	CodeNoActiveGame   ErrorCode = "NO_ACTIVE_GAME"

	// Backend rejection or transport failure.
	CodeTransactionRejected ErrorCode = "TRANSACTION_REJECTED"

	// Gateway surface.
	CodeUnknownGame ErrorCode = "UNKNOWN_GAME"
	CodeRateLimited ErrorCode = "RATE_LIMITED"
)

// HandleError describes why an operation failed.
type HandleError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HandleResult is the return value of every handler operation.
// Expected failures are reported here rather than as Go errors.
type HandleResult struct {
	Success  bool           `json:"success"`
	Response map[string]any `json:"response,omitempty"`
	Error    *HandleError   `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(response map[string]any) HandleResult {
	return HandleResult{Success: true, Response: response}
}

// Fail builds a failed result.
func Fail(code ErrorCode, message string) HandleResult {
	return HandleResult{Success: false, Error: &HandleError{Code: code, Message: message}}
}

// ResponseType returns the "type" field of a successful response, or "".
func (r HandleResult) ResponseType() string {
	if !r.Success || r.Response == nil {
		return ""
	}
	t, _ := r.Response["type"].(string)
	return t
}

// ErrorCode returns the failure code, or "" for a successful result.
func (r HandleResult) ErrorCode() ErrorCode {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// Response types produced by game handlers.
const (
	ResponseGameStarted  = "game_started"
	ResponseGameMove     = "game_move"
	ResponseGameResult   = "game_result"
	ResponseMoveAccepted = "move_accepted"
)

// Response types produced by the account service.
const (
	ResponseRegistered = "registered"
	ResponseDeposited  = "deposited"
	ResponseBalance    = "balance"
)
