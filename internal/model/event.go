package model

// EventKind classifies an execution-layer event.
type EventKind string

// Event kinds the gateway correlates against.
const (
	EventStarted    EventKind = "started"
	EventMoved      EventKind = "moved"
	EventCompleted  EventKind = "completed"
	EventError      EventKind = "error"
	EventRegistered EventKind = "registered"
	EventDeposited  EventKind = "deposited"
)

// BalanceSnapshot is the player's balances as of an event.
type BalanceSnapshot struct {
	Chips uint64 `json:"chips"`
	VUSDT uint64 `json:"vusdt"`
	RNG   uint64 `json:"rng"`
}

// Event is a decoded casino event. Only the fields of its Kind are set.
type Event struct {
	Kind      EventKind
	SessionID uint64
	Player    string

	// started
	GameType     GameType
	Bet          uint64
	InitialState []byte

	// moved
	MoveNumber uint32
	NewState   []byte

	// completed
	Payout     int64
	FinalChips *uint64

	// moved and completed
	Logs    []string
	Balance *BalanceSnapshot

	// error
	ErrorCode    uint8
	ErrorMessage string

	// registered and deposited
	Name     string
	Amount   uint64
	NewChips uint64
}

// Chips returns the most authoritative chip balance carried by the event.
func (e Event) Chips() (uint64, bool) {
	if e.FinalChips != nil {
		return *e.FinalChips, true
	}
	if e.Balance != nil {
		return e.Balance.Chips, true
	}
	if e.Kind == EventDeposited {
		return e.NewChips, true
	}
	return 0, false
}
