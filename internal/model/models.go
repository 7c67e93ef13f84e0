// Package model defines the data models shared across the casino gateway.
package model

import (
	"strings"
	"time"
)

// GameType identifies a casino game on the execution layer.
// The numeric values are the tags the execution layer expects on the wire.
type GameType uint8

// Game types known to the execution layer.
const (
	GameBaccarat       GameType = 0
	GameBlackjack      GameType = 1
	GameCasinoWar      GameType = 2
	GameCraps          GameType = 3
	GameVideoPoker     GameType = 4
	GameHiLo           GameType = 5
	GameRoulette       GameType = 6
	GameSicBo          GameType = 7
	GameThreeCard      GameType = 8
	GameUltimateHoldem GameType = 9
)

var gameTypeNames = map[GameType]string{
	GameBaccarat:       "baccarat",
	GameBlackjack:      "blackjack",
	GameCasinoWar:      "casinowar",
	GameCraps:          "craps",
	GameVideoPoker:     "videopoker",
	GameHiLo:           "hilo",
	GameRoulette:       "roulette",
	GameSicBo:          "sicbo",
	GameThreeCard:      "threecard",
	GameUltimateHoldem: "ultimateholdem",
}

// String returns the lowercase name used as the message prefix for the game.
func (g GameType) String() string {
	if name, ok := gameTypeNames[g]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether g is a game type the execution layer knows.
func (g GameType) Valid() bool {
	_, ok := gameTypeNames[g]
	return ok
}

// ParseGameType resolves a game name (case-insensitive, "_" and "-" ignored).
func ParseGameType(name string) (GameType, bool) {
	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(name))
	for gt, n := range gameTypeNames {
		if n == normalized {
			return gt, true
		}
	}
	return 0, false
}

// GameRecord is the persisted view of one on-chain game session.
type GameRecord struct {
	SessionID   uint64     `db:"session_id"`
	Account     string     `db:"account"`
	GameType    GameType   `db:"game_type"`
	Bet         uint64     `db:"bet"`
	Payout      *int64     `db:"payout"`
	FinalChips  *uint64    `db:"final_chips"`
	Status      string     `db:"status"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Game record statuses.
const (
	GameStatusActive    = "active"
	GameStatusCompleted = "completed"
)

// SubmissionRecord is one entry of an account's nonce log.
type SubmissionRecord struct {
	Account   string    `db:"account"`
	Nonce     uint64    `db:"nonce"`
	Kind      string    `db:"kind"`
	Status    string    `db:"status"`
	Error     *string   `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}

// Submission statuses.
const (
	SubmissionInFlight = "in_flight"
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
)

// Submission kinds recorded in the nonce log.
const (
	KindRegister  = "register"
	KindDeposit   = "deposit"
	KindStartGame = "start_game"
	KindGameMove  = "game_move"
)
