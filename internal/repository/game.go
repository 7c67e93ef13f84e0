package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casino-gateway/internal/model"
)

// ErrGameNotFound is returned when no game session row matches.
var ErrGameNotFound = errors.New("game session not found")

// Session ids, bets and chips are unsigned 64-bit values; they are stored
// bit-for-bit in BIGINT columns.

// GameRepository handles game session persistence.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// SaveStarted records a started game. A session id seen before is reset
// to active with the new details.
func (r *GameRepository) SaveStarted(ctx context.Context, rec model.GameRecord) error {
	const query = `
		INSERT INTO game_sessions (session_id, account, game_type, bet, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			account = EXCLUDED.account,
			game_type = EXCLUDED.game_type,
			bet = EXCLUDED.bet,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			payout = NULL,
			final_chips = NULL,
			completed_at = NULL
	`
	status := rec.Status
	if status == "" {
		status = model.GameStatusActive
	}
	_, err := r.pool.Exec(ctx, query,
		int64(rec.SessionID), rec.Account, int16(rec.GameType), int64(rec.Bet), status, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to save started game: %w", err)
	}
	return nil
}

// SaveCompleted marks a game completed with its payout.
func (r *GameRepository) SaveCompleted(ctx context.Context, sessionID uint64, payout int64, finalChips *uint64, at time.Time) error {
	const query = `
		UPDATE game_sessions
		SET status = $2, payout = $3, final_chips = $4, completed_at = $5
		WHERE session_id = $1
	`
	var chips *int64
	if finalChips != nil {
		c := int64(*finalChips)
		chips = &c
	}
	tag, err := r.pool.Exec(ctx, query, int64(sessionID), model.GameStatusCompleted, payout, chips, at)
	if err != nil {
		return fmt.Errorf("failed to save completed game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

// GetBySession retrieves a game by session id.
func (r *GameRepository) GetBySession(ctx context.Context, sessionID uint64) (*model.GameRecord, error) {
	const query = `
		SELECT session_id, account, game_type, bet, payout, final_chips, status, started_at, completed_at
		FROM game_sessions
		WHERE session_id = $1
	`
	rec, err := scanGame(r.pool.QueryRow(ctx, query, int64(sessionID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return rec, nil
}

// ListByAccount retrieves an account's games, newest first.
func (r *GameRepository) ListByAccount(ctx context.Context, account string, limit int) ([]*model.GameRecord, error) {
	const query = `
		SELECT session_id, account, game_type, bet, payout, final_chips, status, started_at, completed_at
		FROM game_sessions
		WHERE account = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

func scanGame(row pgx.Row) (*model.GameRecord, error) {
	var (
		rec            model.GameRecord
		sessionID, bet int64
		gameType       int16
		chips          *int64
	)
	err := row.Scan(&sessionID, &rec.Account, &gameType, &bet, &rec.Payout, &chips, &rec.Status, &rec.StartedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	rec.SessionID = uint64(sessionID)
	rec.GameType = model.GameType(gameType)
	rec.Bet = uint64(bet)
	if chips != nil {
		c := uint64(*chips)
		rec.FinalChips = &c
	}
	return &rec, nil
}
