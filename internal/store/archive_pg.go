package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrDuplicateGame = errors.New("game already archived")

// ArchivedGame is one finished game as written to postgres.
type ArchivedGame struct {
	GameID    string
	Mode      string
	Result    string // CHECKMATE, STALEMATE, DRAW, RESIGNED, ABORTED
	Winner    string // white, black or empty
	Reason    string
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

type Archive interface {
	InsertGame(ctx context.Context, g *ArchivedGame) (int64, error)
	GetRecentGames(ctx context.Context, limit int) ([]*ArchivedGame, error)
}

type archive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) Archive {
	return &archive{db: db}
}

func (a *archive) InsertGame(ctx context.Context, g *ArchivedGame) (int64, error) {
	if g == nil {
		return 0, fmt.Errorf("nil game payload")
	}
	movesUCI, err := json.Marshal(g.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(g.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO voice_games (
			game_id,
			mode,
			result,
			winner,
			reason,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = a.db.QueryRowContext(
		ctx,
		query,
		g.GameID,
		g.Mode,
		g.Result,
		g.Winner,
		g.Reason,
		movesUCI,
		movesSAN,
		g.PGN,
		g.StartedAt,
		g.EndedAt,
		g.Duration.Milliseconds(),
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert voice game: %w", err)
	}
	return id.Int64, nil
}

func (a *archive) GetRecentGames(ctx context.Context, limit int) ([]*ArchivedGame, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
		SELECT game_id, mode, result, winner, reason,
		       moves_uci, moves_san, pgn,
		       started_at, ended_at, duration_ms
		FROM voice_games
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query voice games: %w", err)
	}
	defer rows.Close()

	var out []*ArchivedGame
	for rows.Next() {
		var (
			g          ArchivedGame
			rawUCI     []byte
			rawSAN     []byte
			durationMS int64
		)
		if err := rows.Scan(
			&g.GameID, &g.Mode, &g.Result, &g.Winner, &g.Reason,
			&rawUCI, &rawSAN, &g.PGN,
			&g.StartedAt, &g.EndedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan voice game: %w", err)
		}
		if err := json.Unmarshal(rawUCI, &g.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		if err := json.Unmarshal(rawSAN, &g.MovesSAN); err != nil {
			return nil, fmt.Errorf("unmarshal moves_san: %w", err)
		}
		g.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &g)
	}
	return out, rows.Err()
}
