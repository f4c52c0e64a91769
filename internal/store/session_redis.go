// Package store persists session snapshots in redis and finished games in
// postgres. Both are optional collaborators; the pipeline runs without them.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/voicechess/internal/game"
)

const ttlSession = 24 * time.Hour

// Snapshot is the live-session state written after every applied move, so a
// crashed session can be inspected or resumed.
type Snapshot struct {
	GameID    string           `json:"game_id"`
	Mode      string           `json:"mode"`
	FEN       string           `json:"fen"`
	Record    []game.TurnEntry `json:"record"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type SessionStore struct{ rdb *redis.Client }

func NewSessionStore(rdb *redis.Client) *SessionStore { return &SessionStore{rdb: rdb} }

func (s *SessionStore) keyGame(id string) string { return "voice:game:" + strings.TrimSpace(id) }
func (s *SessionStore) keyActive() string        { return "voice:games" }

func (s *SessionStore) Save(ctx context.Context, snap *Snapshot) error {
	snap.UpdatedAt = time.Now()
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyGame(snap.GameID), raw, ttlSession).Err(); err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, s.keyActive(), snap.GameID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.keyActive(), ttlSession).Err()
}

// Load returns (nil, nil) when the snapshot does not exist.
func (s *SessionStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.keyGame(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.keyGame(id)).Err(); err != nil {
		return err
	}
	return s.rdb.SRem(ctx, s.keyActive(), id).Err()
}

// ActiveGames lists session IDs that still have a snapshot.
func (s *SessionStore) ActiveGames(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyActive()).Result()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		n, err := s.rdb.Exists(ctx, s.keyGame(id)).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}
