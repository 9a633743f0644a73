// Package store keeps live, resumable session snapshots in Redis so a
// refreshed or reconnected client can rebuild the engine from scratch.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/pkg/gamedto"
)

const ttlSession = 24 * time.Hour

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// NewFromURL connects from a redis:// URL and pings once.
func NewFromURL(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// SaveSession stores the snapshot and refreshes the per-user index so lookup
// keys expire together with the game.
func (s *Store) SaveSession(ctx context.Context, snap *gamedto.GameSnapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return fmt.Errorf("session store not initialized")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, gameKey(snap.GameID), raw, ttlSession).Err(); err != nil {
		return err
	}
	for _, uid := range []string{snap.WhiteID, snap.BlackID} {
		if strings.TrimSpace(uid) == "" {
			continue
		}
		key := idxUserKey(uid)
		if err := s.rdb.SAdd(ctx, key, snap.GameID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, key, ttlSession).Err()
	}
	obslog.L().Debug("session_saved",
		zap.String("game_id", snap.GameID),
		zap.String("status", snap.Status),
		zap.Int("moves", len(snap.History)))
	return nil
}

// LoadSession returns the snapshot by game id, nil when absent or expired.
func (s *Store) LoadSession(ctx context.Context, gameID string) (*gamedto.GameSnapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("session store not initialized")
	}
	raw, err := s.rdb.Get(ctx, gameKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap gamedto.GameSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ResumableSessionByUser returns the most recently updated non-finished
// session for a user, or nil.
func (s *Store) ResumableSessionByUser(ctx context.Context, userID string) (*gamedto.GameSnapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("session store not initialized")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*gamedto.GameSnapshot
	for _, id := range ids {
		snap, serr := s.LoadSession(ctx, id)
		if serr != nil || snap == nil {
			continue
		}
		if snap.Status == "finished" {
			continue
		}
		list = append(list, snap)
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

// SaveHistory stores the compact textual ledger alongside the snapshot.
func (s *Store) SaveHistory(ctx context.Context, gameID, encoded string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("session store not initialized")
	}
	return s.rdb.Set(ctx, historyKey(gameID), encoded, ttlSession).Err()
}

// LoadHistory returns the compact textual ledger, "" when absent.
func (s *Store) LoadHistory(ctx context.Context, gameID string) (string, error) {
	if s == nil || s.rdb == nil {
		return "", fmt.Errorf("session store not initialized")
	}
	raw, err := s.rdb.Get(ctx, historyKey(gameID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

// DeleteSession drops the snapshot and history after finalization.
func (s *Store) DeleteSession(ctx context.Context, gameID string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("session store not initialized")
	}
	return s.rdb.Del(ctx, gameKey(gameID), historyKey(gameID)).Err()
}

func gameKey(id string) string      { return "duel:game:" + strings.TrimSpace(id) }
func idxUserKey(uid string) string  { return "duel:index:user:" + strings.TrimSpace(uid) }
func historyKey(id string) string   { return "duel:history:" + strings.TrimSpace(id) }

// ParseRedisURL extracts client options from a redis:// or rediss:// URL.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
