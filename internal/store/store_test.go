package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-duel/pkg/gamedto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewFromURL(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("store.NewFromURL: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapFixture(gameID, status string, updated time.Time) *gamedto.GameSnapshot {
	return &gamedto.GameSnapshot{
		GameID:        gameID,
		WhiteID:       "u1",
		WhiteName:     "Alice",
		BlackID:       "u2",
		BlackName:     "Bob",
		TimeControlMs: 600_000,
		Status:        status,
		Digest:        "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Turn:          "white",
		History:       []gamedto.HistoryEntry{{SAN: "e4", TimeSpentMs: 4500}},
		UpdatedAt:     updated,
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := snapFixture("g1", "active", time.Now())
	if err := s.SaveSession(ctx, snap); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.LoadSession(ctx, "g1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got == nil || got.GameID != "g1" || got.Status != "active" {
		t.Fatalf("loaded = %+v", got)
	}
	if len(got.History) != 1 || got.History[0].TimeSpentMs != 4500 {
		t.Fatalf("history lost: %+v", got.History)
	}
}

func TestLoadSessionAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent session, got %+v", got)
	}
}

func TestResumableSessionByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.SaveSession(ctx, snapFixture("old", "paused", now.Add(-time.Hour))); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := s.SaveSession(ctx, snapFixture("fresh", "active", now)); err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if err := s.SaveSession(ctx, snapFixture("done", "finished", now.Add(time.Minute))); err != nil {
		t.Fatalf("save done: %v", err)
	}

	got, err := s.ResumableSessionByUser(ctx, "u2")
	if err != nil {
		t.Fatalf("ResumableSessionByUser: %v", err)
	}
	if got == nil || got.GameID != "fresh" {
		t.Fatalf("resumable = %+v, want fresh", got)
	}

	none, err := s.ResumableSessionByUser(ctx, "stranger")
	if err != nil || none != nil {
		t.Fatalf("stranger = %+v err=%v", none, err)
	}
}

func TestSaveAndLoadHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveHistory(ctx, "g1", "e4,4.50,e5,3.21"); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	got, err := s.LoadHistory(ctx, "g1")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got != "e4,4.50,e5,3.21" {
		t.Fatalf("history = %q", got)
	}
	empty, err := s.LoadHistory(ctx, "missing")
	if err != nil || empty != "" {
		t.Fatalf("missing history = %q err=%v", empty, err)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, snapFixture("g1", "active", time.Now())); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SaveHistory(ctx, "g1", "e4,4.50"); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	if err := s.DeleteSession(ctx, "g1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	got, err := s.LoadSession(ctx, "g1")
	if err != nil || got != nil {
		t.Fatalf("session survived delete: %+v err=%v", got, err)
	}
	hist, err := s.LoadHistory(ctx, "g1")
	if err != nil || hist != "" {
		t.Fatalf("history survived delete: %q err=%v", hist, err)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("addr = %q", opts.Addr)
	}
	if opts.Password != "secret" {
		t.Fatalf("password = %q", opts.Password)
	}
	if opts.DB != 2 {
		t.Fatalf("db = %d", opts.DB)
	}
	if _, err := ParseRedisURL("http://wrong"); err == nil {
		t.Fatalf("non-redis scheme accepted")
	}
}
