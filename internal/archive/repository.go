// Package archive persists finished games to Postgres, PGN included.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-duel/pkg/gamedto"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveCompleted upserts a terminal game record. Idempotent on game_id so a
// finalization retry or a second client writing the same result is harmless.
func (r *Repository) SaveCompleted(ctx context.Context, rec *gamedto.CompletedGameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	pgn := BuildPGN(rec)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO duel_games (
	    game_id, white_id, white_name, black_id, black_name,
	    outcome, end_reason, winner_color, final_digest,
	    move_count, history, pgn, started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
	  ) ON CONFLICT (game_id) DO UPDATE SET
	    outcome=EXCLUDED.outcome,
	    end_reason=EXCLUDED.end_reason,
	    winner_color=EXCLUDED.winner_color,
	    final_digest=EXCLUDED.final_digest,
	    move_count=EXCLUDED.move_count,
	    history=EXCLUDED.history,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.GameID,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.Outcome, rec.EndReason, rec.WinnerColor, rec.FinalDigest,
		rec.MoveCount, rec.History, pgn,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func mapResultToPGN(outcome string) string {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders headers plus numbered SAN moves from the compact history
// encoding.
func BuildPGN(rec *gamedto.CompletedGameRecord) string {
	if rec == nil {
		return ""
	}
	pgnResult := mapResultToPGN(rec.Outcome)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Duel\"]\n")
	b.WriteString("[Site \"chess-duel\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.BlackName)))
	if strings.TrimSpace(rec.EndReason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.EndReason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	sans := sansFromHistory(rec.History)
	for i := 0; i < len(sans); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, sans[i]))
		if i+1 < len(sans) {
			b.WriteString(" ")
			b.WriteString(sans[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

// sansFromHistory pulls the SAN tokens out of "<SAN>,<secs>" tuples.
func sansFromHistory(encoded string) []string {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	out := make([]string, 0, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		san := strings.TrimSpace(parts[i])
		if san != "" {
			out = append(out, san)
		}
	}
	return out
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
