package gamedto

import "time"

// HistoryEntry is one accepted move inside a snapshot.
type HistoryEntry struct {
	SAN         string `json:"san"`
	TimeSpentMs int64  `json:"time_spent_ms"`
}

// GameSnapshot is the authoritative full state of a game, used for
// resynchronization after a detected ordinal gap and for resumable storage.
type GameSnapshot struct {
	GameID        string         `json:"game_id"`
	WhiteID       string         `json:"white_id"`
	WhiteName     string         `json:"white_name"`
	BlackID       string         `json:"black_id"`
	BlackName     string         `json:"black_name"`
	TimeControlMs int64          `json:"time_control_ms"`
	Status        string         `json:"status"`
	Digest        string         `json:"digest"`
	Turn          string         `json:"turn"`
	History       []HistoryEntry `json:"history"`
	TurnStartedAt time.Time      `json:"turn_started_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CompletedGameRecord is the terminal record posted to the persistence API.
type CompletedGameRecord struct {
	GameID      string    `json:"game_id"`
	WhiteID     string    `json:"white_id"`
	WhiteName   string    `json:"white_name"`
	BlackID     string    `json:"black_id"`
	BlackName   string    `json:"black_name"`
	Outcome     string    `json:"outcome"`
	EndReason   string    `json:"end_reason"`
	WinnerColor string    `json:"winner_color,omitempty"`
	FinalDigest string    `json:"final_digest"`
	MoveCount   int       `json:"move_count"`
	History     string    `json:"history"`
	PGN         string    `json:"pgn,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}
