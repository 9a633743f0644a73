package gamedto

import "time"

// Event type discriminators used on the wire.
const (
	EventMove              = "move"
	EventGamePaused        = "gamePaused"
	EventGameResumed       = "gameResumed"
	EventResumeRequested   = "resumeRequested"
	EventResumeResponded   = "resumeResponded"
	EventResumeExpired     = "resumeExpired"
	EventGameEnded         = "gameEnded"
	EventConnectionChanged = "opponentConnectionChanged"
)

// Event is the envelope the realtime stream delivers. Exactly one payload
// pointer is set, selected by Type. Delivery is at-least-once and unordered.
type Event struct {
	Type            string                `json:"type"`
	GameID          string                `json:"game_id"`
	Move            *MoveEvent            `json:"move,omitempty"`
	Paused          *PausedEvent          `json:"paused,omitempty"`
	Resumed         *ResumedEvent         `json:"resumed,omitempty"`
	ResumeRequested *ResumeRequestedEvent `json:"resume_requested,omitempty"`
	ResumeResponded *ResumeRespondedEvent `json:"resume_responded,omitempty"`
	Ended           *GameEndedEvent       `json:"ended,omitempty"`
	Connection      *ConnectionEvent      `json:"connection,omitempty"`
}

// MoveEvent carries an authoritative, server-confirmed move. Ordinal is the
// ordering key; arrival order means nothing.
type MoveEvent struct {
	Ordinal     int    `json:"ordinal"`
	SAN         string `json:"san"`
	FromDigest  string `json:"from_digest"`
	ToDigest    string `json:"to_digest"`
	MoverID     string `json:"mover_id"`
	TimeSpentMs int64  `json:"time_spent_ms"`
}

type PausedEvent struct {
	ByUserID string `json:"by_user_id"`
}

type ResumedEvent struct {
	WhiteGraceMs int64  `json:"white_grace_ms"`
	BlackGraceMs int64  `json:"black_grace_ms"`
	Turn         string `json:"turn"`
}

type ResumeRequestedEvent struct {
	RequesterID string    `json:"requester_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ResumeRespondedEvent struct {
	Accepted bool `json:"accepted"`
}

type GameEndedEvent struct {
	Result      string `json:"result"`
	EndReason   string `json:"end_reason"`
	FinalDigest string `json:"final_digest"`
}

type ConnectionEvent struct {
	UserID string `json:"user_id"`
	State  string `json:"state"`
}
