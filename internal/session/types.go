package session

import (
	"time"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the lifecycle state of a game session.
// waiting → active ⇄ paused → finished; finished is terminal.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// GameSession identifies one game and its participants. Owned exclusively by
// the Engine instance for that game.
type GameSession struct {
	ID            string
	WhiteID       string
	WhiteName     string
	BlackID       string
	BlackName     string
	LocalID       string
	TimeControlMs int64
	Status        Status
	CreatedAt     time.Time
}

// ColorOf maps a participant identity to its side, or "" for strangers.
func (s *GameSession) ColorOf(userID string) Color {
	switch userID {
	case s.WhiteID:
		return White
	case s.BlackID:
		return Black
	}
	return ""
}

// LocalColor is the side played on this client.
func (s *GameSession) LocalColor() Color { return s.ColorOf(s.LocalID) }

// MoveRecord is one accepted move. Immutable once appended to the ledger.
type MoveRecord struct {
	Ordinal      int
	Mover        Color
	SAN          string
	BeforeDigest string
	AfterDigest  string
	TimeSpentMs  int64
	Confirmed    bool
}

// ClockState is always a fresh computation over the ledger, never mutated
// incrementally.
type ClockState struct {
	WhiteRemainingMs  int64
	BlackRemainingMs  int64
	LastTurnStartedAt time.Time
}

// NegotiationStatus is the lifecycle of a resume request.
type NegotiationStatus string

const (
	NegotiationPending  NegotiationStatus = "pending"
	NegotiationAccepted NegotiationStatus = "accepted"
	NegotiationDeclined NegotiationStatus = "declined"
	NegotiationExpired  NegotiationStatus = "expired"
)

// ResumeRequest is the single in-flight resume negotiation for a game.
type ResumeRequest struct {
	RequestedBy string
	GameID      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Status      NegotiationStatus
}

// Classification buckets a move for on-screen feedback.
type Classification string

const (
	ClassBook       Classification = "book"
	ClassBrilliant  Classification = "brilliant"
	ClassGood       Classification = "good"
	ClassNeutral    Classification = "neutral"
	ClassInaccuracy Classification = "inaccuracy"
	ClassMistake    Classification = "mistake"
	ClassBlunder    Classification = "blunder"
)

// EvaluationResult is derived display data, recomputable from a MoveRecord
// and its adjacent digests.
type EvaluationResult struct {
	MoveIndex      int
	Classification Classification
	ScoreDelta     int
}

// End reasons recorded on a GameResult.
const (
	ReasonCheckmate   = "checkmate"
	ReasonResignation = "resignation"
	ReasonTimeout     = "timeout"
	ReasonStalemate   = "stalemate"
	ReasonDraw        = "draw"
)

// GameResult is the terminal record, created exactly once by the finalizer.
type GameResult struct {
	Outcome     string // "white" | "black" | "draw"
	EndReason   string
	WinnerColor Color // "" on draw
	FinalDigest string
	MoveCount   int
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Protocol error taxonomy. Stale and duplicate events are recovered locally;
// negotiation errors surface as transient status, never as failures.
const (
	ErrStaleMove          = staticErr("stale move: ordinal gap, resync required")
	ErrDuplicateEvent     = staticErr("duplicate event ignored")
	ErrNegotiationExpired = staticErr("resume negotiation expired")
	ErrNegotiationPending = staticErr("resume negotiation already pending")
	ErrNoNegotiation      = staticErr("no resume negotiation pending")
	ErrTransportDown      = staticErr("transport unavailable")
	ErrAlreadyFinal       = staticErr("game already finalized")
	ErrNotYourTurn        = staticErr("not your turn")
	ErrNotActive          = staticErr("game is not active")
	ErrLedgerFrozen       = staticErr("ledger is frozen")
	ErrIllegalMove        = staticErr("illegal move")
)
