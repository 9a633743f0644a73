package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/obslog"
	"github.com/park285/chess-duel/internal/rules"
	"github.com/park285/chess-duel/pkg/gamedto"
)

// Transport is the engine's view of the realtime boundary, already bound to
// one game. Every call is bounded by its context; the engine never assumes
// success until the matching confirmation event arrives.
type Transport interface {
	SendMove(ctx context.Context, from, to, promotion string, metrics gamedto.MoveMetrics) error
	RequestPause(ctx context.Context) error
	RequestResume(ctx context.Context) error
	RespondResume(ctx context.Context, accept bool) error
	Resign(ctx context.Context) error
	ReportFlag(ctx context.Context, side string) error
}

// Resyncer fetches authoritative full state after an ordinal gap.
type Resyncer interface {
	FetchGame(ctx context.Context, gameID string) (*gamedto.GameSnapshot, error)
}

// Persister stores the terminal record. Finalization calls each attached
// persister best-effort.
type Persister interface {
	SaveCompleted(ctx context.Context, rec *gamedto.CompletedGameRecord) error
}

// Hooks are optional UI callbacks. They are invoked without the engine lock
// held, in the order the triggering transitions happened.
type Hooks struct {
	OnStatus             func(Status)
	OnClock              func(ClockState)
	OnPresencePrompt     func(deadline time.Time)
	OnPresenceClear      func()
	OnResumePrompt       func(ResumeRequest)
	OnNegotiation        func(NegotiationStatus)
	OnEvaluation         func(EvaluationResult)
	OnGameOver           func(GameResult)
	OnOpponentConnection func(state string)
}

// Config carries the product thresholds. They are parameters, not invariants.
type Config struct {
	InactivityThreshold time.Duration
	ConfirmWindow       time.Duration
	ResumeWindow        time.Duration
	WatchdogPoll        time.Duration
	FlagConfirmWait     time.Duration
	ResumeGraceMs       int64
	SendTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		InactivityThreshold: 60 * time.Second,
		ConfirmWindow:       10 * time.Second,
		ResumeWindow:        10 * time.Second,
		WatchdogPoll:        time.Second,
		FlagConfirmWait:     10 * time.Second,
		ResumeGraceMs:       40_000,
		SendTimeout:         10 * time.Second,
	}
}

// Deps are the collaborators injected at construction. Lifecycle is scoped
// to the session: Close releases everything the engine started.
type Deps struct {
	Clock      clockwork.Clock
	Transport  Transport
	Resync     Resyncer
	Persisters []Persister
	Hooks      Hooks
	Logger     *zap.Logger
}

// Engine owns the whole session state machine for one game:
// waiting → active ⇄ paused → finished. All mutable state lives behind one
// mutex; timers carry a generation token so a stale firing after teardown or
// restart is a no-op.
type Engine struct {
	mu    sync.Mutex
	notes []func()

	cfg       Config
	clock     clockwork.Clock
	log       *zap.Logger
	transport Transport
	resync    Resyncer
	persist   []Persister
	hooks     Hooks

	sess          *GameSession
	ledger        *Ledger
	digest        string
	turnStartedAt time.Time
	graceWhiteMs  int64
	graceBlackMs  int64

	// presence watchdog
	presState       presencePhase
	lastActivityAt  time.Time
	dialogOpen      bool
	pauseInFlight   bool
	confirmDeadline time.Time
	watchdogStop    chan struct{}

	// resume negotiation
	pending *ResumeRequest
	negStop chan struct{}

	// evaluation
	evalMemo *EvalMemo
	scores   map[Color]int

	// finalization
	finalized bool
	result    *GameResult
	flagged   bool
	flagStop  chan struct{}

	gen    uint64
	closed bool
}

// New builds an engine for a session. digest may be empty for a fresh game.
func New(sess *GameSession, digest string, cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = obslog.L()
	}
	if digest == "" {
		digest = rules.StartingDigest
	}
	e := &Engine{
		cfg:       cfg,
		clock:     deps.Clock,
		log:       deps.Logger,
		transport: deps.Transport,
		resync:    deps.Resync,
		persist:   deps.Persisters,
		hooks:     deps.Hooks,
		sess:      sess,
		ledger:    NewLedger(),
		digest:    digest,
		scores:    map[Color]int{},
	}
	e.evalMemo = NewEvalMemo(deps.Clock, 5*time.Second)
	e.lastActivityAt = deps.Clock.Now()
	return e
}

// NewFromSnapshot rebuilds an engine from an authoritative snapshot, e.g.
// after a refresh. Clocks need no cached state: they fall out of the ledger.
func NewFromSnapshot(snap *gamedto.GameSnapshot, localID string, cfg Config, deps Deps) (*Engine, error) {
	sess := &GameSession{
		ID:            snap.GameID,
		WhiteID:       snap.WhiteID,
		WhiteName:     snap.WhiteName,
		BlackID:       snap.BlackID,
		BlackName:     snap.BlackName,
		LocalID:       localID,
		TimeControlMs: snap.TimeControlMs,
		Status:        Status(snap.Status),
	}
	e := New(sess, snap.Digest, cfg, deps)
	if err := e.restoreHistory(snap); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) restoreHistory(snap *gamedto.GameSnapshot) error {
	ledger := NewLedger()
	digest := rules.StartingDigest
	for i, h := range snap.History {
		applied, err := rules.ApplySAN(digest, h.SAN)
		if err != nil {
			return fmt.Errorf("restore history: %w", err)
		}
		rec := MoveRecord{
			Ordinal:      i,
			Mover:        TurnOf(ledger),
			SAN:          applied.SAN,
			BeforeDigest: digest,
			AfterDigest:  applied.Digest,
			TimeSpentMs:  h.TimeSpentMs,
			Confirmed:    true,
		}
		if err := ledger.Append(rec); err != nil {
			return err
		}
		digest = applied.Digest
	}
	e.mu.Lock()
	defer e.flush()
	e.ledger = ledger
	if snap.Digest != "" {
		if snap.Digest != digest {
			e.log.Warn("snapshot_digest_mismatch",
				zap.String("game_id", snap.GameID),
				zap.String("replayed", digest),
				zap.String("authoritative", snap.Digest))
		}
		// authoritative digest wins over local replay
		e.digest = snap.Digest
	} else {
		e.digest = digest
	}
	if !snap.TurnStartedAt.IsZero() {
		e.turnStartedAt = snap.TurnStartedAt
	} else {
		e.turnStartedAt = e.clock.Now()
	}
	return nil
}

// Start arms the watchdog when the session is already active.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.finalized {
		return
	}
	if e.sess.Status == StatusActive {
		if e.turnStartedAt.IsZero() {
			e.turnStartedAt = e.clock.Now()
		}
		e.startWatchdogLocked()
	}
}

// Close tears the session down. Every outstanding timer is cancelled; a
// stale firing afterwards is a guarded no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.flush()
	if e.closed {
		return
	}
	e.closed = true
	e.gen++
	e.stopWatchdogLocked()
	e.stopNegTimerLocked()
	e.stopFlagTimerLocked()
	e.log.Info("session_teardown", zap.String("game_id", e.sess.ID))
}

// Session returns a copy of the session descriptor.
func (e *Engine) Session() GameSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.sess
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Status
}

// Digest returns the local board mirror (always authoritative).
func (e *Engine) Digest() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.digest
}

// Clocks recomputes remaining time from the ledger plus accumulated resume
// grace.
func (e *Engine) Clocks() ClockState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clocksLocked(e.clock.Now())
}

func (e *Engine) clocksLocked(asOf time.Time) ClockState {
	started := e.turnStartedAt
	if e.sess.Status != StatusActive {
		// a paused or finished game stops charging the side to move
		asOf = started
	}
	return Remaining(e.ledger, e.sess.TimeControlMs, started, asOf).
		WithGrace(e.graceWhiteMs, e.graceBlackMs)
}

// Result returns the terminal record once finalized.
func (e *Engine) Result() (GameResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return GameResult{}, false
	}
	return *e.result, true
}

// CumulativeScore is the running evaluation total for one side.
func (e *Engine) CumulativeScore(c Color) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scores[c]
}

// Snapshot exports current state for the resumable-session store.
func (e *Engine) Snapshot() *gamedto.GameSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	hist := make([]gamedto.HistoryEntry, 0, e.ledger.Len())
	for _, r := range e.ledger.Records() {
		hist = append(hist, gamedto.HistoryEntry{SAN: r.SAN, TimeSpentMs: r.TimeSpentMs})
	}
	return &gamedto.GameSnapshot{
		GameID:        e.sess.ID,
		WhiteID:       e.sess.WhiteID,
		WhiteName:     e.sess.WhiteName,
		BlackID:       e.sess.BlackID,
		BlackName:     e.sess.BlackName,
		TimeControlMs: e.sess.TimeControlMs,
		Status:        string(e.sess.Status),
		Digest:        e.digest,
		Turn:          string(TurnOf(e.ledger)),
		History:       hist,
		TurnStartedAt: e.turnStartedAt,
		UpdatedAt:     e.clock.Now(),
	}
}

// HandleEvent dispatches one transport event. Duplicates and reordering are
// absorbed here and below, never passed through.
func (e *Engine) HandleEvent(ctx context.Context, ev *gamedto.Event) {
	if ev == nil {
		return
	}
	switch ev.Type {
	case gamedto.EventMove:
		if ev.Move != nil {
			_ = e.ApplyConfirmedMove(ctx, ev.Move)
		}
	case gamedto.EventGamePaused:
		e.handlePaused(ev.Paused)
	case gamedto.EventGameResumed:
		e.handleResumed(ev.Resumed)
	case gamedto.EventResumeRequested:
		e.handleResumeRequested(ev.ResumeRequested)
	case gamedto.EventResumeResponded:
		e.handleResumeResponded(ev.ResumeResponded)
	case gamedto.EventResumeExpired:
		e.handleResumeExpired()
	case gamedto.EventGameEnded:
		e.handleGameEnded(ctx, ev.Ended)
	case gamedto.EventConnectionChanged:
		if ev.Connection != nil {
			e.log.Info("opponent_connection",
				zap.String("game_id", e.sess.ID),
				zap.String("user_id", ev.Connection.UserID),
				zap.String("state", ev.Connection.State))
			e.mu.Lock()
			state := ev.Connection.State
			e.emit(func() {
				if e.hooks.OnOpponentConnection != nil {
					e.hooks.OnOpponentConnection(state)
				}
			})
			e.flush()
		}
	default:
		e.log.Debug("unknown_event", zap.String("type", ev.Type))
	}
}

// Resynchronize pulls the authoritative full state and rebuilds ledger,
// board mirror and clocks from scratch.
func (e *Engine) Resynchronize(ctx context.Context) error {
	if e.resync == nil {
		return fmt.Errorf("no resync collaborator attached")
	}
	e.mu.Lock()
	gameID := e.sess.ID
	e.mu.Unlock()
	snap, err := e.resync.FetchGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("resync fetch: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("resync: game %s not found", gameID)
	}
	if err := e.restoreHistory(snap); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.flush()
	if e.finalized {
		return nil
	}
	prev := e.sess.Status
	next := Status(snap.Status)
	if prev != StatusFinished && next != "" && next != prev {
		e.setStatusLocked(next)
	}
	if e.sess.Status == StatusActive {
		e.startWatchdogLocked()
	}
	e.log.Info("session_resync",
		zap.String("game_id", gameID),
		zap.Int("moves", e.ledger.Len()),
		zap.String("status", string(e.sess.Status)))
	return nil
}

// setStatusLocked applies a lifecycle transition. finished is terminal.
func (e *Engine) setStatusLocked(next Status) {
	if e.sess.Status == StatusFinished {
		return
	}
	if e.sess.Status == next {
		return
	}
	e.sess.Status = next
	e.emit(func() {
		if e.hooks.OnStatus != nil {
			e.hooks.OnStatus(next)
		}
	})
}

// emit queues a hook invocation; flush unlocks and runs the queue. Hooks
// therefore never run with the engine lock held.
func (e *Engine) emit(fn func()) {
	e.notes = append(e.notes, fn)
}

func (e *Engine) flush() {
	notes := e.notes
	e.notes = nil
	e.mu.Unlock()
	for _, fn := range notes {
		fn()
	}
}

func (e *Engine) emitClockLocked() {
	cs := e.clocksLocked(e.clock.Now())
	e.emit(func() {
		if e.hooks.OnClock != nil {
			e.hooks.OnClock(cs)
		}
	})
}

func (e *Engine) sendCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.SendTimeout)
}
