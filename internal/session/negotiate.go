package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-duel/pkg/gamedto"
)

// RequestResume proposes resuming a paused game. At most one negotiation is
// pending per game: a second issuance is absorbed into the existing one and
// reported as already pending, never a second timer or prompt.
func (e *Engine) RequestResume() error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	if e.sess.Status != StatusPaused {
		e.mu.Unlock()
		return ErrNotActive
	}
	if e.pending != nil {
		e.mu.Unlock()
		return ErrNegotiationPending
	}
	now := e.clock.Now()
	req := &ResumeRequest{
		RequestedBy: e.sess.LocalID,
		GameID:      e.sess.ID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(e.cfg.ResumeWindow),
		Status:      NegotiationPending,
	}
	e.pending = req
	e.armNegExpiryLocked(e.cfg.ResumeWindow)
	e.emitNegotiationLocked(NegotiationPending)
	e.log.Info("resume_requested",
		zap.String("game_id", e.sess.ID),
		zap.Time("expires_at", req.ExpiresAt))
	e.flush()

	ctx, cancel := e.sendCtx()
	defer cancel()
	if err := e.transport.RequestResume(ctx); err != nil {
		e.log.Warn("resume_request_send_failed", zap.String("game_id", e.sess.ID), zap.Error(err))
		e.mu.Lock()
		defer e.flush()
		e.clearNegotiationLocked()
		return ErrTransportDown
	}
	return nil
}

// RespondResume answers the opponent's resume request. Accepting does not
// transition locally: only the transport's resumed confirmation does.
func (e *Engine) RespondResume(accept bool) error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	req := e.pending
	if req == nil || req.RequestedBy == e.sess.LocalID {
		e.mu.Unlock()
		return ErrNoNegotiation
	}
	if e.clock.Now().After(req.ExpiresAt) {
		e.mu.Unlock()
		return ErrNegotiationExpired
	}
	e.mu.Unlock()

	ctx, cancel := e.sendCtx()
	defer cancel()
	if err := e.transport.RespondResume(ctx, accept); err != nil {
		// keep the negotiation: caller may retry within the window
		return ErrTransportDown
	}
	e.mu.Lock()
	defer e.flush()
	if !accept {
		e.emitNegotiationLocked(NegotiationDeclined)
		e.clearNegotiationLocked()
	}
	// on accept, hold the pending request until gameResumed arrives
	e.log.Info("resume_responded",
		zap.String("game_id", e.sess.ID),
		zap.Bool("accepted", accept))
	return nil
}

// PendingResume exposes the in-flight negotiation, if any.
func (e *Engine) PendingResume() (ResumeRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return ResumeRequest{}, false
	}
	return *e.pending, true
}

func (e *Engine) handleResumeRequested(ev *gamedto.ResumeRequestedEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.finalized {
		return
	}
	if ev.RequesterID == e.sess.LocalID {
		// echo of our own request
		return
	}
	if e.pending != nil {
		e.log.Debug("duplicate_resume_request_ignored", zap.String("game_id", e.sess.ID))
		return
	}
	now := e.clock.Now()
	expires := ev.ExpiresAt
	if expires.IsZero() || expires.Before(now) {
		expires = now.Add(e.cfg.ResumeWindow)
	}
	req := &ResumeRequest{
		RequestedBy: ev.RequesterID,
		GameID:      e.sess.ID,
		IssuedAt:    now,
		ExpiresAt:   expires,
		Status:      NegotiationPending,
	}
	e.pending = req
	e.armNegExpiryLocked(expires.Sub(now))
	prompt := *req
	e.emit(func() {
		if e.hooks.OnResumePrompt != nil {
			e.hooks.OnResumePrompt(prompt)
		}
	})
	e.log.Info("resume_prompt",
		zap.String("game_id", e.sess.ID),
		zap.String("requester", ev.RequesterID),
		zap.Time("expires_at", expires))
}

func (e *Engine) handleResumeResponded(ev *gamedto.ResumeRespondedEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	defer e.flush()
	if e.pending == nil || e.pending.RequestedBy != e.sess.LocalID {
		return
	}
	if ev.Accepted {
		// resumption is confirmed separately by gameResumed
		e.pending.Status = NegotiationAccepted
		return
	}
	e.emitNegotiationLocked(NegotiationDeclined)
	e.clearNegotiationLocked()
	e.log.Info("resume_declined", zap.String("game_id", e.sess.ID))
}

func (e *Engine) handleResumeExpired() {
	e.mu.Lock()
	defer e.flush()
	if e.pending == nil {
		return
	}
	e.emitNegotiationLocked(NegotiationExpired)
	e.clearNegotiationLocked()
	e.log.Info("resume_expired_remote", zap.String("game_id", e.sess.ID))
}

func (e *Engine) handlePaused(ev *gamedto.PausedEvent) {
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.finalized {
		return
	}
	if e.sess.Status != StatusActive {
		return
	}
	e.pauseInFlight = false
	e.presState = presenceIdle
	e.closePresencePromptLocked()
	e.stopWatchdogLocked()
	e.gen++
	e.setStatusLocked(StatusPaused)
	by := ""
	if ev != nil {
		by = ev.ByUserID
	}
	e.log.Info("game_paused",
		zap.String("game_id", e.sess.ID),
		zap.String("by_user_id", by))
}

func (e *Engine) handleResumed(ev *gamedto.ResumedEvent) {
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.finalized {
		return
	}
	if e.sess.Status != StatusPaused {
		// duplicate resumed event
		return
	}
	whiteGrace, blackGrace := e.cfg.ResumeGraceMs, e.cfg.ResumeGraceMs
	if ev != nil && (ev.WhiteGraceMs > 0 || ev.BlackGraceMs > 0) {
		whiteGrace, blackGrace = ev.WhiteGraceMs, ev.BlackGraceMs
	}
	// grace is applied exactly once per resume, on top of the
	// ledger-derived baseline
	e.graceWhiteMs += whiteGrace
	e.graceBlackMs += blackGrace
	if e.pending != nil {
		e.emitNegotiationLocked(NegotiationAccepted)
		e.clearNegotiationLocked()
	}
	e.turnStartedAt = e.clock.Now()
	e.lastActivityAt = e.turnStartedAt
	e.flagged = false
	e.setStatusLocked(StatusActive)
	e.startWatchdogLocked()
	e.emitClockLocked()
	e.log.Info("game_resumed",
		zap.String("game_id", e.sess.ID),
		zap.Int64("white_grace_ms", whiteGrace),
		zap.Int64("black_grace_ms", blackGrace))
}

// armNegExpiryLocked starts the bounded acceptance window. One timer per
// negotiation; arming cancels any prior one.
func (e *Engine) armNegExpiryLocked(d time.Duration) {
	e.stopNegTimerLocked()
	if d <= 0 {
		d = time.Millisecond
	}
	stop := make(chan struct{})
	e.negStop = stop
	wait := e.clock.After(d)
	go func() {
		select {
		case <-stop:
			return
		case <-wait:
			e.expireNegotiation()
		}
	}()
}

func (e *Engine) expireNegotiation() {
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.pending == nil {
		return
	}
	e.pending.Status = NegotiationExpired
	e.pending = nil
	e.negStop = nil
	e.emitNegotiationLocked(NegotiationExpired)
	e.log.Info("resume_expired", zap.String("game_id", e.sess.ID))
}

func (e *Engine) clearNegotiationLocked() {
	e.pending = nil
	e.stopNegTimerLocked()
}

func (e *Engine) stopNegTimerLocked() {
	if e.negStop != nil {
		close(e.negStop)
		e.negStop = nil
	}
}

func (e *Engine) emitNegotiationLocked(s NegotiationStatus) {
	e.emit(func() {
		if e.hooks.OnNegotiation != nil {
			e.hooks.OnNegotiation(s)
		}
	})
}
