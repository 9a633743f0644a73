package session

import (
	"time"

	"go.uber.org/zap"
)

// presencePhase is the per-active-turn watchdog state:
// idle → awaiting confirmation → escalated (pause requested).
type presencePhase int

const (
	presenceIdle presencePhase = iota
	presenceAwaiting
	presenceEscalated
)

// RecordActivity notes a local user input. Any open confirmation prompt is
// dismissed and the watchdog drops back to idle tracking.
func (e *Engine) RecordActivity() {
	e.mu.Lock()
	defer e.flush()
	e.lastActivityAt = e.clock.Now()
	if e.presState == presenceAwaiting {
		e.closePresencePromptLocked()
		e.presState = presenceIdle
	}
}

// ConfirmPresence answers the watchdog prompt.
func (e *Engine) ConfirmPresence() {
	e.mu.Lock()
	defer e.flush()
	if e.presState != presenceAwaiting {
		return
	}
	e.lastActivityAt = e.clock.Now()
	e.closePresencePromptLocked()
	e.presState = presenceIdle
	e.log.Debug("presence_confirmed", zap.String("game_id", e.sess.ID))
}

// startWatchdogLocked (re)arms the polling watchdog. At most one runs per
// session: arming cancels the previous one first, and the generation token
// makes any late tick from it a no-op.
func (e *Engine) startWatchdogLocked() {
	e.stopWatchdogLocked()
	e.gen++
	gen := e.gen
	stop := make(chan struct{})
	e.watchdogStop = stop
	ticker := e.clock.NewTicker(e.cfg.WatchdogPoll)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				e.watchdogTick(gen)
			}
		}
	}()
}

func (e *Engine) stopWatchdogLocked() {
	if e.watchdogStop != nil {
		close(e.watchdogStop)
		e.watchdogStop = nil
	}
}

func (e *Engine) watchdogTick(gen uint64) {
	e.mu.Lock()
	defer e.flush()
	if e.closed || e.finalized || gen != e.gen {
		return
	}
	if e.sess.Status != StatusActive {
		return
	}
	now := e.clock.Now()
	e.checkFlagLocked(now)
	if e.finalized {
		return
	}

	// only the side whose clock is running may escalate; an idle opponent
	// never justifies pausing from here
	if TurnOf(e.ledger) != e.sess.LocalColor() {
		return
	}

	switch e.presState {
	case presenceIdle:
		if e.dialogOpen || now.Sub(e.lastActivityAt) < e.cfg.InactivityThreshold {
			return
		}
		e.presState = presenceAwaiting
		e.dialogOpen = true
		e.confirmDeadline = now.Add(e.cfg.ConfirmWindow)
		deadline := e.confirmDeadline
		e.emit(func() {
			if e.hooks.OnPresencePrompt != nil {
				e.hooks.OnPresencePrompt(deadline)
			}
		})
		e.log.Info("presence_prompt",
			zap.String("game_id", e.sess.ID),
			zap.Time("deadline", deadline))
	case presenceAwaiting:
		if now.Before(e.confirmDeadline) {
			return
		}
		e.escalateLocked()
	case presenceEscalated:
		// pause already requested; the authority decides
	}
}

// escalateLocked issues exactly one automatic pause request; the transition
// to paused happens only when the gamePaused confirmation arrives.
func (e *Engine) escalateLocked() {
	if e.pauseInFlight {
		return
	}
	e.presState = presenceEscalated
	e.pauseInFlight = true
	e.closePresencePromptLocked()
	e.log.Info("presence_escalate_pause", zap.String("game_id", e.sess.ID))
	go func() {
		ctx, cancel := e.sendCtx()
		defer cancel()
		if err := e.transport.RequestPause(ctx); err != nil {
			e.log.Warn("pause_request_failed", zap.String("game_id", e.sess.ID), zap.Error(err))
			e.mu.Lock()
			defer e.flush()
			// allow a later retry cycle instead of wedging in escalated
			e.pauseInFlight = false
			e.presState = presenceIdle
			e.lastActivityAt = e.clock.Now()
		}
	}()
}

// RequestPause asks the authority for a manual pause. Local status changes
// only on the confirmation event.
func (e *Engine) RequestPause() error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	if e.sess.Status != StatusActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	e.pauseInFlight = true
	e.mu.Unlock()
	ctx, cancel := e.sendCtx()
	defer cancel()
	if err := e.transport.RequestPause(ctx); err != nil {
		e.mu.Lock()
		e.pauseInFlight = false
		e.mu.Unlock()
		return ErrTransportDown
	}
	return nil
}

// resetPresenceLocked runs whenever a move is confirmed for either side.
func (e *Engine) resetPresenceLocked() {
	e.lastActivityAt = e.clock.Now()
	e.pauseInFlight = false
	if e.presState != presenceIdle {
		e.closePresencePromptLocked()
		e.presState = presenceIdle
	}
}

func (e *Engine) closePresencePromptLocked() {
	if !e.dialogOpen {
		return
	}
	e.dialogOpen = false
	e.emit(func() {
		if e.hooks.OnPresenceClear != nil {
			e.hooks.OnPresenceClear()
		}
	})
}

// checkFlagLocked detects a side running out of time. The flag is advisory:
// the engine reports it to the authority and arms a bounded wait; only a
// gameEnded confirmation, or the fallback after that wait, finalizes.
func (e *Engine) checkFlagLocked(now time.Time) {
	if e.flagged {
		return
	}
	cs := e.clocksLocked(now)
	side, ok := cs.FlaggedSide()
	if !ok {
		return
	}
	e.flagged = true
	e.log.Info("clock_flag",
		zap.String("game_id", e.sess.ID),
		zap.String("side", string(side)))

	res := GameResult{
		Outcome:     string(side.Other()),
		EndReason:   ReasonTimeout,
		WinnerColor: side.Other(),
		FinalDigest: e.digest,
		MoveCount:   e.ledger.Len(),
	}

	stop := make(chan struct{})
	e.flagStop = stop
	wait := e.clock.After(e.cfg.FlagConfirmWait)
	go func() {
		ctx, cancel := e.sendCtx()
		err := e.transport.ReportFlag(ctx, string(side))
		cancel()
		if err != nil {
			e.log.Warn("flag_report_failed", zap.String("game_id", e.sess.ID), zap.Error(err))
			// transport down during a terminal action: resolve locally
			e.mu.Lock()
			defer e.flush()
			if !e.closed && !e.finalized {
				e.finalizeLocked(res, "flag_fallback")
			}
			return
		}
		select {
		case <-stop:
			return
		case <-wait:
			e.mu.Lock()
			defer e.flush()
			if e.closed || e.finalized {
				return
			}
			// authority never confirmed; finalize best-effort
			e.finalizeLocked(res, "flag_timeout_fallback")
		}
	}()
}

func (e *Engine) stopFlagTimerLocked() {
	if e.flagStop != nil {
		close(e.flagStop)
		e.flagStop = nil
	}
}
