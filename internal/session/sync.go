package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/rules"
	"github.com/park285/chess-duel/pkg/gamedto"
)

// ApplyConfirmedMove admits one transport-delivered move. Ordinal, not
// arrival order, is the ordering key: an already-applied ordinal is a logged
// no-op, a skipped-ahead ordinal never touches the ledger and asks the
// persistence boundary for a full resync instead.
func (e *Engine) ApplyConfirmedMove(ctx context.Context, ev *gamedto.MoveEvent) error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	n := e.ledger.Len()
	if ev.Ordinal < n {
		e.log.Debug("duplicate_move_ignored",
			zap.String("game_id", e.sess.ID),
			zap.Int("ordinal", ev.Ordinal),
			zap.Int("ledger_len", n))
		e.mu.Unlock()
		return ErrDuplicateEvent
	}
	if ev.Ordinal > n {
		e.log.Warn("move_ordinal_gap",
			zap.String("game_id", e.sess.ID),
			zap.Int("ordinal", ev.Ordinal),
			zap.Int("ledger_len", n))
		e.mu.Unlock()
		go func() {
			rctx, cancel := e.sendCtx()
			defer cancel()
			if err := e.Resynchronize(rctx); err != nil {
				e.log.Error("resync_failed", zap.String("game_id", e.sess.ID), zap.Error(err))
			}
		}()
		return ErrStaleMove
	}
	defer e.flush()

	mover := e.sess.ColorOf(ev.MoverID)
	if mover == "" {
		mover = TurnOf(e.ledger)
	}
	rec := MoveRecord{
		Ordinal:      ev.Ordinal,
		Mover:        mover,
		SAN:          ev.SAN,
		BeforeDigest: ev.FromDigest,
		AfterDigest:  ev.ToDigest,
		TimeSpentMs:  ev.TimeSpentMs,
		Confirmed:    true,
	}
	if err := e.ledger.Append(rec); err != nil {
		return err
	}
	// adopt the authoritative position, never a local recomputation
	e.digest = ev.ToDigest
	e.turnStartedAt = e.clock.Now()
	if e.sess.Status == StatusWaiting {
		e.setStatusLocked(StatusActive)
		e.startWatchdogLocked()
	}
	e.resetPresenceLocked()
	e.emitClockLocked()

	e.log.Info("move_applied",
		zap.String("game_id", e.sess.ID),
		zap.Int("ordinal", ev.Ordinal),
		zap.String("san", ev.SAN),
		zap.String("mover", string(mover)))

	e.evaluateMoveLocked(rec, ev.MoverID)

	if outcome, method := rules.Status(ev.ToDigest); outcome != "" {
		res := resultFrom(outcome, method, ev.ToDigest, e.ledger.Len())
		e.finalizeLocked(res, "board")
	}
	return nil
}

// ProposeMove validates a local move and sends it upstream. The board never
// advances optimistically; the confirmed event is the only mutation path, so
// a rejected proposal cannot diverge the mirror.
func (e *Engine) ProposeMove(ctx context.Context, from, to, promotion string) error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	if e.sess.Status != StatusActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	if e.pending != nil {
		e.mu.Unlock()
		return ErrNegotiationPending
	}
	local := e.sess.LocalColor()
	if TurnOf(e.ledger) != local {
		e.mu.Unlock()
		return ErrNotYourTurn
	}
	if !rules.IsLegal(e.digest, from, to, promotion) {
		e.mu.Unlock()
		return ErrIllegalMove
	}
	// per-move think timer: elapsed since this turn started
	thinkMs := e.clock.Now().Sub(e.turnStartedAt).Milliseconds()
	if thinkMs < 0 {
		thinkMs = 0
	}
	e.lastActivityAt = e.clock.Now()
	e.mu.Unlock()

	if err := e.transport.SendMove(ctx, from, to, promotion, gamedto.MoveMetrics{TimeSpentMs: thinkMs}); err != nil {
		e.log.Warn("move_send_failed",
			zap.String("game_id", e.sess.ID),
			zap.String("from", from), zap.String("to", to),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTransportDown, err)
	}
	return nil
}

// Resign forfeits the game. If the transport is down the engine still
// finalizes locally so the user is never left in an ambiguous state.
func (e *Engine) Resign(ctx context.Context) error {
	e.mu.Lock()
	if e.closed || e.finalized {
		e.mu.Unlock()
		return ErrAlreadyFinal
	}
	local := e.sess.LocalColor()
	digest := e.digest
	moveCount := e.ledger.Len()
	e.mu.Unlock()

	sendErr := e.transport.Resign(ctx)
	res := GameResult{
		Outcome:     string(local.Other()),
		EndReason:   ReasonResignation,
		WinnerColor: local.Other(),
		FinalDigest: digest,
		MoveCount:   moveCount,
	}
	if sendErr != nil {
		e.log.Warn("resign_send_failed", zap.String("game_id", e.sess.ID), zap.Error(sendErr))
		// best-effort fallback: terminal actions must resolve locally
		e.mu.Lock()
		defer e.flush()
		e.finalizeLocked(res, "resign_fallback")
		return fmt.Errorf("%w: %v", ErrTransportDown, sendErr)
	}
	// authority will confirm with gameEnded; nothing to do here
	return nil
}

func resultFrom(outcome, method, finalDigest string, moveCount int) GameResult {
	res := GameResult{
		Outcome:     outcome,
		EndReason:   method,
		FinalDigest: finalDigest,
		MoveCount:   moveCount,
	}
	switch outcome {
	case "white":
		res.WinnerColor = White
	case "black":
		res.WinnerColor = Black
	}
	if res.EndReason == "" {
		if outcome == "draw" {
			res.EndReason = ReasonDraw
		} else {
			res.EndReason = ReasonCheckmate
		}
	}
	return res
}
