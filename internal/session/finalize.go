package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/chess-duel/pkg/gamedto"
)

// Finalize converts a terminal event into the one and only GameResult.
// Racing triggers are expected: whichever arrives first wins and the second
// is a no-op.
func (e *Engine) Finalize(res GameResult, source string) error {
	e.mu.Lock()
	defer e.flush()
	return e.finalizeLocked(res, source)
}

func (e *Engine) finalizeLocked(res GameResult, source string) error {
	if e.finalized {
		e.log.Debug("finalize_race_ignored",
			zap.String("game_id", e.sess.ID),
			zap.String("source", source))
		return ErrAlreadyFinal
	}
	e.finalized = true
	e.result = &res
	e.ledger.Freeze()
	e.stopWatchdogLocked()
	e.stopNegTimerLocked()
	e.stopFlagTimerLocked()
	e.gen++
	e.pending = nil
	e.closePresencePromptLocked()
	e.setStatusLocked(StatusFinished)

	rec := e.completedRecordLocked(res)
	e.emit(func() {
		if e.hooks.OnGameOver != nil {
			e.hooks.OnGameOver(res)
		}
		e.persistCompleted(rec)
	})
	e.log.Info("game_finalized",
		zap.String("game_id", e.sess.ID),
		zap.String("outcome", res.Outcome),
		zap.String("end_reason", res.EndReason),
		zap.String("source", source),
		zap.Int("move_count", res.MoveCount))
	return nil
}

func (e *Engine) completedRecordLocked(res GameResult) *gamedto.CompletedGameRecord {
	return &gamedto.CompletedGameRecord{
		GameID:      e.sess.ID,
		WhiteID:     e.sess.WhiteID,
		WhiteName:   e.sess.WhiteName,
		BlackID:     e.sess.BlackID,
		BlackName:   e.sess.BlackName,
		Outcome:     res.Outcome,
		EndReason:   res.EndReason,
		WinnerColor: string(res.WinnerColor),
		FinalDigest: res.FinalDigest,
		MoveCount:   res.MoveCount,
		History:     EncodeHistory(e.ledger.Records()),
		StartedAt:   e.sess.CreatedAt,
		EndedAt:     e.clock.Now(),
	}
}

// persistCompleted hands the record to every attached persistence
// collaborator, best-effort. Failures are logged; the local result stands.
func (e *Engine) persistCompleted(rec *gamedto.CompletedGameRecord) {
	for _, p := range e.persist {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SendTimeout)
		if err := p.SaveCompleted(ctx, rec); err != nil {
			e.log.Error("result_persist_failed",
				zap.String("game_id", rec.GameID),
				zap.Error(err))
		}
		cancel()
	}
}

func (e *Engine) handleGameEnded(ctx context.Context, ev *gamedto.GameEndedEvent) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	defer e.flush()
	res := resultFrom(ev.Result, ev.EndReason, ev.FinalDigest, e.ledger.Len())
	if res.FinalDigest == "" {
		res.FinalDigest = e.digest
	}
	_ = e.finalizeLocked(res, "remote")
}
