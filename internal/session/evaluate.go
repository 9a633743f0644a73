package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/rules"
)

// FixedRatingContext is the rating constant used for every multiplayer
// evaluation. Both clients must score a move identically; feeding either
// player's real rating in would make them disagree about the same event.
const FixedRatingContext = 1500

// Evaluate scores one move from the mover's perspective using only the two
// adjacent digests and the recorded think time. Pure and deterministic:
// identical inputs give identical output on both participants' machines.
func Evaluate(moveIndex int, san, beforeDigest, afterDigest string, timeSpentSec float64, ratingContext int) EvaluationResult {
	res := EvaluationResult{MoveIndex: moveIndex, Classification: ClassNeutral}

	moverStr, err := rules.Turn(beforeDigest)
	if err != nil {
		return res
	}
	mover := Color(moverStr)
	wBefore, bBefore, err := rules.Material(beforeDigest)
	if err != nil {
		return res
	}
	wAfter, bAfter, err := rules.Material(afterDigest)
	if err != nil {
		return res
	}

	ownBefore, oppBefore := wBefore, bBefore
	ownAfter, oppAfter := wAfter, bAfter
	if mover == Black {
		ownBefore, oppBefore = bBefore, wBefore
		ownAfter, oppAfter = bAfter, wAfter
	}
	// material captured plus promotion gain
	gain := (oppBefore - oppAfter) + (ownAfter - ownBefore)
	// worst piece left en prise for the opponent to take
	risk := hangingValue(afterDigest)

	score := 100*gain - 100*risk
	applied, err := rules.ApplySAN(beforeDigest, san)
	if err == nil && applied.Check {
		score += 30
	}
	if gain > 0 && timeSpentSec < 2 {
		score += 20
	}
	res.ScoreDelta = score

	brilliantAt := ratingContext / 5  // 300 at the fixed context
	goodAt := ratingContext / 15      // 100
	blunderAt := -ratingContext / 3   // -500
	mistakeAt := -ratingContext / 5   // -300
	switch {
	case score >= brilliantAt:
		res.Classification = ClassBrilliant
	case score >= goodAt:
		res.Classification = ClassGood
	case score <= blunderAt:
		res.Classification = ClassBlunder
	case score <= mistakeAt:
		res.Classification = ClassMistake
	case score < 0:
		res.Classification = ClassInaccuracy
	case moveIndex < 10 && gain == 0:
		res.Classification = ClassBook
	default:
		res.Classification = ClassNeutral
	}
	return res
}

// hangingValue returns the most valuable capture available to the side to
// move, a cheap proxy for material left en prise.
func hangingValue(digest string) int {
	wBefore, bBefore, err := rules.Material(digest)
	if err != nil {
		return 0
	}
	moves, err := rules.LegalMoves(digest)
	if err != nil {
		return 0
	}
	turn, err := rules.Turn(digest)
	if err != nil {
		return 0
	}
	best := 0
	for _, uci := range moves {
		if len(uci) < 4 {
			continue
		}
		applied, err := rules.Apply(digest, uci[:2], uci[2:4], uci[4:])
		if err != nil || !applied.Capture {
			continue
		}
		wAfter, bAfter, err := rules.Material(applied.Digest)
		if err != nil {
			continue
		}
		taken := bBefore - bAfter
		if turn == "black" {
			taken = wBefore - wAfter
		}
		if taken > best {
			best = taken
		}
	}
	return best
}

// EvalMemo absorbs duplicate delivery: the same dedup key contributes to a
// cumulative score exactly once. Entries expire so the memo cannot grow
// without bound.
type EvalMemo struct {
	clock clockwork.Clock
	ttl   time.Duration
	mu    sync.Mutex
	seen  map[string]time.Time
}

func NewEvalMemo(clock clockwork.Clock, ttl time.Duration) *EvalMemo {
	return &EvalMemo{clock: clock, ttl: ttl, seen: make(map[string]time.Time)}
}

// First reports whether key is unseen within the TTL, recording it either way.
func (m *EvalMemo) First(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for k, at := range m.seen {
		if now.Sub(at) > m.ttl {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[key]; ok {
		return false
	}
	m.seen[key] = now
	return true
}

// evaluateMoveLocked scores a freshly applied move and folds it into the
// running totals, deduped on playerID+san+afterDigest.
func (e *Engine) evaluateMoveLocked(rec MoveRecord, moverID string) {
	res := Evaluate(rec.Ordinal, rec.SAN, rec.BeforeDigest, rec.AfterDigest,
		float64(rec.TimeSpentMs)/1000.0, FixedRatingContext)
	key := moverID + rec.SAN + rec.AfterDigest
	if e.evalMemo.First(key) {
		e.scores[rec.Mover] += res.ScoreDelta
	}
	e.emit(func() {
		if e.hooks.OnEvaluation != nil {
			e.hooks.OnEvaluation(res)
		}
	})
	e.log.Debug("move_evaluated",
		zap.String("game_id", e.sess.ID),
		zap.Int("ordinal", rec.Ordinal),
		zap.String("classification", string(res.Classification)),
		zap.Int("score_delta", res.ScoreDelta))
}
