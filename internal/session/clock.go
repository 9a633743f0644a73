package session

import "time"

// Remaining reconstructs both clocks purely from the ledger. Each side's
// recorded think time is summed and subtracted from the allotment; the side
// to move is additionally charged asOf - lastTurnStartedAt. No incremental
// decrement exists anywhere: recomputation is the definition of correctness,
// so a reconnect or a suspended tab can always rebuild identical state.
func Remaining(l *Ledger, timeControlMs int64, lastTurnStartedAt time.Time, asOf time.Time) ClockState {
	cs := ClockState{
		WhiteRemainingMs:  timeControlMs - l.SpentMs(White),
		BlackRemainingMs:  timeControlMs - l.SpentMs(Black),
		LastTurnStartedAt: lastTurnStartedAt,
	}
	if !lastTurnStartedAt.IsZero() {
		elapsed := asOf.Sub(lastTurnStartedAt).Milliseconds()
		if elapsed > 0 {
			if TurnOf(l) == White {
				cs.WhiteRemainingMs -= elapsed
			} else {
				cs.BlackRemainingMs -= elapsed
			}
		}
	}
	return cs
}

// TurnOf derives the side to move from ledger length: even → white.
func TurnOf(l *Ledger) Color {
	if l.Len()%2 == 0 {
		return White
	}
	return Black
}

// WithGrace returns the state with one-time resume grace added on top.
// Grace is negotiated, not ledger-derived, so it stays out of Remaining.
func (cs ClockState) WithGrace(whiteMs, blackMs int64) ClockState {
	cs.WhiteRemainingMs += whiteMs
	cs.BlackRemainingMs += blackMs
	return cs
}

// FlaggedSide reports which side, if any, has no time left. Advisory only:
// the finalizer converts a flag into a result, and only with the authority's
// confirmation.
func (cs ClockState) FlaggedSide() (Color, bool) {
	if cs.WhiteRemainingMs <= 0 {
		return White, true
	}
	if cs.BlackRemainingMs <= 0 {
		return Black, true
	}
	return "", false
}
