package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/park285/chess-duel/internal/rules"
)

func TestEvaluateDeterministic(t *testing.T) {
	before := rules.StartingDigest
	applied, err := rules.ApplySAN(before, "e4")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	a := Evaluate(12, applied.SAN, before, applied.Digest, 3.5, FixedRatingContext)
	b := Evaluate(12, applied.SAN, before, applied.Digest, 3.5, FixedRatingContext)
	if a != b {
		t.Fatalf("identical inputs disagreed: %+v vs %+v", a, b)
	}
}

func TestEvaluateBookOpening(t *testing.T) {
	before := rules.StartingDigest
	applied, err := rules.ApplySAN(before, "e4")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	res := Evaluate(0, applied.SAN, before, applied.Digest, 5, FixedRatingContext)
	if res.Classification != ClassBook {
		t.Fatalf("classification = %q, want book", res.Classification)
	}
}

func TestEvaluateFreeQueenIsBrilliant(t *testing.T) {
	// white pawn takes an undefended queen
	before := "k7/8/8/3q4/4P3/8/8/K7 w - - 0 1"
	applied, err := rules.ApplySAN(before, "exd5")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	res := Evaluate(20, applied.SAN, before, applied.Digest, 5, FixedRatingContext)
	if res.Classification != ClassBrilliant {
		t.Fatalf("classification = %q (delta %d), want brilliant", res.Classification, res.ScoreDelta)
	}
	if res.ScoreDelta < 300 {
		t.Fatalf("delta = %d, want >= 300", res.ScoreDelta)
	}
}

func TestEvaluateHangingQueenIsBlunder(t *testing.T) {
	// queen walks next to the enemy king, undefended
	before := "k7/8/8/8/8/8/8/KQ6 w - - 0 1"
	applied, err := rules.Apply(before, "b1", "b7", "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	res := Evaluate(20, applied.SAN, before, applied.Digest, 5, FixedRatingContext)
	if res.Classification != ClassBlunder {
		t.Fatalf("classification = %q (delta %d), want blunder", res.Classification, res.ScoreDelta)
	}
}

func TestEvaluateBadDigestDegradesToNeutral(t *testing.T) {
	res := Evaluate(3, "e4", "not a digest", "also not", 1, FixedRatingContext)
	if res.Classification != ClassNeutral || res.ScoreDelta != 0 {
		t.Fatalf("res = %+v, want neutral zero", res)
	}
}

func TestEvalMemoDedup(t *testing.T) {
	clk := clockwork.NewFakeClock()
	memo := NewEvalMemo(clk, 5*time.Second)

	if !memo.First("u1e4digest") {
		t.Fatalf("first sighting reported as seen")
	}
	if memo.First("u1e4digest") {
		t.Fatalf("duplicate reported as first")
	}
	if !memo.First("u2e4digest") {
		t.Fatalf("distinct key reported as seen")
	}

	// entries expire after the TTL
	clk.Advance(6 * time.Second)
	if !memo.First("u1e4digest") {
		t.Fatalf("expired entry still counted as seen")
	}
}
