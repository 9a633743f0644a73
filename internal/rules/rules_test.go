package rules

import (
	"strings"
	"testing"
)

func TestApplyCoordinateMove(t *testing.T) {
	applied, err := Apply(StartingDigest, "e2", "e4", "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied.SAN != "e4" {
		t.Fatalf("SAN = %q, want e4", applied.SAN)
	}
	if applied.UCI != "e2e4" {
		t.Fatalf("UCI = %q, want e2e4", applied.UCI)
	}
	if applied.Capture || applied.Check {
		t.Fatalf("unexpected tags: %+v", applied)
	}
	if !strings.Contains(applied.Digest, " b ") {
		t.Fatalf("digest side to move not flipped: %q", applied.Digest)
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	if _, err := Apply(StartingDigest, "e2", "e5", ""); err == nil {
		t.Fatalf("pawn triple step accepted")
	}
	if IsLegal(StartingDigest, "e2", "e5", "") {
		t.Fatalf("IsLegal accepted illegal move")
	}
	if !IsLegal(StartingDigest, "g1", "f3", "") {
		t.Fatalf("IsLegal rejected knight development")
	}
}

func TestApplySANCaptureTag(t *testing.T) {
	d, err := Reconstruct([]string{"e4", "d5"})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	applied, err := ApplySAN(d, "exd5")
	if err != nil {
		t.Fatalf("ApplySAN: %v", err)
	}
	if !applied.Capture {
		t.Fatalf("capture not tagged")
	}
}

func TestTurn(t *testing.T) {
	turn, err := Turn(StartingDigest)
	if err != nil || turn != "white" {
		t.Fatalf("turn = %q err = %v", turn, err)
	}
	applied, _ := Apply(StartingDigest, "e2", "e4", "")
	turn, err = Turn(applied.Digest)
	if err != nil || turn != "black" {
		t.Fatalf("turn = %q err = %v", turn, err)
	}
}

func TestReconstructFoolsMate(t *testing.T) {
	digest, err := Reconstruct([]string{"f3", "e5", "g4", "Qh4#"})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	outcome, method := Status(digest)
	if outcome != "black" || method != "checkmate" {
		t.Fatalf("status = %q/%q, want black/checkmate", outcome, method)
	}
	if !IsCheckmate(digest) {
		t.Fatalf("IsCheckmate = false")
	}
}

func TestReconstructRejectsBadMove(t *testing.T) {
	if _, err := Reconstruct([]string{"e4", "e4"}); err == nil {
		t.Fatalf("replay of impossible move accepted")
	}
}

func TestStatusInProgress(t *testing.T) {
	outcome, method := Status(StartingDigest)
	if outcome != "" || method != "" {
		t.Fatalf("status = %q/%q for the starting position", outcome, method)
	}
}

func TestStalemate(t *testing.T) {
	// classic king-and-queen stalemate, black to move with no legal reply
	digest := "k7/8/1Q6/8/8/8/8/7K b - - 0 1"
	if !IsStalemate(digest) {
		t.Fatalf("stalemate not detected")
	}
	if !IsDraw(digest) {
		t.Fatalf("stalemate not a draw")
	}
}

func TestMaterial(t *testing.T) {
	white, black, err := Material(StartingDigest)
	if err != nil {
		t.Fatalf("Material: %v", err)
	}
	if white != 39 || black != 39 {
		t.Fatalf("material = %d/%d, want 39/39", white, black)
	}
	white, black, err = Material("k7/8/8/3q4/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("Material: %v", err)
	}
	if white != 0 || black != 9 {
		t.Fatalf("material = %d/%d, want 0/9", white, black)
	}
}

func TestLegalMovesCount(t *testing.T) {
	moves, err := LegalMoves(StartingDigest)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	if len(moves) != 20 {
		t.Fatalf("len = %d, want 20", len(moves))
	}
}
