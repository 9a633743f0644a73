package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-duel/pkg/gamedto"
)

func TestBuildPGN(t *testing.T) {
	rec := &gamedto.CompletedGameRecord{
		GameID:    "g1",
		WhiteName: "Alice",
		BlackName: "Bob",
		Outcome:   "black",
		EndReason: "checkmate",
		History:   "f3,1.00,e5,1.00,g4,1.00,Qh4#,1.00",
		EndedAt:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(rec)

	for _, want := range []string{
		`[Event "Duel"]`,
		`[Date "2026.08.31"]`,
		`[White "Alice"]`,
		`[Black "Bob"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("PGN missing %q:\n%s", want, pgn)
		}
	}
}

func TestBuildPGNDrawAndEscaping(t *testing.T) {
	rec := &gamedto.CompletedGameRecord{
		WhiteName: `Eve "the" Rook`,
		BlackName: "Bob",
		Outcome:   "draw",
		History:   "e4,1.00,e5,1.00",
		EndedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(rec)
	if !strings.Contains(pgn, `[Result "1/2-1/2"]`) {
		t.Fatalf("draw result missing:\n%s", pgn)
	}
	if strings.Contains(pgn, `"the"`) {
		t.Fatalf("quote not sanitized:\n%s", pgn)
	}
	if !strings.Contains(pgn, "Eve 'the' Rook") {
		t.Fatalf("name mangled:\n%s", pgn)
	}
}

func TestBuildPGNEmpty(t *testing.T) {
	if got := BuildPGN(nil); got != "" {
		t.Fatalf("nil record produced %q", got)
	}
	rec := &gamedto.CompletedGameRecord{Outcome: "white"}
	pgn := BuildPGN(rec)
	if !strings.HasSuffix(pgn, "1-0") {
		t.Fatalf("movetext tail = %q", pgn)
	}
}

func TestMapResultToPGN(t *testing.T) {
	cases := map[string]string{
		"white":   "1-0",
		"black":   "0-1",
		"draw":    "1/2-1/2",
		"aborted": "*",
	}
	for in, want := range cases {
		if got := mapResultToPGN(in); got != want {
			t.Fatalf("mapResultToPGN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSansFromHistory(t *testing.T) {
	sans := sansFromHistory("e4,4.50,e5,3.21,Nf3,0.90")
	if len(sans) != 3 || sans[0] != "e4" || sans[2] != "Nf3" {
		t.Fatalf("sans = %v", sans)
	}
	if got := sansFromHistory(""); got != nil {
		t.Fatalf("empty history produced %v", got)
	}
}
