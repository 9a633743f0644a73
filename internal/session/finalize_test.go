package session

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/chess-duel/pkg/gamedto"
)

func TestFinalizeIsOnceOnly(t *testing.T) {
	h := newHarness(t, "u1", StatusActive)
	h.eng.Start()

	res := GameResult{Outcome: "white", EndReason: ReasonCheckmate, WinnerColor: White}
	if err := h.eng.Finalize(res, "test"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	got := waitSignal(t, h.taps.gameOvers, "game over hook")
	if got.Outcome != "white" {
		t.Fatalf("outcome = %q", got.Outcome)
	}
	waitSignal(t, h.pers.calls, "persisted record")

	// the racing second trigger loses quietly
	if err := h.eng.Finalize(GameResult{Outcome: "black"}, "race"); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("err = %v, want ErrAlreadyFinal", err)
	}
	expectQuiet(t, h.taps.gameOvers, "second game over hook")
	expectQuiet(t, h.pers.calls, "second persist")

	if winner, ok := h.eng.Result(); !ok || winner.Outcome != "white" {
		t.Fatalf("result = %+v ok=%v", winner, ok)
	}
}

func TestFinalizeFreezesLedgerAndState(t *testing.T) {
	h := newHarness(t, "u1", StatusActive)
	h.eng.Start()

	ev, _ := confirmedMove(t, "", 0, "e4", "u1", 1000)
	if err := h.eng.ApplyConfirmedMove(context.Background(), ev); err != nil {
		t.Fatalf("ApplyConfirmedMove: %v", err)
	}

	h.eng.HandleEvent(context.Background(), &gamedto.Event{
		Type:   gamedto.EventGameEnded,
		GameID: "g1",
		Ended:  &gamedto.GameEndedEvent{Result: "draw", EndReason: ReasonDraw},
	})
	res := waitSignal(t, h.taps.gameOvers, "game over hook")
	if res.Outcome != "draw" || res.WinnerColor != "" {
		t.Fatalf("result = %+v", res)
	}

	// a late move delivery bounces off the finalized session
	late, _ := confirmedMove(t, h.eng.Digest(), 1, "e5", "u2", 1000)
	if err := h.eng.ApplyConfirmedMove(context.Background(), late); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("err = %v, want ErrAlreadyFinal", err)
	}
	if got := len(h.eng.Snapshot().History); got != 1 {
		t.Fatalf("history grew after finalization: %d", got)
	}
}

func TestFinishedIsTerminal(t *testing.T) {
	h := newHarness(t, "u1", StatusActive)
	h.eng.Start()

	h.eng.HandleEvent(context.Background(), &gamedto.Event{
		Type:   gamedto.EventGameEnded,
		GameID: "g1",
		Ended:  &gamedto.GameEndedEvent{Result: "white", EndReason: ReasonResignation},
	})
	waitSignal(t, h.taps.gameOvers, "game over hook")

	// no lifecycle event can leave finished
	h.eng.HandleEvent(context.Background(), &gamedto.Event{
		Type:    gamedto.EventGameResumed,
		GameID:  "g1",
		Resumed: &gamedto.ResumedEvent{},
	})
	h.eng.HandleEvent(context.Background(), &gamedto.Event{
		Type:   gamedto.EventGamePaused,
		GameID: "g1",
		Paused: &gamedto.PausedEvent{ByUserID: "u2"},
	})
	if got := h.eng.Status(); got != StatusFinished {
		t.Fatalf("status = %q, want finished", got)
	}
	if err := h.eng.RequestResume(); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("err = %v, want ErrAlreadyFinal", err)
	}
}

func TestCompletedRecordCarriesHistory(t *testing.T) {
	h := newHarness(t, "u1", StatusActive)
	h.eng.Start()

	digest := ""
	for i, m := range []struct {
		san, mover string
	}{{"e4", "u1"}, {"e5", "u2"}} {
		var ev *gamedto.MoveEvent
		ev, digest = confirmedMove(t, digest, i, m.san, m.mover, 4500)
		if err := h.eng.ApplyConfirmedMove(context.Background(), ev); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}

	h.eng.HandleEvent(context.Background(), &gamedto.Event{
		Type:   gamedto.EventGameEnded,
		GameID: "g1",
		Ended:  &gamedto.GameEndedEvent{Result: "draw"},
	})
	rec := waitSignal(t, h.pers.calls, "persisted record")
	if rec.History != "e4,4.50,e5,4.50" {
		t.Fatalf("history = %q", rec.History)
	}
	if rec.WhiteName != "Alice" || rec.BlackName != "Bob" {
		t.Fatalf("participants lost: %+v", rec)
	}
	if rec.EndReason != ReasonDraw {
		t.Fatalf("end reason = %q, want draw default", rec.EndReason)
	}
}
