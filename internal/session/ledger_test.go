package session

import (
	"errors"
	"testing"
)

func TestLedgerAppendEnforcesOrdinal(t *testing.T) {
	l := NewLedger()
	if err := l.Append(MoveRecord{Ordinal: 0, Mover: White, SAN: "e4"}); err != nil {
		t.Fatalf("append 0: %v", err)
	}
	if err := l.Append(MoveRecord{Ordinal: 2, Mover: Black, SAN: "e5"}); err == nil {
		t.Fatalf("expected ordinal mismatch error")
	}
	if err := l.Append(MoveRecord{Ordinal: 1, Mover: Black, SAN: "e5"}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
}

func TestLedgerFreeze(t *testing.T) {
	l := NewLedger()
	if err := l.Append(MoveRecord{Ordinal: 0, Mover: White, SAN: "d4"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	l.Freeze()
	if !l.Frozen() {
		t.Fatalf("not frozen")
	}
	if err := l.Append(MoveRecord{Ordinal: 1, Mover: Black, SAN: "d5"}); !errors.Is(err, ErrLedgerFrozen) {
		t.Fatalf("err = %v, want ErrLedgerFrozen", err)
	}
	if l.Len() != 1 {
		t.Fatalf("frozen ledger mutated")
	}
}

func TestLedgerRecordsIsACopy(t *testing.T) {
	l := NewLedger()
	_ = l.Append(MoveRecord{Ordinal: 0, Mover: White, SAN: "c4"})
	recs := l.Records()
	recs[0].SAN = "tampered"
	if got, _ := l.Last(); got.SAN != "c4" {
		t.Fatalf("backing slice shared with caller")
	}
}

func TestLedgerSpentMsPerSide(t *testing.T) {
	l := NewLedger()
	_ = l.Append(MoveRecord{Ordinal: 0, Mover: White, SAN: "e4", TimeSpentMs: 4500})
	_ = l.Append(MoveRecord{Ordinal: 1, Mover: Black, SAN: "e5", TimeSpentMs: 3210})
	_ = l.Append(MoveRecord{Ordinal: 2, Mover: White, SAN: "Nf3", TimeSpentMs: 1500})
	if got := l.SpentMs(White); got != 6000 {
		t.Fatalf("white spent = %d, want 6000", got)
	}
	if got := l.SpentMs(Black); got != 3210 {
		t.Fatalf("black spent = %d, want 3210", got)
	}
}

func TestHistoryEncodeDecodeRoundTrip(t *testing.T) {
	records := []MoveRecord{
		{Ordinal: 0, Mover: White, SAN: "e4", TimeSpentMs: 4500},
		{Ordinal: 1, Mover: Black, SAN: "e5", TimeSpentMs: 3210},
		{Ordinal: 2, Mover: White, SAN: "Qh5", TimeSpentMs: 90},
	}
	encoded := EncodeHistory(records)
	if encoded != "e4,4.50,e5,3.21,Qh5,0.09" {
		t.Fatalf("encoded = %q", encoded)
	}
	entries, err := DecodeHistory(encoded)
	if err != nil {
		t.Fatalf("DecodeHistory: %v", err)
	}
	if len(entries) != len(records) {
		t.Fatalf("len = %d, want %d", len(entries), len(records))
	}
	for i, e := range entries {
		if e.SAN != records[i].SAN || e.TimeSpentMs != records[i].TimeSpentMs {
			t.Fatalf("entry %d = %+v, want %+v", i, e, records[i])
		}
	}
}

func TestDecodeHistoryEmpty(t *testing.T) {
	entries, err := DecodeHistory("  ")
	if err != nil || entries != nil {
		t.Fatalf("entries=%v err=%v, want nil,nil", entries, err)
	}
}

func TestDecodeHistoryMalformed(t *testing.T) {
	if _, err := DecodeHistory("e4,4.50,e5"); err == nil {
		t.Fatalf("odd token count accepted")
	}
	if _, err := DecodeHistory("e4,notanumber"); err == nil {
		t.Fatalf("bad duration accepted")
	}
	if _, err := DecodeHistory(",4.50"); err == nil {
		t.Fatalf("empty SAN accepted")
	}
}
