package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ledger is the append-only move record for one game. It is mutated only by
// the synchronizer; every other component reads it. Records are never
// reordered or rewritten, and a frozen ledger rejects all appends.
type Ledger struct {
	records []MoveRecord
	frozen  bool
}

func NewLedger() *Ledger { return &Ledger{} }

// Append adds the next record. The record's ordinal must equal the current
// length; anything else is a caller bug, not duplicate tolerance (that
// arbitration happens in the synchronizer).
func (l *Ledger) Append(r MoveRecord) error {
	if l.frozen {
		return ErrLedgerFrozen
	}
	if r.Ordinal != len(l.records) {
		return fmt.Errorf("ledger append ordinal %d, want %d", r.Ordinal, len(l.records))
	}
	l.records = append(l.records, r)
	return nil
}

func (l *Ledger) Len() int { return len(l.records) }

// Records returns a copy; the backing slice is never shared.
func (l *Ledger) Records() []MoveRecord {
	return append([]MoveRecord(nil), l.records...)
}

func (l *Ledger) Last() (MoveRecord, bool) {
	if len(l.records) == 0 {
		return MoveRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// MovesSAN returns the SAN sequence in order.
func (l *Ledger) MovesSAN() []string {
	out := make([]string, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r.SAN)
	}
	return out
}

// SpentMs sums think time recorded for one side.
func (l *Ledger) SpentMs(c Color) int64 {
	var total int64
	for _, r := range l.records {
		if r.Mover == c {
			total += r.TimeSpentMs
		}
	}
	return total
}

// Freeze makes the ledger immutable. Called once by the finalizer.
func (l *Ledger) Freeze() { l.frozen = true }

func (l *Ledger) Frozen() bool { return l.frozen }

// EncodeHistory renders records as the compact persisted form: a comma-joined
// sequence of "<SAN>,<seconds with 2 decimals>" tuples.
func EncodeHistory(records []MoveRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(r.SAN)
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(float64(r.TimeSpentMs)/1000.0, 'f', 2, 64))
	}
	return b.String()
}

// HistoryEntry is one decoded tuple from the compact encoding.
type HistoryEntry struct {
	SAN         string
	TimeSpentMs int64
}

// DecodeHistory parses the compact encoding back into entries.
func DecodeHistory(s string) ([]HistoryEntry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("history has odd token count %d", len(parts))
	}
	out := make([]HistoryEntry, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		san := strings.TrimSpace(parts[i])
		if san == "" {
			return nil, fmt.Errorf("empty SAN at tuple %d", i/2)
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad duration at tuple %d: %w", i/2, err)
		}
		out = append(out, HistoryEntry{SAN: san, TimeSpentMs: int64(math.Round(secs * 1000))})
	}
	return out, nil
}
