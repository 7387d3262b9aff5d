package event

import (
	"testing"
	"time"
)

func TestNextAfterWeekly(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)

	// Right after the occurrence, the next one is a week out
	next, err := NextAfter("FREQ=WEEKLY", start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	want := start.AddDate(0, 0, 7)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextAfterSkipsAnchor(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)

	// Exactly at the anchor the result has to be strictly later
	next, err := NextAfter("FREQ=WEEKLY", start, start)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.After(start) {
		t.Fatalf("next = %v is not strictly after the anchor", next)
	}
}

func TestNextAfterDefaultsToWeekly(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	next, err := NextAfter("", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.Equal(start.AddDate(0, 0, 7)) {
		t.Fatalf("next = %v, want one week after the anchor", next)
	}
}

func TestNextAfterExhaustedRule(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	next, err := NextAfter("FREQ=WEEKLY;COUNT=2", start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("exhausted rule yielded %v, want zero time", next)
	}
}

func TestNextAfterInvalidRule(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	if _, err := NextAfter("FREQ=SOMETIMES", start, start); err == nil {
		t.Fatal("invalid rule did not error")
	}
}

func TestNextForRecord(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	rec := NewRecord("Raid", start, 100, 200, 300)
	rec.Recurring = true
	rec.RecurrenceRule = "FREQ=DAILY"

	next, err := NextForRecord(rec, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("NextForRecord: %v", err)
	}
	if !next.Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("next = %v, want the following day", next)
	}
}
