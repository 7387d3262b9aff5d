package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := NewTracker(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestTrackerRecordAndHistory(t *testing.T) {
	tracker := newTestTracker(t)

	base := Entry{
		GuildID:    100,
		UserID:     "u1",
		Username:   "User One",
		EventID:    "Raid_2026-09-12_18-30",
		EventTitle: "Raid",
		EventTime:  "2026-09-12 18:30",
		SlotID:     "tank",
		SlotName:   "Tank",
		Stamp:      time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC),
	}

	joined := base
	joined.Action = ActionJoined
	tracker.Record(joined)

	left := base
	left.Action = ActionLeft
	left.Stamp = base.Stamp.Add(time.Hour)
	tracker.Record(left)

	history, err := tracker.EventHistory(base.EventID, 10)
	if err != nil {
		t.Fatalf("EventHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d rows, want 2", len(history))
	}

	// Newest first
	if history[0].Action != ActionLeft || history[1].Action != ActionJoined {
		t.Fatalf("history order = %s then %s", history[0].Action, history[1].Action)
	}
	if history[0].Username != "User One" || history[0].SlotName != "Tank" {
		t.Fatalf("row = %+v", history[0])
	}
	if !history[1].Stamp.Equal(base.Stamp) {
		t.Fatalf("stamp = %v, want %v", history[1].Stamp, base.Stamp)
	}
}

func TestTrackerHistoryLimitAndIsolation(t *testing.T) {
	tracker := newTestTracker(t)

	for i := 0; i < 5; i++ {
		tracker.Record(Entry{EventID: "a", UserID: "u1", Action: ActionJoined})
	}
	tracker.Record(Entry{EventID: "b", UserID: "u2", Action: ActionJoined})

	history, err := tracker.EventHistory("a", 3)
	if err != nil {
		t.Fatalf("EventHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("limit ignored, got %d rows", len(history))
	}

	other, err := tracker.EventHistory("b", 10)
	if err != nil {
		t.Fatalf("EventHistory: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("event b has %d rows, want 1", len(other))
	}
}

func TestFanout(t *testing.T) {
	var first, second []Entry
	f := Fanout{
		recorderFunc(func(e Entry) { first = append(first, e) }),
		recorderFunc(func(e Entry) { second = append(second, e) }),
	}
	f.Record(Entry{EventID: "a"})
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("fanout delivered %d and %d rows", len(first), len(second))
	}
}

type recorderFunc func(Entry)

func (fn recorderFunc) Record(e Entry) { fn(e) }
