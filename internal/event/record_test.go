package event

import (
	"testing"
	"time"
)

func TestMintID(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	got := MintID("Friday Raid Night", start)
	want := "Friday-Raid-Night_2026-09-12_18-30"
	if got != want {
		t.Fatalf("MintID = %q, want %q", got, want)
	}
}

func TestNewRecordStartTimeRoundTrip(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	rec := NewRecord("Raid", start, 100, 200, 300)
	parsed, err := rec.StartTime()
	if err != nil {
		t.Fatalf("StartTime: %v", err)
	}
	if !parsed.Equal(start) {
		t.Fatalf("StartTime = %v, want %v", parsed, start)
	}
	if rec.SeriesID == "" {
		t.Fatal("new record has no series id")
	}
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	rec := NewRecord("Raid", start, 100, 200, 300)
	messageID := int64(555)
	rec.MessageID = &messageID
	rec.Roles["tank"] = &RoleSlot{Name: "Tank", Users: []string{"u1"}, Limit: 2}
	rec.EventRoleUsers = []string{"u1"}

	clone := rec.Clone()
	clone.Roles["tank"].Users = append(clone.Roles["tank"].Users, "u2")
	*clone.MessageID = 777
	clone.EventRoleUsers[0] = "other"

	if len(rec.Roles["tank"].Users) != 1 {
		t.Fatal("mutating the clone's slot users leaked into the original")
	}
	if *rec.MessageID != 555 {
		t.Fatal("mutating the clone's message id leaked into the original")
	}
	if rec.EventRoleUsers[0] != "u1" {
		t.Fatal("mutating the clone's event role users leaked into the original")
	}
}

func TestSlotOfAndSignupCount(t *testing.T) {
	rec := NewRecord("Raid", time.Now().UTC(), 100, 200, 300)
	rec.Roles["tank"] = &RoleSlot{Name: "Tank", Users: []string{"u1"}}
	rec.Roles["heal"] = &RoleSlot{Name: "Healer", Users: []string{"u2", "u3"}}

	slotID, ok := rec.SlotOf("u2")
	if !ok || slotID != "heal" {
		t.Fatalf("SlotOf(u2) = %q, %v", slotID, ok)
	}
	if _, ok := rec.SlotOf("stranger"); ok {
		t.Fatal("SlotOf found a user who never signed up")
	}
	if got := rec.SignupCount(); got != 3 {
		t.Fatalf("SignupCount = %d, want 3", got)
	}
}

func TestSlotIDsStableOrder(t *testing.T) {
	rec := NewRecord("Raid", time.Now().UTC(), 100, 200, 300)
	rec.Roles["z"] = &RoleSlot{}
	rec.Roles["a"] = &RoleSlot{}
	rec.Roles["m"] = &RoleSlot{}
	ids := rec.SlotIDs()
	want := []string{"a", "m", "z"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SlotIDs = %v, want %v", ids, want)
		}
	}
}

func TestNextOccurrenceRecordResetsState(t *testing.T) {
	start := time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC)
	rec := NewRecord("Raid", start, 100, 200, 300)
	rec.Recurring = true
	messageID := int64(555)
	rec.MessageID = &messageID
	rec.ThreadID = 42
	rec.ThreadStarterMessageID = 43
	rec.LastReminder = "2026-09-12 18:00"
	rec.Roles["tank"] = &RoleSlot{Name: "Tank", Users: []string{"u1"}, Limit: 2, DiscordRoleID: 9}
	rec.EventRoleUsers = []string{"u1"}

	next := start.AddDate(0, 0, 7)
	successor := rec.NextOccurrenceRecord(next)

	if successor.ID == rec.ID {
		t.Fatal("successor kept the old id")
	}
	if successor.SeriesID != rec.SeriesID {
		t.Fatal("successor lost the series id")
	}
	if successor.Time != next.Format(TimeLayout) {
		t.Fatalf("successor time = %q, want %q", successor.Time, next.Format(TimeLayout))
	}
	if successor.MessageID != nil || successor.ThreadID != 0 || successor.ThreadStarterMessageID != 0 {
		t.Fatal("successor kept platform artifacts")
	}
	if successor.LastReminder != "" {
		t.Fatal("successor kept the reminder stamp")
	}
	if len(successor.EventRoleUsers) != 0 {
		t.Fatal("successor kept event role users")
	}
	tank := successor.Roles["tank"]
	if tank == nil || len(tank.Users) != 0 {
		t.Fatal("successor kept slot signups")
	}
	if tank.Limit != 2 || tank.DiscordRoleID != 9 || tank.Name != "Tank" {
		t.Fatal("successor lost the slot definition")
	}
}
