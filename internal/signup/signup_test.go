package signup

import (
	"sync"
	"testing"
	"time"

	"muster/internal/audit"
	"muster/internal/event"
)

// fakeGateway records role operations and lets tests block inside
// MemberHasRole to exercise the per-pair lock
type fakeGateway struct {
	mu        sync.Mutex
	granted   []int64
	revoked   []int64
	refreshed int
	memberOf  map[int64]bool
	// when set, MemberHasRole blocks until the channel closes
	gate chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{memberOf: map[int64]bool{}}
}

func (g *fakeGateway) PostAnnouncement(rec *event.Record) (int64, error) { return 1, nil }

func (g *fakeGateway) RefreshAnnouncement(rec *event.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshed++
	return nil
}

func (g *fakeGateway) DeleteAnnouncement(rec *event.Record) error { return nil }

func (g *fakeGateway) CreateThread(rec *event.Record, name string) (int64, int64, error) {
	return 2, 3, nil
}

func (g *fakeGateway) SendThreadMessage(threadID int64, content string) error { return nil }

func (g *fakeGateway) DeleteThread(rec *event.Record) error { return nil }

func (g *fakeGateway) GrantRole(guildID int64, userID string, roleID int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted = append(g.granted, roleID)
	return nil
}

func (g *fakeGateway) RevokeRole(guildID int64, userID string, roleID int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revoked = append(g.revoked, roleID)
	return nil
}

func (g *fakeGateway) MemberHasRole(guildID int64, userID string, roleID int64) (bool, error) {
	g.mu.Lock()
	gate := g.gate
	holds := g.memberOf[roleID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return holds, nil
}

type capturingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *capturingAudit) Record(entry audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func seedEvent(t *testing.T, reg *event.Registry) *event.Record {
	t.Helper()
	rec := event.NewRecord("Raid", time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC), 100, 200, 300)
	rec.Roles["tank"] = &event.RoleSlot{Name: "Tank", Users: []string{}, Limit: 1}
	rec.Roles["heal"] = &event.RoleSlot{Name: "Healer", Users: []string{}}
	if err := reg.Upsert(rec); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return rec
}

func TestToggleJoinLeave(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)
	rec := seedEvent(t, reg)

	out := coord.Toggle("u1", "User One", rec.ID, "tank")
	if out.Kind != OutcomeJoined || out.SlotName != "Tank" {
		t.Fatalf("join outcome = %+v", out)
	}
	stored, _ := reg.Get(rec.ID)
	if slotID, ok := stored.SlotOf("u1"); !ok || slotID != "tank" {
		t.Fatalf("user not in tank slot after join: %q %v", slotID, ok)
	}

	out = coord.Toggle("u1", "User One", rec.ID, "tank")
	if out.Kind != OutcomeLeft {
		t.Fatalf("leave outcome = %+v", out)
	}
	stored, _ = reg.Get(rec.ID)
	if _, ok := stored.SlotOf("u1"); ok {
		t.Fatal("user still signed up after leaving")
	}
}

func TestToggleSwitchIsAtomic(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)
	rec := seedEvent(t, reg)

	coord.Toggle("u1", "User One", rec.ID, "tank")
	out := coord.Toggle("u1", "User One", rec.ID, "heal")
	if out.Kind != OutcomeSwitched || out.PreviousSlot != "Tank" || out.SlotName != "Healer" {
		t.Fatalf("switch outcome = %+v", out)
	}

	stored, _ := reg.Get(rec.ID)
	if len(stored.Roles["tank"].Users) != 0 {
		t.Fatal("user left behind in the old slot")
	}
	if slotID, ok := stored.SlotOf("u1"); !ok || slotID != "heal" {
		t.Fatal("user not in the new slot")
	}
	if stored.SignupCount() != 1 {
		t.Fatalf("signup count = %d after a switch, want 1", stored.SignupCount())
	}
}

func TestToggleCapacity(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)
	rec := seedEvent(t, reg)

	coord.Toggle("u1", "User One", rec.ID, "tank")
	out := coord.Toggle("u2", "User Two", rec.ID, "tank")
	if out.Kind != OutcomeFull {
		t.Fatalf("outcome for a full slot = %+v", out)
	}

	// Leaving a full slot is always allowed
	out = coord.Toggle("u1", "User One", rec.ID, "tank")
	if out.Kind != OutcomeLeft {
		t.Fatalf("leave outcome on a full slot = %+v", out)
	}
}

func TestToggleRestrictedSlot(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)

	rec := event.NewRecord("Raid", time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC), 100, 200, 300)
	rec.Roles["officer"] = &event.RoleSlot{Name: "Officer", Restricted: true, RequiredRoleID: 77, Users: []string{}}
	reg.Upsert(rec)

	out := coord.Toggle("u1", "User One", rec.ID, "officer")
	if out.Kind != OutcomeRestricted {
		t.Fatalf("outcome without the required role = %+v", out)
	}

	gw.memberOf[77] = true
	out = coord.Toggle("u1", "User One", rec.ID, "officer")
	if out.Kind != OutcomeJoined {
		t.Fatalf("outcome with the required role = %+v", out)
	}
}

func TestToggleBypassRoles(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	gw.memberOf[500] = true
	coord := NewCoordinator(reg, gw, nil, map[int64][]int64{100: {500}})
	rec := seedEvent(t, reg)

	// Fill the slot, then a bypass holder joins it anyway
	coord.Toggle("u1", "User One", rec.ID, "tank")
	out := coord.Toggle("u2", "User Two", rec.ID, "tank")
	if out.Kind != OutcomeJoined {
		t.Fatalf("bypass holder outcome on a full slot = %+v", out)
	}
}

func TestToggleUnknownEventAndSlot(t *testing.T) {
	reg := event.NewRegistry(nil)
	coord := NewCoordinator(reg, newFakeGateway(), nil, nil)
	rec := seedEvent(t, reg)

	if out := coord.Toggle("u1", "User One", "missing", "tank"); out.Kind != OutcomeEventNotFound {
		t.Fatalf("unknown event outcome = %+v", out)
	}
	if out := coord.Toggle("u1", "User One", rec.ID, "missing"); out.Kind != OutcomeSlotNotFound {
		t.Fatalf("unknown slot outcome = %+v", out)
	}
}

func TestToggleBusyWhileInFlight(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	gw.gate = make(chan struct{})
	coord := NewCoordinator(reg, gw, nil, nil)

	rec := event.NewRecord("Raid", time.Date(2026, 9, 12, 18, 30, 0, 0, time.UTC), 100, 200, 300)
	rec.Roles["officer"] = &event.RoleSlot{Name: "Officer", Restricted: true, RequiredRoleID: 77, Users: []string{}}
	reg.Upsert(rec)

	done := make(chan Outcome, 1)
	go func() {
		// Blocks inside MemberHasRole until the gate opens
		done <- coord.Toggle("u1", "User One", rec.ID, "officer")
	}()

	// Wait until the first toggle holds the pair lock
	deadline := time.Now().Add(2 * time.Second)
	for coord.locks.TryAcquire(lockKey("u1", rec.ID)) {
		coord.locks.Release(lockKey("u1", rec.ID))
		if time.Now().After(deadline) {
			t.Fatal("first toggle never acquired the lock")
		}
		time.Sleep(time.Millisecond)
	}

	if out := coord.Toggle("u1", "User One", rec.ID, "officer"); out.Kind != OutcomeBusy {
		t.Fatalf("concurrent toggle outcome = %+v", out)
	}

	close(gw.gate)
	<-done

	// With the first one finished, the pair is free again
	if out := coord.Toggle("u2", "User Two", rec.ID, "officer"); out.Kind != OutcomeRestricted {
		t.Fatalf("toggle after release = %+v", out)
	}
}

func TestToggleEventRoleSync(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)

	rec := seedEvent(t, reg)
	eventRole := int64(900)
	rec.EventRoleID = &eventRole
	reg.Upsert(rec)

	coord.Toggle("u1", "User One", rec.ID, "tank")
	stored, _ := reg.Get(rec.ID)
	if len(stored.EventRoleUsers) != 1 || stored.EventRoleUsers[0] != "u1" {
		t.Fatalf("event role users after join = %v", stored.EventRoleUsers)
	}
	if len(gw.granted) != 1 || gw.granted[0] != 900 {
		t.Fatalf("granted roles = %v", gw.granted)
	}

	// Switching slots keeps the event role
	coord.Toggle("u1", "User One", rec.ID, "heal")
	stored, _ = reg.Get(rec.ID)
	if len(stored.EventRoleUsers) != 1 {
		t.Fatal("event role dropped on a slot switch")
	}

	// Leaving the last slot revokes it
	coord.Toggle("u1", "User One", rec.ID, "heal")
	stored, _ = reg.Get(rec.ID)
	if len(stored.EventRoleUsers) != 0 {
		t.Fatal("event role kept after leaving every slot")
	}
	if len(gw.revoked) != 1 || gw.revoked[0] != 900 {
		t.Fatalf("revoked roles = %v", gw.revoked)
	}
}

func TestToggleAuditTrail(t *testing.T) {
	reg := event.NewRegistry(nil)
	auditLog := &capturingAudit{}
	coord := NewCoordinator(reg, newFakeGateway(), auditLog, nil)
	rec := seedEvent(t, reg)

	coord.Toggle("u1", "User One", rec.ID, "tank")
	coord.Toggle("u1", "User One", rec.ID, "heal")

	// join, then leave+join for the switch
	if len(auditLog.entries) != 3 {
		t.Fatalf("audit has %d entries, want 3", len(auditLog.entries))
	}
	if auditLog.entries[0].Action != audit.ActionJoined || auditLog.entries[0].SlotID != "tank" {
		t.Fatalf("first entry = %+v", auditLog.entries[0])
	}
	if auditLog.entries[1].Action != audit.ActionLeft || auditLog.entries[1].SlotID != "tank" {
		t.Fatalf("second entry = %+v", auditLog.entries[1])
	}
	if auditLog.entries[2].Action != audit.ActionJoined || auditLog.entries[2].SlotID != "heal" {
		t.Fatalf("third entry = %+v", auditLog.entries[2])
	}
}

func TestToggleRefreshesPostedAnnouncement(t *testing.T) {
	reg := event.NewRegistry(nil)
	gw := newFakeGateway()
	coord := NewCoordinator(reg, gw, nil, nil)
	rec := seedEvent(t, reg)

	coord.Toggle("u1", "User One", rec.ID, "tank")
	if gw.refreshed != 0 {
		t.Fatal("refreshed an announcement that was never posted")
	}

	messageID := int64(1)
	rec, _ = reg.Get(rec.ID)
	rec.MessageID = &messageID
	reg.Upsert(rec)

	coord.Toggle("u2", "User Two", rec.ID, "heal")
	if gw.refreshed != 1 {
		t.Fatalf("refresh count = %d, want 1", gw.refreshed)
	}
}
