// Package signup serializes and applies "toggle my signup" requests.
package signup

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"muster/internal/audit"
	"muster/internal/common"
	"muster/internal/event"
	"muster/internal/gateway"
)

type OutcomeKind int

const (
	OutcomeJoined OutcomeKind = iota
	OutcomeLeft
	OutcomeSwitched
	OutcomeBusy
	OutcomeEventNotFound
	OutcomeSlotNotFound
	OutcomeFull
	OutcomeRestricted
)

// Outcome is the result handed back to the initiating caller
type Outcome struct {
	Kind         OutcomeKind
	SlotName     string
	PreviousSlot string
	RequiredRole int64
}

// Message renders the outcome as a user-facing reply
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeJoined:
		return fmt.Sprintf("You have joined the %s role.", o.SlotName)
	case OutcomeLeft:
		return fmt.Sprintf("You have left the %s role.", o.SlotName)
	case OutcomeSwitched:
		return fmt.Sprintf("You have switched from %s to %s.", o.PreviousSlot, o.SlotName)
	case OutcomeBusy:
		return "Please wait, your previous request is still processing."
	case OutcomeEventNotFound:
		return "Event not found. Please contact an administrator."
	case OutcomeSlotNotFound:
		return "Role not found."
	case OutcomeFull:
		return fmt.Sprintf("The %s role is full.", o.SlotName)
	case OutcomeRestricted:
		return "You don't have the role required to sign up for this position."
	default:
		return "An error occurred. Please try again."
	}
}

// Coordinator guards the signup-toggle path. At most one toggle is in
// flight per (user, event) pair; a second concurrent request for the same
// pair is rejected immediately rather than queued
type Coordinator struct {
	registry *event.Registry
	gw       gateway.Gateway
	auditLog audit.Recorder
	locks    *common.KeyedFlag
	// bypassRoles maps guild id to the platform roles exempt from
	// capacity and restriction checks
	bypassRoles map[int64][]int64
}

func NewCoordinator(registry *event.Registry, gw gateway.Gateway, auditLog audit.Recorder, bypassRoles map[int64][]int64) *Coordinator {
	if auditLog == nil {
		auditLog = audit.Discard{}
	}
	return &Coordinator{
		registry:    registry,
		gw:          gw,
		auditLog:    auditLog,
		locks:       common.NewKeyedFlag(),
		bypassRoles: bypassRoles,
	}
}

func lockKey(userID, eventID string) string {
	return userID + ":" + eventID
}

// Toggle joins, leaves or switches the user's role slot in the event.
// The record is re-fetched under the per-pair lock, mutated as a copy and
// written back through a single registry upsert
func (c *Coordinator) Toggle(userID, username, eventID, slotID string) Outcome {

	key := lockKey(userID, eventID)
	if !c.locks.TryAcquire(key) {
		log.Debug().Msg(fmt.Sprintf("Toggle for user %s in event %s already in progress", userID, eventID))
		return Outcome{Kind: OutcomeBusy}
	}
	defer c.locks.Release(key)

	rec, ok := c.registry.Get(eventID)
	if !ok {
		log.Debug().Msg(fmt.Sprintf("Toggle for unknown event %s", eventID))
		return Outcome{Kind: OutcomeEventNotFound}
	}

	slot, ok := rec.Roles[slotID]
	if !ok {
		return Outcome{Kind: OutcomeSlotNotFound}
	}
	slotName := slot.Name
	if slotName == "" {
		slotName = slotID
	}

	currentSlotID, inAnySlot := rec.SlotOf(userID)
	leaving := inAnySlot && currentSlotID == slotID

	// Validation only applies when adding; leaving is always allowed
	if !leaving {
		canBypass := c.canBypass(rec.GuildID, userID)
		if slot.Restricted && !canBypass {
			holds := false
			if slot.RequiredRoleID != 0 {
				var err error
				holds, err = c.gw.MemberHasRole(rec.GuildID, userID, slot.RequiredRoleID)
				if err != nil {
					log.Error().Msg(fmt.Sprintf("Could not check restriction for user %s in event %s: %s", userID, eventID, err))
				}
			}
			if !holds {
				return Outcome{Kind: OutcomeRestricted, SlotName: slotName, RequiredRole: slot.RequiredRoleID}
			}
		}
		if slot.Limit > 0 && len(slot.Users) >= slot.Limit && !canBypass {
			return Outcome{Kind: OutcomeFull, SlotName: slotName}
		}
	}

	// If the user occupies a different slot, pull them out of it first so
	// the switch is atomic from the caller's perspective
	previousSlotName := ""
	if inAnySlot && currentSlotID != slotID {
		previous := rec.Roles[currentSlotID]
		previousSlotName = previous.Name
		if previousSlotName == "" {
			previousSlotName = currentSlotID
		}
		previous.Users = removeUser(previous.Users, userID)
		c.revokeSlotRole(rec, previous, userID)
		c.record(rec, userID, username, currentSlotID, previous, audit.ActionLeft)
	}

	var outcome Outcome
	if leaving {
		slot.Users = removeUser(slot.Users, userID)
		c.revokeSlotRole(rec, slot, userID)
		c.record(rec, userID, username, slotID, slot, audit.ActionLeft)
		outcome = Outcome{Kind: OutcomeLeft, SlotName: slotName}
	} else {
		slot.Users = append(slot.Users, userID)
		c.grantSlotRole(rec, slot, userID)
		c.record(rec, userID, username, slotID, slot, audit.ActionJoined)
		if previousSlotName != "" {
			outcome = Outcome{Kind: OutcomeSwitched, SlotName: slotName, PreviousSlot: previousSlotName}
		} else {
			outcome = Outcome{Kind: OutcomeJoined, SlotName: slotName}
		}
	}

	c.syncEventRole(rec, userID)

	if err := c.registry.Upsert(rec); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not persist toggle for user %s in event %s: %s", userID, eventID, err))
	}

	// Refresh the roster shown on the announcement, best effort
	if rec.Posted() {
		if err := c.gw.RefreshAnnouncement(rec); err != nil && !gateway.IsNotFound(err) {
			log.Error().Msg(fmt.Sprintf("Could not refresh announcement for event %s: %s", eventID, err))
		}
	}

	return outcome
}

func (c *Coordinator) canBypass(guildID int64, userID string) bool {
	for _, roleID := range c.bypassRoles[guildID] {
		holds, err := c.gw.MemberHasRole(guildID, userID, roleID)
		if err != nil {
			log.Debug().Msg(fmt.Sprintf("Could not check bypass role %d for user %s: %s", roleID, userID, err))
			continue
		}
		if holds {
			return true
		}
	}
	return false
}

// syncEventRole keeps the event-wide platform role aligned with slot
// membership: granted while the user holds any slot, revoked otherwise
func (c *Coordinator) syncEventRole(rec *event.Record, userID string) {
	if rec.EventRoleID == nil {
		return
	}
	_, inAnySlot := rec.SlotOf(userID)
	holding := containsUser(rec.EventRoleUsers, userID)

	switch {
	case inAnySlot && !holding:
		if err := c.gw.GrantRole(rec.GuildID, userID, *rec.EventRoleID, "Joined role in event: "+rec.Title); err != nil && !gateway.IsNotFound(err) {
			log.Error().Msg(fmt.Sprintf("Could not grant event role for user %s in event %s: %s", userID, rec.ID, err))
			return
		}
		rec.EventRoleUsers = append(rec.EventRoleUsers, userID)
	case !inAnySlot && holding:
		if err := c.gw.RevokeRole(rec.GuildID, userID, *rec.EventRoleID, "Left all roles in event: "+rec.Title); err != nil && !gateway.IsNotFound(err) {
			log.Error().Msg(fmt.Sprintf("Could not revoke event role for user %s in event %s: %s", userID, rec.ID, err))
			return
		}
		rec.EventRoleUsers = removeUser(rec.EventRoleUsers, userID)
	}
}

func (c *Coordinator) grantSlotRole(rec *event.Record, slot *event.RoleSlot, userID string) {
	if slot.DiscordRoleID == 0 {
		return
	}
	if err := c.gw.GrantRole(rec.GuildID, userID, slot.DiscordRoleID, "Joined "+rec.Title+" event role"); err != nil && !gateway.IsNotFound(err) {
		log.Error().Msg(fmt.Sprintf("Could not grant slot role for user %s in event %s: %s", userID, rec.ID, err))
	}
}

func (c *Coordinator) revokeSlotRole(rec *event.Record, slot *event.RoleSlot, userID string) {
	if slot.DiscordRoleID == 0 {
		return
	}
	if err := c.gw.RevokeRole(rec.GuildID, userID, slot.DiscordRoleID, "Removed from "+rec.Title+" event role"); err != nil && !gateway.IsNotFound(err) {
		log.Error().Msg(fmt.Sprintf("Could not revoke slot role for user %s in event %s: %s", userID, rec.ID, err))
	}
}

func (c *Coordinator) record(rec *event.Record, userID, username, slotID string, slot *event.RoleSlot, action audit.Action) {
	slotName := slot.Name
	if slotName == "" {
		slotName = slotID
	}
	c.auditLog.Record(audit.Entry{
		GuildID:    rec.GuildID,
		UserID:     userID,
		Username:   username,
		EventID:    rec.ID,
		EventTitle: rec.Title,
		EventTime:  rec.Time,
		SlotID:     slotID,
		SlotName:   slotName,
		Action:     action,
		Stamp:      time.Now().UTC(),
	})
}

func removeUser(users []string, userID string) []string {
	out := users[:0]
	for _, u := range users {
		if u != userID {
			out = append(out, u)
		}
	}
	return out
}

func containsUser(users []string, userID string) bool {
	for _, u := range users {
		if u == userID {
			return true
		}
	}
	return false
}
