// Package lifecycle drives every event through its life: announced 3 days
// before start, reminded 30 minutes before start, cleaned up 2 days after,
// and for recurring events replaced by a freshly minted next occurrence.
package lifecycle

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"muster/internal/clock"
	"muster/internal/event"
	"muster/internal/gateway"
	"muster/internal/scheduler"
)

const (
	// PostingLead is how long before start the announcement goes out
	PostingLead = 3 * 24 * time.Hour
	// ReminderLead is how long before start the reminder fires
	ReminderLead = 30 * time.Minute
	// CleanupLag is how long after start the event is torn down
	CleanupLag = 2 * 24 * time.Hour
)

// Orchestrator owns every lifecycle transition. Transitions are driven
// two ways: timers armed through the scheduler, and the periodic sweep
// that re-derives the correct state from stored time versus now. A single
// mutex serializes transitions, so each one sees a settled registry
type Orchestrator struct {
	mu       sync.Mutex
	registry *event.Registry
	sched    *scheduler.Scheduler
	gw       gateway.Gateway
	clk      clock.Provider
}

func New(registry *event.Registry, sched *scheduler.Scheduler, gw gateway.Gateway, clk clock.Provider) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		sched:    sched,
		gw:       gw,
		clk:      clk,
	}
}

// Adopt takes responsibility for an event: it decides from the stored
// start time whether to post now, post later, or skip straight to the
// elapsed handling. Called after creation and for every loaded event on
// startup
func (o *Orchestrator) Adopt(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.adoptLocked(eventID)
}

func (o *Orchestrator) adoptLocked(eventID string) {
	rec, ok := o.registry.Get(eventID)
	if !ok {
		log.Debug().Msg(fmt.Sprintf("Cannot adopt unknown event %s", eventID))
		return
	}
	start, err := rec.StartTime()
	if err != nil {
		log.Error().Msg(err.Error())
		return
	}
	now := o.clk.Now()

	switch {
	case now.After(start):
		// Already started; only the elapsed deadline matters
		o.armElapsed(rec, start)
	case rec.Posted():
		o.armFollowups(rec, start)
	case now.Before(start.Add(-PostingLead)):
		o.sched.Arm(eventID, scheduler.KindPosting, o.clk.Until(start.Add(-PostingLead)), func() {
			o.Post(eventID)
		})
	default:
		// Inside the posting window, announce right away
		o.postLocked(eventID)
	}
}

// Readopt clears the event's timers and derives them afresh, then
// re-renders the announcement. Used after an operator edit, which may
// have moved the start time
func (o *Orchestrator) Readopt(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sched.DisarmAll(eventID)
	o.adoptLocked(eventID)

	rec, ok := o.registry.Get(eventID)
	if !ok || !rec.Posted() {
		return
	}
	if err := o.gw.RefreshAnnouncement(rec); err != nil && !gateway.IsNotFound(err) {
		log.Error().Msg(fmt.Sprintf("Could not refresh announcement for event %s: %s", eventID, err))
	}
}

// Post announces the event. Idempotent: a second call is a no-op once the
// message id is set, so the sweep and a timer can never double-post
func (o *Orchestrator) Post(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.postLocked(eventID)
}

func (o *Orchestrator) postLocked(eventID string) {
	rec, ok := o.registry.Get(eventID)
	if !ok {
		log.Debug().Msg(fmt.Sprintf("Event %s vanished before posting", eventID))
		return
	}
	if rec.Posted() {
		log.Debug().Msg(fmt.Sprintf("Event %s already has message %d, not posting again", eventID, *rec.MessageID))
		return
	}
	start, err := rec.StartTime()
	if err != nil {
		log.Error().Msg(err.Error())
		return
	}
	if o.clk.Now().After(start) {
		// Missed the event entirely; leave it for the elapsed handling
		o.armElapsed(rec, start)
		return
	}

	messageID, err := o.gw.PostAnnouncement(rec)
	if err != nil {
		// Transient failure: leave state unchanged, the sweep retries
		log.Error().Msg(fmt.Sprintf("Could not post announcement for event %s: %s", eventID, err))
		return
	}
	rec.MessageID = &messageID
	if err := o.registry.Upsert(rec); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not persist posted event %s: %s", eventID, err))
	}
	log.Debug().Msg(fmt.Sprintf("Posted announcement %d for event %s", messageID, eventID))

	o.armFollowups(rec, start)
}

// armFollowups arms the reminder and the elapsed deadline for a posted event
func (o *Orchestrator) armFollowups(rec *event.Record, start time.Time) {
	now := o.clk.Now()
	reminderAt := start.Add(-ReminderLead)
	if now.Before(reminderAt) {
		o.sched.Arm(rec.ID, scheduler.KindReminder, o.clk.Until(reminderAt), func() {
			o.Remind(rec.ID)
		})
	}
	o.armElapsed(rec, start)
}

// armElapsed arms the transition out of Elapsed: recurrence for recurring
// events, cleanup for one-shot events. Both fire 2 days after start
func (o *Orchestrator) armElapsed(rec *event.Record, start time.Time) {
	eventID := rec.ID
	deadline := start.Add(CleanupLag)
	if rec.Recurring {
		o.sched.Arm(eventID, scheduler.KindRecurrence, o.clk.Until(deadline), func() {
			o.HandleElapsed(eventID)
		})
	} else {
		o.sched.Arm(eventID, scheduler.KindCleanup, o.clk.Until(deadline), func() {
			o.HandleElapsed(eventID)
		})
	}
}

// Remind sends the 30-minute warning into a lazily created discussion
// thread. Idempotent across restarts through the stored last-reminder
// stamp: re-arming the same reminder does not produce a second send
func (o *Orchestrator) Remind(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.registry.Get(eventID)
	if !ok {
		log.Debug().Msg(fmt.Sprintf("Event %s vanished before its reminder", eventID))
		return
	}
	if !rec.Posted() {
		log.Debug().Msg(fmt.Sprintf("Event %s has no announcement, skipping reminder", eventID))
		return
	}
	start, err := rec.StartTime()
	if err != nil {
		log.Error().Msg(err.Error())
		return
	}

	// A reminder stamped within an hour of start means this occurrence
	// was already reminded, typically before a restart re-armed the task
	if rec.LastReminder != "" {
		if last, err := time.Parse(event.TimeLayout, rec.LastReminder); err == nil {
			if last.After(start.Add(-time.Hour)) {
				log.Debug().Msg(fmt.Sprintf("Already sent a reminder for event %s", eventID))
				return
			}
		}
	}

	if rec.ThreadID == 0 {
		name := fmt.Sprintf("Discussion: %s - %s", rec.Title, rec.Time)
		threadID, starterID, err := o.gw.CreateThread(rec, name)
		if err != nil {
			log.Error().Msg(fmt.Sprintf("Could not create thread for event %s: %s", eventID, err))
			return
		}
		rec.ThreadID = threadID
		rec.ThreadStarterMessageID = starterID
		if err := o.registry.Upsert(rec); err != nil {
			log.Error().Msg(fmt.Sprintf("Could not persist thread for event %s: %s", eventID, err))
		}
	}

	if err := o.gw.SendThreadMessage(rec.ThreadID, reminderMessage(rec, start)); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not send reminder for event %s: %s", eventID, err))
		return
	}

	rec.LastReminder = o.clk.Now().Format(event.TimeLayout)
	if err := o.registry.Upsert(rec); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not persist reminder stamp for event %s: %s", eventID, err))
	}
	log.Debug().Msg(fmt.Sprintf("Sent reminder for event %s", eventID))
}

func reminderMessage(rec *event.Record, start time.Time) string {
	var b strings.Builder
	b.WriteString("Look alive! We start in 30 minutes!\n\n")
	b.WriteString(rec.Title + "\n")
	location := rec.Location
	if location == "" {
		location = "Not specified"
	}
	fmt.Fprintf(&b, "Location: %s\n", location)
	fmt.Fprintf(&b, "Start time: <t:%d:F>\n\n", start.Unix())

	var pings []string
	if rec.EventRoleID != nil {
		pings = append(pings, fmt.Sprintf("<@&%d>", *rec.EventRoleID))
	}
	for _, slotID := range rec.SlotIDs() {
		for _, userID := range rec.Roles[slotID].Users {
			pings = append(pings, fmt.Sprintf("<@%s>", userID))
		}
	}
	b.WriteString(strings.Join(pings, " "))
	return b.String()
}

// HandleElapsed resolves the Elapsed state: recurring events are replaced
// by their next occurrence, one-shot events are torn down and deleted
func (o *Orchestrator) HandleElapsed(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.registry.Get(eventID)
	if !ok {
		// Benign race: a concurrent trigger already resolved it
		log.Debug().Msg(fmt.Sprintf("Event %s vanished before elapsed handling", eventID))
		return
	}
	if rec.Recurring {
		o.recurLocked(rec)
	} else {
		o.cleanupLocked(rec)
	}
}

// Cleanup tears the event down and deletes it from the registry
func (o *Orchestrator) Cleanup(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.registry.Get(eventID)
	if !ok {
		return
	}
	o.cleanupLocked(rec)
}

func (o *Orchestrator) cleanupLocked(rec *event.Record) {
	log.Debug().Msg(fmt.Sprintf("Cleaning up event %s", rec.ID))
	o.teardown(rec)
	o.sched.DisarmAll(rec.ID)
	if err := o.registry.Remove(rec.ID); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not remove event %s: %s", rec.ID, err))
	}
}

// recurLocked retires the elapsed occurrence and inserts its successor.
// A duplicate scan over the registry keeps a race between the sweep and
// an explicit trigger from creating the next occurrence twice
func (o *Orchestrator) recurLocked(rec *event.Record) {
	next, err := event.NextForRecord(rec, o.clk.Now())
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not compute next occurrence for event %s: %s", rec.ID, err))
		return
	}
	if next.IsZero() {
		log.Debug().Msg(fmt.Sprintf("No future occurrences for event %s, deleting", rec.ID))
		o.cleanupLocked(rec)
		return
	}

	nextTime := next.Format(event.TimeLayout)
	for id, other := range o.registry.All() {
		if id == rec.ID {
			continue
		}
		sameSeries := rec.SeriesID != "" && other.SeriesID == rec.SeriesID
		sameShape := other.Title == rec.Title && other.Time == nextTime
		if (sameSeries && other.Time == nextTime) || sameShape {
			log.Debug().Msg(fmt.Sprintf("Next occurrence of event %s already exists as %s", rec.ID, id))
			o.cleanupLocked(rec)
			return
		}
	}

	// Platform artifacts of the retired occurrence go away first
	o.teardown(rec)
	o.sched.DisarmAll(rec.ID)

	successor := rec.NextOccurrenceRecord(next)
	if err := o.registry.Replace(rec.ID, successor); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not replace event %s with %s: %s", rec.ID, successor.ID, err))
		return
	}
	log.Debug().Msg(fmt.Sprintf("Event %s recurred as %s at %s", rec.ID, successor.ID, successor.Time))

	o.adoptLocked(successor.ID)
}

// teardown removes every platform artifact of the record: granted roles,
// the discussion thread and the announcement. Absence of any of them is
// treated as success
func (o *Orchestrator) teardown(rec *event.Record) {
	if rec.EventRoleID != nil {
		for _, userID := range rec.EventRoleUsers {
			if err := o.gw.RevokeRole(rec.GuildID, userID, *rec.EventRoleID, "Event ended: "+rec.Title); err != nil && !gateway.IsNotFound(err) {
				log.Error().Msg(fmt.Sprintf("Could not revoke event role from user %s for event %s: %s", userID, rec.ID, err))
			}
		}
	}
	for _, slotID := range rec.SlotIDs() {
		slot := rec.Roles[slotID]
		if slot.DiscordRoleID == 0 {
			continue
		}
		for _, userID := range slot.Users {
			if err := o.gw.RevokeRole(rec.GuildID, userID, slot.DiscordRoleID, "Event ended: "+rec.Title); err != nil && !gateway.IsNotFound(err) {
				log.Error().Msg(fmt.Sprintf("Could not revoke slot role from user %s for event %s: %s", userID, rec.ID, err))
			}
		}
	}
	if rec.ThreadID != 0 {
		if err := o.gw.DeleteThread(rec); err != nil && !gateway.IsNotFound(err) {
			log.Error().Msg(fmt.Sprintf("Could not delete thread for event %s: %s", rec.ID, err))
		}
	}
	if rec.Posted() {
		if err := o.gw.DeleteAnnouncement(rec); err != nil && !gateway.IsNotFound(err) {
			log.Error().Msg(fmt.Sprintf("Could not delete announcement for event %s: %s", rec.ID, err))
		}
	}
}

// Delete removes an event on operator request, tearing down its platform
// artifacts and cancelling its tasks
func (o *Orchestrator) Delete(eventID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.registry.Get(eventID)
	if !ok {
		return false
	}
	o.cleanupLocked(rec)
	return true
}

// Sweep is the periodic defensive pass: for every event it re-derives the
// correct state from stored time versus now and arms whatever task is
// missing. This makes the system self-healing after a restart that lost
// its in-memory timers. Presence of the message id and of the record
// itself guard against double-posting and double-cleaning
func (o *Orchestrator) Sweep() {
	now := o.clk.Now()
	log.Debug().Msg(fmt.Sprintf("Sweeping events at %s", now.Format(event.TimeLayout)))

	for eventID, rec := range o.registry.All() {
		o.sweepOne(eventID, rec, now)
	}
}

// sweepOne isolates one event's handling, so one failure never blocks
// the rest of the sweep
func (o *Orchestrator) sweepOne(eventID string, rec *event.Record, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msg(fmt.Sprintf("Sweep of event %s panicked: %v", eventID, r))
		}
	}()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Re-fetch: an earlier sweep step may have resolved this event
	rec, ok := o.registry.Get(eventID)
	if !ok {
		return
	}
	start, err := rec.StartTime()
	if err != nil {
		log.Error().Msg(err.Error())
		return
	}

	switch {
	case now.After(start.Add(CleanupLag)):
		// Long past: drive straight to the terminal state
		if rec.Recurring {
			o.recurLocked(rec)
		} else {
			o.cleanupLocked(rec)
		}
	case now.After(start):
		// Elapsed, deadline pending
		if !o.elapsedArmed(rec) {
			o.armElapsed(rec, start)
		}
	case rec.Posted():
		if !o.sched.Armed(eventID, scheduler.KindReminder) && now.Before(start.Add(-ReminderLead)) && rec.LastReminder == "" {
			o.armFollowups(rec, start)
		} else if !o.elapsedArmed(rec) {
			o.armElapsed(rec, start)
		}
	default:
		// Pending announcement
		if !o.sched.Armed(eventID, scheduler.KindPosting) {
			o.adoptLocked(eventID)
		}
	}
}

func (o *Orchestrator) elapsedArmed(rec *event.Record) bool {
	if rec.Recurring {
		return o.sched.Armed(rec.ID, scheduler.KindRecurrence)
	}
	return o.sched.Armed(rec.ID, scheduler.KindCleanup)
}
