package event

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the wire format for event times: naive minutes-precision
// timestamps interpreted as UTC
const TimeLayout = "2006-01-02 15:04"

// RoleSlot is a named signup category within an event
type RoleSlot struct {
	Name string `json:"name"`
	// Restricted slots require the caller to hold RequiredRoleID
	Restricted     bool     `json:"restricted"`
	RequiredRoleID int64    `json:"required_role_id,omitempty"`
	Users          []string `json:"users"`
	// Limit caps the number of signups; zero means unlimited
	Limit int `json:"limit,omitempty"`
	// DiscordRoleID, if set, is granted to members of this slot
	DiscordRoleID int64 `json:"discord_role_id,omitempty"`
}

// Record is the persisted unit representing one scheduled community
// activity and its signups
type Record struct {
	ID          string `json:"id"`
	SeriesID    string `json:"series_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        string `json:"time"`
	Location    string `json:"location"`

	GuildID   int64  `json:"guild_id"`
	ChannelID int64  `json:"channel_id"`
	MessageID *int64 `json:"message_id"`

	Roles map[string]*RoleSlot `json:"roles"`

	Recurring bool `json:"recurring"`
	// RecurringInterval is kept only for the persisted file layout;
	// RecurrenceRule is what drives recurrence
	RecurringInterval int    `json:"recurring_interval"`
	RecurrenceRule    string `json:"recurrence_rule,omitempty"`

	EventRoleID    *int64   `json:"event_role_id"`
	EventRoleUsers []string `json:"event_role_users"`

	ThreadID               int64 `json:"thread_id,omitempty"`
	ThreadStarterMessageID int64 `json:"thread_starter_message_id,omitempty"`

	CreatedBy    int64  `json:"created_by"`
	CreatedAt    string `json:"created_at"`
	LastReminder string `json:"last_reminder,omitempty"`
}

// MintID derives a stable id from the title and the formatted start time
func MintID(title string, start time.Time) string {
	stamp := start.UTC().Format(TimeLayout)
	stamp = strings.ReplaceAll(stamp, " ", "_")
	stamp = strings.ReplaceAll(stamp, ":", "-")
	return fmt.Sprintf("%s_%s", strings.ReplaceAll(title, " ", "-"), stamp)
}

// NewRecord creates a record for the given start time with a fresh series id
func NewRecord(title string, start time.Time, guildID, channelID, createdBy int64) *Record {
	return &Record{
		ID:             MintID(title, start),
		SeriesID:       uuid.NewString(),
		Title:          title,
		Time:           start.UTC().Format(TimeLayout),
		GuildID:        guildID,
		ChannelID:      channelID,
		Roles:          map[string]*RoleSlot{},
		EventRoleUsers: []string{},
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC().Format(TimeLayout),
	}
}

// StartTime parses the stored event time as UTC
func (r *Record) StartTime() (time.Time, error) {
	t, err := time.Parse(TimeLayout, r.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %s has invalid time %q: %w", r.ID, r.Time, err)
	}
	return t.UTC(), nil
}

// Posted reports whether the announcement message has been sent
func (r *Record) Posted() bool {
	return r.MessageID != nil
}

// SlotOf returns the id of the slot the user currently occupies, if any
func (r *Record) SlotOf(userID string) (string, bool) {
	for slotID, slot := range r.Roles {
		for _, u := range slot.Users {
			if u == userID {
				return slotID, true
			}
		}
	}
	return "", false
}

// SignupCount is the total number of signups across all slots
func (r *Record) SignupCount() int {
	n := 0
	for _, slot := range r.Roles {
		n += len(slot.Users)
	}
	return n
}

// SlotIDs returns the slot ids in a stable order for display
func (r *Record) SlotIDs() []string {
	ids := make([]string, 0, len(r.Roles))
	for id := range r.Roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy so callers can mutate-then-upsert without
// exposing intermediate states
func (r *Record) Clone() *Record {
	out := *r
	if r.MessageID != nil {
		v := *r.MessageID
		out.MessageID = &v
	}
	if r.EventRoleID != nil {
		v := *r.EventRoleID
		out.EventRoleID = &v
	}
	out.EventRoleUsers = append([]string{}, r.EventRoleUsers...)
	out.Roles = make(map[string]*RoleSlot, len(r.Roles))
	for id, slot := range r.Roles {
		s := *slot
		s.Users = append([]string{}, slot.Users...)
		out.Roles[id] = &s
	}
	return &out
}

// NextOccurrenceRecord builds the successor of a recurring event: a fresh
// id for the new start, the announcement and thread linkage stripped, and
// every signup list reset. Slot definitions and the series id carry over
func (r *Record) NextOccurrenceRecord(next time.Time) *Record {
	out := r.Clone()
	out.Time = next.UTC().Format(TimeLayout)
	out.ID = MintID(out.Title, next)
	if out.SeriesID == "" {
		out.SeriesID = uuid.NewString()
	}
	out.MessageID = nil
	out.ThreadID = 0
	out.ThreadStarterMessageID = 0
	out.LastReminder = ""
	out.EventRoleUsers = []string{}
	for _, slot := range out.Roles {
		slot.Users = []string{}
	}
	return out
}
