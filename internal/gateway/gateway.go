package gateway

import (
	"errors"

	"muster/internal/event"
)

// ErrNotFound reports that a message, thread, channel, role or member is
// already gone. Callers treat it as success-equivalent: the desired end
// state (absence) already holds
var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Gateway is the chat platform boundary consumed by the lifecycle
// orchestrator and the signup coordinator. Implementations may fail with
// ErrNotFound or other errors; callers log and abandon the operation for
// the cycle, they never crash on a gateway error
type Gateway interface {
	// PostAnnouncement sends the event announcement message with its
	// signup controls and returns the new message id
	PostAnnouncement(rec *event.Record) (int64, error)
	// RefreshAnnouncement re-renders the announcement in place
	RefreshAnnouncement(rec *event.Record) error
	// DeleteAnnouncement removes the announcement message
	DeleteAnnouncement(rec *event.Record) error

	// CreateThread opens a discussion thread on the announcement message
	// and returns the thread id and the thread starter message id
	CreateThread(rec *event.Record, name string) (int64, int64, error)
	// SendThreadMessage posts content into a thread
	SendThreadMessage(threadID int64, content string) error
	// DeleteThread removes the discussion thread and its starter message
	DeleteThread(rec *event.Record) error

	// GrantRole / RevokeRole manage a platform role on a member
	GrantRole(guildID int64, userID string, roleID int64, reason string) error
	RevokeRole(guildID int64, userID string, roleID int64, reason string) error
	// MemberHasRole checks a member for a platform role
	MemberHasRole(guildID int64, userID string, roleID int64) (bool, error)
}
