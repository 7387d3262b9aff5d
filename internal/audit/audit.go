// Package audit keeps a best-effort history of signup joins and leaves.
// Nothing here is authoritative: every failure is swallowed and logged,
// and the event registry never depends on an audit write succeeding.
package audit

import (
	"time"
)

type Action string

const (
	ActionJoined Action = "joined"
	ActionLeft   Action = "left"
)

// Entry is one join/leave row
type Entry struct {
	GuildID    int64
	UserID     string
	Username   string
	EventID    string
	EventTitle string
	EventTime  string
	SlotID     string
	SlotName   string
	Action     Action
	Stamp      time.Time
}

// Recorder accepts audit rows. Implementations must never block the
// caller on failure
type Recorder interface {
	Record(entry Entry)
}

// Discard is the recorder used when auditing is disabled
type Discard struct{}

func (Discard) Record(Entry) {}

// Fanout sends each row to every recorder
type Fanout []Recorder

func (f Fanout) Record(entry Entry) {
	for _, recorder := range f {
		recorder.Record(entry)
	}
}
