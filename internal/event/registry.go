package event

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Saver persists the full event mapping of one guild
type Saver interface {
	Save(guildID int64, events map[string]*Record) error
}

// Registry is the single source of truth for event records during process
// lifetime. Every mutation goes through Upsert or Remove, which immediately
// persist the owning guild's mapping. Reads hand out deep copies, so the
// only way state changes is a copy mutated and upserted back
type Registry struct {
	mu     sync.Mutex
	events map[string]*Record
	saver  Saver
}

func NewRegistry(saver Saver) *Registry {
	return &Registry{events: map[string]*Record{}, saver: saver}
}

// Populate replaces the in-memory mapping, typically from Store.LoadAll
// at process start. Does not persist
func (reg *Registry) Populate(events map[string]*Record) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.events = map[string]*Record{}
	for id, record := range events {
		reg.events[id] = record.Clone()
	}
}

func (reg *Registry) Get(id string) (*Record, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	record, ok := reg.events[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// All returns copies of every record, keyed by id
func (reg *Registry) All() map[string]*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]*Record, len(reg.events))
	for id, record := range reg.events {
		out[id] = record.Clone()
	}
	return out
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.events)
}

// Upsert stores the record and persists its guild's mapping
func (reg *Registry) Upsert(record *Record) error {
	reg.mu.Lock()
	reg.events[record.ID] = record.Clone()
	guildID := record.GuildID
	snapshot := reg.guildEventsLocked(guildID)
	reg.mu.Unlock()
	return reg.persist(guildID, snapshot)
}

// Remove deletes the record and persists its guild's mapping.
// Removing an unknown id is a no-op
func (reg *Registry) Remove(id string) error {
	reg.mu.Lock()
	record, ok := reg.events[id]
	if !ok {
		reg.mu.Unlock()
		return nil
	}
	guildID := record.GuildID
	delete(reg.events, id)
	snapshot := reg.guildEventsLocked(guildID)
	reg.mu.Unlock()
	return reg.persist(guildID, snapshot)
}

// Replace removes the old record and inserts the new one as one mutation,
// persisting once. Used when a recurrence retires an occurrence
func (reg *Registry) Replace(oldID string, record *Record) error {
	reg.mu.Lock()
	delete(reg.events, oldID)
	reg.events[record.ID] = record.Clone()
	guildID := record.GuildID
	snapshot := reg.guildEventsLocked(guildID)
	reg.mu.Unlock()
	return reg.persist(guildID, snapshot)
}

// GuildEvents returns copies of all records owned by one guild
func (reg *Registry) GuildEvents(guildID int64) map[string]*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.guildEventsLocked(guildID)
}

func (reg *Registry) guildEventsLocked(guildID int64) map[string]*Record {
	out := map[string]*Record{}
	for id, record := range reg.events {
		if record.GuildID == guildID {
			out[id] = record.Clone()
		}
	}
	return out
}

func (reg *Registry) persist(guildID int64, snapshot map[string]*Record) error {
	if reg.saver == nil {
		return nil
	}
	if err := reg.saver.Save(guildID, snapshot); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not persist events for guild %d: %s", guildID, err))
		return err
	}
	return nil
}
