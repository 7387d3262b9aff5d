package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS attendance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stamp TEXT NOT NULL,
	guild_id INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	event_id TEXT NOT NULL,
	event_title TEXT NOT NULL,
	event_time TEXT NOT NULL,
	slot_id TEXT NOT NULL,
	slot_name TEXT NOT NULL,
	action TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attendance_guild ON attendance(guild_id);
CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
`

// Tracker appends attendance history to a local sqlite database
type Tracker struct {
	db *sql.DB
}

func NewTracker(path string) (*Tracker, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("could not open attendance database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialise attendance schema: %w", err)
	}
	return &Tracker{db: db}, nil
}

func (t *Tracker) Close() error {
	return t.db.Close()
}

func (t *Tracker) Record(entry Entry) {
	stamp := entry.Stamp
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	_, err := t.db.Exec(
		`INSERT INTO attendance (stamp, guild_id, user_id, username, event_id, event_title, event_time, slot_id, slot_name, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stamp.UTC().Format(time.RFC3339),
		entry.GuildID, entry.UserID, entry.Username,
		entry.EventID, entry.EventTitle, entry.EventTime,
		entry.SlotID, entry.SlotName, string(entry.Action),
	)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not record attendance for user %s in event %s: %s", entry.UserID, entry.EventID, err))
	}
}

// EventHistory returns the recorded rows for one event, newest first
func (t *Tracker) EventHistory(eventID string, limit int) ([]Entry, error) {
	rows, err := t.db.Query(
		`SELECT stamp, guild_id, user_id, username, event_id, event_title, event_time, slot_id, slot_name, action
		 FROM attendance WHERE event_id = ? ORDER BY id DESC LIMIT ?`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query attendance for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var stamp, action string
		if err := rows.Scan(&stamp, &entry.GuildID, &entry.UserID, &entry.Username,
			&entry.EventID, &entry.EventTitle, &entry.EventTime,
			&entry.SlotID, &entry.SlotName, &action); err != nil {
			return nil, err
		}
		entry.Action = Action(action)
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			entry.Stamp = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
