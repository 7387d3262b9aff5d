package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"muster/internal/event"
)

var fileNamePattern = regexp.MustCompile(`^events_(\d+)\.json$`)

// Store persists event records as one JSON file per guild inside a data
// directory. Files are read whole and rewritten whole; a backup copy of
// the previous contents is kept next to each file. Single process only,
// no cross-process locking
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create store directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(guildID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("events_%d.json", guildID))
}

func (s *Store) backupPath(guildID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("events_%d_backup.json", guildID))
}

// Load reads all events for one guild. A missing or empty file yields an
// empty mapping; a corrupt file is logged, rewritten to a valid empty
// state, and also yields an empty mapping. Never fails the caller for
// bad contents
func (s *Store) Load(guildID int64) (map[string]*event.Record, error) {
	data, err := os.ReadFile(s.path(guildID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]*event.Record{}, nil
		}
		return nil, fmt.Errorf("could not read events for guild %d: %w", guildID, err)
	}
	if len(data) == 0 {
		return map[string]*event.Record{}, nil
	}

	events := map[string]*event.Record{}
	if err := json.Unmarshal(data, &events); err != nil {
		log.Error().Msg(fmt.Sprintf("Events file for guild %d is corrupt, replacing with an empty one: %s", guildID, err))
		if repairErr := s.Save(guildID, map[string]*event.Record{}); repairErr != nil {
			log.Error().Msg(fmt.Sprintf("Could not repair events file for guild %d: %s", guildID, repairErr))
		}
		return map[string]*event.Record{}, nil
	}
	return events, nil
}

// Save rewrites the guild's file with the given mapping, copying the
// previous contents to the backup path first
func (s *Store) Save(guildID int64, events map[string]*event.Record) error {
	path := s.path(guildID)

	// Keep the previous contents around before overwriting
	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(s.backupPath(guildID), prev, 0o644); err != nil {
			log.Error().Msg(fmt.Sprintf("Could not write backup for guild %d: %s", guildID, err))
		}
	}

	data, err := json.MarshalIndent(events, "", "    ")
	if err != nil {
		return fmt.Errorf("could not encode events for guild %d: %w", guildID, err)
	}

	// Write through a temp file so a crash never leaves a half file behind
	tmp, err := os.CreateTemp(s.dir, ".events-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file for guild %d: %w", guildID, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write events for guild %d: %w", guildID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close temp file for guild %d: %w", guildID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("could not replace events file for guild %d: %w", guildID, err)
	}
	return nil
}

// Guilds enumerates the guild ids that have a backing file
func (s *Store) Guilds() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not list store directory %s: %w", s.dir, err)
	}
	var ids []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadAll merges every guild's events into one flat mapping keyed by
// event id. Ids are globally unique by construction
func (s *Store) LoadAll() (map[string]*event.Record, error) {
	guilds, err := s.Guilds()
	if err != nil {
		return nil, err
	}
	all := map[string]*event.Record{}
	for _, guildID := range guilds {
		events, err := s.Load(guildID)
		if err != nil {
			log.Error().Msg(fmt.Sprintf("Could not load events for guild %d: %s", guildID, err))
			continue
		}
		for id, record := range events {
			all[id] = record
		}
		log.Debug().Msg(fmt.Sprintf("Loaded %d events for guild %d", len(events), guildID))
	}
	return all, nil
}
