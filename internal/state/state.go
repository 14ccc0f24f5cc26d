// Package state persists the record of the most recent backup per source
// directory. The watch orchestrator reconciles against it at startup and the
// restore picker lists it.
package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/pkg/fileutil"
)

const fileVersion = 1

// Record describes one completed backup.
type Record struct {
	SourcePath    string    `json:"source_path"`
	RemotePath    string    `json:"remote_path"`
	Storage       string    `json:"storage"`
	CreatedAt     time.Time `json:"created_at"`
	OriginalBytes int64     `json:"original_bytes"`
	StoredBytes   int64     `json:"stored_bytes"`
	FileCount     int       `json:"file_count"`
	Encrypted     bool      `json:"encrypted"`
}

type envelope struct {
	Version int               `json:"version"`
	Entries map[string]Record `json:"entries"`
}

// Store keeps per-path records in a JSON file, one writer at a time.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Record
}

// Load opens the store at path. A missing file yields an empty store. An
// unreadable or corrupt file also yields an empty store with a warning: the
// state file is a cache of what already succeeded, losing it must never block
// a new backup.
func Load(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, entries: map[string]Record{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		unreadable := errors.Mark(err, errors.ErrStateCorrupt)
		logger.Warn("state file is unreadable, starting empty", "path", path, "error", unreadable)
		return s, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		corrupt := errors.Mark(err, errors.ErrStateCorrupt)
		logger.Warn("state file is corrupt, starting empty", "path", path, "error", corrupt)
		return s, nil
	}
	if env.Version > fileVersion {
		logger.Warn("state file was written by a newer version, starting empty",
			"path", path, "version", env.Version)
		return s, nil
	}
	if env.Entries != nil {
		s.entries = env.Entries
	}
	return s, nil
}

// Record stores rec under its source path and persists the whole file
// atomically.
func (s *Store) Record(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[rec.SourcePath] = rec
	if err := s.flushLocked(); err != nil {
		return err
	}
	return nil
}

// Get returns the record for sourcePath.
func (s *Store) Get(sourcePath string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[sourcePath]
	return rec, ok
}

// All returns every record ordered by source path.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Record, 0, len(s.entries))
	for _, rec := range s.entries {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SourcePath < records[j].SourcePath
	})
	return records
}

// Forget removes the record for sourcePath, if any.
func (s *Store) Forget(sourcePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[sourcePath]; !ok {
		return nil
	}
	delete(s.entries, sourcePath)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	env := envelope{Version: fileVersion, Entries: s.entries}
	if err := fileutil.AtomicWriteJSON(s.path, env); err != nil {
		return errors.Wrapf(err, "persisting state to %s", s.path)
	}
	return nil
}
