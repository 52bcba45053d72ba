// Package state owns the persisted rotation record: a single JSON file
// holding the roster and the two rotation pointers. All reads and writes
// go through Store, which serializes access and replaces the file
// atomically, keeping the previous valid copy as a backup.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the name of the rotation record inside the state directory.
const FileName = "rotation_state.json"

// Record is the persisted unit. Members order defines rotation order;
// Cursor is whose turn is next to be asked, Assignee is who currently
// holds the active assignment. Both are indexes into Members.
type Record struct {
	Cursor   int      `json:"current_index"`
	Assignee int      `json:"current_assignee_index"`
	Members  []string `json:"team_members"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	clone := r
	clone.Members = append([]string(nil), r.Members...)
	return clone
}

// NextIndex returns the index that follows Cursor in rotation order, or 0
// when the roster is empty.
func (r Record) NextIndex() int {
	if len(r.Members) == 0 {
		return 0
	}
	return (r.Cursor + 1) % len(r.Members)
}

// rawRecord tolerates historical files where the index fields were written
// as non-numeric values. Index coercion happens in loadLocked.
type rawRecord struct {
	Cursor   json.RawMessage `json:"current_index"`
	Assignee json.RawMessage `json:"current_assignee_index"`
	Members  []string        `json:"team_members"`
}

// Store provides serialized, crash-safe access to the rotation record.
// The zero value is not usable; construct with New.
type Store struct {
	path   string
	backup string
	seed   []string
	logger *slog.Logger

	mu sync.Mutex

	// rename performs the atomic replace step. Overridable in tests to
	// simulate replace failures.
	rename func(oldpath, newpath string) error
}

// New returns a store backed by dir/rotation_state.json. The seed roster is
// used when no record exists yet or the persisted roster is absent.
func New(dir string, seed []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(dir, FileName)
	return &Store{
		path:   path,
		backup: path + ".bak",
		seed:   Normalize(seed),
		logger: logger,
		rename: os.Rename,
	}
}

// Path returns the location of the rotation record file.
func (s *Store) Path() string { return s.path }

// BackupPath returns the location of the rollback copy.
func (s *Store) BackupPath() string { return s.backup }

// Load returns the current record. It never fails: a missing, corrupt, or
// out-of-bounds record is reduced to a safe default and the correction is
// persisted so subsequent loads observe the same state.
func (s *Store) Load() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, dirty := s.loadLocked()
	if dirty {
		if err := s.writeLocked(rec); err != nil {
			s.logger.Warn("failed to persist corrected rotation state", "path", s.path, "error", err)
		}
	}
	return rec
}

// Mutate applies fn to the current record under the store lock and persists
// the result. fn must leave the record unmodified when it returns an error;
// in that case nothing is written and the loaded record is returned
// alongside the error. The read-modify-write is the only critical section
// in the process and must never enclose network calls.
func (s *Store) Mutate(fn func(*Record) error) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _ := s.loadLocked()
	if err := fn(&rec); err != nil {
		return rec, err
	}
	if err := s.writeLocked(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// loadLocked reads and sanitizes the record. The boolean reports whether a
// correction was made that should be persisted.
func (s *Store) loadLocked() (Record, bool) {
	fallback := Record{Members: append([]string(nil), s.seed...)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("unreadable rotation state, using defaults", "path", s.path, "error", err)
		}
		// Seed the record on first use so restarts observe the roster.
		return fallback, len(fallback.Members) > 0
	}

	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("corrupt rotation state, resetting to defaults", "path", s.path, "error", err)
		return fallback, true
	}

	rec := Record{Members: Normalize(raw.Members)}
	dirty := len(rec.Members) != len(raw.Members)
	if raw.Members == nil {
		rec.Members = append([]string(nil), s.seed...)
		dirty = len(rec.Members) > 0
	}

	cursor, ok := coerceIndex(raw.Cursor)
	if !ok {
		s.logger.Warn("non-numeric current_index in rotation state, clamping to 0", "path", s.path)
		cursor = 0
		dirty = true
	}
	if cursor < 0 || cursor >= len(rec.Members) {
		if len(rec.Members) > 0 && cursor != 0 {
			s.logger.Warn("out-of-range current_index in rotation state, clamping to 0", "path", s.path, "current_index", cursor)
			dirty = true
		}
		cursor = 0
	}
	rec.Cursor = cursor

	assignee, ok := coerceIndex(raw.Assignee)
	if !ok || assignee < 0 || assignee >= len(rec.Members) {
		if raw.Assignee != nil {
			dirty = true
		}
		assignee = cursor
	}
	rec.Assignee = assignee

	return rec, dirty
}

// writeLocked replaces the record file atomically. The previous valid copy
// is preserved at the backup path first; if the atomic rename fails, the
// backup is copied back so the visible file never reflects a partial write.
func (s *Store) writeLocked(rec Record) error {
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rotation state: %w", err)
	}
	payload = append(payload, '\n')

	prev, readErr := os.ReadFile(s.path)
	hadPrev := readErr == nil
	if hadPrev {
		if err := os.WriteFile(s.backup, prev, 0o600); err != nil {
			return fmt.Errorf("stage rotation state backup: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage rotation state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage rotation state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync rotation state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close staged rotation state: %w", err)
	}

	if err := s.rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		if hadPrev {
			if rerr := os.WriteFile(s.path, prev, 0o600); rerr != nil {
				return errors.Join(
					fmt.Errorf("replace rotation state: %w", err),
					fmt.Errorf("restore rotation state backup: %w", rerr),
				)
			}
		}
		return fmt.Errorf("replace rotation state: %w", err)
	}
	return nil
}

// coerceIndex decodes a JSON value as an integer index. It reports false
// for absent or non-numeric values.
func coerceIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return 0, false
	}
	return idx, true
}
