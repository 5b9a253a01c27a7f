package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"draw-relay/internal/models"
)

// ErrNotFound is returned when an approval action targets an id that has
// no durable record.
var ErrNotFound = errors.New("submission not found")

// Store persists one JSON file per submission under a data directory and
// keeps an in-memory cache for fast reads. The directory is the canonical
// state; the cache only ever holds records that were durably written.
type Store struct {
	dir string

	mu    sync.Mutex
	cache []*models.Submission

	now func() time.Time
}

// Open creates the data directory if needed and loads every record that
// parses. A record that fails to parse is skipped with a warning; partial
// corruption must never abort startup.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{dir: dir, now: time.Now}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: skipping unreadable record %s: %v", entry.Name(), err)
			continue
		}
		var sub models.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			log.Printf("Warning: skipping malformed record %s: %v", entry.Name(), err)
			continue
		}
		s.cache = append(s.cache, &sub)
	}

	log.Printf("Loaded %d submissions from %s", len(s.cache), dir)
	return s, nil
}

func (s *Store) path(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
}

// Create allocates an id from the current instant, writes the record to
// disk, and only then makes it visible in the cache. A same-millisecond id
// collision bumps the candidate forward; an existing record is never
// overwritten. On write failure nothing is cached.
func (s *Store) Create(strokes []models.Stroke) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	id := createdAt.UnixMilli()
	for {
		if _, err := os.Stat(s.path(id)); err != nil {
			// Not just ENOENT: any other stat failure means the bump
			// cannot make progress, so stop and let the write surface it.
			break
		}
		id++
	}

	sub := &models.Submission{
		ID:        id,
		CreatedAt: createdAt,
		Strokes:   strokes,
		Approved:  models.ApprovalUnset,
	}

	if err := s.write(sub); err != nil {
		return nil, fmt.Errorf("failed to save submission %d: %w", id, err)
	}

	s.cache = append(s.cache, sub)
	return sub, nil
}

// SetApproval re-reads the durable record for id, applies the approval
// value, and writes it back. The cache is only updated after the write
// succeeds. Reading from disk rather than cache means a racing DeleteAll
// can lose: its file removal may be followed by this write recreating the
// record. That is accepted best-effort behavior, not a transaction.
func (s *Store) SetApproval(id int64, value models.Approval) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read submission %d: %w", id, err)
	}

	var sub models.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse submission %d: %w", id, err)
	}

	sub.Approved = value
	if err := s.write(&sub); err != nil {
		return nil, fmt.Errorf("failed to save submission %d: %w", id, err)
	}

	for i, cached := range s.cache {
		if cached.ID == id {
			s.cache[i] = &sub
			return &sub, nil
		}
	}
	// On disk but not cached: the record predates this process or raced a
	// DeleteAll. Surface it again either way.
	s.cache = append(s.cache, &sub)
	return &sub, nil
}

// DeleteAll removes every record file best-effort. A single failed
// deletion is logged, not fatal to the batch. The cache is cleared
// unconditionally afterward: degraded-but-empty beats silently retaining
// entries that no longer match disk.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("Warning: failed to enumerate %s during deleteAll: %v", s.dir, err)
	}

	failed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			log.Printf("Warning: failed to delete %s: %v", entry.Name(), err)
			failed++
		}
	}
	if failed > 0 {
		log.Printf("Warning: deleteAll left %d records behind", failed)
	}

	s.cache = nil
}

// Snapshot returns the current cache contents. The slice header is copied
// under the lock so a concurrent Create or SetApproval cannot touch the
// returned slice; the records themselves are shared and must be treated as
// read-only (mutation always installs a fresh record, never edits one in
// place).
func (s *Store) Snapshot() []*models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Submission, len(s.cache))
	copy(out, s.cache)
	return out
}

func (s *Store) write(sub *models.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sub.ID), data, 0o644)
}
