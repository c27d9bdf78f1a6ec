package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"postcast/internal/logging"
)

// document is the on-disk shape of the state file: a single JSON object
// holding the last channel scan time and one record per processed video.
type document struct {
	LastCheck       *time.Time        `json:"last_check"`
	ProcessedVideos map[string]Record `json:"processed_videos"`
}

// Stats summarizes the store for status displays.
type Stats struct {
	Total       int
	Completed   int
	Failed      int
	SuccessRate float64
}

// Option adjusts store construction.
type Option func(*Store)

// WithClock overrides the time source used for processed_at and last_check
// stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store provides thread-safe access to the processing state file. A file lock
// next to the state file keeps concurrent postcast processes from clobbering
// each other's writes; the lock is held from Open until Close.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	lock   *flock.Flock
	mu     sync.RWMutex
	doc    document
}

// Open loads the state file at path, creating parent directories as needed.
// A missing file starts an empty store; an unreadable one is logged and
// treated as empty rather than aborting the run.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state file path cannot be empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "state"),
		now:    time.Now,
		lock:   flock.New(path + ".lock"),
		doc:    document{ProcessedVideos: make(map[string]Record)},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("state file %s is in use by another postcast process", path)
	}

	if err := s.load(); err != nil {
		s.logger.Warn("failed to load state file",
			logging.String(logging.FieldEventType, "state_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "store starts empty; move the file aside to keep it for inspection"),
			logging.String(logging.FieldImpact, "processing history is not visible and videos may be reprocessed"))
		s.doc = document{ProcessedVideos: make(map[string]Record)}
	}

	return s, nil
}

// Close releases the state file lock.
func (s *Store) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release state lock: %w", err)
	}
	return nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// IsProcessed reports whether videoID has a record with every step completed.
// Failed or unknown videos return false so the pipeline picks them up again.
func (s *Store) IsProcessed(videoID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.doc.ProcessedVideos[videoID]
	return ok && rec.Completed()
}

// MarkProcessed records the outcome of a processing run, replacing any
// previous record for the video. Status derives from the step flags; the
// error text is kept only for failed runs.
func (s *Store) MarkProcessed(videoID string, steps Steps, title, errText string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return errors.New("video ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusFor(steps)
	if status == StatusCompleted {
		errText = ""
	}
	rec := Record{
		Title:       strings.TrimSpace(title),
		ProcessedAt: s.now().UTC(),
		Status:      status,
		Steps:       steps,
		Error:       strings.TrimSpace(errText),
	}
	s.doc.ProcessedVideos[videoID] = rec

	if err := s.save(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	s.logger.Debug("recorded video outcome",
		logging.String(logging.FieldVideoID, videoID),
		logging.String(logging.FieldState, string(status)),
		logging.String("title", rec.Title))
	return nil
}

// VideoState returns the stored record for videoID if present.
func (s *Store) VideoState(videoID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.doc.ProcessedVideos[videoID]
	return rec, ok
}

// FailedVideos returns the IDs of all failed records, sorted for stable
// output.
func (s *Store) FailedVideos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, rec := range s.doc.ProcessedVideos {
		if rec.Status == StatusFailed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RetryFailed removes every failed record so the next run reprocesses those
// videos from scratch, and returns the removed IDs. Completed records are
// untouched; with no failed records the store is left as is.
func (s *Store) RetryFailed() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.doc.ProcessedVideos {
		if rec.Status == StatusFailed {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	for _, id := range ids {
		delete(s.doc.ProcessedVideos, id)
	}

	if err := s.save(); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	s.logger.Info("cleared failed records for retry",
		logging.Int("removed", len(ids)))
	return ids, nil
}

// UpdateLastCheck stamps the store with the current time, marking a completed
// channel scan.
func (s *Store) UpdateLastCheck() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.doc.LastCheck = &now

	if err := s.save(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// LastCheck returns the time of the most recent channel scan, if any.
func (s *Store) LastCheck() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc.LastCheck == nil {
		return time.Time{}, false
	}
	return *s.doc.LastCheck, true
}

// Statistics returns record counts and the completed percentage.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.doc.ProcessedVideos)}
	for _, rec := range s.doc.ProcessedVideos {
		if rec.Completed() {
			stats.Completed++
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats
}

// CleanOldEntries removes records whose processed_at is strictly older than
// now minus the given number of days and returns how many were removed.
// Records exactly at the cutoff are retained.
func (s *Store) CleanOldEntries(days int) (int, error) {
	if days <= 0 {
		return 0, errors.New("days must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	var ids []string
	for id, rec := range s.doc.ProcessedVideos {
		if rec.ProcessedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	sort.Strings(ids)
	for _, id := range ids {
		delete(s.doc.ProcessedVideos, id)
	}

	if err := s.save(); err != nil {
		return 0, fmt.Errorf("persist state: %w", err)
	}

	s.logger.Info("removed old records",
		logging.Int("removed", len(ids)),
		logging.String("cutoff", cutoff.Format(time.RFC3339)))
	return len(ids), nil
}

// Entries returns all records newest first, ties broken by video ID.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.doc.ProcessedVideos))
	for id, rec := range s.doc.ProcessedVideos {
		entries = append(entries, Entry{VideoID: id, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.ProcessedAt.Equal(entries[j].Record.ProcessedAt) {
			return entries[i].VideoID < entries[j].VideoID
		}
		return entries[i].Record.ProcessedAt.After(entries[j].Record.ProcessedAt)
	})
	return entries
}

// load reads the state file into memory.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read state file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse state file: %w", err)
	}
	if doc.ProcessedVideos == nil {
		doc.ProcessedVideos = make(map[string]Record)
	}
	s.doc = doc

	s.logger.Debug("loaded state file",
		logging.Int("video_count", len(s.doc.ProcessedVideos)),
		logging.String("path", s.path))
	return nil
}

// save writes the state file atomically via a temp file. Output is indented
// so operators can read and hand-edit it.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
