// Package spool is an append-only JSON-lines file holding audit entries that
// could not be written to the database. Entries are replayed and compacted later.
package spool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Entry struct {
	ID        string     `json:"id"`
	Action    string     `json:"action"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	ModelID   *uuid.UUID `json:"model_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type Spool struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func Open(filePath string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &Spool{filePath: filePath, file: file}, nil
}

// Append writes one entry and fsyncs it.
func (s *Spool) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal spool entry: %w", err)
	}

	if _, err := s.file.Write(append(data, '\n')); err != nil {
		logger.Log.Error("Spool: write failed", zap.String("entry_id", entry.ID), zap.Error(err))
		return err
	}
	if err := s.file.Sync(); err != nil {
		logger.Log.Error("Spool: sync failed", zap.String("entry_id", entry.ID), zap.Error(err))
		return err
	}

	logger.Log.Debug("Spool: entry appended", zap.String("entry_id", entry.ID))
	return nil
}

// ReadAll returns every spooled entry in append order.
func (s *Spool) ReadAll() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readAllUnsafe()
}

// Remove drops the given entries by rewriting the file without them.
func (s *Spool) Remove(ids []string) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAllUnsafe()
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	remaining := make([]Entry, 0, len(all))
	for _, e := range all {
		if _, ok := drop[e.ID]; !ok {
			remaining = append(remaining, e)
		}
	}

	if err := s.file.Close(); err != nil {
		return err
	}

	tmp := s.filePath + ".tmp"
	if err := writeEntries(tmp, remaining); err != nil {
		// Reopen the original so later appends still work.
		s.file, _ = os.OpenFile(s.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
		return err
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		s.file, _ = os.OpenFile(s.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
		return err
	}

	// The old descriptor points at the replaced inode.
	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		logger.Log.Error("Spool: reopen after compaction failed", zap.String("path", s.filePath), zap.Error(err))
		return err
	}
	s.file = file

	logger.Log.Info("Spool: compacted",
		zap.Int("before_count", len(all)),
		zap.Int("removed_count", len(all)-len(remaining)),
		zap.Int("remaining_count", len(remaining)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *Spool) readAllUnsafe() ([]Entry, error) {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// A torn last line from a crash mid-write is skipped.
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func writeEntries(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}
