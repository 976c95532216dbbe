package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists entries as a single JSON document on disk, optionally
// sealed with AES-256-GCM. Writes go to a temp file that is renamed over the
// original so a crash never leaves a half-written session.
//
// An unreadable or undecryptable file is treated as empty; the next write
// replaces it.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer *Sealer
	now    func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSealer encrypts the file contents at rest.
func WithSealer(s *Sealer) FileOption {
	return func(fs *FileStore) { fs.sealer = s }
}

// WithFileClock replaces the time source. Intended for tests.
func WithFileClock(now func() time.Time) FileOption {
	return func(fs *FileStore) { fs.now = now }
}

func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session file: path is required")
	}
	fs := &FileStore{path: path, now: time.Now}
	for _, o := range opts {
		o(fs)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session file: create dir: %w", err)
	}
	return fs, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", false, err
	}
	e, ok := entries[key]
	if !ok {
		return "", false, nil
	}
	if e.Expired(s.now()) {
		delete(entries, key)
		if err := s.save(entries); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = newEntry(value, ttl, s.now())
	return s.save(entries)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

// load reads the file. Callers must hold s.mu.
func (s *FileStore) load() (map[string]Entry, error) {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session file: read: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if s.sealer != nil {
		data, err = s.sealer.Open(data)
		if err != nil {
			return entries, nil
		}
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return make(map[string]Entry), nil
	}
	return entries, nil
}

// save writes the file atomically. Callers must hold s.mu.
func (s *FileStore) save(entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("session file: encode: %w", err)
	}
	if s.sealer != nil {
		data, err = s.sealer.Seal(data)
		if err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session file: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session file: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session file: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session file: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("session file: rename: %w", err)
	}
	return nil
}
