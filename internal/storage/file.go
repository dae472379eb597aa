package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// fileStore keeps every namespace in one JSON document on disk. The document
// is read once on open and rewritten whole on each change.
type fileStore struct {
	path      string
	namespace string
	logger    zerolog.Logger

	mu   sync.Mutex
	data map[string]map[string]string
}

func NewFileStore(path, namespace string, logger zerolog.Logger) (Store, error) {
	if path == "" {
		return nil, errors.New("file storage path is empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	s := &fileStore{
		path:      path,
		namespace: namespace,
		logger:    logger,
		data:      make(map[string]map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read state file: %w", err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			// A damaged state file is discarded, the next write replaces it.
			logger.Warn().Err(err).Str("path", path).Msg("State file is corrupt, starting empty")
			s.data = make(map[string]map[string]string)
		}
	}

	return s, nil
}

func (s *fileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[s.namespace][key]
	return v, ok, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[s.namespace]
	if !ok {
		ns = make(map[string]string)
		s.data[s.namespace] = ns
	}
	ns[key] = value
	return s.flush()
}

func (s *fileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[s.namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	return s.flush()
}

func (s *fileStore) Close() error {
	return nil
}

func (s *fileStore) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("bytes", len(raw)).Msg("State file written")
	return nil
}
