package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps sealed secrets in a YAML file readable only by its owner.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer *Sealer
}

func NewFileStore(path string, sealer *Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Save(_ context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = sealed
	return s.write(values)
}

func (s *FileStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	values, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}

	sealed, ok := values[key]
	if !ok {
		return "", false, nil
	}
	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}

// read must be called with mu held. A missing file is an empty store.
func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", s.path, err)
	}
	return values, nil
}

// write must be called with mu held.
func (s *FileStore) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	// CreateTemp already opens with 0600.
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
