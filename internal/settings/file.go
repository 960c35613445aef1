// Package settings persists the non-secret configuration surface: user
// preferences and the time of the last full sync.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Preferences are the user facing switches.
type Preferences struct {
	OpenExternally bool `yaml:"open_externally" json:"open_externally"`
	UseReaderView  bool `yaml:"use_reader_view" json:"use_reader_view"`
	DefaultUnread  bool `yaml:"default_unread" json:"default_unread"`
	DefaultPrivate bool `yaml:"default_private" json:"default_private"`
}

type document struct {
	Preferences `yaml:",inline"`
	LastSync    time.Time `yaml:"last_sync"`
}

// Epoch is the "never synced" value of the last full sync time.
var Epoch = time.Unix(0, 0).UTC()

// File is a YAML backed settings document. Every setter writes the whole
// document through a temp file and rename.
type File struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open loads path, or starts from defaults when it does not exist yet.
func Open(path string) (*File, error) {
	f := &File{
		path: path,
		doc:  document{LastSync: Epoch},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &f.doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings yaml: %w", err)
	}
	if f.doc.LastSync.IsZero() {
		f.doc.LastSync = Epoch
	}
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Preferences() Preferences {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.doc.Preferences
}

func (f *File) SetPreferences(p Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc.Preferences
	f.doc.Preferences = p
	if err := f.save(); err != nil {
		f.doc.Preferences = prev
		return err
	}
	return nil
}

func (f *File) LastFullSync() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.doc.LastSync
}

func (f *File) SetLastFullSync(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc.LastSync
	f.doc.LastSync = t.UTC()
	if err := f.save(); err != nil {
		f.doc.LastSync = prev
		return err
	}
	return nil
}

// save must be called with mu held.
func (f *File) save() error {
	data, err := yaml.Marshal(&f.doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
