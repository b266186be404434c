package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a saved filter configuration.
type Profile struct {
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	IgnoreEmpty  bool     `yaml:"ignore_empty"`
	ForceInclude bool     `yaml:"force_include"`
}

// ProfileStore persists profiles as a YAML map of name to profile. Every
// read-modify-write holds an exclusive lock on a sibling .lock file.
type ProfileStore struct {
	path string
}

func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

func (s *ProfileStore) Path() string {
	return s.path
}

func (s *ProfileStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", s.path, err)
	}
	defer lock.Unlock()
	return fn()
}

// readAll loads the document; a missing file is an empty store.
func (s *ProfileStore) readAll() (map[string]Profile, error) {
	profiles := map[string]Profile{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profiles %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("error parsing profiles %s: %w", s.path, err)
	}
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return profiles, nil
}

func (s *ProfileStore) writeAll(profiles map[string]Profile) error {
	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("error encoding profiles: %w", err)
	}
	return atomicWrite(s.path, data)
}

// Save stores p under name, replacing any existing profile.
func (s *ProfileStore) Save(name string, p Profile) error {
	if name == "" {
		return errors.New("profile name must not be empty")
	}
	return s.withLock(func() error {
		profiles, err := s.readAll()
		if err != nil {
			return err
		}
		profiles[name] = p
		return s.writeAll(profiles)
	})
}

// Load returns the profile stored under name.
func (s *ProfileStore) Load(name string) (Profile, error) {
	var p Profile
	err := s.withLock(func() error {
		profiles, err := s.readAll()
		if err != nil {
			return err
		}
		found, ok := profiles[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		p = found
		return nil
	})
	return p, err
}

// Delete removes the named profile.
func (s *ProfileStore) Delete(name string) error {
	return s.withLock(func() error {
		profiles, err := s.readAll()
		if err != nil {
			return err
		}
		if _, ok := profiles[name]; !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		delete(profiles, name)
		return s.writeAll(profiles)
	})
}

// List returns the stored profile names in sorted order.
func (s *ProfileStore) List() ([]string, error) {
	var names []string
	err := s.withLock(func() error {
		profiles, err := s.readAll()
		if err != nil {
			return err
		}
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil
	})
	return names, err
}
