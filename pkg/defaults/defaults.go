package defaults

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 retrovault.io Pty Ltd
 */

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/imdario/mergo"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sisatech/toml"
)

// ErrInvalidOption is the OPT_INV_ARG code: an option key or value was
// rejected at the configuration boundary. The error message carries a
// hint listing the expected keys or values.
var ErrInvalidOption = errors.New("invalid option")

// Store is a layered key/value store for emulator settings. Every key
// carries a fallback value; user values shadow the fallbacks. All
// accesses are synchronized.
type Store struct {
	mu sync.Mutex

	values    map[string]string
	fallbacks map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		values:    map[string]string{},
		fallbacks: map[string]string{},
	}
}

// SetFallback registers the default value of a key.
func (s *Store) SetFallback(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks[key] = value
}

// Set stores a user value. Unknown keys are rejected with a hint
// listing the known ones.
func (s *Store) Set(key, value string) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.fallbacks[key]; !known {
		return fmt.Errorf("%w %q: expected one of %s", ErrInvalidOption, key, s.keyListLocked())
	}

	s.values[key] = value
	return nil
}

// GetRaw returns the effective value of a key, or the empty string.
func (s *Store) GetRaw(key string) string {

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	return s.fallbacks[key]
}

// GetInt returns the effective value of a key as an integer.
func (s *Store) GetInt(key string) (int64, error) {

	raw := s.GetRaw(key)
	v, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q for key %q: expected a number", ErrInvalidOption, raw, key)
	}
	return v, nil
}

// GetBool returns the effective value of a key as a boolean.
func (s *Store) GetBool(key string) bool {
	raw := strings.ToLower(s.GetRaw(key))
	return raw == "true" || raw == "yes" || raw == "1"
}

// Remove deletes the user value of a key, revealing the fallback.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// RemoveAll deletes all user values.
func (s *Store) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
}

// Keys returns all known keys, sorted.
func (s *Store) Keys() []string {

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.fallbacks))
	for k := range s.fallbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) keyListLocked() string {

	keys := make([]string, 0, len(s.fallbacks))
	for k := range s.fallbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// storeFile is the on-disk TOML shape of the store.
type storeFile struct {
	Values map[string]string `toml:"values"`
}

// Load reads user values from a TOML file and merges them over the
// current state; existing user values win.
func (s *Store) Load(path string) error {

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	file := new(storeFile)
	if err := toml.Unmarshal(data, file); err != nil {
		return fmt.Errorf("parsing defaults: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return mergo.Merge(&s.values, file.Values)
}

// Save writes the user values to a TOML file.
func (s *Store) Save(path string) error {

	s.mu.Lock()
	file := storeFile{Values: map[string]string{}}
	for k, v := range s.values {
		file.Values[k] = v
	}
	s.mu.Unlock()

	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(file); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, buf.Bytes(), 0644)
}

// DefaultPath returns the per-user location of the defaults file.
func DefaultPath() (string, error) {

	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".amiga", "defaults.toml"), nil
}
