// Package seed persists the flicker generator seed across soft resets.
// The default store lives on tmpfs, so the seed survives a daemon restart
// but not a reboot.
package seed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is on /run, which is cleared on power cycle.
const DefaultPath = "/run/candle/seed"

const size = 8

// Store loads and saves the persisted seed.
type Store interface {
	// Load returns the stored seed. ok is false if nothing valid is stored.
	Load() (seed uint64, ok bool, err error)

	// Save replaces the stored seed.
	Save(seed uint64) error
}

// Boot returns the seed for this boot and stores its successor so the
// next reset does not replay the same flicker sequence. A missing or
// unreadable seed is replaced with a fresh random one. The returned seed
// is usable even when err is non-nil.
func Boot(s Store) (uint64, error) {
	seed, ok, err := s.Load()
	if err != nil || !ok {
		seed = rand.Uint64()
	}
	if serr := s.Save(Next(seed)); serr != nil {
		return seed, errors.Join(err, fmt.Errorf("save seed: %w", serr))
	}
	if err != nil {
		return seed, fmt.Errorf("load seed: %w", err)
	}
	return seed, nil
}

// Next is one splitmix64 step.
func Next(seed uint64) uint64 {
	z := seed + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// FileStore keeps the seed as 8 little-endian bytes in a file.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the seed file. A missing or short file is not an error.
func (f *FileStore) Load() (uint64, bool, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if len(b) < size {
		return 0, false, nil
	}
	return binary.LittleEndian.Uint64(b), true, nil
}

// Save writes the seed file, creating its directory. The write goes to a
// temporary file first so a crash never leaves a torn seed.
func (f *FileStore) Save(seed uint64) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create seed dir: %w", err)
	}
	var b [size]byte
	binary.LittleEndian.PutUint64(b[:], seed)

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b[:], 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename seed: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu        sync.Mutex
	seed      uint64
	ok        bool
	LoadError error
	SaveError error
	Saves     int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the stored seed.
func (m *MemStore) Load() (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadError != nil {
		return 0, false, m.LoadError
	}
	return m.seed, m.ok, nil
}

// Save stores the seed.
func (m *MemStore) Save(seed uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.seed = seed
	m.ok = true
	m.Saves++
	return nil
}
