package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/harrisonrobin/kanba/pkg/model"
)

// ErrUnavailable reports that the board file could not be read or written.
var ErrUnavailable = errors.New("task store unavailable")

// Store owns the board file. It is the single source of truth for reads;
// every mutation rewrites the whole file.
type Store struct {
	Path string
}

// New returns a store bound to the board file at path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads every task from the board file. A missing file is an empty
// board; any other read or decode failure wraps ErrUnavailable.
func (s *Store) Load() ([]model.Task, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	var tasks []model.Task
	if err := json.NewDecoder(f).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, s.Path, err)
	}
	return tasks, nil
}

// Save persists the full task set. The document is marshaled before any
// file is touched and written to a temp file that replaces the board file
// in one rename, so a failure at any point leaves the previous state
// readable.
func (s *Store) Save(tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding tasks: %v", ErrUnavailable, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// WithLock runs fn while holding an exclusive lock on the board file, so
// concurrently invoked commands never interleave their read-modify-write
// sequences.
func (s *Store) WithLock(fn func() error) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	lock := flock.New(s.Path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: locking: %v", ErrUnavailable, err)
	}
	defer lock.Unlock()

	return fn()
}
