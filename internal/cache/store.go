// Package cache keeps a local JSON snapshot of the reading list so commands
// can map URLs to item ids without listing everything again.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pocketkit/internal/pocket"
)

// DefaultFile is the snapshot file name inside the cache directory.
const DefaultFile = "reading_list.json"

// snapshot is the on-disk layout. Entries use Pocket's wire encoding.
type snapshot struct {
	UpdatedAt time.Time          `json:"updated_at"`
	Since     int64              `json:"since,omitempty"`
	List      pocket.ReadingList `json:"list"`
}

type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore returns a Store for the snapshot file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty list.
func (s *Store) Load() (pocket.ReadingList, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}
	return snap.List, nil
}

// Since returns the sync cursor saved with the snapshot, or zero when the
// snapshot has none.
func (s *Store) Since() (int64, error) {
	snap, err := s.read()
	if err != nil {
		return 0, err
	}
	return snap.Since, nil
}

// UpdatedAt returns when the snapshot was last written, or zero time if
// there is none.
func (s *Store) UpdatedAt() (time.Time, error) {
	snap, err := s.read()
	if err != nil {
		return time.Time{}, err
	}
	return snap.UpdatedAt, nil
}

func (s *Store) read() (snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return snapshot{List: pocket.ReadingList{}}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("read cache file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("decode cache: %w", err)
	}
	if snap.List == nil {
		snap.List = pocket.ReadingList{}
	}
	return snap, nil
}

// Save replaces the snapshot with list and the sync cursor since. The file
// is written next to its destination and renamed into place so readers never
// see a partial file.
func (s *Store) Save(list pocket.ReadingList, since int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	if list == nil {
		list = pocket.ReadingList{}
	}
	data, err := json.Marshal(snapshot{UpdatedAt: time.Now().UTC(), Since: since, List: list})
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
