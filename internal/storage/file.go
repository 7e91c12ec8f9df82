package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pfrederiksen/city-events/internal/event"
)

// FileStore keeps one JSON snapshot per city in a data directory
type FileStore struct {
	mu      sync.Mutex
	dataDir string
}

// NewFileStore creates a file store, creating dataDir when needed
func NewFileStore(dataDir string) (*FileStore, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// snapshotPath returns the snapshot file of a city
func (s *FileStore) snapshotPath(city string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(city), "-"), "-")
	if slug == "" {
		slug = "unknown"
	}
	return filepath.Join(s.dataDir, fmt.Sprintf("snapshot_%s.json", slug))
}

// LoadSnapshot loads the snapshot of a city. A missing file is an empty snapshot.
func (s *FileStore) LoadSnapshot(city string) (*event.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPath(s.snapshotPath(city))
}

func (s *FileStore) loadPath(path string) (*event.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return event.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot event.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", filepath.Base(path), err)
	}
	if snapshot.Events == nil {
		snapshot.Events = make(map[string]*event.Event)
	}
	if snapshot.StableIndex == nil {
		snapshot.StableIndex = make(map[string]string)
	}
	return &snapshot, nil
}

func (s *FileStore) savePath(path string, snapshot *event.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Upsert merges events into their city snapshots
func (s *FileStore) Upsert(_ context.Context, events []*event.Event) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCity := make(map[string][]*event.Event)
	var order []string
	for _, e := range events {
		path := s.snapshotPath(e.City)
		if _, ok := byCity[path]; !ok {
			order = append(order, path)
		}
		byCity[path] = append(byCity[path], e)
	}

	var result UpsertResult
	for _, path := range order {
		snapshot, err := s.loadPath(path)
		if err != nil {
			return result, err
		}
		for _, e := range byCity[path] {
			stored := e.Clone()
			if prev, ok := snapshot.Events[e.ID]; ok {
				stored.FirstSeen = prev.FirstSeen
				result.Updated++
			} else {
				result.Inserted++
			}
			snapshot.Events[e.ID] = stored
			if stored.StableKey != "" {
				snapshot.StableIndex[stored.StableKey] = stored.ID
			}
		}
		snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := s.savePath(path, snapshot); err != nil {
			return result, err
		}
	}
	return result, nil
}

// all loads the events of every city snapshot, or of one city when set
func (s *FileStore) all(city string) ([]*event.Event, error) {
	paths := []string{s.snapshotPath(city)}
	if city == "" {
		var err error
		paths, err = filepath.Glob(filepath.Join(s.dataDir, "snapshot_*.json"))
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
	}

	var events []*event.Event
	for _, path := range paths {
		snapshot, err := s.loadPath(path)
		if err != nil {
			return nil, err
		}
		for _, e := range snapshot.Events {
			events = append(events, e)
		}
	}
	return events, nil
}

// Get finds an event by id across all city snapshots
func (s *FileStore) Get(_ context.Context, id string) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.all("")
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Find filters the snapshots in memory
func (s *FileStore) Find(_ context.Context, q Query) ([]*event.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.all(q.City)
	if err != nil {
		return nil, 0, err
	}
	page, total := q.apply(events)
	return page, total, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close(context.Context) error {
	return nil
}
