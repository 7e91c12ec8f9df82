package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pfrederiksen/city-events/internal/config"
	"github.com/pfrederiksen/city-events/internal/event"
)

// ErrNotFound is returned by Get for unknown event ids
var ErrNotFound = errors.New("event not found")

// Store persists events keyed by their deterministic id. Writing the same
// event twice updates it in place.
type Store interface {
	// Upsert inserts new events and overwrites existing ones, keeping their FirstSeen
	Upsert(ctx context.Context, events []*event.Event) (UpsertResult, error)
	Get(ctx context.Context, id string) (*event.Event, error)
	// Find returns one page of matching events ordered by date then title,
	// and the total number of matches
	Find(ctx context.Context, q Query) ([]*event.Event, int, error)
	Close(ctx context.Context) error
}

// UpsertResult counts what an Upsert did
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Total returns the number of events written
func (r UpsertResult) Total() int {
	return r.Inserted + r.Updated
}

// Query selects stored events. Empty fields match everything.
type Query struct {
	City   string // case-insensitive exact match
	Source string
	Venue  string // case-insensitive substring of the venue name
	From   string // inclusive ISO day
	To     string // inclusive ISO day
	Limit  int    // 0 means no limit
	Offset int
}

// Open returns the store selected by cfg.Driver. dataDir is used by the file store.
func Open(ctx context.Context, cfg config.StorageConfig, dataDir string) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		return NewFileStore(dataDir)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "city-events.db"
		}
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, cfg.DSN)
	case "mongo", "mongodb":
		return OpenMongo(ctx, cfg.DSN, cfg.Database, cfg.Table)
	case "dynamodb":
		return OpenDynamo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
