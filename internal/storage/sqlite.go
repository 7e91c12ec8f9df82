package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/city-events/internal/event"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteStore stores events in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteTime(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

// Upsert writes events in one transaction
func (s *SQLiteStore) Upsert(ctx context.Context, events []*event.Event) (UpsertResult, error) {
	var result UpsertResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(question))
	if err != nil {
		return result, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", e.ID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result.Inserted++
		case err != nil:
			return UpsertResult{}, fmt.Errorf("checking %s: %w", e.ID, err)
		default:
			result.Updated++
		}

		if _, err := stmt.ExecContext(ctx, recordArgs(toRecord(e), sqliteTime)...); err != nil {
			return UpsertResult{}, fmt.Errorf("upserting %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// Get returns one event by id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*event.Event, error) {
	q := fmt.Sprintf("SELECT %s FROM events WHERE id = ?", columnList())
	e, err := scanSQLite(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Find returns a page of matching events and the total count
func (s *SQLiteStore) Find(ctx context.Context, q Query) ([]*event.Event, int, error) {
	countQuery, pageQuery, args := findSQL(q, question)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []*event.Event{}
	for rows.Next() {
		e, err := scanSQLite(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading events: %w", err)
	}
	return events, total, nil
}

// Close closes the database
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*event.Event, error) {
	var r record
	var lat, lng sql.NullFloat64
	var firstSeen, lastSeen string
	err := row.Scan(
		&r.ID, &r.StableKey, &r.Title, &r.Day, &r.TimeOfDay,
		&r.VenueName, &r.VenueAddress, &r.VenueLocation, &r.VenueCity, &lat, &lng,
		&r.City, &r.Category, &r.Source, &r.URL, &r.ImageURL, &firstSeen, &lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	if lat.Valid && lng.Valid {
		r.Lat, r.Lng = &lat.Float64, &lng.Float64
	}
	if r.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if r.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return r.toEvent()
}
