package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pfrederiksen/city-events/internal/event"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresStore stores events in PostgreSQL through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires a dsn")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func postgresTime(t time.Time) any {
	return t.UTC()
}

// Upsert writes events in one transaction
func (s *PostgresStore) Upsert(ctx context.Context, events []*event.Event) (UpsertResult, error) {
	var result UpsertResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := upsertSQL(dollar)
	for _, e := range events {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)", e.ID).Scan(&exists); err != nil {
			return UpsertResult{}, fmt.Errorf("checking %s: %w", e.ID, err)
		}
		if exists {
			result.Updated++
		} else {
			result.Inserted++
		}

		if _, err := tx.Exec(ctx, query, recordArgs(toRecord(e), postgresTime)...); err != nil {
			return UpsertResult{}, fmt.Errorf("upserting %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// Get returns one event by id
func (s *PostgresStore) Get(ctx context.Context, id string) (*event.Event, error) {
	q := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", columnList())
	e, err := scanPostgres(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Find returns a page of matching events and the total count
func (s *PostgresStore) Find(ctx context.Context, q Query) ([]*event.Event, int, error) {
	countQuery, pageQuery, args := findSQL(q, dollar)

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	rows, err := s.pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []*event.Event{}
	for rows.Next() {
		e, err := scanPostgres(rows)
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

// Close closes the pool
func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (*event.Event, error) {
	var r record
	err := row.Scan(
		&r.ID, &r.StableKey, &r.Title, &r.Day, &r.TimeOfDay,
		&r.VenueName, &r.VenueAddress, &r.VenueLocation, &r.VenueCity, &r.Lat, &r.Lng,
		&r.City, &r.Category, &r.Source, &r.URL, &r.ImageURL, &r.FirstSeen, &r.LastSeen,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	return r.toEvent()
}
