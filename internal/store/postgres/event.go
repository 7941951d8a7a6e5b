package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summitroofing/beacon/internal/domain"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// InsertBatch bulk-inserts one sub-batch of events in a single round trip.
func (r *EventRepo) InsertBatch(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		data, err := json.Marshal(e.EventData)
		if err != nil {
			return fmt.Errorf("eventRepo.InsertBatch: marshal event data: %w", err)
		}

		var coords []byte
		if e.Coordinates != nil {
			coords, err = json.Marshal(e.Coordinates)
			if err != nil {
				return fmt.Errorf("eventRepo.InsertBatch: marshal coordinates: %w", err)
			}
		}

		batch.Queue(
			`INSERT INTO behavior_events (id, session_id, event_type, element_path, element_type, element_text,
			                              coordinates, viewport_width, viewport_height, event_data,
			                              timestamp_ms, page_url, component_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.ID, e.SessionID, e.EventType, e.ElementPath, e.ElementType, e.ElementText,
			coords, e.ViewportSize.Width, e.ViewportSize.Height, data,
			e.Timestamp, e.PageURL, e.ComponentID, e.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("eventRepo.InsertBatch: %w", err)
		}
	}

	return nil
}

func (r *EventRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event_type, COALESCE(element_path, ''), COALESCE(element_type, ''),
		        COALESCE(element_text, ''), coordinates, viewport_width, viewport_height, event_data,
		        timestamp_ms, page_url, COALESCE(component_id, ''), created_at
		 FROM behavior_events
		 WHERE session_id = $1
		 ORDER BY timestamp_ms ASC
		 LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			e      domain.Event
			coords []byte
			data   []byte
		)

		err = rows.Scan(
			&e.ID, &e.SessionID, &e.EventType, &e.ElementPath, &e.ElementType,
			&e.ElementText, &coords, &e.ViewportSize.Width, &e.ViewportSize.Height, &data,
			&e.Timestamp, &e.PageURL, &e.ComponentID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("eventRepo.ListBySession: scan: %w", err)
		}

		if len(coords) > 0 {
			var c domain.Coordinates
			if err = json.Unmarshal(coords, &c); err == nil {
				e.Coordinates = &c
			}
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &e.EventData)
		}

		events = append(events, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("eventRepo.ListBySession: rows: %w", err)
	}

	return events, nil
}

func (r *EventRepo) CountByType(ctx context.Context, sessionID string) (map[domain.EventType]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_type, COUNT(*) FROM behavior_events WHERE session_id = $1 GROUP BY event_type`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.CountByType: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int64)
	for rows.Next() {
		var (
			et domain.EventType
			n  int64
		)
		if err = rows.Scan(&et, &n); err != nil {
			return nil, fmt.Errorf("eventRepo.CountByType: scan: %w", err)
		}
		counts[et] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("eventRepo.CountByType: rows: %w", err)
	}

	return counts, nil
}
