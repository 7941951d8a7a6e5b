package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summitroofing/beacon/internal/domain"
)

type LogRepo struct {
	pool *pgxpool.Pool
}

func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

func (r *LogRepo) InsertBatch(ctx context.Context, entries []*domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("logRepo.InsertBatch: marshal metadata: %w", err)
		}

		batch.Queue(
			`INSERT INTO structured_logs (id, timestamp, level, category, message, error_stack,
			                              user_id, session_id, page_url, component_id, metadata,
			                              environment, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.ID, e.Timestamp, e.Level.String(), e.Category, e.Message, e.ErrorStack,
			e.UserID, e.SessionID, e.PageURL, e.ComponentID, meta,
			e.Environment, e.Version,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("logRepo.InsertBatch: %w", err)
		}
	}

	return nil
}

func (r *LogRepo) ListRecent(ctx context.Context, minLevel domain.LogLevel, limit, offset int) ([]*domain.LogEntry, error) {
	// Level names are stored as text; filter on the ordinal equivalents.
	names := make([]string, 0, 5)
	for lvl := minLevel; lvl <= domain.LevelFatal; lvl++ {
		names = append(names, lvl.String())
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, level, category, message, COALESCE(error_stack, ''),
		        COALESCE(user_id, ''), COALESCE(session_id, ''), COALESCE(page_url, ''),
		        COALESCE(component_id, ''), metadata, environment, version
		 FROM structured_logs
		 WHERE level = ANY($1)
		 ORDER BY timestamp DESC
		 LIMIT $2 OFFSET $3`,
		names, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("logRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var (
			e     domain.LogEntry
			level string
			meta  []byte
		)

		err = rows.Scan(
			&e.ID, &e.Timestamp, &level, &e.Category, &e.Message, &e.ErrorStack,
			&e.UserID, &e.SessionID, &e.PageURL, &e.ComponentID, &meta,
			&e.Environment, &e.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("logRepo.ListRecent: scan: %w", err)
		}

		e.Level = domain.ParseLogLevel(level)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("logRepo.ListRecent: rows: %w", err)
	}

	return entries, nil
}
