package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summitroofing/beacon/internal/domain"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Upsert inserts the session or, when the id already exists, refreshes the
// descriptive fields. Concurrent flushes for the same session resolve
// last-write-wins on the id conflict key.
func (r *SessionRepo) Upsert(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, landing_page, referrer, user_agent, device_type, screen_resolution,
		                       language, country_code, created_at, page_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   user_agent = EXCLUDED.user_agent,
		   device_type = EXCLUDED.device_type,
		   screen_resolution = EXCLUDED.screen_resolution,
		   language = EXCLUDED.language,
		   country_code = EXCLUDED.country_code`,
		s.ID, s.LandingPage, s.Referrer, s.UserAgent, s.DeviceType, s.ScreenResolution,
		s.Language, s.CountryCode, s.CreatedAt, s.PageCount,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Upsert: %w", err)
	}

	return nil
}

func (r *SessionRepo) RecordExit(ctx context.Context, sessionID, exitPage, exitReason string, duration time.Duration, pageCount int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET exit_page = $2, exit_reason = $3, duration_seconds = $4, page_count = $5
		 WHERE id = $1`,
		sessionID, exitPage, exitReason, int64(duration.Seconds()), pageCount,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.RecordExit: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session

	err := r.pool.QueryRow(ctx,
		`SELECT id, landing_page, referrer, user_agent, device_type, screen_resolution,
		        language, country_code, created_at,
		        COALESCE(exit_page, ''), COALESCE(exit_reason, ''),
		        COALESCE(duration_seconds, 0), page_count
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.LandingPage, &s.Referrer, &s.UserAgent, &s.DeviceType, &s.ScreenResolution,
		&s.Language, &s.CountryCode, &s.CreatedAt,
		&s.ExitPage, &s.ExitReason, &s.DurationSeconds, &s.PageCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}

	return &s, nil
}

func (r *SessionRepo) ListRecent(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, landing_page, referrer, user_agent, device_type, screen_resolution,
		        language, country_code, created_at,
		        COALESCE(exit_page, ''), COALESCE(exit_reason, ''),
		        COALESCE(duration_seconds, 0), page_count
		 FROM sessions
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var s domain.Session

		err = rows.Scan(
			&s.ID, &s.LandingPage, &s.Referrer, &s.UserAgent, &s.DeviceType, &s.ScreenResolution,
			&s.Language, &s.CountryCode, &s.CreatedAt,
			&s.ExitPage, &s.ExitReason, &s.DurationSeconds, &s.PageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("sessionRepo.ListRecent: scan: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sessionRepo.ListRecent: rows: %w", err)
	}

	return sessions, nil
}
