package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/summitroofing/beacon/internal/domain"
)

type FunnelRepo struct {
	pool *pgxpool.Pool
}

func NewFunnelRepo(pool *pgxpool.Pool) *FunnelRepo {
	return &FunnelRepo{pool: pool}
}

// UpsertStep records funnel progress. (session_id, funnel_name, step_order)
// is the unique key; re-submission overwrites (last-write-wins), so retried
// beacon batches stay idempotent.
func (r *FunnelRepo) UpsertStep(ctx context.Context, step *domain.FunnelStep) error {
	meta, err := json.Marshal(step.Metadata)
	if err != nil {
		return fmt.Errorf("funnelRepo.UpsertStep: marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO funnel_steps (session_id, funnel_name, step_name, step_order, entered_at,
		                           exited_at, duration_ms, dropoff_reason, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, funnel_name, step_order) DO UPDATE SET
		   step_name = EXCLUDED.step_name,
		   entered_at = EXCLUDED.entered_at,
		   exited_at = EXCLUDED.exited_at,
		   duration_ms = EXCLUDED.duration_ms,
		   dropoff_reason = EXCLUDED.dropoff_reason,
		   metadata = EXCLUDED.metadata`,
		step.SessionID, step.FunnelName, step.StepName, step.StepOrder, step.EnteredAt,
		step.ExitedAt, step.DurationMS, step.DropoffReason, meta,
	)
	if err != nil {
		return fmt.Errorf("funnelRepo.UpsertStep: %w", err)
	}

	return nil
}

func (r *FunnelRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.FunnelStep, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, funnel_name, step_name, step_order, entered_at,
		        exited_at, duration_ms, COALESCE(dropoff_reason, ''), metadata
		 FROM funnel_steps
		 WHERE session_id = $1
		 ORDER BY funnel_name, step_order`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("funnelRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var steps []*domain.FunnelStep
	for rows.Next() {
		var (
			s    domain.FunnelStep
			meta []byte
		)

		err = rows.Scan(
			&s.SessionID, &s.FunnelName, &s.StepName, &s.StepOrder, &s.EnteredAt,
			&s.ExitedAt, &s.DurationMS, &s.DropoffReason, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("funnelRepo.ListBySession: scan: %w", err)
		}

		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &s.Metadata)
		}
		steps = append(steps, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("funnelRepo.ListBySession: rows: %w", err)
	}

	return steps, nil
}

func (r *FunnelRepo) Overview(ctx context.Context, funnelName string) ([]*domain.FunnelStepCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT step_name, step_order, COUNT(DISTINCT session_id)
		 FROM funnel_steps
		 WHERE funnel_name = $1
		 GROUP BY step_name, step_order
		 ORDER BY step_order`,
		funnelName,
	)
	if err != nil {
		return nil, fmt.Errorf("funnelRepo.Overview: %w", err)
	}
	defer rows.Close()

	var counts []*domain.FunnelStepCount
	for rows.Next() {
		var c domain.FunnelStepCount

		if err = rows.Scan(&c.StepName, &c.StepOrder, &c.Sessions); err != nil {
			return nil, fmt.Errorf("funnelRepo.Overview: scan: %w", err)
		}
		counts = append(counts, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("funnelRepo.Overview: rows: %w", err)
	}

	return counts, nil
}
