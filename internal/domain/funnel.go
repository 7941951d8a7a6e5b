package domain

import (
	"context"
	"time"
)

// FunnelStep is a named, ordered checkpoint within a named conversion funnel,
// scoped to one session. (session_id, funnel_name, step_order) is unique;
// re-submission upserts with last-write-wins rather than duplicating.
type FunnelStep struct {
	SessionID     string
	FunnelName    string
	StepName      string
	StepOrder     int
	EnteredAt     time.Time
	ExitedAt      *time.Time
	DurationMS    *int64
	DropoffReason string
	Metadata      map[string]any
}

// FunnelStepCount aggregates how many sessions reached a step of a funnel.
type FunnelStepCount struct {
	StepName  string
	StepOrder int
	Sessions  int64
}

// FunnelRepository persists funnel progress per session.
type FunnelRepository interface {
	UpsertStep(ctx context.Context, step *FunnelStep) error
	ListBySession(ctx context.Context, sessionID string) ([]*FunnelStep, error)
	// Overview returns per-step session counts for one funnel, ordered by step.
	Overview(ctx context.Context, funnelName string) ([]*FunnelStepCount, error)
}
