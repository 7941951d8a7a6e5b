package domain

import (
	"context"
	"time"
)

// DeviceType classifies the visitor's device from its user-agent string.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
	DeviceMobile  DeviceType = "mobile"
)

// Session represents one visitor's continuous browsing interval. The ID is an
// opaque string generated client-side and persisted in per-tab storage, so it
// is stable across every event and log entry emitted in that tab.
type Session struct {
	ID               string
	LandingPage      string
	Referrer         string
	UserAgent        string
	DeviceType       DeviceType
	ScreenResolution string
	Language         string
	CountryCode      string
	CreatedAt        time.Time
	ExitPage         string
	ExitReason       string
	DurationSeconds  int64
	PageCount        int
}

// SessionRepository persists visitor sessions. Upsert is keyed on the session
// ID with last-write-wins semantics so repeated flushes from the same tab are
// idempotent.
type SessionRepository interface {
	Upsert(ctx context.Context, s *Session) error
	// RecordExit updates the exit fields set by a session_end event.
	RecordExit(ctx context.Context, sessionID, exitPage, exitReason string, duration time.Duration, pageCount int) error
	GetByID(ctx context.Context, id string) (*Session, error)
	ListRecent(ctx context.Context, limit, offset int) ([]*Session, error)
}
