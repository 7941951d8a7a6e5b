package v1_test

import (
	"context"
	"time"

	"github.com/summitroofing/beacon/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	sessions domain.SessionRepository
	events   domain.EventRepository
	funnels  domain.FunnelRepository
	logs     domain.LogRepository
}

func (m *mockDataStore) Sessions() domain.SessionRepository { return m.sessions }
func (m *mockDataStore) Events() domain.EventRepository     { return m.events }
func (m *mockDataStore) Funnels() domain.FunnelRepository   { return m.funnels }
func (m *mockDataStore) Logs() domain.LogRepository         { return m.logs }

// ---------------------------------------------------------------------------
// Mock SessionRepository
// ---------------------------------------------------------------------------

type mockSessionRepo struct {
	upsertFunc     func(ctx context.Context, s *domain.Session) error
	recordExitFunc func(ctx context.Context, sessionID, exitPage, exitReason string, duration time.Duration, pageCount int) error
	getByIDFunc    func(ctx context.Context, id string) (*domain.Session, error)
	listRecentFunc func(ctx context.Context, limit, offset int) ([]*domain.Session, error)
}

func (m *mockSessionRepo) Upsert(ctx context.Context, s *domain.Session) error {
	return m.upsertFunc(ctx, s)
}

func (m *mockSessionRepo) RecordExit(ctx context.Context, sessionID, exitPage, exitReason string, duration time.Duration, pageCount int) error {
	return m.recordExitFunc(ctx, sessionID, exitPage, exitReason, duration, pageCount)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockSessionRepo) ListRecent(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	return m.listRecentFunc(ctx, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock EventRepository
// ---------------------------------------------------------------------------

type mockEventRepo struct {
	insertBatchFunc   func(ctx context.Context, events []*domain.Event) error
	listBySessionFunc func(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Event, error)
	countByTypeFunc   func(ctx context.Context, sessionID string) (map[domain.EventType]int64, error)
}

func (m *mockEventRepo) InsertBatch(ctx context.Context, events []*domain.Event) error {
	return m.insertBatchFunc(ctx, events)
}

func (m *mockEventRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Event, error) {
	return m.listBySessionFunc(ctx, sessionID, limit, offset)
}

func (m *mockEventRepo) CountByType(ctx context.Context, sessionID string) (map[domain.EventType]int64, error) {
	return m.countByTypeFunc(ctx, sessionID)
}

// ---------------------------------------------------------------------------
// Mock FunnelRepository
// ---------------------------------------------------------------------------

type mockFunnelRepo struct {
	upsertStepFunc    func(ctx context.Context, step *domain.FunnelStep) error
	listBySessionFunc func(ctx context.Context, sessionID string) ([]*domain.FunnelStep, error)
	overviewFunc      func(ctx context.Context, funnelName string) ([]*domain.FunnelStepCount, error)
}

func (m *mockFunnelRepo) UpsertStep(ctx context.Context, step *domain.FunnelStep) error {
	return m.upsertStepFunc(ctx, step)
}

func (m *mockFunnelRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.FunnelStep, error) {
	return m.listBySessionFunc(ctx, sessionID)
}

func (m *mockFunnelRepo) Overview(ctx context.Context, funnelName string) ([]*domain.FunnelStepCount, error) {
	return m.overviewFunc(ctx, funnelName)
}

// ---------------------------------------------------------------------------
// Mock LogRepository
// ---------------------------------------------------------------------------

type mockLogRepo struct {
	insertBatchFunc func(ctx context.Context, entries []*domain.LogEntry) error
	listRecentFunc  func(ctx context.Context, minLevel domain.LogLevel, limit, offset int) ([]*domain.LogEntry, error)
}

func (m *mockLogRepo) InsertBatch(ctx context.Context, entries []*domain.LogEntry) error {
	return m.insertBatchFunc(ctx, entries)
}

func (m *mockLogRepo) ListRecent(ctx context.Context, minLevel domain.LogLevel, limit, offset int) ([]*domain.LogEntry, error) {
	return m.listRecentFunc(ctx, minLevel, limit, offset)
}
