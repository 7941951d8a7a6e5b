package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	slacklib "github.com/slack-go/slack"

	"github.com/summitroofing/beacon/internal/domain"
)

// ---------------------------------------------------------------------------
// In-memory fakes recording persisted state, so tests can verify what the
// store collaborator actually ended up holding.
// ---------------------------------------------------------------------------

type fakeStore struct {
	sessions *fakeSessionRepo
	events   *fakeEventRepo
	funnels  *fakeFunnelRepo
	logs     *fakeLogRepo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: &fakeSessionRepo{byID: map[string]*domain.Session{}},
		events:   &fakeEventRepo{},
		funnels:  &fakeFunnelRepo{steps: map[string]*domain.FunnelStep{}},
		logs:     &fakeLogRepo{},
	}
}

func (s *fakeStore) Sessions() domain.SessionRepository { return s.sessions }
func (s *fakeStore) Events() domain.EventRepository     { return s.events }
func (s *fakeStore) Funnels() domain.FunnelRepository   { return s.funnels }
func (s *fakeStore) Logs() domain.LogRepository         { return s.logs }

type fakeSessionRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Session
	upserts int
	failAll bool
}

func (r *fakeSessionRepo) Upsert(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("sessionRepo: store down")
	}
	r.upserts++
	cp := *s
	if existing, ok := r.byID[s.ID]; ok {
		// Conflict on id: descriptive fields update, landing page sticks.
		cp.LandingPage = existing.LandingPage
		cp.ExitPage = existing.ExitPage
		cp.ExitReason = existing.ExitReason
		cp.DurationSeconds = existing.DurationSeconds
	}
	r.byID[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) RecordExit(_ context.Context, sessionID, exitPage, exitReason string, duration time.Duration, pageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	s.ExitPage = exitPage
	s.ExitReason = exitReason
	s.DurationSeconds = int64(duration.Seconds())
	s.PageCount = pageCount
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) ListRecent(_ context.Context, _, _ int) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out, nil
}

type fakeEventRepo struct {
	mu          sync.Mutex
	batches     [][]*domain.Event
	failBatches map[int]bool // indices of InsertBatch calls that fail
	calls       int
}

func (r *fakeEventRepo) InsertBatch(_ context.Context, events []*domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := r.calls
	r.calls++
	if r.failBatches[call] {
		return fmt.Errorf("eventRepo: batch %d rejected", call)
	}
	r.batches = append(r.batches, events)
	return nil
}

func (r *fakeEventRepo) all() []*domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Event
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *fakeEventRepo) ListBySession(_ context.Context, sessionID string, _, _ int) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range r.all() {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) CountByType(_ context.Context, sessionID string) (map[domain.EventType]int64, error) {
	counts := map[domain.EventType]int64{}
	for _, e := range r.all() {
		if e.SessionID == sessionID {
			counts[e.EventType]++
		}
	}
	return counts, nil
}

type fakeFunnelRepo struct {
	mu      sync.Mutex
	steps   map[string]*domain.FunnelStep // keyed (session, funnel, order)
	upserts int
}

func funnelKey(sessionID, funnel string, order int) string {
	return fmt.Sprintf("%s|%s|%d", sessionID, funnel, order)
}

func (r *fakeFunnelRepo) UpsertStep(_ context.Context, step *domain.FunnelStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	cp := *step
	r.steps[funnelKey(step.SessionID, step.FunnelName, step.StepOrder)] = &cp
	return nil
}

func (r *fakeFunnelRepo) ListBySession(_ context.Context, sessionID string) ([]*domain.FunnelStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.FunnelStep
	for _, s := range r.steps {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeFunnelRepo) Overview(_ context.Context, _ string) ([]*domain.FunnelStepCount, error) {
	return nil, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*domain.LogEntry
	fail    bool
}

func (r *fakeLogRepo) InsertBatch(_ context.Context, entries []*domain.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("logRepo: store down")
	}
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeLogRepo) ListRecent(_ context.Context, minLevel domain.LogLevel, _, _ int) ([]*domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LogEntry
	for _, e := range r.entries {
		if e.Level >= minLevel {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSlack struct {
	mu    sync.Mutex
	posts []string // channel per PostMessageContext call
}

func (s *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slacklib.MsgOption) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, channelID)
	return channelID, "", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string]int
}

func (p *fakePublisher) Publish(_ context.Context, channel string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = map[string]int{}
	}
	p.messages[channel]++
	return nil
}
