// Package ingest is the server side of the beacon pipeline: it persists one
// tracker flush per request, tolerating partial failure. Everything here is
// best-effort by contract — the response means "accepted for processing",
// not "durably committed".
package ingest

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/summitroofing/beacon/internal/domain"
	"github.com/summitroofing/beacon/internal/metrics"
	"github.com/summitroofing/beacon/internal/notify"
	redisstore "github.com/summitroofing/beacon/internal/store/redis"
	"github.com/summitroofing/beacon/internal/wire"
)

// insertBatchSize is how many event rows go into one bulk insert. Sub-batches
// fail independently: one bad batch never blocks its siblings.
const insertBatchSize = 50

// BadRequestError rejects a malformed ingestion request synchronously, before
// any partial processing.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return "ingest: " + e.Reason }

func (e *BadRequestError) Unwrap() error { return domain.ErrBadRequest }

// DataStore is the repository accessor surface the service needs.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Sessions() domain.SessionRepository
	Events() domain.EventRepository
	Funnels() domain.FunnelRepository
	Logs() domain.LogRepository
}

// Publisher fans ingested events out to live consumers. *redis.PubSub
// satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ClientGeo carries request-derived geolocation, resolved from trusted proxy
// headers. Empty when the deployment has no geo-aware proxy in front.
type ClientGeo struct {
	CountryCode string
}

// Service processes beacon batches and log batches.
type Service struct {
	store   DataStore
	pub     Publisher       // nil disables live fan-out
	alerter *notify.Alerter // nil disables Slack alerts
	metrics *metrics.Metrics
}

func NewService(store DataStore, pub Publisher, alerter *notify.Alerter, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{store: store, pub: pub, alerter: alerter, metrics: m}
}

// Ingest persists one tracker flush: session upsert, chunked event inserts,
// funnel upserts for conversion steps, and the session-end exit update.
// Persistence failures inside a step are logged and do not abort sibling
// steps; the returned count always covers every submitted event.
func (s *Service) Ingest(ctx context.Context, req *wire.BeaconRequest, geo ClientGeo) (*wire.BeaconResponse, error) {
	if req.SessionID == "" {
		return nil, &BadRequestError{Reason: "sessionId is required"}
	}
	if req.Events == nil {
		return nil, &BadRequestError{Reason: "events must be an array"}
	}

	start := time.Now()
	s.metrics.BatchesReceived.Inc()
	s.metrics.EventsAccepted.Add(float64(len(req.Events)))

	session := s.deriveSession(req, geo)
	if err := s.store.Sessions().Upsert(ctx, session); err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("ingest: session upsert failed")
	} else {
		s.metrics.SessionsUpserted.Inc()
	}

	events := make([]*domain.Event, 0, len(req.Events))
	for i := range req.Events {
		events = append(events, toDomainEvent(req.SessionID, &req.Events[i]))
	}

	for chunk := range slices.Chunk(events, insertBatchSize) {
		if err := s.store.Events().InsertBatch(ctx, chunk); err != nil {
			s.metrics.SubBatchFailures.Inc()
			log.Error().Err(err).Str("session_id", req.SessionID).Int("batch_size", len(chunk)).
				Msg("ingest: event sub-batch insert failed")
			continue
		}
		s.metrics.EventsPersisted.Add(float64(len(chunk)))
		s.publish(ctx, req.SessionID, chunk)
	}

	s.recordFunnelSteps(ctx, events)
	s.recordSessionEnd(ctx, req.SessionID, events)
	s.checkRageClicks(ctx, req.SessionID, events)

	s.metrics.IngestDuration.Observe(time.Since(start).Seconds())

	return &wire.BeaconResponse{
		Success:   true,
		Processed: len(req.Events),
		SessionID: req.SessionID,
	}, nil
}

// IngestLogs persists one logger flush into the structured log table.
func (s *Service) IngestLogs(ctx context.Context, req *wire.LogRequest) (*wire.LogResponse, error) {
	if req.Entries == nil {
		return nil, &BadRequestError{Reason: "entries must be an array"}
	}

	entries := make([]*domain.LogEntry, 0, len(req.Entries))
	for i := range req.Entries {
		entry := toDomainLogEntry(&req.Entries[i])
		if entry.SessionID == "" {
			entry.SessionID = req.SessionID
		}
		entries = append(entries, entry)
	}

	for chunk := range slices.Chunk(entries, insertBatchSize) {
		if err := s.store.Logs().InsertBatch(ctx, chunk); err != nil {
			log.Error().Err(err).Int("batch_size", len(chunk)).Msg("ingest: log sub-batch insert failed")
			continue
		}
		s.metrics.LogEntries.Add(float64(len(chunk)))
	}

	for _, entry := range entries {
		if entry.Level >= domain.LevelFatal {
			if err := s.alerter.FatalEntry(ctx, entry); err != nil {
				log.Warn().Err(err).Msg("ingest: fatal alert failed")
			}
		}
	}

	return &wire.LogResponse{Success: true, Processed: len(req.Entries)}, nil
}

// deriveSession builds the session row from batch metadata and the first
// event. The referrer rides on the initial page_view's event data.
func (s *Service) deriveSession(req *wire.BeaconRequest, geo ClientGeo) *domain.Session {
	session := &domain.Session{
		ID:               req.SessionID,
		UserAgent:        req.Metadata.UserAgent,
		DeviceType:       ClassifyDevice(req.Metadata.UserAgent),
		ScreenResolution: req.Metadata.ScreenResolution,
		Language:         req.Metadata.Language,
		CountryCode:      geo.CountryCode,
		CreatedAt:        time.Now().UTC(),
	}

	if len(req.Events) > 0 {
		first := &req.Events[0]
		session.LandingPage = first.PageURL
		if ref, ok := first.EventData["referrer"].(string); ok {
			session.Referrer = ref
		}
	}

	for i := range req.Events {
		if req.Events[i].EventType == string(domain.EventPageView) {
			session.PageCount++
		}
	}

	return session
}

func (s *Service) recordFunnelSteps(ctx context.Context, events []*domain.Event) {
	for _, e := range events {
		if e.EventType != domain.EventConversionStep {
			continue
		}

		funnelName, _ := e.EventData["funnelName"].(string)
		stepName, _ := e.EventData["stepName"].(string)
		stepOrder, ok := numField(e.EventData, "stepOrder")
		if funnelName == "" || !ok {
			log.Warn().Str("session_id", e.SessionID).Msg("ingest: conversion_step missing funnel fields, skipped")
			continue
		}

		step := &domain.FunnelStep{
			SessionID:  e.SessionID,
			FunnelName: funnelName,
			StepName:   stepName,
			StepOrder:  int(stepOrder),
			EnteredAt:  time.UnixMilli(e.Timestamp).UTC(),
			Metadata:   e.EventData,
		}
		if err := s.store.Funnels().UpsertStep(ctx, step); err != nil {
			log.Error().Err(err).Str("session_id", e.SessionID).Str("funnel", funnelName).
				Msg("ingest: funnel step upsert failed")
			continue
		}
		s.metrics.FunnelUpserts.Inc()
	}
}

func (s *Service) recordSessionEnd(ctx context.Context, sessionID string, events []*domain.Event) {
	for _, e := range events {
		if e.EventType != domain.EventSessionEnd {
			continue
		}

		durationMS, _ := numField(e.EventData, "duration")
		pageViews, _ := numField(e.EventData, "pageViews")

		err := s.store.Sessions().RecordExit(ctx, sessionID, e.PageURL, "navigation",
			time.Duration(durationMS)*time.Millisecond, int(pageViews))
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("ingest: session exit update failed")
		}
		return
	}
}

func (s *Service) checkRageClicks(ctx context.Context, sessionID string, events []*domain.Event) {
	count := 0
	pageURL := ""
	for _, e := range events {
		if e.EventType == domain.EventRageClick {
			count++
			pageURL = e.PageURL
		}
	}
	if count == 0 {
		return
	}
	if err := s.alerter.RageClicks(ctx, sessionID, pageURL, count); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("ingest: rage click alert failed")
	}
}

// publish fans one persisted sub-batch out to the live channels. Failures
// are observability-only.
func (s *Service) publish(ctx context.Context, sessionID string, events []*domain.Event) {
	if s.pub == nil {
		return
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := s.pub.Publish(ctx, redisstore.LiveChannel(), payload); err != nil {
			log.Debug().Err(err).Msg("ingest: live publish failed")
			return
		}
		if err := s.pub.Publish(ctx, redisstore.SessionChannel(sessionID), payload); err != nil {
			log.Debug().Err(err).Msg("ingest: session publish failed")
			return
		}
	}
}

func toDomainEvent(sessionID string, we *wire.Event) *domain.Event {
	e := &domain.Event{
		ID:          uuid.New(),
		SessionID:   sessionID,
		EventType:   domain.EventType(we.EventType),
		ElementPath: we.ElementPath,
		ElementType: we.ElementType,
		ElementText: we.ElementText,
		ViewportSize: domain.ViewportSize{
			Width:  we.ViewportSize.Width,
			Height: we.ViewportSize.Height,
		},
		EventData:   we.EventData,
		Timestamp:   we.Timestamp,
		PageURL:     we.PageURL,
		ComponentID: we.ComponentID,
		CreatedAt:   time.Now().UTC(),
	}
	if we.Coordinates != nil {
		e.Coordinates = &domain.Coordinates{X: we.Coordinates.X, Y: we.Coordinates.Y}
	}
	if e.EventData == nil {
		e.EventData = map[string]any{}
	}
	return e
}

func toDomainLogEntry(we *wire.LogEntry) *domain.LogEntry {
	id, err := uuid.Parse(we.ID)
	if err != nil {
		id = uuid.New()
	}

	ts := time.UnixMilli(we.Timestamp).UTC()
	if we.Timestamp == 0 {
		ts = time.Now().UTC()
	}

	return &domain.LogEntry{
		ID:          id,
		Timestamp:   ts,
		Level:       domain.ParseLogLevel(we.Level),
		Category:    domain.LogCategory(we.Category),
		Message:     we.Message,
		ErrorStack:  we.ErrorStack,
		UserID:      we.UserID,
		SessionID:   we.SessionID,
		PageURL:     we.PageURL,
		ComponentID: we.ComponentID,
		Metadata:    we.Metadata,
		Environment: we.Environment,
		Version:     we.Version,
	}
}

// numField reads a numeric event-data field regardless of how JSON decoding
// typed it.
func numField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
