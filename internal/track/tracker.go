// Package track is the behavior tracker SDK. A host that can observe user
// interaction (an embedded webview shell, a kiosk frame, an instrumented
// browser agent) pushes raw interaction primitives into the tracker; the
// tracker classifies them into semantic events, buffers them, and delivers
// batches to the beacon ingestion endpoint with retry.
//
// All classification and queue state is owned by a single event-loop
// goroutine, so there is no locking anywhere in the pipeline. The only
// suspending operation is the network send, which runs off-loop against a
// snapshot of the queue.
package track

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/summitroofing/beacon/internal/domain"
	"github.com/summitroofing/beacon/internal/wire"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultMaxBatch      = 50
)

// Config controls one tracker instance.
type Config struct {
	// Endpoint is the beacon ingestion URL. Ignored when Sender is set.
	Endpoint string
	// SessionID reuses an existing session identifier (from per-tab
	// storage). When empty a new one is generated.
	SessionID string
	// SampleRate is the fraction of events kept, in [0,1]. Events are
	// dropped when a uniform draw falls outside it; 0 keeps nothing.
	// nil means 1.0 (keep everything).
	SampleRate *float64
	// Debug logs every recorded event through zerolog at debug level.
	Debug bool

	// PageURL and Referrer seed the initial page_view event.
	PageURL  string
	Referrer string
	// Metadata is attached to every delivered batch.
	Metadata wire.Metadata

	// FlushInterval defaults to 5s; MaxBatch (flush trigger and delivery
	// batch size) defaults to 50. MaxQueue caps the retry queue with
	// oldest-drop; 0 means unbounded.
	FlushInterval time.Duration
	MaxBatch      int
	MaxQueue      int

	// Sender overrides HTTP delivery (tests, alternative transports).
	Sender Sender
	// SampleFunc overrides the uniform [0,1) draw used by the sampling
	// gate. Defaults to a shared PCG source.
	SampleFunc func() float64
}

// Tracker classifies, buffers and delivers behavior events for one session.
type Tracker struct {
	cfg        Config
	sessionID  string
	sender     Sender
	sampleRate float64
	sampleFunc func() float64

	ops    chan func()
	closed chan struct{}
	once   sync.Once

	// Loop-owned state below; touched only from the loop goroutine.
	classifier   *classifier
	queue        []wire.Event
	flushing     bool
	startedAt    time.Time
	pageViews    int
	lastViewport wire.ViewportSize
	lastPage     string
	lastFocused  Element
}

// New creates a tracker, installs the classifier, starts the event loop and
// the periodic flush ticker, and records the initial page_view.
func New(cfg Config) *Tracker {
	sampleRate := 1.0
	if cfg.SampleRate != nil {
		sampleRate = min(max(*cfg.SampleRate, 0), 1)
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}

	sender := cfg.Sender
	if sender == nil {
		sender = &HTTPSender{Endpoint: cfg.Endpoint}
	}

	sampleFunc := cfg.SampleFunc
	if sampleFunc == nil {
		sampleFunc = rand.Float64
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()
	}

	t := &Tracker{
		cfg:        cfg,
		sessionID:  sessionID,
		sender:     sender,
		sampleRate: sampleRate,
		sampleFunc: sampleFunc,
		ops:        make(chan func(), 256),
		closed:     make(chan struct{}),
		startedAt:  time.Now(),
		lastPage:   cfg.PageURL,
	}
	t.classifier = newClassifier(t.recordRaw, t.schedule)

	go t.loop()
	go t.tick()

	t.do(func() {
		t.pageViews++
		t.record(domain.EventPageView, nil, map[string]any{
			"referrer":         cfg.Referrer,
			"userAgent":        cfg.Metadata.UserAgent,
			"screenResolution": cfg.Metadata.ScreenResolution,
			"language":         cfg.Metadata.Language,
			"timezone":         cfg.Metadata.Timezone,
		})
	})

	return t
}

// SessionID returns the identifier attached to every batch this tracker
// delivers. Hosts persist it in per-tab storage and pass it back on reload.
func (t *Tracker) SessionID() string { return t.sessionID }

// Observe pushes one raw interaction primitive into the tracker. It never
// blocks the host beyond the loop channel and never panics on odd input;
// telemetry must not break the page.
func (t *Tracker) Observe(raw RawEvent) {
	t.do(func() {
		if raw.Viewport.Width > 0 {
			t.lastViewport = raw.Viewport
		}
		if raw.PageURL != "" {
			t.lastPage = raw.PageURL
		}
		if raw.Kind == RawFocusIn {
			t.lastFocused = raw.Target
		}

		if raw.Kind == RawUnload {
			t.sessionEnd(&raw)
			return
		}
		t.classifier.handle(&raw)
	})
}

// TrackEvent records a custom semantic event through the same sampling gate
// and enrichment as classified events.
func (t *Tracker) TrackEvent(et domain.EventType, data map[string]any) {
	t.do(func() { t.record(et, nil, data) })
}

// TrackPageView records a client-side navigation within the same session.
func (t *Tracker) TrackPageView(pageURL string) {
	t.do(func() {
		t.pageViews++
		if pageURL != "" {
			t.lastPage = pageURL
		}
		t.record(domain.EventPageView, nil, map[string]any{})
	})
}

// TrackConversion records progress through a named funnel step.
func (t *Tracker) TrackConversion(funnelName, stepName string, stepOrder int) {
	t.TrackEvent(domain.EventConversionStep, map[string]any{
		"funnelName": funnelName,
		"stepName":   stepName,
		"stepOrder":  stepOrder,
	})
}

// TrackABAssignment records which variant of a test this session saw.
func (t *Tracker) TrackABAssignment(testName, variant string) {
	t.TrackEvent(domain.EventABAssignment, map[string]any{
		"testName": testName,
		"variant":  variant,
	})
}

// TrackABConversion records a goal completion for an assigned variant.
func (t *Tracker) TrackABConversion(testName, variant string) {
	t.TrackEvent(domain.EventABConversion, map[string]any{
		"testName": testName,
		"variant":  variant,
	})
}

// Flush delivers the buffered events now. A flush already in progress makes
// this a no-op unless force is set, in which case the current queue is
// snapshotted and sent as a second in-flight generation. On delivery failure
// the batch is re-inserted ahead of events enqueued meanwhile, preserving
// order (at-least-once, duplicates possible).
func (t *Tracker) Flush(ctx context.Context, force bool) error {
	errc := make(chan error, 1)
	t.do(func() { t.startFlush(force, errc) })

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return nil
	}
}

// Pending reports how many events are currently buffered.
func (t *Tracker) Pending() int {
	n := make(chan int, 1)
	t.do(func() { n <- len(t.queue) })
	select {
	case v := <-n:
		return v
	case <-t.closed:
		return 0
	}
}

// Close stops the periodic ticker, cancels pending classification timers,
// performs a final forced flush and shuts the loop down. Safe to call more
// than once.
func (t *Tracker) Close(ctx context.Context) error {
	var err error
	t.once.Do(func() {
		errc := make(chan error, 1)
		t.do(func() {
			t.classifier.cancelTimers()
			t.startFlush(true, errc)
		})
		select {
		case err = <-errc:
		case <-ctx.Done():
			err = ctx.Err()
		}
		close(t.closed)
	})
	return err
}

// do posts fn to the loop goroutine. Posts after Close are dropped.
func (t *Tracker) do(fn func()) {
	select {
	case <-t.closed:
	case t.ops <- fn:
	}
}

// schedule runs fn on the loop goroutine after d. Used by the classifier for
// hover debounce and form-settle delays.
func (t *Tracker) schedule(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { t.do(fn) })
}

func (t *Tracker) loop() {
	for {
		select {
		case <-t.closed:
			return
		case op := <-t.ops:
			op()
		}
	}
}

func (t *Tracker) tick() {
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.do(func() { t.startFlush(false, nil) })
		}
	}
}

// recordRaw is the classifier's emit callback.
func (t *Tracker) recordRaw(et domain.EventType, raw *RawEvent, data map[string]any) {
	t.record(et, raw, data)
}

// record applies the sampling gate, enriches the event with viewport,
// timestamp, page URL and component id, and enqueues it. Runs on the loop.
func (t *Tracker) record(et domain.EventType, raw *RawEvent, data map[string]any) {
	if t.sampleRate < 1 && t.sampleFunc() >= t.sampleRate {
		return
	}
	if data == nil {
		data = map[string]any{}
	}

	ev := wire.Event{
		EventType:    string(et),
		ViewportSize: t.lastViewport,
		EventData:    data,
		Timestamp:    time.Now().UnixMilli(),
		PageURL:      t.lastPage,
		ComponentID:  t.lastFocused.ComponentID,
	}
	if raw != nil {
		ev.ElementPath = raw.Target.Path
		ev.ElementType = raw.Target.Tag
		ev.ElementText = truncate(raw.Target.Text, 100)
		ev.Coordinates = raw.Coords
		if raw.Viewport.Width > 0 {
			ev.ViewportSize = raw.Viewport
		}
		if raw.PageURL != "" {
			ev.PageURL = raw.PageURL
		}
		if raw.Target.ComponentID != "" {
			ev.ComponentID = raw.Target.ComponentID
		}
	}

	if t.cfg.Debug {
		log.Debug().Str("event_type", ev.EventType).Str("session_id", t.sessionID).Msg("track: event recorded")
	}

	t.enqueue(ev)
}

func (t *Tracker) enqueue(ev wire.Event) {
	t.queue = append(t.queue, ev)
	t.capQueue()
	if len(t.queue) >= t.cfg.MaxBatch {
		t.startFlush(false, nil)
	}
}

// capQueue enforces the optional retry-queue bound with oldest-drop.
func (t *Tracker) capQueue() {
	if t.cfg.MaxQueue > 0 && len(t.queue) > t.cfg.MaxQueue {
		drop := len(t.queue) - t.cfg.MaxQueue
		t.queue = append(t.queue[:0:0], t.queue[drop:]...)
		log.Warn().Int("dropped", drop).Msg("track: queue cap exceeded, oldest events dropped")
	}
}

// sessionEnd emits the session_end event and forces an immediate flush.
func (t *Tracker) sessionEnd(raw *RawEvent) {
	t.record(domain.EventSessionEnd, raw, map[string]any{
		"duration":       time.Since(t.startedAt).Milliseconds(),
		"pageViews":      t.pageViews,
		"maxScrollDepth": int(t.classifier.maxScrollDepth),
	})
	t.startFlush(true, nil)
}

// startFlush snapshots the queue and sends it off-loop. Runs on the loop.
func (t *Tracker) startFlush(force bool, done chan<- error) {
	if t.flushing && !force {
		if done != nil {
			done <- nil
		}
		return
	}
	if len(t.queue) == 0 {
		if done != nil {
			done <- nil
		}
		return
	}

	batch := t.queue
	t.queue = nil
	t.flushing = true

	go func() {
		err := t.sender.Send(context.Background(), &wire.BeaconRequest{
			SessionID: t.sessionID,
			Events:    batch,
			Metadata:  t.cfg.Metadata,
		})

		t.do(func() {
			t.flushing = false
			if err != nil {
				// Failed batch goes back ahead of anything enqueued
				// while the send was in flight.
				t.queue = append(batch, t.queue...)
				t.capQueue()
				if t.cfg.Debug {
					log.Debug().Err(err).Int("batch", len(batch)).Msg("track: flush failed, batch requeued")
				}
			}
		})

		if done != nil {
			done <- err
		}
	}()
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
