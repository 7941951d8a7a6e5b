package track_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/summitroofing/beacon/internal/domain"
	"github.com/summitroofing/beacon/internal/track"
	"github.com/summitroofing/beacon/internal/wire"
)

// fakeSender records every delivered batch and can be toggled to fail.
type fakeSender struct {
	mu       sync.Mutex
	fail     bool
	requests []*wire.BeaconRequest
}

func (s *fakeSender) Send(_ context.Context, req *wire.BeaconRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("send: connection refused")
	}
	cp := *req
	cp.Events = append([]wire.Event(nil), req.Events...)
	s.requests = append(s.requests, &cp)
	return nil
}

func (s *fakeSender) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *fakeSender) all() []wire.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []wire.Event
	for _, req := range s.requests {
		events = append(events, req.Events...)
	}
	return events
}

func (s *fakeSender) types() []string {
	var types []string
	for _, ev := range s.all() {
		types = append(types, ev.EventType)
	}
	return types
}

func rate(v float64) *float64 { return &v }

func newTracker(t *testing.T, sender track.Sender, mutate ...func(*track.Config)) *track.Tracker {
	t.Helper()
	cfg := track.Config{
		SessionID:     "sess_test",
		Sender:        sender,
		FlushInterval: time.Hour, // periodic flush disabled for determinism
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	tr := track.New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tr.Close(ctx)
	})
	return tr
}

func TestTracker_FlushClearsQueueOnSuccess(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	tr.TrackEvent(domain.EventClick, map[string]any{"hesitationMs": 120})
	tr.TrackEvent(domain.EventHover, map[string]any{"durationMs": 1500})

	require.NoError(t, tr.Flush(context.Background(), false))
	assert.Equal(t, 0, tr.Pending())

	// Initial page_view plus the two tracked events, in order.
	assert.Equal(t, []string{"page_view", "click", "hover"}, sender.types())
	assert.Equal(t, "sess_test", sender.requests[0].SessionID)
}

func TestTracker_RequeueOnFailure_PreservesOrderAndContent(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{fail: true}
	tr := newTracker(t, sender)

	tr.TrackEvent(domain.EventClick, map[string]any{"n": 1})
	tr.TrackEvent(domain.EventClick, map[string]any{"n": 2})

	err := tr.Flush(context.Background(), false)
	require.Error(t, err)

	// The failed batch is restored; nothing was lost.
	assert.Equal(t, 3, tr.Pending())

	// Events enqueued after the failure line up behind the restored batch.
	tr.TrackEvent(domain.EventHover, map[string]any{"n": 3})

	sender.setFail(false)
	require.NoError(t, tr.Flush(context.Background(), false))

	assert.Equal(t, []string{"page_view", "click", "click", "hover"}, sender.types())
	events := sender.all()
	assert.EqualValues(t, 1, events[1].EventData["n"])
	assert.EqualValues(t, 2, events[2].EventData["n"])
	assert.Equal(t, 0, tr.Pending())
}

func TestTracker_FlushInProgressIsNoOpUnlessForced(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)
	require.NoError(t, tr.Flush(context.Background(), false))

	// Queue empty: flush is a cheap no-op either way.
	require.NoError(t, tr.Flush(context.Background(), false))
	require.NoError(t, tr.Flush(context.Background(), true))
}

func TestTracker_SampleRate(t *testing.T) {
	t.Parallel()

	t.Run("unset rate keeps everything", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		tr := newTracker(t, sender, func(c *track.Config) { c.MaxBatch = 1000 })
		for range 100 {
			tr.TrackEvent(domain.EventClick, nil)
		}
		require.NoError(t, tr.Flush(context.Background(), false))
		assert.Len(t, sender.all(), 101) // 100 clicks + initial page_view
	})

	t.Run("rate 0 keeps nothing", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		tr := newTracker(t, sender, func(c *track.Config) { c.SampleRate = rate(0) })
		for range 100 {
			tr.TrackEvent(domain.EventClick, nil)
		}
		require.NoError(t, tr.Flush(context.Background(), true))
		assert.Equal(t, 0, tr.Pending())
		assert.Empty(t, sender.all())
	})

	t.Run("rate 1 keeps everything", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		tr := newTracker(t, sender, func(c *track.Config) {
			c.SampleRate = rate(1)
			c.MaxBatch = 1000
		})
		for range 100 {
			tr.TrackEvent(domain.EventClick, nil)
		}
		require.NoError(t, tr.Flush(context.Background(), false))
		assert.Len(t, sender.all(), 101)
	})

	t.Run("fractional rate converges", func(t *testing.T) {
		t.Parallel()
		sender := &fakeSender{}
		rng := rand.New(rand.NewPCG(42, 0))
		tr := newTracker(t, sender, func(c *track.Config) {
			c.SampleRate = rate(0.5)
			c.SampleFunc = rng.Float64
			c.MaxBatch = 10000 // avoid size-triggered flushes mid-count
		})

		const n = 2000
		for range n {
			tr.TrackEvent(domain.EventClick, nil)
		}
		kept := tr.Pending()
		assert.InDelta(t, n/2, kept, n*0.05)
	})
}

func TestTracker_QueueSizeTriggersFlush(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender, func(c *track.Config) { c.MaxBatch = 5 })

	for range 5 {
		tr.TrackEvent(domain.EventClick, nil)
	}

	// The size-triggered flush is asynchronous; a forced flush afterwards
	// acts as a barrier and picks up any leftovers.
	require.NoError(t, tr.Flush(context.Background(), true))
	assert.Eventually(t, func() bool {
		return len(sender.all()) == 6 && tr.Pending() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTracker_ScrollDepthThresholds(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	scroll := func(top int) {
		tr.Observe(track.RawEvent{
			Kind:         track.RawScroll,
			ScrollTop:    top,
			ScrollHeight: 1100,
			ClientHeight: 100, // denominator 1000: top == depth percent * 10
		})
	}

	scroll(300) // 30%
	scroll(600) // 60%
	scroll(900) // 90%
	scroll(350) // back up: must not re-fire 25%

	require.NoError(t, tr.Flush(context.Background(), false))

	var depths []int
	for _, ev := range sender.all() {
		if ev.EventType == "scroll_depth" {
			depths = append(depths, int(ev.EventData["depth"].(int)))
		}
	}
	assert.Equal(t, []int{25, 50, 75}, depths)
}

func TestTracker_RageClick(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	base := time.Now()
	down := func(offset time.Duration) {
		tr.Observe(track.RawEvent{
			Kind:   track.RawPointerDown,
			Target: track.Element{Path: "body > button#cta", Tag: "button"},
			At:     base.Add(offset),
		})
	}

	// Four downs inside the 500ms window: exactly one rage_click.
	down(0)
	down(100 * time.Millisecond)
	down(200 * time.Millisecond)
	down(300 * time.Millisecond)

	// The set was cleared, so a fifth click alone is not a second rage.
	down(400 * time.Millisecond)

	require.NoError(t, tr.Flush(context.Background(), false))

	rageCount := 0
	for _, typ := range sender.types() {
		if typ == "rage_click" {
			rageCount++
		}
	}
	assert.Equal(t, 1, rageCount)
}

func TestTracker_ClickHesitation(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	base := time.Now()
	target := track.Element{Path: "body > form > button.submit", Tag: "button", Text: "Get a free quote"}

	// Fast click: click event only.
	tr.Observe(track.RawEvent{Kind: track.RawPointerDown, Target: target, At: base})
	tr.Observe(track.RawEvent{Kind: track.RawPointerUp, Target: target, At: base.Add(120 * time.Millisecond)})

	// Slow click: click plus hesitation.
	tr.Observe(track.RawEvent{Kind: track.RawPointerDown, Target: target, At: base.Add(time.Second)})
	tr.Observe(track.RawEvent{Kind: track.RawPointerUp, Target: target, At: base.Add(time.Second + 450*time.Millisecond)})

	require.NoError(t, tr.Flush(context.Background(), false))

	types := sender.types()
	assert.Equal(t, []string{"page_view", "click", "click", "hesitation"}, types)

	events := sender.all()
	assert.EqualValues(t, 120, events[1].EventData["hesitationMs"])
	assert.EqualValues(t, 450, events[2].EventData["hesitationMs"])
	assert.EqualValues(t, 450, events[3].EventData["durationMs"])
	assert.Equal(t, "body > form > button.submit", events[1].ElementPath)
}

func TestTracker_ElementTextRuneBoundary(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	// 3 bytes per rune, 240 bytes total. A byte-offset cut at 100 would
	// land mid-rune.
	target := track.Element{
		Path: "body > div.estimate > button",
		Tag:  "button",
		Text: strings.Repeat("지붕", 40),
	}

	base := time.Now()
	tr.Observe(track.RawEvent{Kind: track.RawPointerDown, Target: target, At: base})
	tr.Observe(track.RawEvent{Kind: track.RawPointerUp, Target: target, At: base.Add(50 * time.Millisecond)})

	require.NoError(t, tr.Flush(context.Background(), false))

	events := sender.all()
	require.Len(t, events, 2) // page_view + click
	text := events[1].ElementText
	assert.True(t, utf8.ValidString(text))
	assert.LessOrEqual(t, len(text), 100)
	assert.Equal(t, strings.Repeat("지붕", 16)+"지", text)
}

func TestTracker_HoverDebounce(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	hero := track.Element{Path: "body > div.hero > a.cta", Tag: "a", Text: "Request inspection"}
	nav := track.Element{Path: "body > nav > a.phone", Tag: "a"}

	// A quick pass over the nav link is interrupted by moving to the hero
	// CTA; only the hero hover survives the debounce.
	tr.Observe(track.RawEvent{Kind: track.RawPointerOver, Target: nav})
	tr.Observe(track.RawEvent{Kind: track.RawPointerOver, Target: hero, Coords: &wire.Coordinates{X: 640, Y: 300}})

	assert.Eventually(t, func() bool {
		_ = tr.Flush(context.Background(), false)
		for _, ev := range sender.all() {
			if ev.EventType == "hover" {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)

	var hovers []wire.Event
	for _, ev := range sender.all() {
		if ev.EventType == "hover" {
			hovers = append(hovers, ev)
		}
	}
	require.Len(t, hovers, 1)
	assert.Equal(t, "body > div.hero > a.cta", hovers[0].ElementPath)
	require.NotNil(t, hovers[0].Coordinates)
	assert.Equal(t, 640, hovers[0].Coordinates.X)
	assert.GreaterOrEqual(t, hovers[0].EventData["durationMs"].(int64), int64(1000))
}

func TestTracker_FormLifecycle(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	field := track.Element{Path: "body > form > input#name", Tag: "input", InForm: true, Editable: true}

	tr.Observe(track.RawEvent{Kind: track.RawFocusIn, Target: field})
	tr.Observe(track.RawEvent{Kind: track.RawFocusOut, Target: field, FilledFields: 2})

	// The settle delay has to elapse before the abandon fires.
	assert.Eventually(t, func() bool {
		_ = tr.Flush(context.Background(), false)
		types := sender.types()
		return len(types) >= 3 && types[len(types)-1] == "form_abandon"
	}, time.Second, 20*time.Millisecond)

	events := sender.all()
	assert.Equal(t, "form_start", events[1].EventType)
	abandon := events[len(events)-1]
	assert.EqualValues(t, 2, abandon.EventData["fieldsCompleted"])
}

func TestTracker_FormRefocusCancelsAbandon(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	name := track.Element{Path: "body > form > input#name", Tag: "input", InForm: true, Editable: true}
	phone := track.Element{Path: "body > form > input#phone", Tag: "input", InForm: true, Editable: true}

	tr.Observe(track.RawEvent{Kind: track.RawFocusIn, Target: name})
	tr.Observe(track.RawEvent{Kind: track.RawFocusOut, Target: name, FilledFields: 1})
	// Refocus inside the form well before the settle delay elapses.
	tr.Observe(track.RawEvent{Kind: track.RawFocusIn, Target: phone})

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, tr.Flush(context.Background(), false))

	for _, typ := range sender.types() {
		assert.NotEqual(t, "form_abandon", typ)
	}
}

func TestTracker_SessionEndOnUnload(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	tr.TrackPageView("/services/roof-repair")
	tr.Observe(track.RawEvent{Kind: track.RawUnload})

	// Unload forces an immediate flush without waiting for the ticker.
	assert.Eventually(t, func() bool {
		types := sender.types()
		return len(types) > 0 && types[len(types)-1] == "session_end"
	}, time.Second, 10*time.Millisecond)

	events := sender.all()
	end := events[len(events)-1]
	assert.EqualValues(t, 2, end.EventData["pageViews"])
	assert.Contains(t, end.EventData, "duration")
	assert.Contains(t, end.EventData, "maxScrollDepth")
}

func TestTracker_TrackConversion(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := newTracker(t, sender)

	tr.TrackConversion("quote_request", "form_submitted", 3)
	require.NoError(t, tr.Flush(context.Background(), false))

	events := sender.all()
	require.Len(t, events, 2)
	conv := events[1]
	assert.Equal(t, "conversion_step", conv.EventType)
	assert.Equal(t, "quote_request", conv.EventData["funnelName"])
	assert.Equal(t, "form_submitted", conv.EventData["stepName"])
	assert.EqualValues(t, 3, conv.EventData["stepOrder"])
}

func TestTracker_GeneratesSessionID(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, &fakeSender{}, func(c *track.Config) { c.SessionID = "" })
	assert.NotEmpty(t, tr.SessionID())
	assert.Contains(t, tr.SessionID(), "sess_")
}

func TestTracker_CloseFlushesAndStops(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tr := track.New(track.Config{
		SessionID:     "sess_close",
		Sender:        sender,
		FlushInterval: time.Hour,
	})

	tr.TrackEvent(domain.EventClick, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Close(ctx))

	assert.Equal(t, []string{"page_view", "click"}, sender.types())

	// Idempotent; events after close are dropped silently.
	require.NoError(t, tr.Close(ctx))
	tr.TrackEvent(domain.EventClick, nil)
}
