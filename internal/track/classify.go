package track

import (
	"time"

	"github.com/summitroofing/beacon/internal/domain"
)

// Classification thresholds. These are behavioral signals, not exact science:
// the values match what the marketing site's funnels were tuned against.
const (
	hesitationThreshold = 300 * time.Millisecond
	rageWindow          = 500 * time.Millisecond
	rageClickCount      = 3 // more than this many downs inside rageWindow
	hoverDelay          = 1 * time.Second
	formSettleDelay     = 100 * time.Millisecond
	longTaskThreshold   = 50 * time.Millisecond
)

var scrollThresholds = []int{25, 50, 75, 100}

// classifier turns raw interaction primitives into semantic events. All of
// its state is owned by the tracker's loop goroutine; timers fired by the
// runtime re-enter the loop through schedule, so there is no locking here.
type classifier struct {
	emit     func(et domain.EventType, raw *RawEvent, data map[string]any)
	schedule func(d time.Duration, fn func()) *time.Timer

	pendingDowns map[string]time.Time // element path -> most recent pointer-down
	downTimes    []time.Time          // rolling rage-click window, any target

	hoverTimer  *time.Timer
	hoverStart  time.Time
	hoverTarget RawEvent

	formTimer *time.Timer

	maxScrollDepth  float64
	firedThresholds map[int]bool
}

func newClassifier(emit func(domain.EventType, *RawEvent, map[string]any), schedule func(time.Duration, func()) *time.Timer) *classifier {
	return &classifier{
		emit:            emit,
		schedule:        schedule,
		pendingDowns:    make(map[string]time.Time),
		firedThresholds: make(map[int]bool),
	}
}

func (c *classifier) handle(raw *RawEvent) {
	switch raw.Kind {
	case RawPointerDown:
		c.pointerDown(raw)
	case RawPointerUp:
		c.pointerUp(raw)
	case RawPointerOver:
		c.pointerOver(raw)
	case RawFocusIn:
		c.focusIn(raw)
	case RawFocusOut:
		c.focusOut(raw)
	case RawScroll:
		c.scroll(raw)
	case RawWindowError:
		c.emit(domain.EventError, raw, map[string]any{
			"message": raw.ErrorMessage,
			"source":  raw.ErrorSource,
			"line":    raw.ErrorLine,
			"error":   raw.ErrorDetail,
		})
	case RawLongTask:
		if raw.Duration > longTaskThreshold {
			c.emit(domain.EventLongTask, raw, map[string]any{
				"durationMs": raw.Duration.Milliseconds(),
			})
		}
	case RawUnload:
		// Handled by the tracker itself (session_end + forced flush).
	}
}

func (c *classifier) pointerDown(raw *RawEvent) {
	now := raw.at()
	c.pendingDowns[raw.Target.Path] = now

	// Rage detection looks at all downs regardless of target.
	cutoff := now.Add(-rageWindow)
	kept := c.downTimes[:0]
	for _, ts := range c.downTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.downTimes = append(kept, now)

	if len(c.downTimes) > rageClickCount {
		c.emit(domain.EventRageClick, raw, map[string]any{
			"clickCount": len(c.downTimes),
			"windowMs":   rageWindow.Milliseconds(),
		})
		c.downTimes = c.downTimes[:0]
		clear(c.pendingDowns)
	}
}

func (c *classifier) pointerUp(raw *RawEvent) {
	down, ok := c.pendingDowns[raw.Target.Path]
	if !ok {
		return
	}
	delete(c.pendingDowns, raw.Target.Path)

	hesitation := raw.at().Sub(down)
	c.emit(domain.EventClick, raw, map[string]any{
		"hesitationMs": hesitation.Milliseconds(),
	})

	if hesitation > hesitationThreshold {
		c.emit(domain.EventHesitation, raw, map[string]any{
			"durationMs": hesitation.Milliseconds(),
		})
	}
}

func (c *classifier) pointerOver(raw *RawEvent) {
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
	}
	if c.hoverStart.IsZero() || c.hoverTarget.Target.Path != raw.Target.Path {
		c.hoverStart = raw.at()
	}
	c.hoverTarget = *raw

	c.hoverTimer = c.schedule(hoverDelay, func() {
		duration := time.Since(c.hoverStart)
		if duration >= hoverDelay {
			target := c.hoverTarget
			c.emit(domain.EventHover, &target, map[string]any{
				"durationMs": duration.Milliseconds(),
			})
		}
		c.hoverStart = time.Time{}
	})
}

func (c *classifier) focusIn(raw *RawEvent) {
	if !raw.Target.InForm {
		return
	}
	// Focus moved to another field of the same form before the settle delay
	// elapsed: the visitor is still filling it in, not abandoning.
	if c.formTimer != nil {
		c.formTimer.Stop()
		c.formTimer = nil
	}
	if raw.Target.Editable {
		c.emit(domain.EventFormStart, raw, map[string]any{})
	}
}

func (c *classifier) focusOut(raw *RawEvent) {
	if !raw.Target.InForm {
		return
	}
	target := *raw
	c.formTimer = c.schedule(formSettleDelay, func() {
		c.formTimer = nil
		c.emit(domain.EventFormAbandon, &target, map[string]any{
			"fieldsCompleted": target.FilledFields,
		})
	})
}

func (c *classifier) scroll(raw *RawEvent) {
	denom := raw.ScrollHeight - raw.ClientHeight
	if denom <= 0 {
		return
	}
	pct := float64(raw.ScrollTop) / float64(denom) * 100
	if pct > c.maxScrollDepth {
		c.maxScrollDepth = pct
	}

	// Each threshold fires at most once per session, in increasing order.
	for _, threshold := range scrollThresholds {
		if c.maxScrollDepth >= float64(threshold) && !c.firedThresholds[threshold] {
			c.firedThresholds[threshold] = true
			c.emit(domain.EventScrollDepth, raw, map[string]any{
				"depth": threshold,
			})
		}
	}
}

// cancelTimers stops any pending hover or form-settle timer. Called on close
// so no classification fires after the final flush.
func (c *classifier) cancelTimers() {
	if c.hoverTimer != nil {
		c.hoverTimer.Stop()
		c.hoverTimer = nil
	}
	if c.formTimer != nil {
		c.formTimer.Stop()
		c.formTimer = nil
	}
}
