package track

import (
	"time"

	"github.com/summitroofing/beacon/internal/wire"
)

// RawKind identifies a browser interaction primitive before classification.
type RawKind string

const (
	RawPointerDown RawKind = "pointer_down"
	RawPointerUp   RawKind = "pointer_up"
	RawPointerOver RawKind = "pointer_over"
	RawFocusIn     RawKind = "focus_in"
	RawFocusOut    RawKind = "focus_out"
	RawScroll      RawKind = "scroll"
	RawWindowError RawKind = "window_error"
	RawLongTask    RawKind = "long_task"
	RawUnload      RawKind = "unload"
)

// Element describes the DOM node a raw event targeted. Path is a
// CSS-selector-like breadcrumb from body to the node ("body > div.hero >
// button#cta"). ComponentID is the value of the node's stable component
// attribute when present, used to correlate UI regions across events.
type Element struct {
	Path        string
	Tag         string
	Text        string
	ComponentID string
	InForm      bool
	Editable    bool // input, textarea or select
}

// RawEvent is one interaction primitive pushed into the tracker by the host.
// Only the fields relevant to the Kind need to be set; the zero time At means
// "now".
type RawEvent struct {
	Kind     RawKind
	Target   Element
	Coords   *wire.Coordinates
	Viewport wire.ViewportSize
	PageURL  string

	// Scroll geometry (RawScroll).
	ScrollTop    int
	ScrollHeight int
	ClientHeight int

	// Uncaught error details (RawWindowError).
	ErrorMessage string
	ErrorSource  string
	ErrorLine    int
	ErrorDetail  string

	// Main-thread task duration (RawLongTask).
	Duration time.Duration

	// Count of non-empty form fields at the time focus left (RawFocusOut).
	FilledFields int

	At time.Time
}

func (r *RawEvent) at() time.Time {
	if r.At.IsZero() {
		return time.Now()
	}
	return r.At
}
