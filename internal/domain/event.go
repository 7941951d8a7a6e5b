package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the semantic behavior events the tracker emits.
type EventType string

const (
	EventPageView       EventType = "page_view"
	EventClick          EventType = "click"
	EventHesitation     EventType = "hesitation"
	EventRageClick      EventType = "rage_click"
	EventHover          EventType = "hover"
	EventScrollDepth    EventType = "scroll_depth"
	EventFormStart      EventType = "form_start"
	EventFormAbandon    EventType = "form_abandon"
	EventError          EventType = "error"
	EventLongTask       EventType = "long_task"
	EventSessionEnd     EventType = "session_end"
	EventConversionStep EventType = "conversion_step"
	EventABAssignment   EventType = "ab_test_assignment"
	EventABConversion   EventType = "ab_test_conversion"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventClick, EventHesitation, EventRageClick,
		EventHover, EventScrollDepth, EventFormStart, EventFormAbandon,
		EventError, EventLongTask, EventSessionEnd, EventConversionStep,
		EventABAssignment, EventABConversion:
		return true
	}
	return false
}

// Coordinates is a pointer position in page pixels.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ViewportSize is the visible page area in CSS pixels.
type ViewportSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Event is one classified user interaction or browser condition. Events are
// delivered at-least-once: the tracker retries failed batches indefinitely,
// so duplicates are possible and accepted (no dedup key).
type Event struct {
	ID           uuid.UUID
	SessionID    string
	EventType    EventType
	ElementPath  string
	ElementType  string
	ElementText  string
	Coordinates  *Coordinates
	ViewportSize ViewportSize
	EventData    map[string]any
	Timestamp    int64 // epoch milliseconds
	PageURL      string
	ComponentID  string
	CreatedAt    time.Time
}

// EventRepository persists behavior events in bulk.
type EventRepository interface {
	InsertBatch(ctx context.Context, events []*Event) error
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*Event, error)
	CountByType(ctx context.Context, sessionID string) (map[EventType]int64, error)
}
