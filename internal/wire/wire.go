// Package wire defines the JSON payloads exchanged between the tracker/logger
// clients and the beacon ingestion endpoints. Both sides of the module import
// these types so the contract cannot drift.
package wire

// Event is one classified behavior event as it travels over the wire.
type Event struct {
	EventType    string         `json:"eventType"`
	ElementPath  string         `json:"elementPath,omitempty"`
	ElementType  string         `json:"elementType,omitempty"`
	ElementText  string         `json:"elementText,omitempty"`
	Coordinates  *Coordinates   `json:"coordinates,omitempty"`
	ViewportSize ViewportSize   `json:"viewportSize"`
	EventData    map[string]any `json:"eventData"`
	Timestamp    int64          `json:"timestamp"` // epoch ms
	PageURL      string         `json:"pageUrl"`
	ComponentID  string         `json:"componentId,omitempty"`
}

type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ViewportSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Metadata carries session-level client context with every batch.
type Metadata struct {
	UserAgent        string  `json:"userAgent"`
	ScreenResolution string  `json:"screenResolution"`
	Language         string  `json:"language"`
	Timezone         string  `json:"timezone"`
	PageLoadTime     float64 `json:"pageLoadTime"`
}

// BeaconRequest is the body of POST /api/v1/beacon.
type BeaconRequest struct {
	SessionID string   `json:"sessionId"`
	Events    []Event  `json:"events"`
	Metadata  Metadata `json:"metadata"`
}

// BeaconResponse reports "accepted for processing", not "durably committed":
// Processed counts every submitted event even when a sub-batch failed.
type BeaconResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LogEntry is one structured log record as it travels over the wire.
type LogEntry struct {
	ID          string         `json:"id"`
	Timestamp   int64          `json:"timestamp"` // epoch ms
	Level       string         `json:"level"`
	Category    string         `json:"category"`
	Message     string         `json:"message"`
	ErrorStack  string         `json:"errorStack,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	PageURL     string         `json:"pageUrl,omitempty"`
	ComponentID string         `json:"componentId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Environment string         `json:"environment"`
	Version     string         `json:"version"`
}

// LogRequest is the body of POST /api/v1/logs.
type LogRequest struct {
	SessionID string     `json:"sessionId,omitempty"`
	Entries   []LogEntry `json:"entries"`
}

// LogResponse mirrors BeaconResponse for the log sink.
type LogResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed,omitempty"`
	Error     string `json:"error,omitempty"`
}
