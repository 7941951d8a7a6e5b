package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LogLevel is an ordered severity: DEBUG < INFO < WARN < ERROR < FATAL.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLogLevel maps a level name to its ordinal. Unknown names map to INFO.
func ParseLogLevel(s string) LogLevel {
	for lvl, name := range levelNames {
		if name == s {
			return lvl
		}
	}
	return LevelInfo
}

// Levels travel by name on the wire, not by ordinal.

func (l LogLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseLogLevel(s)
	return nil
}

// LogCategory tags a log entry with the subsystem it originated from.
type LogCategory string

const (
	CategoryClient      LogCategory = "client"
	CategoryServer      LogCategory = "server"
	CategoryNetwork     LogCategory = "network"
	CategoryDatabase    LogCategory = "database"
	CategoryAuth        LogCategory = "auth"
	CategoryValidation  LogCategory = "validation"
	CategoryRendering   LogCategory = "rendering"
	CategoryPerformance LogCategory = "performance"
	CategorySecurity    LogCategory = "security"
	CategoryUserAction  LogCategory = "user_action"
	CategorySystem      LogCategory = "system"
	CategoryExternalAPI LogCategory = "external_api"
)

// LogEntry is one structured diagnostic record, independent of behavior
// events. Message and Metadata are sanitized of secret-looking values before
// the entry ever reaches a sink.
type LogEntry struct {
	ID          uuid.UUID
	Timestamp   time.Time
	Level       LogLevel
	Category    LogCategory
	Message     string
	ErrorStack  string
	UserID      string
	SessionID   string
	PageURL     string
	ComponentID string
	Metadata    map[string]any
	Environment string
	Version     string
}

// LogRepository persists structured log entries in bulk.
type LogRepository interface {
	InsertBatch(ctx context.Context, entries []*LogEntry) error
	ListRecent(ctx context.Context, minLevel LogLevel, limit, offset int) ([]*LogEntry, error)
}
