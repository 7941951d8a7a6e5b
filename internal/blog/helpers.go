package blog

import (
	"time"

	"github.com/summitroofing/beacon/internal/domain"
)

// Debug, Info, Warn, Error and Fatal are level shorthands.
func (l *Logger) Debug(category domain.LogCategory, message string, metadata map[string]any) {
	l.Log(domain.LevelDebug, category, message, metadata, nil)
}

func (l *Logger) Info(category domain.LogCategory, message string, metadata map[string]any) {
	l.Log(domain.LevelInfo, category, message, metadata, nil)
}

func (l *Logger) Warn(category domain.LogCategory, message string, metadata map[string]any) {
	l.Log(domain.LevelWarn, category, message, metadata, nil)
}

func (l *Logger) Error(category domain.LogCategory, message string, err error, metadata map[string]any) {
	l.Log(domain.LevelError, category, message, metadata, err)
}

func (l *Logger) Fatal(category domain.LogCategory, message string, err error, metadata map[string]any) {
	l.Log(domain.LevelFatal, category, message, metadata, err)
}

// ErrorWithContext records an error with the component it occurred in.
func (l *Logger) ErrorWithContext(message string, err error, component string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["component"] = component
	l.Log(domain.LevelError, domain.CategoryServer, message, metadata, err)
}

// Performance records a named metric sample.
func (l *Logger) Performance(metric string, value float64, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["metric"] = metric
	metadata["value"] = value
	l.Log(domain.LevelInfo, domain.CategoryPerformance, "performance metric: "+metric, metadata, nil)
}

// UserAction records an explicit visitor action.
func (l *Logger) UserAction(action string, metadata map[string]any) {
	l.Log(domain.LevelInfo, domain.CategoryUserAction, action, metadata, nil)
}

// NetworkRequest records an outbound request at DEBUG, or ERROR when the
// request itself failed.
func (l *Logger) NetworkRequest(method, url string, status int, duration time.Duration, err error) {
	metadata := map[string]any{
		"method":     method,
		"url":        url,
		"status":     status,
		"durationMs": duration.Milliseconds(),
	}
	level := domain.LevelDebug
	if err != nil || status >= 400 {
		level = domain.LevelError
	}
	l.Log(level, domain.CategoryNetwork, method+" "+url, metadata, err)
}

// DatabaseOperation records a store call at DEBUG, or ERROR when it failed.
func (l *Logger) DatabaseOperation(operation, table string, duration time.Duration, err error) {
	metadata := map[string]any{
		"operation":  operation,
		"table":      table,
		"durationMs": duration.Milliseconds(),
	}
	level := domain.LevelDebug
	if err != nil {
		level = domain.LevelError
	}
	l.Log(level, domain.CategoryDatabase, operation+" "+table, metadata, err)
}

// Validation records a rejected input at WARN.
func (l *Logger) Validation(field, reason string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["field"] = field
	metadata["reason"] = reason
	l.Log(domain.LevelWarn, domain.CategoryValidation, "validation failed: "+field, metadata, nil)
}

// RenderTiming records a component render duration at DEBUG. Gated by the
// EnableRenderTiming flag because it fires on every render.
func (l *Logger) RenderTiming(component string, duration time.Duration) {
	if !l.cfg.EnableRenderTiming {
		return
	}
	l.Log(domain.LevelDebug, domain.CategoryRendering, "render: "+component, map[string]any{
		"component":  component,
		"durationMs": duration.Milliseconds(),
	}, nil)
}

// Security records a security-relevant occurrence at WARN.
func (l *Logger) Security(event string, metadata map[string]any) {
	l.Log(domain.LevelWarn, domain.CategorySecurity, event, metadata, nil)
}
