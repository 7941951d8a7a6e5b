package blog

import (
	"regexp"
	"strings"
)

// Keys whose values must never reach a sink, matched case-insensitively
// against structural keys in metadata.
var sensitiveKeyRE = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|authorization|credential|private[_-]?key)`)

// Embedded "key=value" / "key: value" pairs inside free-form strings.
var sensitivePairRE = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|authorization)\s*[=:]\s*[^\s,;&]+`)

const redacted = "[REDACTED]"

// sanitizeMessage scrubs secret-looking key=value substrings from a free-form
// string.
func sanitizeMessage(msg string) string {
	return sensitivePairRE.ReplaceAllStringFunc(msg, func(m string) string {
		sep := strings.IndexAny(m, "=:")
		if sep < 0 {
			return redacted
		}
		return m[:sep+1] + redacted
	})
}

// sanitizeMetadata walks arbitrarily nested maps and slices, masking values
// under sensitive keys and scrubbing embedded pairs from string values. The
// input is not mutated.
func sanitizeMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if sensitiveKeyRE.MatchString(k) {
			out[k] = redacted
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeMessage(val)
	case map[string]any:
		return sanitizeMetadata(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
