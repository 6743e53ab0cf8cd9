package logger

import "strings"

const redacted = "[REDACTED]"

// field names whose values never reach log output
var sensitiveKeys = []string{"authorization", "token", "secret", "password", "dsn"}

func sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// redact copies fields, masking sensitive keys at any depth of nested maps.
func redact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch {
		case sensitive(key):
			out[key] = redacted
		default:
			if nested, ok := value.(map[string]any); ok {
				value = redact(nested)
			}
			out[key] = value
		}
	}
	return out
}
