package instance

import (
	"os"
	"strings"
)

const fallbackID = "sppg-worker"

// GetID identifies this process in lock values and logs. SPPG_INSTANCE_ID wins,
// then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("SPPG_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
