package monitor

import (
	"strings"

	"github.com/google/uuid"
)

// CanonicalRoute collapses identifiers so proxied paths group into a small set
// of endpoints: /api/properties/42 becomes /api/properties/:id.
func CanonicalRoute(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 4 {
		parts = append(parts[:4], "*")
	}
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	digits := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	// plain numbers, or slugs ending in a numeric id like "villa-am-see-1234"
	if digits == len(segment) {
		return true
	}
	return digits >= 4 && len(segment) > 20
}
