// Package security collects security and operational notification events,
// logs them, keeps a short in-memory history and forwards the serious ones to
// external sinks.
package security

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = []string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts the lower or upper case name.
func ParseSeverity(name string) (Severity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", name)
}

// AtLeast lists the severity names at or above s.
func (s Severity) AtLeast() []string {
	var out []string
	for i := int(s); i < len(severityNames); i++ {
		if i >= 0 {
			out = append(out, severityNames[i])
		}
	}
	return out
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

const (
	EventRateLimitExceeded     = "rate_limit_exceeded"
	EventLoginFailed           = "login_failed"
	EventAdminLoginFailed      = "admin_login_failed"
	EventAdminLogin            = "admin_login"
	EventInvalidToken          = "invalid_token"
	EventUpstreamUnavailable   = "upstream_unavailable"
	EventPanicRecovered        = "panic_recovered"
	EventCSPViolation          = "csp_violation"
	EventCalendarRefreshFailed = "calendar_token_refresh_failed"
	EventCalendarDeactivated   = "calendar_connection_deactivated"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	IP        string                 `json:"ip,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// RequestEvent builds an event stamped with the caller's address, agent and path.
func RequestEvent(r *http.Request, clientIP, eventType string, severity Severity, message string) Event {
	return Event{
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		IP:        clientIP,
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
	}
}
