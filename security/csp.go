package security

import (
	"errors"

	"github.com/tidwall/gjson"
)

var ErrInvalidCSPReport = errors.New("invalid CSP report")

// ParseCSPReport turns a browser violation report into events. It accepts the
// legacy report-uri body ({"csp-report": {...}}) and the Reporting API array.
func ParseCSPReport(body []byte) ([]Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidCSPReport
	}
	root := gjson.ParseBytes(body)

	if legacy := root.Get("csp-report"); legacy.Exists() {
		return []Event{cspEvent(
			legacy.Get("document-uri").String(),
			legacy.Get("blocked-uri").String(),
			firstNonEmpty(legacy.Get("effective-directive").String(), legacy.Get("violated-directive").String()),
			legacy.Get("disposition").String(),
		)}, nil
	}

	if root.IsArray() {
		var events []Event
		root.ForEach(func(_, report gjson.Result) bool {
			if report.Get("type").String() != "csp-violation" {
				return true
			}
			b := report.Get("body")
			events = append(events, cspEvent(
				b.Get("documentURL").String(),
				b.Get("blockedURL").String(),
				b.Get("effectiveDirective").String(),
				b.Get("disposition").String(),
			))
			return true
		})
		if len(events) > 0 {
			return events, nil
		}
	}

	return nil, ErrInvalidCSPReport
}

func cspEvent(documentURI, blockedURI, directive, disposition string) Event {
	return Event{
		Type:     EventCSPViolation,
		Severity: SeverityLow,
		Message:  "Content security policy violation reported",
		Details: map[string]interface{}{
			"document_uri": documentURI,
			"blocked_uri":  blockedURI,
			"directive":    directive,
			"disposition":  disposition,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
