package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyCSPReport(t *testing.T) {
	body := []byte(`{"csp-report":{"document-uri":"https://immoxx.de/objekte","blocked-uri":"https://evil.example/x.js","violated-directive":"script-src-elem","disposition":"enforce"}}`)

	events, err := ParseCSPReport(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, EventCSPViolation, e.Type)
	assert.Equal(t, SeverityLow, e.Severity)
	assert.Equal(t, "https://evil.example/x.js", e.Details["blocked_uri"])
	assert.Equal(t, "script-src-elem", e.Details["directive"])
}

func TestParseReportingAPIBatch(t *testing.T) {
	body := []byte(`[
		{"type":"csp-violation","body":{"documentURL":"https://immoxx.de/","blockedURL":"inline","effectiveDirective":"style-src","disposition":"report"}},
		{"type":"deprecation","body":{"id":"x"}},
		{"type":"csp-violation","body":{"documentURL":"https://immoxx.de/kontakt","blockedURL":"eval","effectiveDirective":"script-src"}}
	]`)

	events, err := ParseCSPReport(body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "inline", events[0].Details["blocked_uri"])
	assert.Equal(t, "https://immoxx.de/kontakt", events[1].Details["document_uri"])
}

func TestParseCSPReportRejectsGarbage(t *testing.T) {
	for _, body := range []string{`not json`, `{"foo":1}`, `[]`, `[{"type":"deprecation"}]`} {
		_, err := ParseCSPReport([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidCSPReport, body)
	}
}
