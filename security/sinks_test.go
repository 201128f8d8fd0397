package security

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSinkSignsPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotType      string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("X-Immoxx-Event")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "s3cret", SeverityHigh)
	e := Event{ID: "e1", Type: EventUpstreamUnavailable, Severity: SeverityHigh, Message: "down", CreatedAt: time.Unix(0, 0)}
	require.NoError(t, sink.Deliver(context.Background(), e))

	assert.Equal(t, EventUpstreamUnavailable, gotType)
	assert.Equal(t, Sign("s3cret", gotBody), gotSignature)

	var payload struct {
		Service string `json:"service"`
		Event   Event  `json:"event"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "immoxx-gateway", payload.Service)
	assert.Equal(t, SeverityHigh, payload.Event.Severity)
	assert.Equal(t, "e1", payload.Event.ID)
}

func TestWebhookSinkReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "", SeverityLow)
	err := sink.Deliver(context.Background(), Event{Type: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

type fakeMailer struct {
	to      []string
	subject string
	body    string
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func TestEmailSinkFormatsAlert(t *testing.T) {
	mailer := &fakeMailer{}
	sink := &EmailSink{Mailer: mailer, To: []string{"ops@immoxx.de"}, Min: SeverityCritical}

	e := Event{
		ID: "e2", Type: EventPanicRecovered, Severity: SeverityCritical, Message: "handler panicked",
		IP: "1.1.1.1", Path: "/api/admin/x", CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Details: map[string]interface{}{"b": 2, "a": "one"},
	}
	require.NoError(t, sink.Deliver(context.Background(), e))

	assert.Equal(t, []string{"ops@immoxx.de"}, mailer.to)
	assert.Equal(t, "[immoxx][CRITICAL] panic_recovered", mailer.subject)
	assert.True(t, strings.HasPrefix(mailer.body, "handler panicked\n"))
	assert.Contains(t, mailer.body, "2026-02-03T04:05:06Z")
	assert.Less(t, strings.Index(mailer.body, "a: one"), strings.Index(mailer.body, "b: 2"))
	assert.Contains(t, mailer.body, "Event ID: e2")
}
