package security

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/blackt666/immoxx--sub004/utils"
)

const SignatureHeader = "X-Immoxx-Signature"

// WebhookSink posts events as JSON to an external endpoint.
type WebhookSink struct {
	URL     string
	Secret  string
	Service string
	Min     Severity
	Client  *http.Client
}

func NewWebhookSink(url, secret string, min Severity) *WebhookSink {
	return &WebhookSink{
		URL:     url,
		Secret:  secret,
		Service: "immoxx-gateway",
		Min:     min,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSink) Name() string          { return "webhook" }
func (w *WebhookSink) MinSeverity() Severity { return w.Min }

func (w *WebhookSink) Deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(map[string]interface{}{
		"service": w.Service,
		"event":   e,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := map[string]string{"X-Immoxx-Event": e.Type}
	if w.Secret != "" {
		headers[SignatureHeader] = Sign(w.Secret, body)
	}
	return utils.PostJSON(ctx, w.Client, w.URL, body, headers)
}

// Sign returns the "sha256=<hex>" HMAC of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Mailer is satisfied by utils.Mailer.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// EmailSink mails alerts to operators.
type EmailSink struct {
	Mailer Mailer
	To     []string
	Min    Severity
}

func (s *EmailSink) Name() string          { return "email" }
func (s *EmailSink) MinSeverity() Severity { return s.Min }

func (s *EmailSink) Deliver(_ context.Context, e Event) error {
	subject := fmt.Sprintf("[immoxx][%s] %s", strings.ToUpper(e.Severity.String()), e.Type)
	return s.Mailer.Send(s.To, subject, FormatText(e))
}

// FormatText renders an event for humans.
func FormatText(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", e.Message)
	fmt.Fprintf(&b, "Type:     %s\n", e.Type)
	fmt.Fprintf(&b, "Severity: %s\n", e.Severity)
	fmt.Fprintf(&b, "Time:     %s\n", e.CreatedAt.UTC().Format(time.RFC3339))
	if e.IP != "" {
		fmt.Fprintf(&b, "IP:       %s\n", e.IP)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "Path:     %s\n", e.Path)
	}
	if e.UserAgent != "" {
		fmt.Fprintf(&b, "Agent:    %s\n", e.UserAgent)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, e.Details[k])
		}
	}
	fmt.Fprintf(&b, "\nEvent ID: %s\n", e.ID)
	return b.String()
}
