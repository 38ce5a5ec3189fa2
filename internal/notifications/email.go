package notifications

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"shortsfactory/internal/config"
)

// SendMailFunc matches smtp.SendMail so tests can capture messages.
type SendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type emailService struct {
	cfg  config.Notifications
	send SendMailFunc
}

// NewEmailService builds an SMTP channel that only delivers failure events.
// A nil send uses smtp.SendMail.
func NewEmailService(cfg config.Notifications, send SendMailFunc) Service {
	if send == nil {
		send = smtp.SendMail
	}
	return &emailService{cfg: cfg, send: send}
}

func (e *emailService) Publish(ctx context.Context, event Event, payload Payload) error {
	if event != EventStageFailed && event != EventTest {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stage := payloadString(payload, "stage", "pipeline")
	subject := fmt.Sprintf("[Shorts Factory] %s failed", stage)
	if event == EventTest {
		subject = "[Shorts Factory] test notification"
	}
	msg := e.buildMessage(subject, renderFailureHTML(stage, payload))

	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))
	auth := smtp.PlainAuth("", e.cfg.SMTPUser, e.cfg.SMTPPassword, e.cfg.SMTPHost)
	if err := e.send(addr, auth, e.cfg.SMTPUser, recipients(e.cfg.EmailTo), msg); err != nil {
		return fmt.Errorf("send failure email: %w", err)
	}
	return nil
}

func (e *emailService) buildMessage(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: Shorts Factory <%s>\r\n", e.cfg.SMTPUser)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients(e.cfg.EmailTo), ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func renderFailureHTML(stage string, payload Payload) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif;">`)
	fmt.Fprintf(&b, `<h2 style="color:#c0392b;">Job failed: %s</h2>`, html.EscapeString(stage))
	fmt.Fprintf(&b, `<p><strong>Time:</strong> %s</p>`, html.EscapeString(time.Now().UTC().Format(time.RFC3339)))
	fmt.Fprintf(&b, `<p><strong>Error:</strong></p><pre style="background:#f4f4f4;padding:10px;">%s</pre>`,
		html.EscapeString(payloadString(payload, "error", "unknown")))

	keys := make([]string, 0, len(payload))
	for key := range payload {
		if key == "stage" || key == "error" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		b.WriteString(`<table cellpadding="4">`)
		for _, key := range keys {
			fmt.Fprintf(&b, `<tr><td><strong>%s</strong></td><td>%s</td></tr>`,
				html.EscapeString(key), html.EscapeString(payloadString(payload, key, "")))
		}
		b.WriteString(`</table>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func recipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
