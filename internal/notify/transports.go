package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"time"

	"task-reminder/backend/internal/models"
)

// WebhookPusher posts the payload to the subscription endpoint. A 404
// or 410 response means the endpoint no longer exists and maps to
// ErrEndpointGone; anything else non-2xx is transient.
type WebhookPusher struct {
	client *http.Client
}

func NewWebhookPusher(timeout time.Duration) *WebhookPusher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPusher{client: &http.Client{Timeout: timeout}}
}

func (p *WebhookPusher) Push(ctx context.Context, sub models.PushSubscription, payload PushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return fmt.Errorf("endpoint %s: %w", sub.Endpoint, ErrEndpointGone)
	case resp.StatusCode >= 300:
		return fmt.Errorf("push to %s: unexpected status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}

// SMTPMailer sends reminder emails through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes deliveries to the log instead of sending them. Used
// when no SMTP relay is configured, typically in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail (dry run): to=%s subject=%q", to, subject)
	return nil
}
