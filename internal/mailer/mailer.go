// Package mailer delivers magic-link sign-in emails through an HTTP mail
// gateway. The gateway receives a small JSON document and is responsible
// for actual SMTP delivery; without a configured gateway the link is only
// logged, which is enough for local development.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Mailer struct {
	webhookURL string
	from       string
	client     *http.Client
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func New(webhookURL, from string) *Mailer {
	return &Mailer{
		webhookURL: webhookURL,
		from:       from,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMagicLink posts a sign-in email to the gateway.
func (m *Mailer) SendMagicLink(ctx context.Context, to, link string, expiresAt time.Time) error {
	if m.webhookURL == "" {
		slog.InfoContext(ctx, "Mail gateway not configured, logging magic link instead",
			"email", to, "link", link)
		return nil
	}

	msg := message{
		From:    m.from,
		To:      to,
		Subject: "Your sign-in link",
		Text: fmt.Sprintf(
			"Click the link below to sign in:\n\n%s\n\nThe link expires at %s and works once.",
			link, expiresAt.Format(time.RFC1123)),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to mail gateway: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail gateway returned status %d", resp.StatusCode)
	}

	slog.InfoContext(ctx, "Magic link delivered", "email", to)
	return nil
}
