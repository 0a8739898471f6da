// Package alerts notifies operators about background failures.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Alerter interface {
	Alert(ctx context.Context, event, message string) error
}

type nop struct{}

func (nop) Alert(context.Context, string, string) error { return nil }

// Nop drops every alert.
func Nop() Alerter { return nop{} }

// Webhook posts alerts as JSON to a fixed URL (Slack-compatible "text"
// field included).
type Webhook struct {
	url    string
	client *http.Client
	source string
}

func NewWebhook(url, source string) *Webhook {
	return &Webhook{url: url, source: source, client: &http.Client{Timeout: 10 * time.Second}}
}

type payload struct {
	Text    string    `json:"text"`
	Event   string    `json:"event"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func (w *Webhook) Alert(ctx context.Context, event, message string) error {
	body, err := json.Marshal(payload{
		Text:    fmt.Sprintf("[%s] %s: %s", w.source, event, message),
		Event:   event,
		Source:  w.source,
		Message: message,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %s", resp.Status)
	}
	return nil
}
