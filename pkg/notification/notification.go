// Package notification implements the single end-of-run notification
// step: one message per run, carrying the preliminary status.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nova-retail/catalogsync/core"
)

// Status is the preliminary run status communicated to whoever is
// watching the pipeline.
type Status string

const (
	StatusFailed              Status = "failed"
	StatusSuccess             Status = "success"
	StatusSuccessWithWarning  Status = "success_with_warning"
)

// Payload is the body sent to the configured webhook.
type Payload struct {
	RunID        string `json:"run_id"`
	Status       Status `json:"status"`
	WarningCount int    `json:"warning_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Notifier sends the end-of-run notification. Its failure makes the
// whole run failed, so it is kept a narrow, mockable interface.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

// WebhookNotifier POSTs the payload as JSON to a configured URL.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
	Logger core.Logger
}

// NewWebhookNotifier builds a WebhookNotifier with sane client defaults.
func NewWebhookNotifier(url string, logger core.Logger) *WebhookNotifier {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notification: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notification: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification: webhook returned status %d", resp.StatusCode)
	}
	n.Logger.Info("notification_sent", map[string]interface{}{"run_id": p.RunID, "status": string(p.Status)})
	return nil
}
