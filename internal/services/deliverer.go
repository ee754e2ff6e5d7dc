package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elliottgriff/SafeVoice/internal/models"
)

// Deliverer is the platform notification boundary. When Authorized returns
// false the notification center still records the notification in the
// pending inbox; only the external alert is skipped.
type Deliverer interface {
	Authorized() bool
	Deliver(ctx context.Context, n models.Notification) error
}

// WebhookDeliverer pushes fired notifications to a configured endpoint as
// JSON, standing in for the platform push channel.
type WebhookDeliverer struct {
	url    string
	client *http.Client
}

func NewWebhookDeliverer(url string, timeout time.Duration) *WebhookDeliverer {
	return &WebhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *WebhookDeliverer) Authorized() bool {
	return d.url != ""
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// LogDeliverer writes fired notifications to the log only. Used when no
// webhook is configured.
type LogDeliverer struct{}

func (LogDeliverer) Authorized() bool { return true }

func (LogDeliverer) Deliver(_ context.Context, n models.Notification) error {
	slog.Info("notification fired", "notification_id", n.ID, "type", string(n.Type), "title", n.Title)
	return nil
}
