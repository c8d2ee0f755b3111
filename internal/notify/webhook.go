package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clearwell-health/patient-portal/internal/observability/metrics"
	"github.com/clearwell-health/patient-portal/pkg/logging"
)

// WebhookNotifier posts appointment lifecycle events to the provider-side
// scheduling system. Delivery is best effort: failures are logged and counted,
// never surfaced to the booking flow.
type WebhookNotifier struct {
	client  *http.Client
	url     string
	token   string
	logger  *logging.Logger
	metrics *metrics.AppointmentMetrics
}

// NewWebhookNotifier creates a notifier targeting the given webhook URL.
// Returns nil when no URL is configured so callers can wire it conditionally.
func NewWebhookNotifier(url, token string, logger *logging.Logger) *WebhookNotifier {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		token:  token,
		logger: logger,
	}
}

// WithMetrics attaches delivery counters.
func (n *WebhookNotifier) WithMetrics(am *metrics.AppointmentMetrics) *WebhookNotifier {
	n.metrics = am
	return n
}

type webhookEvent struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointmentId"`
	SentAt        string `json:"sentAt"`
}

// Notify posts the event. Any failure is swallowed after logging.
func (n *WebhookNotifier) Notify(ctx context.Context, eventType, appointmentID string) {
	body, err := json.Marshal(webhookEvent{
		Type:          eventType,
		AppointmentID: appointmentID,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		n.logger.Error("webhook payload encode failed", "error", err)
		n.metrics.ObserveNotification(eventType, "error")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("webhook request build failed", "error", err)
		n.metrics.ObserveNotification(eventType, "error")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("webhook delivery failed", "error", err, "event", eventType, "appointment_id", appointmentID)
		n.metrics.ObserveNotification(eventType, "error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Error("webhook rejected", "status", resp.StatusCode, "event", eventType, "appointment_id", appointmentID)
		n.metrics.ObserveNotification(eventType, fmt.Sprintf("http_%d", resp.StatusCode))
		return
	}

	n.logger.Info("provider notified", "event", eventType, "appointment_id", appointmentID)
	n.metrics.ObserveNotification(eventType, "delivered")
}
