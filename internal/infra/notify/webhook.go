package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/vietddude/salvage/internal/core/domain"
)

const defaultTimeout = 5 * time.Second

// WebhookNotifier POSTs escalation entries as JSON to an operator endpoint.
// Calls run behind a circuit breaker so a dead alerting endpoint cannot stall
// escalation workers; an open breaker surfaces as a NotificationError.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a notifier for the given endpoint. A
// non-positive timeout falls back to 5s.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "escalation-webhook",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Notify posts the escalation entry.
func (n *WebhookNotifier) Notify(ctx context.Context, entry domain.EscalationEntry) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, entry)
	})
	if err != nil {
		return &NotificationError{Target: n.url, Err: err}
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, entry domain.EscalationEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
