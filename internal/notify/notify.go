package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dnswatch/internal/model"
)

// Notifier is the boundary to the alerting layer. The engine hands over a
// CheckResult; rendering and delivery details live behind this interface.
type Notifier interface {
	Notify(ctx context.Context, res model.CheckResult) error
}

// ShouldNotify is the documented consumer filter: alert on a confirmed change
// (not the baseline-establishing first check) or on resolver disagreement.
func ShouldNotify(res model.CheckResult) bool {
	return (res.HasChanged && !res.IsFirstCheck) || res.Discrepancy
}

// WebhookNotifier POSTs the check result as JSON to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, res model.CheckResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier is used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, res model.CheckResult) error {
	return nil
}
