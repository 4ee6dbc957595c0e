package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// webhookNotifier delivers a JSON event to an arbitrary HTTP endpoint.
type webhookNotifier struct {
	client *http.Client
}

func newWebhookNotifier(client *http.Client) *webhookNotifier {
	return &webhookNotifier{client: client}
}

type webhookPayload struct {
	AlertName   string         `json:"alert_name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	ActualValue *float64       `json:"actual_value,omitempty"`
	Threshold   *float64       `json:"threshold,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

func (n *webhookNotifier) Send(ctx context.Context, target *conf.WebhookTarget, msg *Message) error {
	var body io.Reader
	if target.Method != http.MethodGet {
		payload := webhookPayload{
			AlertName:   msg.AlertName,
			Description: msg.Description,
			Status:      msg.Status,
			ActualValue: msg.ActualValue,
			Threshold:   msg.Threshold,
			Context:     msg.Context,
			Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(errors.CategoryNotification, err, "failed to encode webhook payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, target.Method, target.URL, body)
	if err != nil {
		return errors.Wrap(errors.CategoryNotification, err, "failed to build webhook request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range target.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.CategoryNotification, err, "failed to call webhook")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Newf(errors.CategoryNotification,
			"webhook %s returned %d: %s", target.URL, resp.StatusCode, string(snippet))
	}
	return nil
}
