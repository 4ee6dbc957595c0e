package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// slackNotifier posts to a Slack incoming webhook.
type slackNotifier struct {
	client *http.Client
}

func newSlackNotifier(client *http.Client) *slackNotifier {
	return &slackNotifier{client: client}
}

type slackPayload struct {
	Text        string            `json:"text"`
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (n *slackNotifier) Send(ctx context.Context, target *conf.SlackTarget, msg *Message) error {
	payload := slackPayload{
		Text:     msg.Subject(),
		Channel:  target.Channel,
		Username: target.Username,
		Attachments: []slackAttachment{{
			Color:  "danger",
			Fields: n.fields(msg),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.CategoryNotification, err, "failed to encode slack payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.CategoryNotification, err, "failed to build slack request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.CategoryNotification, err, "failed to post to slack webhook")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Newf(errors.CategoryNotification,
			"slack webhook returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

func (n *slackNotifier) fields(msg *Message) []slackField {
	fields := []slackField{
		{Title: "Alert", Value: msg.AlertName, Short: true},
		{Title: "Status", Value: msg.Status, Short: true},
	}
	if msg.Description != "" {
		fields = append(fields, slackField{Title: "Description", Value: msg.Description})
	}
	if msg.ActualValue != nil {
		fields = append(fields, slackField{Title: "Actual value", Value: fmt.Sprintf("%g", *msg.ActualValue), Short: true})
	}
	if msg.Threshold != nil {
		fields = append(fields, slackField{Title: "Threshold", Value: fmt.Sprintf("%g", *msg.Threshold), Short: true})
	}
	for _, key := range msg.ContextKeys {
		fields = append(fields, slackField{Title: key, Value: fmt.Sprintf("%v", msg.Context[key]), Short: true})
	}
	return fields
}
