package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// Channel identifies a notification channel type. Resolved once at config
// load; dispatch switches on this value, never on raw strings from the file.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelWebhook Channel = "webhook"
)

// EmailTarget is the payload for an email notification target.
type EmailTarget struct {
	Recipients []string `yaml:"recipients"`
	Subject    string   `yaml:"subject"`
}

// SlackTarget is the payload for a Slack webhook notification target.
type SlackTarget struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// WebhookTarget is the payload for a generic HTTP webhook target.
type WebhookTarget struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
}

// NotifyTarget is a tagged union over the three channel payloads. Exactly
// one of Email, Slack, Webhook is non-nil, matching Channel.
type NotifyTarget struct {
	Channel Channel
	Email   *EmailTarget
	Slack   *SlackTarget
	Webhook *WebhookTarget
}

// UnmarshalYAML reads the channel discriminator and decodes the remaining
// keys into the matching payload shape.
func (t *NotifyTarget) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Channel string `yaml:"channel"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	if head.Channel == "" {
		return fmt.Errorf("notification target missing 'channel' field")
	}

	switch Channel(strings.ToLower(head.Channel)) {
	case ChannelEmail:
		var payload EmailTarget
		if err := value.Decode(&payload); err != nil {
			return fmt.Errorf("invalid email target: %w", err)
		}
		if len(payload.Recipients) == 0 {
			return fmt.Errorf("email target requires at least one recipient")
		}
		for _, addr := range payload.Recipients {
			if !strings.Contains(addr, "@") {
				return fmt.Errorf("invalid email address: %s", addr)
			}
		}
		t.Channel = ChannelEmail
		t.Email = &payload
	case ChannelSlack:
		var payload SlackTarget
		if err := value.Decode(&payload); err != nil {
			return fmt.Errorf("invalid slack target: %w", err)
		}
		if !strings.HasPrefix(payload.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("invalid Slack webhook URL: must start with https://hooks.slack.com/")
		}
		t.Channel = ChannelSlack
		t.Slack = &payload
	case ChannelWebhook:
		var payload WebhookTarget
		if err := value.Decode(&payload); err != nil {
			return fmt.Errorf("invalid webhook target: %w", err)
		}
		if !strings.HasPrefix(payload.URL, "http://") && !strings.HasPrefix(payload.URL, "https://") {
			return fmt.Errorf("webhook URL must start with http:// or https://")
		}
		if payload.Method == "" {
			payload.Method = "POST"
		}
		payload.Method = strings.ToUpper(payload.Method)
		switch payload.Method {
		case "GET", "POST", "PUT", "PATCH":
		default:
			return fmt.Errorf("invalid webhook HTTP method: %s", payload.Method)
		}
		t.Channel = ChannelWebhook
		t.Webhook = &payload
	default:
		return fmt.Errorf("invalid notification channel %q (valid: email, slack, webhook)", head.Channel)
	}
	return nil
}

// AlertDefinition is one configured alert. Immutable per reload cycle: the
// scheduler replaces its definition snapshot wholesale on reload.
type AlertDefinition struct {
	Name        string
	Description string
	Query       string
	Schedule    string
	Notify      []NotifyTarget
	Enabled     bool
}

type rawAlert struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Query       string         `yaml:"query"`
	Schedule    string         `yaml:"schedule"`
	Notify      []NotifyTarget `yaml:"notify"`
	Enabled     *bool          `yaml:"enabled"`
}

type alertsFile struct {
	Alerts []rawAlert `yaml:"alerts"`
}

// scheduleParser accepts standard 5-field cron expressions.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a parsable cron expression.
func ValidateSchedule(expr string) error {
	if _, err := scheduleParser.Parse(expr); err != nil {
		return errors.Newf(errors.CategoryConfiguration, "invalid cron schedule %q: %v", expr, err)
	}
	return nil
}

// LoadAlerts reads and validates alert definitions from a YAML file.
func LoadAlerts(path string) ([]AlertDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryConfiguration, err, "failed to read alerts file")
	}
	return ParseAlerts(data)
}

// ParseAlerts validates alert definitions from raw YAML content.
func ParseAlerts(data []byte) ([]AlertDefinition, error) {
	var file alertsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.CategoryConfiguration, err, "failed to parse alerts YAML")
	}
	if len(file.Alerts) == 0 {
		return nil, errors.New(errors.CategoryConfiguration, "alerts file must contain a non-empty 'alerts' list")
	}

	seen := make(map[string]struct{}, len(file.Alerts))
	defs := make([]AlertDefinition, 0, len(file.Alerts))
	for i := range file.Alerts {
		raw := &file.Alerts[i]
		if strings.TrimSpace(raw.Name) == "" {
			return nil, errors.Newf(errors.CategoryValidation, "alert at index %d has no name", i)
		}
		if strings.TrimSpace(raw.Query) == "" {
			return nil, errors.Newf(errors.CategoryValidation, "alert %q has an empty query", raw.Name)
		}
		if err := ValidateSchedule(raw.Schedule); err != nil {
			return nil, errors.Wrap(errors.CategoryValidation, err,
				fmt.Sprintf("alert %q has an invalid schedule", raw.Name))
		}
		if _, dup := seen[raw.Name]; dup {
			return nil, errors.Newf(errors.CategoryValidation, "duplicate alert name: %s", raw.Name)
		}
		seen[raw.Name] = struct{}{}

		enabled := true
		if raw.Enabled != nil {
			enabled = *raw.Enabled
		}
		defs = append(defs, AlertDefinition{
			Name:        raw.Name,
			Description: raw.Description,
			Query:       strings.TrimSpace(raw.Query),
			Schedule:    raw.Schedule,
			Notify:      raw.Notify,
			Enabled:     enabled,
		})
	}
	return defs, nil
}
