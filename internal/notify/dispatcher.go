package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
)

// TargetResult is the outcome of delivering one notification target.
type TargetResult struct {
	Channel conf.Channel
	Err     error
}

// Dispatcher fans one message out to an alert's notification targets,
// applying the shared retry policy to each target independently. A target
// failure never aborts delivery to the remaining targets.
type Dispatcher struct {
	email   *emailNotifier
	slack   *slackNotifier
	webhook *webhookNotifier
	retry   *RetryPolicy
	log     logger.Logger
}

// NewDispatcher wires a dispatcher from runtime settings.
func NewDispatcher(settings *conf.Settings, log logger.Logger) *Dispatcher {
	timeout := settings.Notify.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return &Dispatcher{
		email:   newEmailNotifier(settings.SMTP),
		slack:   newSlackNotifier(client),
		webhook: newWebhookNotifier(client),
		retry:   NewRetryPolicy(settings.Notify.MaxRetries, settings.Notify.RetryBaseDelay.Std()),
		log:     log.With(logger.String("component", "notify")),
	}
}

// DispatchAll delivers msg to every target in order and returns one result
// per target. Results preserve target order.
func (d *Dispatcher) DispatchAll(ctx context.Context, targets []conf.NotifyTarget, msg *Message) []TargetResult {
	results := make([]TargetResult, 0, len(targets))
	for i := range targets {
		target := &targets[i]
		err := d.dispatch(ctx, target, msg)
		if err != nil {
			d.log.Error("notification delivery failed",
				logger.String("alert", msg.AlertName),
				logger.String("channel", string(target.Channel)),
				logger.Error(err))
		} else {
			d.log.Info("notification delivered",
				logger.String("alert", msg.AlertName),
				logger.String("channel", string(target.Channel)))
		}
		results = append(results, TargetResult{Channel: target.Channel, Err: err})
	}
	return results
}

func (d *Dispatcher) dispatch(ctx context.Context, target *conf.NotifyTarget, msg *Message) error {
	switch target.Channel {
	case conf.ChannelEmail:
		return d.retry.Do(ctx, "email notification", func() error {
			return d.email.Send(ctx, target.Email, msg)
		})
	case conf.ChannelSlack:
		return d.retry.Do(ctx, "slack notification", func() error {
			return d.slack.Send(ctx, target.Slack, msg)
		})
	case conf.ChannelWebhook:
		return d.retry.Do(ctx, "webhook notification", func() error {
			return d.webhook.Send(ctx, target.Webhook, msg)
		})
	default:
		return errors.Newf(errors.CategoryConfiguration, "unknown notification channel %q", target.Channel)
	}
}
