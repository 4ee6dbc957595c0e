package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// emailNotifier sends mail through the configured SMTP relay using a
// shoutrrr smtp service URL.
type emailNotifier struct {
	smtp conf.SMTPSettings

	// send is swappable for tests; defaults to shoutrrrSend.
	send func(serviceURL, body string, params *types.Params) error
}

func newEmailNotifier(smtp conf.SMTPSettings) *emailNotifier {
	return &emailNotifier{smtp: smtp, send: shoutrrrSend}
}

func (n *emailNotifier) Send(ctx context.Context, target *conf.EmailTarget, msg *Message) error {
	if n.smtp.Host == "" {
		return errors.New(errors.CategoryConfiguration, "smtp host not configured")
	}

	subject := target.Subject
	if subject == "" {
		subject = msg.Subject()
	}

	serviceURL := n.serviceURL(target.Recipients)
	if err := n.send(serviceURL, msg.Body(), &types.Params{"subject": subject}); err != nil {
		return errors.Wrap(errors.CategoryNotification, err,
			fmt.Sprintf("failed to send email to %s", strings.Join(target.Recipients, ", ")))
	}
	return nil
}

func (n *emailNotifier) serviceURL(recipients []string) string {
	u := url.URL{
		Scheme: "smtp",
		Host:   fmt.Sprintf("%s:%d", n.smtp.Host, n.smtp.Port),
		Path:   "/",
	}
	if n.smtp.Username != "" {
		u.User = url.UserPassword(n.smtp.Username, n.smtp.Password)
	}

	q := url.Values{}
	q.Set("from", n.smtp.From)
	q.Set("to", strings.Join(recipients, ","))
	if !n.smtp.UseTLS {
		q.Set("usestarttls", "no")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func shoutrrrSend(serviceURL, body string, params *types.Params) error {
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return fmt.Errorf("failed to create smtp sender: %w", err)
	}
	for _, err := range sender.Send(body, params) {
		if err != nil {
			return err
		}
	}
	return nil
}
