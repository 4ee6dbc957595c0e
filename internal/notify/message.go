// Package notify delivers alert notifications over email, Slack, and
// generic HTTP webhooks, with a shared retry policy applied per target.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Message is the channel-independent content of one alert notification.
// Channels render it into their own wire shapes but never alter the facts.
type Message struct {
	AlertName   string
	Description string
	Status      string
	ActualValue *float64
	Threshold   *float64
	Context     map[string]any
	ContextKeys []string // deterministic render order for Context
	Timestamp   time.Time
}

// Subject returns the standard notification subject line.
func (m *Message) Subject() string {
	return fmt.Sprintf("[SQL Sentinel] Alert: %s", m.AlertName)
}

// Body renders the plain-text notification body: one labeled line per
// known field, then context fields in ContextKeys order.
func (m *Message) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert: %s\n", m.AlertName)
	if m.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", m.Description)
	}
	fmt.Fprintf(&b, "Status: %s\n", m.Status)
	if m.ActualValue != nil {
		fmt.Fprintf(&b, "Actual value: %g\n", *m.ActualValue)
	}
	if m.Threshold != nil {
		fmt.Fprintf(&b, "Threshold: %g\n", *m.Threshold)
	}
	for _, key := range m.ContextKeys {
		fmt.Fprintf(&b, "%s: %v\n", key, m.Context[key])
	}
	fmt.Fprintf(&b, "Time: %s\n", m.Timestamp.UTC().Format(time.RFC3339))
	return b.String()
}
