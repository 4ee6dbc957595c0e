package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testMessage() *Message {
	actual := 42.5
	threshold := 100.0
	return &Message{
		AlertName:   "revenue_check",
		Description: "Daily revenue below threshold",
		Status:      "ALERT",
		ActualValue: &actual,
		Threshold:   &threshold,
		Context:     map[string]any{"region": "eu-west", "currency": "EUR"},
		ContextKeys: []string{"currency", "region"},
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestMessage_Subject(t *testing.T) {
	assert.Equal(t, "[SQL Sentinel] Alert: revenue_check", testMessage().Subject())
}

func TestMessage_Body(t *testing.T) {
	body := testMessage().Body()

	assert.Contains(t, body, "Alert: revenue_check\n")
	assert.Contains(t, body, "Description: Daily revenue below threshold\n")
	assert.Contains(t, body, "Status: ALERT\n")
	assert.Contains(t, body, "Actual value: 42.5\n")
	assert.Contains(t, body, "Threshold: 100\n")
	assert.Contains(t, body, "currency: EUR\n")
	assert.Contains(t, body, "region: eu-west\n")
	assert.Contains(t, body, "Time: 2026-03-14T09:00:00Z\n")
}

func TestMessage_BodyOmitsAbsentFields(t *testing.T) {
	msg := &Message{AlertName: "ping", Status: "ALERT", Timestamp: time.Now()}
	body := msg.Body()

	assert.NotContains(t, body, "Description:")
	assert.NotContains(t, body, "Actual value:")
	assert.NotContains(t, body, "Threshold:")
}
