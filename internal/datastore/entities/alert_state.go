// Package entities defines the GORM models for SQL Sentinel's internal
// tables: per-alert durable state and the append-only execution history.
package entities

import (
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
)

// AlertState is the durable per-alert state driving deduplication,
// escalation, and silencing decisions. One row per alert name, created
// lazily on first execution and never deleted automatically.
type AlertState struct {
	AlertName               string     `gorm:"primaryKey;size:255;column:alert_name"`
	LastExecutedAt          *time.Time `gorm:"column:last_executed_at"`
	LastAlertAt             *time.Time `gorm:"column:last_alert_at"`
	LastOkAt                *time.Time `gorm:"column:last_ok_at"`
	ConsecutiveAlerts       int        `gorm:"not null;default:0"`
	ConsecutiveOks          int        `gorm:"not null;default:0"`
	CurrentStatus           string     `gorm:"size:50"` // ALERT, OK, ERROR; empty = never run
	SilencedUntil           *time.Time `gorm:"column:silenced_until"`
	EscalationCount         int        `gorm:"not null;default:0"`
	NotificationFailures    int        `gorm:"not null;default:0"`
	LastNotificationChannel string     `gorm:"size:50"`
	UpdatedAt               time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (AlertState) TableName() string {
	return "sqlsentinel_state"
}

// IsSilenced reports whether the alert is silenced at the given instant.
// A silence window entirely in the past counts as not silenced.
func (s *AlertState) IsSilenced(now time.Time) bool {
	return s.SilencedUntil != nil && now.Before(*s.SilencedUntil)
}

// ShouldNotify decides whether a notification is warranted for newStatus:
//   - never while silenced;
//   - never for OK or ERROR;
//   - never within minInterval of the last ALERT (when minInterval > 0);
//   - otherwise only on a transition into the alerting state. A repeat
//     ALERT while already alerting is deduplicated.
func (s *AlertState) ShouldNotify(newStatus string, minInterval time.Duration, now time.Time) bool {
	if s.IsSilenced(now) {
		return false
	}
	if newStatus != alert.StatusAlert {
		return false
	}
	if minInterval > 0 && s.LastAlertAt != nil && now.Sub(*s.LastAlertAt) < minInterval {
		return false
	}
	return s.CurrentStatus != alert.StatusAlert
}

// ApplyStatus folds a new execution status into the state. ALERT and OK
// keep the consecutive counters mutually exclusive; ERROR freezes them. A
// repeat ALERT bumps the escalation counter for future intensity policy.
func (s *AlertState) ApplyStatus(newStatus string, now time.Time) {
	switch newStatus {
	case alert.StatusAlert:
		if s.CurrentStatus == alert.StatusAlert {
			s.EscalationCount++
		}
		s.ConsecutiveAlerts++
		s.ConsecutiveOks = 0
		s.LastAlertAt = &now
	case alert.StatusOK:
		s.ConsecutiveOks++
		s.ConsecutiveAlerts = 0
		s.LastOkAt = &now
	}
	// ERROR leaves counters and last-seen timestamps untouched.
	s.LastExecutedAt = &now
	s.CurrentStatus = newStatus
	s.UpdatedAt = now
}
