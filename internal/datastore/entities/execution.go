package entities

import (
	"encoding/json"
	"time"
)

// Execution records one alert run. Append-only: rows are never mutated
// after insert.
type Execution struct {
	ID                uint      `gorm:"primaryKey"`
	AlertName         string    `gorm:"size:255;not null;index:idx_executions_name_time,priority:1"`
	ExecutedAt        time.Time `gorm:"not null;index:idx_executions_name_time,priority:2"`
	DurationMs        float64   `gorm:"not null"`
	Status            string    `gorm:"size:50;not null"` // ALERT, OK, ERROR
	ActualValue       *float64
	Threshold         *float64
	Query             string `gorm:"type:text;not null"` // snapshot of the SQL that ran
	ErrorMessage      string `gorm:"type:text"`
	TriggeredBy       string `gorm:"size:50;not null"` // CRON, MANUAL, API
	NotificationSent  bool   `gorm:"not null;default:false"`
	NotificationError string `gorm:"type:text"`
	ContextData       string `gorm:"type:text"` // JSON object of extra result columns
}

// TableName returns the table name for GORM.
func (Execution) TableName() string {
	return "sqlsentinel_executions"
}

// SetContext serializes the context map into ContextData. A nil or empty
// map clears the column.
func (e *Execution) SetContext(ctx map[string]any) {
	if len(ctx) == 0 {
		e.ContextData = ""
		return
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		e.ContextData = ""
		return
	}
	e.ContextData = string(data)
}

// Context deserializes ContextData, returning an empty map for missing or
// malformed payloads.
func (e *Execution) Context() map[string]any {
	if e.ContextData == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(e.ContextData), &out); err != nil {
		return map[string]any{}
	}
	return out
}
