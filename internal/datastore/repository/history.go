package repository

import (
	"context"

	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
)

// HistoryFilter controls execution history listing. An empty AlertName
// matches all alerts.
type HistoryFilter struct {
	AlertName string
	Limit     int
	Offset    int
}

// ExecutionStats aggregates execution history over a trailing window.
type ExecutionStats struct {
	Total         int64   `json:"total"`
	Alerts        int64   `json:"alerts"`
	Oks           int64   `json:"oks"`
	Errors        int64   `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}

// HistoryRepository handles the append-only execution history.
type HistoryRepository interface {
	// Record appends an execution record and returns its assigned ID.
	Record(ctx context.Context, record *entities.Execution) (uint, error)
	// List returns records newest-first.
	List(ctx context.Context, filter HistoryFilter) ([]entities.Execution, error)
	// Latest returns the most recent record for an alert, or nil.
	Latest(ctx context.Context, alertName string) (*entities.Execution, error)
	// PurgeOlderThan deletes records older than the given number of days,
	// optionally scoped to one alert. Days must be positive.
	PurgeOlderThan(ctx context.Context, alertName string, days int) (int64, error)
	// Statistics aggregates counts and durations over the trailing window.
	// Returns a zero aggregate when no data exists.
	Statistics(ctx context.Context, alertName string, days int) (*ExecutionStats, error)
}
