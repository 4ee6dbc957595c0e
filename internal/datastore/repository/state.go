// Package repository provides persistence for alert state and execution
// history over GORM.
package repository

import (
	"context"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
)

// StateRepository handles per-alert durable state.
type StateRepository interface {
	// GetState returns the state row for an alert, or a fresh zero-value
	// state when none exists yet.
	GetState(ctx context.Context, alertName string) (*entities.AlertState, error)
	// SaveState upserts the state row.
	SaveState(ctx context.Context, state *entities.AlertState) error
	// Silence sets silencedUntil to now+duration. Duration must be positive.
	Silence(ctx context.Context, alertName string, duration time.Duration) error
	// Unsilence clears silencedUntil. It does not reset currentStatus.
	Unsilence(ctx context.Context, alertName string) error
	// DeleteState removes the state row. Explicit operator action only.
	DeleteState(ctx context.Context, alertName string) error
	// ListStates returns all state rows ordered by alert name.
	ListStates(ctx context.Context) ([]entities.AlertState, error)
}
