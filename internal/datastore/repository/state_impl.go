package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// stateRepository implements StateRepository.
type stateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a StateRepository backed by db.
func NewStateRepository(db *gorm.DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) GetState(ctx context.Context, alertName string) (*entities.AlertState, error) {
	var state entities.AlertState
	err := r.db.WithContext(ctx).First(&state, "alert_name = ?", alertName).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &entities.AlertState{AlertName: alertName}, nil
		}
		return nil, errors.Wrap(errors.CategoryExecution, err,
			fmt.Sprintf("failed to get state for alert %q", alertName))
	}
	return &state, nil
}

func (r *stateRepository) SaveState(ctx context.Context, state *entities.AlertState) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "alert_name"}},
			UpdateAll: true,
		}).
		Create(state).Error
	if err != nil {
		return errors.Wrap(errors.CategoryExecution, err,
			fmt.Sprintf("failed to save state for alert %q", state.AlertName))
	}
	return nil
}

func (r *stateRepository) Silence(ctx context.Context, alertName string, duration time.Duration) error {
	if duration <= 0 {
		return errors.New(errors.CategoryValidation, "silence duration must be positive")
	}

	now := time.Now().UTC()
	until := now.Add(duration)

	state, err := r.GetState(ctx, alertName)
	if err != nil {
		return err
	}
	state.SilencedUntil = &until
	state.UpdatedAt = now
	return r.SaveState(ctx, state)
}

func (r *stateRepository) Unsilence(ctx context.Context, alertName string) error {
	err := r.db.WithContext(ctx).
		Model(&entities.AlertState{}).
		Where("alert_name = ?", alertName).
		Updates(map[string]any{
			"silenced_until": nil,
			"updated_at":     time.Now().UTC(),
		}).Error
	if err != nil {
		return errors.Wrap(errors.CategoryExecution, err,
			fmt.Sprintf("failed to unsilence alert %q", alertName))
	}
	return nil
}

func (r *stateRepository) DeleteState(ctx context.Context, alertName string) error {
	err := r.db.WithContext(ctx).
		Delete(&entities.AlertState{}, "alert_name = ?", alertName).Error
	if err != nil {
		return errors.Wrap(errors.CategoryExecution, err,
			fmt.Sprintf("failed to delete state for alert %q", alertName))
	}
	return nil
}

func (r *stateRepository) ListStates(ctx context.Context) ([]entities.AlertState, error) {
	var states []entities.AlertState
	err := r.db.WithContext(ctx).Order("alert_name ASC").Find(&states).Error
	if err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to list alert states")
	}
	return states, nil
}
