package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

const defaultListLimit = 100

// historyRepository implements HistoryRepository.
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a HistoryRepository backed by db.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Record(ctx context.Context, record *entities.Execution) (uint, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, errors.Wrap(errors.CategoryExecution, err, "failed to record execution")
	}
	return record.ID, nil
}

func (r *historyRepository) List(ctx context.Context, filter HistoryFilter) ([]entities.Execution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := r.db.WithContext(ctx).Order("executed_at DESC").Limit(limit)
	if filter.AlertName != "" {
		query = query.Where("alert_name = ?", filter.AlertName)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []entities.Execution
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to list execution history")
	}
	return records, nil
}

func (r *historyRepository) Latest(ctx context.Context, alertName string) (*entities.Execution, error) {
	var record entities.Execution
	err := r.db.WithContext(ctx).
		Where("alert_name = ?", alertName).
		Order("executed_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to get latest execution")
	}
	return &record, nil
}

func (r *historyRepository) PurgeOlderThan(ctx context.Context, alertName string, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New(errors.CategoryValidation, "days must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := r.db.WithContext(ctx).Where("executed_at < ?", cutoff)
	if alertName != "" {
		query = query.Where("alert_name = ?", alertName)
	}

	result := query.Delete(&entities.Execution{})
	if result.Error != nil {
		return 0, errors.Wrap(errors.CategoryExecution, result.Error, "failed to purge execution history")
	}
	return result.RowsAffected, nil
}

func (r *historyRepository) Statistics(ctx context.Context, alertName string, days int) (*ExecutionStats, error) {
	if days <= 0 {
		return nil, errors.New(errors.CategoryValidation, "days must be positive")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var row struct {
		Total         int64
		Alerts        int64
		Oks           int64
		Errs          int64
		AvgDurationMs *float64
		MinDurationMs *float64
		MaxDurationMs *float64
	}
	err := r.db.WithContext(ctx).
		Model(&entities.Execution{}).
		Select(`COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS alerts,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS oks,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS errs,
			AVG(duration_ms) AS avg_duration_ms,
			MIN(duration_ms) AS min_duration_ms,
			MAX(duration_ms) AS max_duration_ms`,
			alert.StatusAlert, alert.StatusOK, alert.StatusError).
		Where("alert_name = ? AND executed_at >= ?", alertName, cutoff).
		Scan(&row).Error
	if err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to compute execution statistics")
	}

	stats := &ExecutionStats{
		Total:  row.Total,
		Alerts: row.Alerts,
		Oks:    row.Oks,
		Errors: row.Errs,
	}
	if row.AvgDurationMs != nil {
		stats.AvgDurationMs = *row.AvgDurationMs
	}
	if row.MinDurationMs != nil {
		stats.MinDurationMs = *row.MinDurationMs
	}
	if row.MaxDurationMs != nil {
		stats.MaxDurationMs = *row.MaxDurationMs
	}
	return stats, nil
}
