package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// AlertRepository handles alert data operations.
type AlertRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sqlx.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger.With(zap.String("repository", "alert")),
	}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			id, type, target_id, target_kind, severity, description,
			data, status, tags, created_at, updated_at
		) VALUES (
			:id, :type, :target_id, :target_kind, :severity, :description,
			:data, :status, :tags, :created_at, :updated_at
		)`

	alert.CreatedAt = time.Now()
	alert.UpdatedAt = alert.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		r.logger.Error("failed to create alert", zap.String("alert_id", alert.ID), zap.Error(err))
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetByID retrieves an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT * FROM alerts WHERE id = $1`

	var alert models.Alert
	err := r.db.GetContext(ctx, &alert, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("alert", id)
	}
	if err != nil {
		r.logger.Error("failed to get alert", zap.String("alert_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return &alert, nil
}

// List retrieves alerts, optionally filtered by status, newest first.
func (r *AlertRepository) List(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	var alerts []*models.Alert
	var err error
	if status == "" {
		query := `SELECT * FROM alerts ORDER BY created_at DESC LIMIT $1`
		err = r.db.SelectContext(ctx, &alerts, query, limit)
	} else {
		query := `SELECT * FROM alerts WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		err = r.db.SelectContext(ctx, &alerts, query, status, limit)
	}
	if err != nil {
		r.logger.Error("failed to list alerts", zap.Error(err))
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}

// CountByStatus returns the number of alerts in each status.
func (r *AlertRepository) CountByStatus(ctx context.Context) (map[models.AlertStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM alerts GROUP BY status`

	rows := []struct {
		Status models.AlertStatus `db:"status"`
		Count  int                `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("failed to count alerts", zap.Error(err))
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	counts := make(map[models.AlertStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Resolve marks an active alert resolved.
func (r *AlertRepository) Resolve(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.AlertResolved)
}

// Dismiss marks an active alert dismissed.
func (r *AlertRepository) Dismiss(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.AlertDismissed)
}

func (r *AlertRepository) setStatus(ctx context.Context, id string, status models.AlertStatus) error {
	query := `
		UPDATE alerts SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		r.logger.Error("failed to update alert status", zap.String("alert_id", id), zap.Error(err))
		return fmt.Errorf("failed to update alert status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("active alert", id)
	}

	return nil
}
