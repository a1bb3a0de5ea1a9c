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

// ActorRepository handles actor data operations.
type ActorRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewActorRepository creates a new actor repository.
func NewActorRepository(db *sqlx.DB, logger *zap.Logger) *ActorRepository {
	return &ActorRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger.With(zap.String("repository", "actor")),
	}
}

// Create inserts a new actor.
func (r *ActorRepository) Create(ctx context.Context, actor *models.Actor) error {
	query := `
		INSERT INTO actors (
			id, created_at, transaction_count, last_network_address,
			trust_score, risk_level, account_age_days, behavioral_snapshot, updated_at
		) VALUES (
			:id, :created_at, :transaction_count, :last_network_address,
			:trust_score, :risk_level, :account_age_days, :behavioral_snapshot, :updated_at
		)`

	actor.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, actor); err != nil {
		r.logger.Error("failed to create actor", zap.String("actor_id", actor.ID), zap.Error(err))
		return fmt.Errorf("failed to create actor: %w", err)
	}

	return nil
}

// GetByID retrieves an actor by ID.
func (r *ActorRepository) GetByID(ctx context.Context, id string) (*models.Actor, error) {
	query := `SELECT * FROM actors WHERE id = $1`

	var actor models.Actor
	err := r.db.GetContext(ctx, &actor, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("actor", id)
	}
	if err != nil {
		r.logger.Error("failed to get actor", zap.String("actor_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	return &actor, nil
}

// ListByNetworkAddress retrieves every actor whose last registration came
// from the given network address.
func (r *ActorRepository) ListByNetworkAddress(ctx context.Context, address string) ([]*models.Actor, error) {
	query := `
		SELECT * FROM actors
		WHERE last_network_address = $1
		ORDER BY created_at ASC`

	var actors []*models.Actor
	if err := r.db.SelectContext(ctx, &actors, query, address); err != nil {
		r.logger.Error("failed to list actors by network address", zap.Error(err))
		return nil, fmt.Errorf("failed to list actors by network address: %w", err)
	}

	return actors, nil
}

// CountRecentByNetworkAddress counts actors registered from the address
// since the given instant.
func (r *ActorRepository) CountRecentByNetworkAddress(ctx context.Context, address string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM actors
		WHERE last_network_address = $1 AND created_at >= $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, address, since); err != nil {
		r.logger.Error("failed to count recent registrations", zap.Error(err))
		return 0, fmt.Errorf("failed to count recent registrations: %w", err)
	}

	return count, nil
}

// UpdateTrustFields persists the refreshed age, transaction count, score and
// risk level in one statement so the fields never diverge.
func (r *ActorRepository) UpdateTrustFields(ctx context.Context, actor *models.Actor) error {
	query := `
		UPDATE actors SET
			trust_score = :trust_score,
			risk_level = :risk_level,
			account_age_days = :account_age_days,
			transaction_count = :transaction_count,
			behavioral_snapshot = :behavioral_snapshot,
			updated_at = :updated_at
		WHERE id = :id`

	actor.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, actor)
	if err != nil {
		r.logger.Error("failed to update actor trust fields", zap.String("actor_id", actor.ID), zap.Error(err))
		return fmt.Errorf("failed to update actor trust fields: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("actor", actor.ID)
	}

	return nil
}

// ListIDs retrieves every actor ID, for batched recalculation.
func (r *ActorRepository) ListIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM actors ORDER BY created_at ASC`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		r.logger.Error("failed to list actor ids", zap.Error(err))
		return nil, fmt.Errorf("failed to list actor ids: %w", err)
	}

	return ids, nil
}
