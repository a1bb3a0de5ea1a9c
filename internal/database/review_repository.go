package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// ReviewRepository handles reviews, their authentication records and the
// embedded vote lists.
type ReviewRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger.With(zap.String("repository", "review")),
	}
}

// reviewRow maps the reviews table.
type reviewRow struct {
	ID                 string       `db:"id"`
	ReviewerID         string       `db:"reviewer_id"`
	SellerKind         string       `db:"seller_kind"`
	SellerID           string       `db:"seller_id"`
	Body               string       `db:"body"`
	PurchaseVerified   bool         `db:"purchase_verified"`
	OrderTrustScore    float64      `db:"order_trust_score"`
	AuthenticityScore  float64      `db:"authenticity_score"`
	IsAIGenerated      bool         `db:"is_ai_generated"`
	LinguisticAnalysis models.JSONB `db:"linguistic_analysis"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

func (row *reviewRow) toModel() (*models.Review, error) {
	review := &models.Review{
		ID:                row.ID,
		ReviewerID:        row.ReviewerID,
		Seller:            models.SellerRef{Kind: models.SellerKind(row.SellerKind), ID: row.SellerID},
		Text:              row.Body,
		PurchaseVerified:  row.PurchaseVerified,
		OrderTrustScore:   row.OrderTrustScore,
		AuthenticityScore: row.AuthenticityScore,
		IsAIGenerated:     row.IsAIGenerated,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.LinguisticAnalysis != nil {
		raw, err := json.Marshal(row.LinguisticAnalysis)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode linguistic analysis: %w", err)
		}
		var analysis models.LinguisticAnalysis
		if err := json.Unmarshal(raw, &analysis); err != nil {
			return nil, fmt.Errorf("failed to decode linguistic analysis: %w", err)
		}
		review.LinguisticAnalysis = &analysis
	}
	return review, nil
}

// GetReview retrieves a review by ID.
func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*models.Review, error) {
	query := `SELECT * FROM reviews WHERE id = $1`

	var row reviewRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("review", id)
	}
	if err != nil {
		r.logger.Error("failed to get review", zap.String("review_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return row.toModel()
}

// UpdateReviewVerdict persists the pipeline verdict fields on a review.
func (r *ReviewRepository) UpdateReviewVerdict(ctx context.Context, review *models.Review) error {
	analysis := models.JSONB{}
	if review.LinguisticAnalysis != nil {
		raw, err := json.Marshal(review.LinguisticAnalysis)
		if err != nil {
			return fmt.Errorf("failed to encode linguistic analysis: %w", err)
		}
		if err := json.Unmarshal(raw, &analysis); err != nil {
			return fmt.Errorf("failed to decode linguistic analysis: %w", err)
		}
	}

	query := `
		UPDATE reviews SET
			authenticity_score = $2,
			is_ai_generated = $3,
			linguistic_analysis = $4,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, review.ID, review.AuthenticityScore, review.IsAIGenerated, analysis)
	if err != nil {
		r.logger.Error("failed to update review verdict", zap.String("review_id", review.ID), zap.Error(err))
		return fmt.Errorf("failed to update review verdict: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("review", review.ID)
	}

	return nil
}

// recordRow maps the review_authentications table. Steps and the final
// decision are stored as JSON documents; the stage and overall score are
// first-class columns for querying.
type recordRow struct {
	ID              string         `db:"id"`
	ReviewID        string         `db:"review_id"`
	OverallScore    float64        `db:"overall_score"`
	Steps           []byte         `db:"steps"`
	FinalDecision   []byte         `db:"final_decision"`
	CurrentStage    string         `db:"current_stage"`
	FraudIndicators pq.StringArray `db:"fraud_indicators"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row *recordRow) toModel() (*models.ReviewAuthenticationRecord, error) {
	record := &models.ReviewAuthenticationRecord{
		ID:                         row.ID,
		ReviewID:                   row.ReviewID,
		OverallAuthenticationScore: row.OverallScore,
		CurrentStage:               models.WorkflowStage(row.CurrentStage),
		FraudIndicators:            row.FraudIndicators,
		CreatedAt:                  row.CreatedAt,
		UpdatedAt:                  row.UpdatedAt,
	}
	if len(row.Steps) > 0 {
		if err := json.Unmarshal(row.Steps, &record.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode authentication steps: %w", err)
		}
	}
	if len(row.FinalDecision) > 0 {
		var decision models.FinalDecision
		if err := json.Unmarshal(row.FinalDecision, &decision); err != nil {
			return nil, fmt.Errorf("failed to decode final decision: %w", err)
		}
		record.FinalDecision = &decision
	}
	return record, nil
}

func recordToRow(record *models.ReviewAuthenticationRecord) (*recordRow, error) {
	steps, err := json.Marshal(record.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode authentication steps: %w", err)
	}
	// A nil slice serializes as SQL NULL; the column is NOT NULL.
	indicators := pq.StringArray(record.FraudIndicators)
	if indicators == nil {
		indicators = pq.StringArray{}
	}
	row := &recordRow{
		ID:              record.ID,
		ReviewID:        record.ReviewID,
		OverallScore:    record.OverallAuthenticationScore,
		Steps:           steps,
		CurrentStage:    string(record.CurrentStage),
		FraudIndicators: indicators,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
	if record.FinalDecision != nil {
		decision, err := json.Marshal(record.FinalDecision)
		if err != nil {
			return nil, fmt.Errorf("failed to encode final decision: %w", err)
		}
		row.FinalDecision = decision
	}
	return row, nil
}

// GetRecordByReviewID retrieves the authentication record owning a review.
func (r *ReviewRepository) GetRecordByReviewID(ctx context.Context, reviewID string) (*models.ReviewAuthenticationRecord, error) {
	query := `SELECT * FROM review_authentications WHERE review_id = $1`

	var row recordRow
	err := r.db.GetContext(ctx, &row, query, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("review authentication record", reviewID)
	}
	if err != nil {
		r.logger.Error("failed to get authentication record", zap.String("review_id", reviewID), zap.Error(err))
		return nil, fmt.Errorf("failed to get authentication record: %w", err)
	}

	return row.toModel()
}

// CreateRecord inserts a new authentication record.
func (r *ReviewRepository) CreateRecord(ctx context.Context, record *models.ReviewAuthenticationRecord) error {
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	row, err := recordToRow(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO review_authentications (
			id, review_id, overall_score, steps, final_decision,
			current_stage, fraud_indicators, created_at, updated_at
		) VALUES (
			:id, :review_id, :overall_score, :steps, :final_decision,
			:current_stage, :fraud_indicators, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.logger.Error("failed to create authentication record", zap.String("review_id", record.ReviewID), zap.Error(err))
		return fmt.Errorf("failed to create authentication record: %w", err)
	}

	return nil
}

// UpdateRecord persists the full record state in one statement.
func (r *ReviewRepository) UpdateRecord(ctx context.Context, record *models.ReviewAuthenticationRecord) error {
	record.UpdatedAt = time.Now()

	row, err := recordToRow(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE review_authentications SET
			overall_score = :overall_score,
			steps = :steps,
			final_decision = :final_decision,
			current_stage = :current_stage,
			fraud_indicators = :fraud_indicators,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		r.logger.Error("failed to update authentication record", zap.String("record_id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update authentication record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.NewNotFound("review authentication record", record.ID)
	}

	return nil
}

// MutateRecord loads the record for a review under a row lock, applies fn and
// writes the result back inside the same transaction. Concurrent callers
// serialize on the row, so duplicate-vote checks and tally recomputation stay
// atomic and no vote can be lost to a stale read.
func (r *ReviewRepository) MutateRecord(
	ctx context.Context,
	reviewID string,
	fn func(*models.ReviewAuthenticationRecord) error,
) (*models.ReviewAuthenticationRecord, error) {
	var record *models.ReviewAuthenticationRecord

	err := r.Transaction(func(tx *sqlx.Tx) error {
		query := `SELECT * FROM review_authentications WHERE review_id = $1 FOR UPDATE`

		var row recordRow
		err := tx.GetContext(ctx, &row, query, reviewID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewNotFound("review authentication record", reviewID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock authentication record: %w", err)
		}

		record, err = row.toModel()
		if err != nil {
			return err
		}

		if err := fn(record); err != nil {
			return err
		}

		record.UpdatedAt = time.Now()
		updated, err := recordToRow(record)
		if err != nil {
			return err
		}

		update := `
			UPDATE review_authentications SET
				overall_score = :overall_score,
				steps = :steps,
				final_decision = :final_decision,
				current_stage = :current_stage,
				fraud_indicators = :fraud_indicators,
				updated_at = :updated_at
			WHERE id = :id`

		if _, err := tx.NamedExecContext(ctx, update, updated); err != nil {
			return fmt.Errorf("failed to write back authentication record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// CountReviewerHistory returns how many reviews the reviewer has submitted,
// how many were flagged synthetic and how many were purchase-verified.
func (r *ReviewRepository) CountReviewerHistory(ctx context.Context, reviewerID string) (total, synthetic, verified int, err error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN is_ai_generated THEN 1 END) AS synthetic,
			COUNT(CASE WHEN purchase_verified THEN 1 END) AS verified
		FROM reviews
		WHERE reviewer_id = $1`

	row := r.db.QueryRowxContext(ctx, query, reviewerID)
	if err := row.Scan(&total, &synthetic, &verified); err != nil {
		r.logger.Error("failed to count reviewer history", zap.String("reviewer_id", reviewerID), zap.Error(err))
		return 0, 0, 0, fmt.Errorf("failed to count reviewer history: %w", err)
	}

	return total, synthetic, verified, nil
}

// CountRecordsByStage returns the number of authentication records in each
// workflow stage.
func (r *ReviewRepository) CountRecordsByStage(ctx context.Context) (map[models.WorkflowStage]int, error) {
	query := `SELECT current_stage, COUNT(*) AS count FROM review_authentications GROUP BY current_stage`

	rows := []struct {
		Stage models.WorkflowStage `db:"current_stage"`
		Count int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("failed to count authentication records", zap.Error(err))
		return nil, fmt.Errorf("failed to count authentication records: %w", err)
	}

	counts := make(map[models.WorkflowStage]int, len(rows))
	for _, row := range rows {
		counts[row.Stage] = row.Count
	}
	return counts, nil
}
