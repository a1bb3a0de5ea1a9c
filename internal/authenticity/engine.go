// Package authenticity fuses text classification, purchase verification and
// reviewer history into a per-review authenticity decision.
package authenticity

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/linguistic"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// Fusion weights and adjustments.
const (
	textWeight = 0.6
	baseWeight = 0.4

	verifiedPurchaseBonus     = 15.0
	unverifiedPurchasePenalty = -10.0

	syntheticHistoryPenaltyCap = 15.0
	verifiedHistoryBonus       = 5.0
	verifiedHistoryFloor       = 0.5
)

// ReviewerHistory summarizes the reviewer's track record.
type ReviewerHistory struct {
	TotalReviews     int
	SyntheticReviews int
	VerifiedReviews  int
}

// SyntheticRatio is the share of the reviewer's past reviews flagged
// synthetic.
func (h ReviewerHistory) SyntheticRatio() float64 {
	if h.TotalReviews == 0 {
		return 0
	}
	return float64(h.SyntheticReviews) / float64(h.TotalReviews)
}

// VerifiedRatio is the share of past reviews tied to a verified purchase.
func (h ReviewerHistory) VerifiedRatio() float64 {
	if h.TotalReviews == 0 {
		return 0
	}
	return float64(h.VerifiedReviews) / float64(h.TotalReviews)
}

// Decision is the engine's verdict for one review submission.
type Decision struct {
	Score    float64            `json:"score"`
	RiskTier models.RiskLevel   `json:"risk_tier"`
	Flags    []string           `json:"flags,omitempty"`
	Text     *linguistic.Result `json:"text"`
}

// Engine produces per-review authenticity decisions.
type Engine struct {
	classifier *linguistic.Classifier
	logger     *zap.Logger
}

// NewEngine creates a new decision engine.
func NewEngine(classifier *linguistic.Classifier, logger *zap.Logger) *Engine {
	return &Engine{
		classifier: classifier,
		logger:     logger.With(zap.String("component", "authenticity_engine")),
	}
}

// Evaluate classifies the review text and folds in the purchase-verification
// flag and reviewer history. The result replaces any prior result for the
// same review.
func (e *Engine) Evaluate(ctx context.Context, review *models.Review, history ReviewerHistory) *Decision {
	text := e.classifier.Classify(ctx, review.Text)

	score := text.Score*textWeight + 50*baseWeight

	flags := append([]string{}, text.ReasonCodes...)

	if review.PurchaseVerified {
		score += verifiedPurchaseBonus
	} else {
		score += unverifiedPurchasePenalty
		flags = append(flags, "unverified_purchase")
	}

	if ratio := history.SyntheticRatio(); ratio > 0 {
		score -= math.Min(ratio*30, syntheticHistoryPenaltyCap)
		flags = append(flags, "reviewer_synthetic_history")
	}
	if history.TotalReviews > 0 && history.VerifiedRatio() >= verifiedHistoryFloor {
		score += verifiedHistoryBonus
	}

	score = math.Max(0, math.Min(100, score))

	decision := &Decision{
		Score:    score,
		RiskTier: tier(score),
		Flags:    flags,
		Text:     text,
	}

	e.logger.Debug("review evaluated",
		zap.String("review_id", review.ID),
		zap.Float64("score", score),
		zap.String("risk_tier", string(decision.RiskTier)))

	return decision
}

func tier(score float64) models.RiskLevel {
	switch {
	case score >= 70:
		return models.RiskLow
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
