package authenticity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/linguistic"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

const sampleText = "I bought this coffee grinder last month and use it every morning. " +
	"The burrs stay consistent, though the hopper lid feels a bit loose. " +
	"Cleanup takes about two minutes."

func newTestEngine() *Engine {
	return NewEngine(linguistic.NewClassifier(nil, zap.NewNop()), zap.NewNop())
}

func TestEngine_Evaluate(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine()

	t.Run("Verified Purchase Lifts The Score", func(t *testing.T) {
		verified := engine.Evaluate(ctx, &models.Review{
			ID:               "r1",
			Text:             sampleText,
			PurchaseVerified: true,
		}, ReviewerHistory{})
		unverified := engine.Evaluate(ctx, &models.Review{
			ID:   "r2",
			Text: sampleText,
		}, ReviewerHistory{})

		assert.Greater(t, verified.Score, unverified.Score)
		assert.NotContains(t, verified.Flags, "unverified_purchase")
		assert.Contains(t, unverified.Flags, "unverified_purchase")
	})

	t.Run("Synthetic History Drags The Score Down", func(t *testing.T) {
		clean := engine.Evaluate(ctx, &models.Review{ID: "r1", Text: sampleText, PurchaseVerified: true},
			ReviewerHistory{TotalReviews: 10})
		tainted := engine.Evaluate(ctx, &models.Review{ID: "r1", Text: sampleText, PurchaseVerified: true},
			ReviewerHistory{TotalReviews: 10, SyntheticReviews: 8})

		assert.Greater(t, clean.Score, tainted.Score)
		assert.Contains(t, tainted.Flags, "reviewer_synthetic_history")
		// 8 of 10 synthetic hits the penalty cap.
		assert.InDelta(t, clean.Score-15, tainted.Score, 0.001)
	})

	t.Run("Verified History Bonus", func(t *testing.T) {
		without := engine.Evaluate(ctx, &models.Review{ID: "r1", Text: sampleText, PurchaseVerified: true},
			ReviewerHistory{TotalReviews: 10, VerifiedReviews: 2})
		with := engine.Evaluate(ctx, &models.Review{ID: "r1", Text: sampleText, PurchaseVerified: true},
			ReviewerHistory{TotalReviews: 10, VerifiedReviews: 7})

		assert.InDelta(t, without.Score+5, with.Score, 0.001)
	})

	t.Run("Gibberish Review Is High Risk", func(t *testing.T) {
		decision := engine.Evaluate(ctx, &models.Review{
			ID:   "r1",
			Text: "asdbsfbsf asdbsfbsf asdbsfbsf",
		}, ReviewerHistory{})

		require.NotNil(t, decision.Text)
		assert.True(t, decision.Text.IsSynthetic)
		assert.Equal(t, models.RiskHigh, decision.RiskTier)
		assert.Less(t, decision.Score, 40.0)
	})

	t.Run("Score Stays Bounded", func(t *testing.T) {
		decision := engine.Evaluate(ctx, &models.Review{
			ID:               "r1",
			Text:             sampleText,
			PurchaseVerified: true,
		}, ReviewerHistory{TotalReviews: 4, VerifiedReviews: 4})

		assert.LessOrEqual(t, decision.Score, 100.0)
		assert.GreaterOrEqual(t, decision.Score, 0.0)
	})
}

func TestReviewerHistory_Ratios(t *testing.T) {
	assert.Zero(t, ReviewerHistory{}.SyntheticRatio(), "No history means no penalty")
	assert.Zero(t, ReviewerHistory{}.VerifiedRatio())

	history := ReviewerHistory{TotalReviews: 8, SyntheticReviews: 2, VerifiedReviews: 4}
	assert.Equal(t, 0.25, history.SyntheticRatio())
	assert.Equal(t, 0.5, history.VerifiedRatio())
}
