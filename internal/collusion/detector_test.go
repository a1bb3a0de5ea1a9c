package collusion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

type stubDirectory struct {
	actors []*models.Actor
	recent int
}

func (s *stubDirectory) ListByNetworkAddress(ctx context.Context, address string) ([]*models.Actor, error) {
	return s.actors, nil
}

func (s *stubDirectory) CountRecentByNetworkAddress(ctx context.Context, address string, since time.Time) (int, error) {
	return s.recent, nil
}

func TestDetector_Detect(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Address Is Neutral", func(t *testing.T) {
		detector := NewDetector(&stubDirectory{}, 3, zap.NewNop())

		result, err := detector.Detect(ctx, "actor-1", "")
		require.NoError(t, err, "A missing address is not an error")
		assert.Equal(t, models.RiskUnknown, result.RiskLevel)
		assert.Zero(t, result.ScoreAdjustment)
		assert.Zero(t, result.UniqueCount)
	})

	t.Run("Unique Address Earns A Bonus", func(t *testing.T) {
		dir := &stubDirectory{actors: []*models.Actor{{ID: "actor-1"}}}
		detector := NewDetector(dir, 3, zap.NewNop())

		result, err := detector.Detect(ctx, "actor-1", "203.0.113.7")
		require.NoError(t, err)
		assert.Zero(t, result.UniqueCount, "The actor itself is excluded")
		assert.Equal(t, 10, result.ScoreAdjustment)
		assert.Equal(t, models.RiskLow, result.RiskLevel)
	})

	t.Run("Shared Household Is Tolerated", func(t *testing.T) {
		dir := &stubDirectory{actors: []*models.Actor{{ID: "actor-1"}, {ID: "actor-2"}}}
		detector := NewDetector(dir, 3, zap.NewNop())

		result, err := detector.Detect(ctx, "actor-1", "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, 1, result.UniqueCount)
		assert.Zero(t, result.ScoreAdjustment)
		assert.Equal(t, models.RiskLow, result.RiskLevel)
	})

	t.Run("Multiple Collisions Are Penalized", func(t *testing.T) {
		dir := &stubDirectory{actors: []*models.Actor{
			{ID: "actor-1"}, {ID: "actor-2"}, {ID: "actor-3"},
		}}
		detector := NewDetector(dir, 3, zap.NewNop())

		result, err := detector.Detect(ctx, "actor-1", "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, 2, result.UniqueCount)
		assert.Equal(t, -15, result.ScoreAdjustment)
		assert.Equal(t, models.RiskHigh, result.RiskLevel)
		assert.ElementsMatch(t, []string{"actor-2", "actor-3"}, result.OtherActorIDs)
	})

	t.Run("Registration Burst", func(t *testing.T) {
		dir := &stubDirectory{actors: []*models.Actor{{ID: "actor-1"}}, recent: 4}
		detector := NewDetector(dir, 3, zap.NewNop())

		result, err := detector.Detect(ctx, "actor-1", "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, result.RapidRegistration)
		assert.Equal(t, 4, result.RecentRegistrations)
		// The burst condition never bleeds into the score path.
		assert.Equal(t, 10, result.ScoreAdjustment)
	})
}
