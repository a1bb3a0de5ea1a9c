package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

func TestRecordToRow(t *testing.T) {
	t.Run("No Indicators Writes An Empty Array", func(t *testing.T) {
		record := &models.ReviewAuthenticationRecord{
			ID:           "rec-1",
			ReviewID:     "rev-1",
			CurrentStage: models.StageCompleted,
		}

		row, err := recordToRow(record)
		require.NoError(t, err)

		require.NotNil(t, row.FraudIndicators)
		value, err := row.FraudIndicators.Value()
		require.NoError(t, err)
		assert.Equal(t, "{}", value, "The fraud_indicators column is NOT NULL")
	})

	t.Run("Indicators Are Preserved", func(t *testing.T) {
		record := &models.ReviewAuthenticationRecord{
			ID:              "rec-1",
			ReviewID:        "rev-1",
			FraudIndicators: []string{"zero_timing_variance", "repeated_word"},
		}

		row, err := recordToRow(record)
		require.NoError(t, err)
		assert.Equal(t, []string{"zero_timing_variance", "repeated_word"}, []string(row.FraudIndicators))
	})

	t.Run("Record Round Trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		record := &models.ReviewAuthenticationRecord{
			ID:                         "rec-1",
			ReviewID:                   "rev-1",
			OverallAuthenticationScore: 81.5,
			CurrentStage:               models.StageCommunityReview,
			Steps: []models.AuthenticationStep{{
				Name:        models.StepCommunityValidation,
				Status:      models.StepPending,
				Timestamp:   now,
				PerformedBy: "community",
				Details: models.CommunityValidationDetails{
					Votes: []models.CommunityVote{{VoterID: "v1", Choice: models.DecisionAuthentic, Confidence: 80, Timestamp: now}},
				},
			}},
			FinalDecision: &models.FinalDecision{
				Status:     models.DecisionRequiresInvestigation,
				Confidence: 50,
				DecidedBy:  "system",
				DecidedAt:  now,
				Appealable: true,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		row, err := recordToRow(record)
		require.NoError(t, err)

		restored, err := row.toModel()
		require.NoError(t, err)

		assert.Equal(t, record.ID, restored.ID)
		assert.Equal(t, record.CurrentStage, restored.CurrentStage)
		require.NotNil(t, restored.FinalDecision)
		assert.Equal(t, models.DecisionRequiresInvestigation, restored.FinalDecision.Status)

		require.Len(t, restored.Steps, 1)
		details, ok := restored.Steps[0].Details.(models.CommunityValidationDetails)
		require.True(t, ok)
		require.Len(t, details.Votes, 1)
		assert.Equal(t, "v1", details.Votes[0].VoterID)
	})
}
