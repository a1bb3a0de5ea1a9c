package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/authenticity"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/consensus"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/events"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/linguistic"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

const genuineReview = "I bought this coffee grinder last month and use it every morning. " +
	"The burrs stay consistent, though the hopper lid feels a bit loose. " +
	"Cleanup takes about two minutes."

// fakeRecordStore persists records through a JSON round trip, so the closed
// step-details decoding is exercised on every mutation.
type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.ReviewAuthenticationRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]*models.ReviewAuthenticationRecord{}}
}

func cloneRecord(record *models.ReviewAuthenticationRecord) (*models.ReviewAuthenticationRecord, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var clone models.ReviewAuthenticationRecord
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

func (f *fakeRecordStore) GetRecordByReviewID(ctx context.Context, reviewID string) (*models.ReviewAuthenticationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[reviewID]
	if !ok {
		return nil, models.NewNotFound("review authentication record", reviewID)
	}
	return cloneRecord(record)
}

func (f *fakeRecordStore) CreateRecord(ctx context.Context, record *models.ReviewAuthenticationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, err := cloneRecord(record)
	if err != nil {
		return err
	}
	f.records[record.ReviewID] = stored
	return nil
}

func (f *fakeRecordStore) MutateRecord(
	ctx context.Context,
	reviewID string,
	fn func(*models.ReviewAuthenticationRecord) error,
) (*models.ReviewAuthenticationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.records[reviewID]
	if !ok {
		return nil, models.NewNotFound("review authentication record", reviewID)
	}
	record, err := cloneRecord(stored)
	if err != nil {
		return nil, err
	}
	if err := fn(record); err != nil {
		return nil, err
	}
	f.records[reviewID] = record
	return cloneRecord(record)
}

type fakeReviewStore struct {
	reviews map[string]*models.Review
	history map[string][3]int
	updates int
}

func newFakeReviewStore(reviews ...*models.Review) *fakeReviewStore {
	store := &fakeReviewStore{
		reviews: map[string]*models.Review{},
		history: map[string][3]int{},
	}
	for _, r := range reviews {
		store.reviews[r.ID] = r
	}
	return store
}

func (f *fakeReviewStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	review, ok := f.reviews[id]
	if !ok {
		return nil, models.NewNotFound("review", id)
	}
	copied := *review
	return &copied, nil
}

func (f *fakeReviewStore) UpdateReviewVerdict(ctx context.Context, review *models.Review) error {
	f.reviews[review.ID] = review
	f.updates++
	return nil
}

func (f *fakeReviewStore) CountReviewerHistory(ctx context.Context, reviewerID string) (int, int, int, error) {
	h := f.history[reviewerID]
	return h[0], h[1], h[2], nil
}

type fakeAlertSink struct {
	authenticityChecks int
	behaviorChecks     int
}

func (f *fakeAlertSink) CheckAuthenticity(ctx context.Context, reviewID string, score float64, isSynthetic bool) error {
	f.authenticityChecks++
	return nil
}

func (f *fakeAlertSink) CheckBehavior(ctx context.Context, actorID string, cls *behavioral.Classification) error {
	f.behaviorChecks++
	return nil
}

type fakeBroadcaster struct {
	events []events.ReviewStatusUpdated
}

func (f *fakeBroadcaster) PublishReviewStatusUpdated(ctx context.Context, event events.ReviewStatusUpdated) {
	f.events = append(f.events, event)
}

type fixture struct {
	workflow  *Workflow
	records   *fakeRecordStore
	reviews   *fakeReviewStore
	alerts    *fakeAlertSink
	broadcast *fakeBroadcaster
	collector *metrics.Collector
}

func newFixture(t *testing.T, reviews ...*models.Review) *fixture {
	t.Helper()
	records := newFakeRecordStore()
	reviewStore := newFakeReviewStore(reviews...)
	alerts := &fakeAlertSink{}
	broadcast := &fakeBroadcaster{}
	collector := metrics.NewCollectorWith(prometheus.NewRegistry())

	logger := zap.NewNop()
	engine := authenticity.NewEngine(linguistic.NewClassifier(nil, logger), logger)
	scoring := config.ScoringConfig{
		AmbiguousBandLow:    30,
		AmbiguousBandHigh:   75,
		VoteQuorum:          3,
		ConsensusConfidence: 70,
		LinguisticWeight:    0.6,
		BehavioralWeight:    0.4,
	}

	return &fixture{
		workflow: New(
			records,
			reviewStore,
			engine,
			behavioral.NewClassifier(logger),
			consensus.NewAggregator(scoring.VoteQuorum, scoring.ConsensusConfidence),
			alerts,
			broadcast,
			collector,
			scoring,
			logger,
		),
		records:   records,
		reviews:   reviewStore,
		alerts:    alerts,
		broadcast: broadcast,
		collector: collector,
	}
}

func (f *fixture) transitions(stage models.WorkflowStage) float64 {
	return testutil.ToFloat64(f.collector.WorkflowTransitionsTotal.WithLabelValues(string(stage)))
}

func verifiedReview(id string) *models.Review {
	return &models.Review{ID: id, ReviewerID: "reviewer-1", Text: genuineReview, PurchaseVerified: true}
}

func ambiguousReview(id string) *models.Review {
	return &models.Review{ID: id, ReviewerID: "reviewer-1", Text: genuineReview}
}

func TestWorkflow_AuthenticateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("High Scoring Review Completes Automatically", func(t *testing.T) {
		f := newFixture(t, verifiedReview("r1"))

		record, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StageCompleted, record.CurrentStage)
		require.NotNil(t, record.FinalDecision)
		assert.Equal(t, models.DecisionAuthentic, record.FinalDecision.Status)
		assert.Equal(t, "system", record.FinalDecision.DecidedBy)
		assert.True(t, record.FinalDecision.Appealable)

		assert.NotNil(t, record.Step(models.StepInitialAnalysis))
		assert.NotNil(t, record.Step(models.StepLinguisticAnalysis))
		assert.Nil(t, record.Step(models.StepBehavioralAnalysis), "No metrics means no behavioral step")

		require.Len(t, f.broadcast.events, 1)
		assert.Equal(t, models.DecisionAuthentic, f.broadcast.events[0].NewStatus)
		assert.Equal(t, 1, f.alerts.authenticityChecks)
		assert.Equal(t, 1, f.reviews.updates, "The review verdict is persisted")
	})

	t.Run("Gibberish Review Fails Automatically", func(t *testing.T) {
		f := newFixture(t, &models.Review{
			ID:         "r1",
			ReviewerID: "reviewer-1",
			Text:       "asdbsfbsf asdbsfbsf asdbsfbsf",
		})

		record, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StageCompleted, record.CurrentStage)
		require.NotNil(t, record.FinalDecision)
		assert.Equal(t, models.DecisionFake, record.FinalDecision.Status)

		stored := f.reviews.reviews["r1"]
		assert.True(t, stored.IsAIGenerated)
		assert.Equal(t, 25.0, stored.AuthenticityScore)
	})

	t.Run("Ambiguous Review Routes To Community", func(t *testing.T) {
		f := newFixture(t, ambiguousReview("r1"))

		record, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StageCommunityReview, record.CurrentStage)
		require.NotNil(t, record.FinalDecision)
		assert.Equal(t, models.DecisionRequiresInvestigation, record.FinalDecision.Status)
		assert.Empty(t, f.broadcast.events, "Provisional routing is not announced")
	})

	t.Run("Behavioral Metrics Join The Analysis", func(t *testing.T) {
		f := newFixture(t, ambiguousReview("r1"))

		metrics := &models.BehavioralMetrics{
			KeystrokeIntervals: []int{100, 100, 100, 100, 100, 100},
		}
		record, err := f.workflow.AuthenticateReview(ctx, "r1", metrics)
		require.NoError(t, err)

		step := record.Step(models.StepBehavioralAnalysis)
		require.NotNil(t, step)
		assert.Equal(t, models.StepFailed, step.Status)
		assert.Contains(t, record.FraudIndicators, "zero_timing_variance")
		assert.Equal(t, 1, f.alerts.behaviorChecks)
	})

	t.Run("Reauthentication Does Not Demote A Completed Record", func(t *testing.T) {
		f := newFixture(t, verifiedReview("r1"))

		first, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)
		require.Equal(t, models.StageCompleted, first.CurrentStage)
		decidedAt := first.FinalDecision.DecidedAt

		second, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StageCompleted, second.CurrentStage)
		assert.Equal(t, models.DecisionAuthentic, second.FinalDecision.Status)
		assert.True(t, second.FinalDecision.DecidedAt.Equal(decidedAt), "The original decision stands")
	})

	t.Run("Unknown Review", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.workflow.AuthenticateReview(ctx, "missing", nil)
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("Stage Transitions Are Counted", func(t *testing.T) {
		f := newFixture(t, verifiedReview("r1"))

		_, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f.transitions(models.StageCompleted))

		_, err = f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f.transitions(models.StageCompleted), "Landing on the same stage again is not a transition")
	})
}

func TestWorkflow_SubmitVote(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t, ambiguousReview("r1"))
		record, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)
		require.Equal(t, models.StageCommunityReview, record.CurrentStage)
		return f
	}

	t.Run("Vote Validation", func(t *testing.T) {
		f := setup(t)

		_, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{Choice: models.DecisionAuthentic, Confidence: 80})
		assert.True(t, models.IsValidation(err), "Missing voter id")

		_, err = f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{VoterID: "v1", Choice: "maybe", Confidence: 80})
		assert.True(t, models.IsValidation(err), "Unknown choice")
		assert.Contains(t, err.Error(), "authentic", "Rejections list the valid statuses")

		_, err = f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{VoterID: "v1", Choice: models.DecisionFake, Confidence: 130})
		assert.True(t, models.IsValidation(err), "Confidence out of range")
	})

	t.Run("Duplicate Voter Is Rejected", func(t *testing.T) {
		f := setup(t)

		_, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{VoterID: "v1", Choice: models.DecisionAuthentic, Confidence: 80})
		require.NoError(t, err)

		_, err = f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{VoterID: "v1", Choice: models.DecisionFake, Confidence: 90})
		assert.True(t, models.IsValidation(err))

		record, err := f.workflow.GetRecord(ctx, "r1")
		require.NoError(t, err)
		details := record.Step(models.StepCommunityValidation).Details.(models.CommunityValidationDetails)
		assert.Len(t, details.Votes, 1, "The rejected vote is not persisted")
	})

	t.Run("Quorum With Consensus Promotes To Expert Validation", func(t *testing.T) {
		f := setup(t)

		for _, v := range []models.CommunityVote{
			{VoterID: "v1", Choice: models.DecisionAuthentic, Confidence: 85},
			{VoterID: "v2", Choice: models.DecisionAuthentic, Confidence: 75},
		} {
			record, err := f.workflow.SubmitVote(ctx, "r1", v)
			require.NoError(t, err)
			assert.Equal(t, models.StageCommunityReview, record.CurrentStage, "Below quorum nothing changes")
		}

		record, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{
			VoterID: "v3", Choice: models.DecisionFake, Confidence: 80,
		})
		require.NoError(t, err)

		assert.Equal(t, models.StageExpertValidation, record.CurrentStage)
		require.NotNil(t, record.FinalDecision)
		assert.Equal(t, models.DecisionAuthentic, record.FinalDecision.Status)
		assert.Equal(t, "community", record.FinalDecision.DecidedBy)
		assert.InDelta(t, 80.0, record.FinalDecision.Confidence, 0.001)

		require.Len(t, f.broadcast.events, 1)
		assert.Equal(t, models.DecisionAuthentic, f.broadcast.events[0].NewStatus)
	})

	t.Run("Low Confidence Votes Never Decide", func(t *testing.T) {
		f := setup(t)

		var record *models.ReviewAuthenticationRecord
		var err error
		for _, voter := range []string{"v1", "v2", "v3", "v4"} {
			record, err = f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{
				VoterID: voter, Choice: models.DecisionFake, Confidence: 40,
			})
			require.NoError(t, err)
		}

		assert.Equal(t, models.StageCommunityReview, record.CurrentStage)
		details := record.Step(models.StepCommunityValidation).Details.(models.CommunityValidationDetails)
		assert.True(t, details.QuorumReached)
		assert.Empty(t, f.broadcast.events)
	})

	t.Run("Community Decision Survives Reanalysis", func(t *testing.T) {
		f := setup(t)

		for _, voter := range []string{"v1", "v2", "v3"} {
			_, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{
				VoterID: voter, Choice: models.DecisionAuthentic, Confidence: 85,
			})
			require.NoError(t, err)
		}

		record, err := f.workflow.GetRecord(ctx, "r1")
		require.NoError(t, err)
		require.Equal(t, models.StageExpertValidation, record.CurrentStage)
		assert.Equal(t, 1.0, f.transitions(models.StageExpertValidation))

		record, err = f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StageExpertValidation, record.CurrentStage)
		require.NotNil(t, record.FinalDecision)
		assert.Equal(t, "community", record.FinalDecision.DecidedBy)
		assert.Equal(t, models.DecisionAuthentic, record.FinalDecision.Status)
	})

	t.Run("Concurrent Votes Serialize", func(t *testing.T) {
		f := setup(t)

		voters := []string{"v1", "v2", "v3", "v4"}
		errs := make(chan error, len(voters)*2)
		var wg sync.WaitGroup
		for _, voter := range voters {
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(voter string) {
					defer wg.Done()
					_, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{
						VoterID: voter, Choice: models.DecisionFake, Confidence: 40,
					})
					errs <- err
				}(voter)
			}
		}
		wg.Wait()
		close(errs)

		var accepted, rejected int
		for err := range errs {
			if err == nil {
				accepted++
				continue
			}
			require.True(t, models.IsValidation(err))
			rejected++
		}
		assert.Equal(t, 4, accepted, "Exactly one vote per voter lands")
		assert.Equal(t, 4, rejected)

		record, err := f.workflow.GetRecord(ctx, "r1")
		require.NoError(t, err)
		details := record.Step(models.StepCommunityValidation).Details.(models.CommunityValidationDetails)
		assert.Len(t, details.Votes, 4)
	})

	t.Run("Votes Survive Reauthentication", func(t *testing.T) {
		f := setup(t)

		_, err := f.workflow.SubmitVote(ctx, "r1", models.CommunityVote{
			VoterID: "v1", Choice: models.DecisionAuthentic, Confidence: 80,
		})
		require.NoError(t, err)

		record, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		step := record.Step(models.StepCommunityValidation)
		require.NotNil(t, step, "Re-running analysis keeps the vote history")
		details := step.Details.(models.CommunityValidationDetails)
		assert.Len(t, details.Votes, 1)
	})

	t.Run("Vote On Unknown Review", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.workflow.SubmitVote(ctx, "missing", models.CommunityVote{
			VoterID: "v1", Choice: models.DecisionAuthentic, Confidence: 80,
		})
		assert.True(t, models.IsNotFound(err))
	})
}

func TestWorkflow_SetFinalDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("Override Forces Completion", func(t *testing.T) {
		f := newFixture(t, ambiguousReview("r1"))
		_, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)

		record, err := f.workflow.SetFinalDecision(ctx, "r1", DecisionInput{
			Status:     models.DecisionFake,
			Confidence: 90,
			Reasoning:  []string{"coordinated review ring"},
			DecidedBy:  "analyst-7",
		})
		require.NoError(t, err)

		assert.Equal(t, models.StageCompleted, record.CurrentStage)
		assert.Equal(t, models.DecisionFake, record.FinalDecision.Status)
		assert.False(t, record.FinalDecision.Appealable, "Manual overrides are terminal")

		step := record.Step(models.StepExpertReview)
		require.NotNil(t, step)
		assert.Equal(t, "analyst-7", step.PerformedBy)

		require.Len(t, f.broadcast.events, 1)
	})

	t.Run("Override Is Legal On A Completed Record", func(t *testing.T) {
		f := newFixture(t, verifiedReview("r1"))
		first, err := f.workflow.AuthenticateReview(ctx, "r1", nil)
		require.NoError(t, err)
		require.Equal(t, models.StageCompleted, first.CurrentStage)

		record, err := f.workflow.SetFinalDecision(ctx, "r1", DecisionInput{
			Status:    models.DecisionSuspicious,
			DecidedBy: "analyst-7",
		})
		require.NoError(t, err)
		assert.Equal(t, models.DecisionSuspicious, record.FinalDecision.Status)
	})

	t.Run("Input Validation", func(t *testing.T) {
		f := newFixture(t, ambiguousReview("r1"))

		_, err := f.workflow.SetFinalDecision(ctx, "r1", DecisionInput{Status: "bogus", DecidedBy: "analyst-7"})
		assert.True(t, models.IsValidation(err))

		_, err = f.workflow.SetFinalDecision(ctx, "r1", DecisionInput{Status: models.DecisionFake})
		assert.True(t, models.IsValidation(err))
	})
}
