// Package workflow sequences automated scoring, community review and expert
// decision for disputed reviews.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/authenticity"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/consensus"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/events"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

const systemActor = "system"
const communityActor = "community"

// Behavioral type contribution to the fused overall score.
var behavioralComponentScore = map[string]float64{
	behavioral.TypeHuman:            80,
	behavioral.TypeSuspicious:       45,
	behavioral.TypeBot:              10,
	behavioral.TypeInsufficientData: 50,
}

// RecordStore is the persistence surface for authentication records. Mutate
// must execute its callback atomically against the current persisted state.
type RecordStore interface {
	GetRecordByReviewID(ctx context.Context, reviewID string) (*models.ReviewAuthenticationRecord, error)
	CreateRecord(ctx context.Context, record *models.ReviewAuthenticationRecord) error
	MutateRecord(ctx context.Context, reviewID string, fn func(*models.ReviewAuthenticationRecord) error) (*models.ReviewAuthenticationRecord, error)
}

// ReviewStore reads reviews and persists pipeline verdicts on them.
type ReviewStore interface {
	GetReview(ctx context.Context, id string) (*models.Review, error)
	UpdateReviewVerdict(ctx context.Context, review *models.Review) error
	CountReviewerHistory(ctx context.Context, reviewerID string) (total, synthetic, verified int, err error)
}

// AlertSink receives threshold checks from the workflow.
type AlertSink interface {
	CheckAuthenticity(ctx context.Context, reviewID string, score float64, isSynthetic bool) error
	CheckBehavior(ctx context.Context, actorID string, cls *behavioral.Classification) error
}

// Broadcaster publishes review status events.
type Broadcaster interface {
	PublishReviewStatusUpdated(ctx context.Context, event events.ReviewStatusUpdated)
}

// DecisionInput is a manual override submitted by an expert or moderator.
type DecisionInput struct {
	Status     models.DecisionStatus `json:"status"`
	Confidence float64               `json:"confidence"`
	Reasoning  []string              `json:"reasoning"`
	DecidedBy  string                `json:"decided_by"`
}

// Workflow is the review authentication state machine.
type Workflow struct {
	records    RecordStore
	reviews    ReviewStore
	engine     *authenticity.Engine
	behavioral *behavioral.Classifier
	aggregator *consensus.Aggregator
	alerts     AlertSink
	broadcast  Broadcaster
	metrics    *metrics.Collector
	scoring    config.ScoringConfig
	logger     *zap.Logger
}

// New creates the workflow orchestrator. alerts, broadcast and collector may
// be nil.
func New(
	records RecordStore,
	reviews ReviewStore,
	engine *authenticity.Engine,
	classifier *behavioral.Classifier,
	aggregator *consensus.Aggregator,
	alerts AlertSink,
	broadcast Broadcaster,
	collector *metrics.Collector,
	scoring config.ScoringConfig,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		records:    records,
		reviews:    reviews,
		engine:     engine,
		behavioral: classifier,
		aggregator: aggregator,
		alerts:     alerts,
		broadcast:  broadcast,
		metrics:    collector,
		scoring:    scoring,
		logger:     logger.With(zap.String("component", "workflow")),
	}
}

// GetRecord returns the authentication record owning a review.
func (w *Workflow) GetRecord(ctx context.Context, reviewID string) (*models.ReviewAuthenticationRecord, error) {
	return w.records.GetRecordByReviewID(ctx, reviewID)
}

// AuthenticateReview computes or refreshes the automated analysis for a
// review. Re-invocation re-runs the analysis but never erases vote history
// and never overrides a decision made outside the automated path.
func (w *Workflow) AuthenticateReview(ctx context.Context, reviewID string, metrics *models.BehavioralMetrics) (*models.ReviewAuthenticationRecord, error) {
	review, err := w.reviews.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	total, synthetic, verified, err := w.reviews.CountReviewerHistory(ctx, review.ReviewerID)
	if err != nil {
		return nil, err
	}
	history := authenticity.ReviewerHistory{
		TotalReviews:     total,
		SyntheticReviews: synthetic,
		VerifiedReviews:  verified,
	}

	decision := w.engine.Evaluate(ctx, review, history)

	var behaviorCls *behavioral.Classification
	if metrics != nil && len(metrics.KeystrokeIntervals) > 0 {
		behaviorCls = w.behavioral.Classify(ctx, metrics.KeystrokeIntervals, metrics.PointerIntervals, nil)
	}

	overall := w.fuse(decision, behaviorCls)
	now := time.Now()

	var prevStage models.WorkflowStage
	apply := func(record *models.ReviewAuthenticationRecord) error {
		prevStage = record.CurrentStage
		record.OverallAuthenticationScore = overall
		w.applyAnalysisSteps(record, decision, behaviorCls, review, now)
		record.AddFraudIndicators(decision.Flags...)
		if behaviorCls != nil {
			record.AddFraudIndicators(behaviorCls.RiskFactors...)
		}

		// A completed record, and any record decided by the community or an
		// expert, keeps its decision and stage; the refreshed analysis is
		// recorded but cannot demote it.
		if record.FinalDecision != nil &&
			(record.CurrentStage == models.StageCompleted || record.FinalDecision.DecidedBy != systemActor) {
			return nil
		}

		w.applyAutomatedOutcome(record, overall, decision, now)
		return nil
	}

	record, err := w.records.GetRecordByReviewID(ctx, reviewID)
	switch {
	case models.IsNotFound(err):
		record = &models.ReviewAuthenticationRecord{
			ID:           uuid.NewString(),
			ReviewID:     reviewID,
			CurrentStage: models.StageInitialAnalysis,
		}
		if err := apply(record); err != nil {
			return nil, err
		}
		if err := w.records.CreateRecord(ctx, record); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		record, err = w.records.MutateRecord(ctx, reviewID, apply)
		if err != nil {
			return nil, err
		}
	}
	w.observeTransition(prevStage, record.CurrentStage)

	review.AuthenticityScore = decision.Text.Score
	review.IsAIGenerated = decision.Text.IsSynthetic
	analysis := decision.Text.Analysis
	review.LinguisticAnalysis = &analysis
	if err := w.reviews.UpdateReviewVerdict(ctx, review); err != nil {
		return nil, err
	}

	if w.alerts != nil {
		if err := w.alerts.CheckAuthenticity(ctx, reviewID, decision.Text.Score, decision.Text.IsSynthetic); err != nil {
			w.logger.Warn("authenticity alert check failed", zap.Error(err))
		}
		if behaviorCls != nil {
			if err := w.alerts.CheckBehavior(ctx, review.ReviewerID, behaviorCls); err != nil {
				w.logger.Warn("behavior alert check failed", zap.Error(err))
			}
		}
	}

	if record.FinalDecision != nil && record.FinalDecision.DecidedBy == systemActor &&
		record.CurrentStage == models.StageCompleted {
		w.announce(ctx, record)
	}

	w.logger.Info("review authenticated",
		zap.String("review_id", reviewID),
		zap.Float64("overall_score", overall),
		zap.String("stage", string(record.CurrentStage)))

	return record, nil
}

// fuse combines the text decision with the optional behavioral component.
func (w *Workflow) fuse(decision *authenticity.Decision, cls *behavioral.Classification) float64 {
	if cls == nil {
		return decision.Score
	}
	behaviorScore, ok := behavioralComponentScore[cls.Type]
	if !ok {
		behaviorScore = 50
	}
	return decision.Score*w.scoring.LinguisticWeight + behaviorScore*w.scoring.BehavioralWeight
}

// applyAnalysisSteps upserts the automated steps. Step names are unique keys:
// re-running analysis replaces the old step rather than appending.
func (w *Workflow) applyAnalysisSteps(
	record *models.ReviewAuthenticationRecord,
	decision *authenticity.Decision,
	cls *behavioral.Classification,
	review *models.Review,
	now time.Time,
) {
	textStatus := models.StepPassed
	if decision.Text.IsSynthetic {
		textStatus = models.StepFailed
	}
	record.UpsertStep(models.AuthenticationStep{
		Name:        models.StepLinguisticAnalysis,
		Status:      textStatus,
		Score:       decision.Text.Score,
		Timestamp:   now,
		PerformedBy: systemActor,
		Details: models.LinguisticAnalysisDetails{
			AuthenticityScore: decision.Text.Score,
			IsSynthetic:       decision.Text.IsSynthetic,
			Confidence:        decision.Text.Confidence,
			ReasonCodes:       decision.Text.ReasonCodes,
		},
	})

	behavioralScore := 0.0
	if cls != nil {
		status := models.StepPassed
		if cls.Type == behavioral.TypeBot {
			status = models.StepFailed
		}
		behavioralScore = behavioralComponentScore[cls.Type]
		record.UpsertStep(models.AuthenticationStep{
			Name:        models.StepBehavioralAnalysis,
			Status:      status,
			Score:       behavioralScore,
			Timestamp:   now,
			PerformedBy: systemActor,
			Details: models.BehavioralAnalysisDetails{
				Classification: cls.Type,
				Confidence:     cls.Confidence,
				BotScore:       cls.BotScore,
				RiskFactors:    cls.RiskFactors,
			},
		})
	}

	record.UpsertStep(models.AuthenticationStep{
		Name:        models.StepInitialAnalysis,
		Status:      models.StepPassed,
		Score:       record.OverallAuthenticationScore,
		Timestamp:   now,
		PerformedBy: systemActor,
		Details: models.InitialAnalysisDetails{
			LinguisticScore:  decision.Text.Score,
			BehavioralScore:  behavioralScore,
			IsSynthetic:      decision.Text.IsSynthetic,
			PurchaseVerified: review.PurchaseVerified,
			ReasonCodes:      decision.Text.ReasonCodes,
		},
	})
}

// applyAutomatedOutcome resolves unambiguous scores immediately and routes
// ambiguous ones to community review.
func (w *Workflow) applyAutomatedOutcome(
	record *models.ReviewAuthenticationRecord,
	overall float64,
	decision *authenticity.Decision,
	now time.Time,
) {
	switch {
	case overall >= w.scoring.AmbiguousBandHigh:
		record.FinalDecision = &models.FinalDecision{
			Status:     models.DecisionAuthentic,
			Confidence: overall,
			Reasoning:  []string{"automated analysis found no fraud signals"},
			DecidedBy:  systemActor,
			DecidedAt:  now,
			Appealable: true,
		}
		record.CurrentStage = models.StageCompleted
	case overall < w.scoring.AmbiguousBandLow:
		record.FinalDecision = &models.FinalDecision{
			Status:     models.DecisionFake,
			Confidence: 100 - overall,
			Reasoning:  decision.Flags,
			DecidedBy:  systemActor,
			DecidedAt:  now,
			Appealable: true,
		}
		record.CurrentStage = models.StageCompleted
	default:
		// Ambiguous band: park a provisional status and hand the review to
		// the community.
		record.FinalDecision = &models.FinalDecision{
			Status:     models.DecisionRequiresInvestigation,
			Confidence: 50,
			Reasoning:  []string{"automated score is ambiguous"},
			DecidedBy:  systemActor,
			DecidedAt:  now,
			Appealable: true,
		}
		record.CurrentStage = models.StageCommunityReview
	}
}

// SubmitVote records one community vote. The duplicate check and the tally
// recomputation run inside the store's atomic mutation, so concurrent
// submissions serialize and none is lost.
func (w *Workflow) SubmitVote(ctx context.Context, reviewID string, vote models.CommunityVote) (*models.ReviewAuthenticationRecord, error) {
	if vote.VoterID == "" {
		return nil, models.NewValidation("voter id is required")
	}
	if !models.IsValidDecisionStatus(vote.Choice) {
		return nil, models.NewInvalidStatus(vote.Choice)
	}
	if vote.Confidence < 0 || vote.Confidence > 100 {
		return nil, models.NewValidation("vote confidence must be between 0 and 100, got %.1f", vote.Confidence)
	}
	vote.Timestamp = time.Now()

	var decidedByCommunity bool
	var prevStage models.WorkflowStage
	record, err := w.records.MutateRecord(ctx, reviewID, func(record *models.ReviewAuthenticationRecord) error {
		prevStage = record.CurrentStage
		step := record.Step(models.StepCommunityValidation)
		var details models.CommunityValidationDetails
		if step != nil {
			existing, ok := step.Details.(models.CommunityValidationDetails)
			if !ok {
				return fmt.Errorf("community step carries unexpected details %T", step.Details)
			}
			details = existing
		}

		for _, v := range details.Votes {
			if v.VoterID == vote.VoterID {
				return models.NewValidation("voter %s has already voted on review %s", vote.VoterID, reviewID)
			}
		}
		details.Votes = append(details.Votes, vote)

		tally := w.aggregator.Aggregate(details.Votes)
		details.MajorityChoice = tally.Majority
		details.MeanConfidence = tally.MeanConfidence
		details.QuorumReached = tally.QuorumReached

		status := models.StepPending
		score := 0.0
		if tally.QuorumReached {
			status = models.StepPassed
			score = tally.MeanConfidence
		}
		record.UpsertStep(models.AuthenticationStep{
			Name:        models.StepCommunityValidation,
			Status:      status,
			Score:       score,
			Timestamp:   vote.Timestamp,
			PerformedBy: communityActor,
			Details:     details,
		})

		if tally.Decisive && record.CurrentStage != models.StageCompleted {
			record.FinalDecision = &models.FinalDecision{
				Status:     tally.Majority,
				Confidence: tally.MeanConfidence,
				Reasoning:  []string{fmt.Sprintf("community consensus: %d of %d votes", tally.MajorityCount, tally.Total)},
				DecidedBy:  communityActor,
				DecidedAt:  vote.Timestamp,
				Appealable: true,
			}
			record.CurrentStage = models.StageExpertValidation
			decidedByCommunity = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	w.observeTransition(prevStage, record.CurrentStage)

	if decidedByCommunity {
		w.announce(ctx, record)
	}

	w.logger.Info("vote recorded",
		zap.String("review_id", reviewID),
		zap.String("voter_id", vote.VoterID),
		zap.String("choice", string(vote.Choice)))

	return record, nil
}

// SetFinalDecision applies a manual override. It is legal from any stage and
// forces the record to completed.
func (w *Workflow) SetFinalDecision(ctx context.Context, reviewID string, input DecisionInput) (*models.ReviewAuthenticationRecord, error) {
	if !models.IsValidDecisionStatus(input.Status) {
		return nil, models.NewInvalidStatus(input.Status)
	}
	if input.DecidedBy == "" {
		return nil, models.NewValidation("decided_by is required")
	}

	now := time.Now()
	var prevStage models.WorkflowStage
	record, err := w.records.MutateRecord(ctx, reviewID, func(record *models.ReviewAuthenticationRecord) error {
		prevStage = record.CurrentStage
		record.FinalDecision = &models.FinalDecision{
			Status:     input.Status,
			Confidence: input.Confidence,
			Reasoning:  input.Reasoning,
			DecidedBy:  input.DecidedBy,
			DecidedAt:  now,
			Appealable: false,
		}
		record.CurrentStage = models.StageCompleted

		record.UpsertStep(models.AuthenticationStep{
			Name:        models.StepExpertReview,
			Status:      models.StepPassed,
			Score:       input.Confidence,
			Timestamp:   now,
			PerformedBy: input.DecidedBy,
			Details: models.ExpertReviewDetails{
				Decision:  input.Status,
				DecidedBy: input.DecidedBy,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.observeTransition(prevStage, record.CurrentStage)

	w.announce(ctx, record)

	w.logger.Info("final decision set",
		zap.String("review_id", reviewID),
		zap.String("status", string(input.Status)),
		zap.String("decided_by", input.DecidedBy))

	return record, nil
}

// observeTransition counts a stage change. Re-runs that land on the same
// stage are not transitions.
func (w *Workflow) observeTransition(from, to models.WorkflowStage) {
	if w.metrics == nil || from == to {
		return
	}
	w.metrics.WorkflowTransitionsTotal.WithLabelValues(string(to)).Inc()
}

func (w *Workflow) announce(ctx context.Context, record *models.ReviewAuthenticationRecord) {
	if w.broadcast == nil || record.FinalDecision == nil {
		return
	}
	w.broadcast.PublishReviewStatusUpdated(ctx, events.ReviewStatusUpdated{
		ReviewID:  record.ReviewID,
		NewStatus: record.FinalDecision.Status,
		DecidedBy: record.FinalDecision.DecidedBy,
		Timestamp: time.Now(),
	})
}
