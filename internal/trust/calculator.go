// Package trust computes bounded actor trust scores.
package trust

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/collusion"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/events"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// Scoring formula constants. The score starts at the base and accumulates
// bounded contributions before clamping to [0,100].
const (
	scoreBase = 50.0

	agePointsPerDay = 2.0
	agePointsCap    = 20.0

	txnPointsEach = 0.5
	txnPointsCap  = 15.0

	consistencyBonus = 10.0

	healthyRateLow       = 0.5
	healthyRateHigh      = 2.0
	healthyRateBonus     = 5.0
	excessiveRate        = 5.0
	excessiveRatePenalty = -10.0

	veteranAgeDays  = 365
	veteranAgeBonus = 10.0
	settledAgeDays  = 90
	settledAgeBonus = 5.0
	freshAgeDays    = 7
	freshAgePenalty = -5.0

	activeTxnCount  = 20
	activeTxnBonus  = 5.0
	startedTxnCount = 5
	startedTxnBonus = 3.0
	zeroTxnPenalty  = -5.0
)

// ActorStore is the persistence surface the calculator mutates through.
type ActorStore interface {
	GetByID(ctx context.Context, id string) (*models.Actor, error)
	UpdateTrustFields(ctx context.Context, actor *models.Actor) error
	ListIDs(ctx context.Context) ([]string, error)
}

// AlertChecker receives the refreshed actor for threshold evaluation.
type AlertChecker interface {
	CheckTrustScore(ctx context.Context, actor *models.Actor) error
	CheckCollusion(ctx context.Context, actorID string, result *collusion.Result) error
}

// Broadcaster publishes bulk-operation events.
type Broadcaster interface {
	PublishBulkOperationCompleted(ctx context.Context, event events.BulkOperationCompleted)
}

// Calculator recomputes actor trust scores from age, activity and risk
// signals, and persists the refreshed fields atomically.
type Calculator struct {
	actors    ActorStore
	collusion *collusion.Detector
	cache     *redis.Client
	cacheTTL  time.Duration
	alerts    AlertChecker
	broadcast Broadcaster
	scoring   config.ScoringConfig
	logger    *zap.Logger
}

// NewCalculator creates a trust score calculator. cache, alerts and
// broadcast may be nil.
func NewCalculator(
	actors ActorStore,
	detector *collusion.Detector,
	cache *redis.Client,
	cacheTTL time.Duration,
	alerts AlertChecker,
	broadcast Broadcaster,
	scoring config.ScoringConfig,
	logger *zap.Logger,
) *Calculator {
	return &Calculator{
		actors:    actors,
		collusion: detector,
		cache:     cache,
		cacheTTL:  cacheTTL,
		alerts:    alerts,
		broadcast: broadcast,
		scoring:   scoring,
		logger:    logger.With(zap.String("component", "trust_calculator")),
	}
}

// Recalculate recomputes and persists an actor's trust score. The optional
// behavioral classification feeds the consistency bonus and is kept as the
// actor's snapshot.
func (c *Calculator) Recalculate(ctx context.Context, actorID string, cls *behavioral.Classification) (*models.Actor, error) {
	actor, err := c.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	ipResult, err := c.collusion.Detect(ctx, actor.ID, actor.LastNetworkAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate address collisions: %w", err)
	}

	ageDays := actor.AgeDays(time.Now())
	score := c.Score(ageDays, actor.TransactionCount, ipResult.ScoreAdjustment, cls)

	actor.AccountAgeDays = ageDays
	actor.TrustScore = score
	actor.RiskLevel = riskLevel(score)
	if cls != nil {
		actor.BehavioralSnapshot = models.JSONB{
			"type":         cls.Type,
			"confidence":   cls.Confidence,
			"bot_score":    cls.BotScore,
			"risk_factors": cls.RiskFactors,
		}
	}

	// Age, transaction count and score persist together or not at all.
	if err := c.actors.UpdateTrustFields(ctx, actor); err != nil {
		return nil, err
	}

	c.cacheScore(ctx, actor)

	if c.alerts != nil {
		if err := c.alerts.CheckTrustScore(ctx, actor); err != nil {
			c.logger.Warn("trust score alert check failed", zap.Error(err))
		}
		if err := c.alerts.CheckCollusion(ctx, actor.ID, ipResult); err != nil {
			c.logger.Warn("collusion alert check failed", zap.Error(err))
		}
	}

	c.logger.Info("trust score recalculated",
		zap.String("actor_id", actor.ID),
		zap.Int("trust_score", score),
		zap.String("risk_level", string(actor.RiskLevel)))

	return actor, nil
}

// Score evaluates the additive trust formula. The result is an integer
// clamped to [0,100].
func (c *Calculator) Score(ageDays, transactionCount, ipAdjustment int, cls *behavioral.Classification) int {
	score := scoreBase

	score += math.Min(agePointsPerDay*float64(ageDays), agePointsCap)
	score += math.Min(txnPointsEach*float64(transactionCount), txnPointsCap)
	score += float64(ipAdjustment)

	if cls != nil && cls.Features != nil {
		variance := cls.Features.Variance
		if variance >= c.scoring.NaturalVarianceLow && variance <= c.scoring.NaturalVarianceHigh {
			score += consistencyBonus
		}
	}

	if ageDays > 0 {
		rate := float64(transactionCount) / float64(ageDays)
		if rate > healthyRateLow && rate < healthyRateHigh {
			score += healthyRateBonus
		} else if rate > excessiveRate {
			score += excessiveRatePenalty
		}
	}

	switch {
	case ageDays > veteranAgeDays:
		score += veteranAgeBonus
	case ageDays > settledAgeDays:
		score += settledAgeBonus
	case ageDays < freshAgeDays:
		score += freshAgePenalty
	}

	switch {
	case transactionCount > activeTxnCount:
		score += activeTxnBonus
	case transactionCount > startedTxnCount:
		score += startedTxnBonus
	case transactionCount == 0:
		score += zeroTxnPenalty
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// RecalculateAll runs a batched recalculation over every actor and emits a
// bulkOperationCompleted event with the per-actor outcome counts.
func (c *Calculator) RecalculateAll(ctx context.Context) (success, failed int, err error) {
	ids, err := c.actors.ListIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, id := range ids {
		if _, err := c.Recalculate(ctx, id, nil); err != nil {
			c.logger.Warn("bulk recalculation failed for actor", zap.String("actor_id", id), zap.Error(err))
			failed++
			continue
		}
		success++
	}

	if c.broadcast != nil {
		c.broadcast.PublishBulkOperationCompleted(ctx, events.BulkOperationCompleted{
			Operation:    "trust_recalculation",
			SuccessCount: success,
			FailCount:    failed,
			Timestamp:    time.Now(),
		})
	}

	return success, failed, nil
}

// cacheScore writes the refreshed score through to Redis, best effort.
func (c *Calculator) cacheScore(ctx context.Context, actor *models.Actor) {
	if c.cache == nil {
		return
	}
	key := "trust:" + actor.ID
	if err := c.cache.Set(ctx, key, strconv.Itoa(actor.TrustScore), c.cacheTTL).Err(); err != nil {
		c.logger.Warn("failed to cache trust score", zap.String("actor_id", actor.ID), zap.Error(err))
	}
}

// CachedScore reads a previously cached score. The second return reports a
// cache hit.
func (c *Calculator) CachedScore(ctx context.Context, actorID string) (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	val, err := c.cache.Get(ctx, "trust:"+actorID).Result()
	if err != nil {
		return 0, false
	}
	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return score, true
}

func riskLevel(score int) models.RiskLevel {
	switch {
	case score >= 70:
		return models.RiskLow
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}
