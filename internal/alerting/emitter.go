// Package alerting raises side-channel alerts when pipeline scores cross
// configured thresholds.
package alerting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/collusion"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/events"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// Alert type tags.
const (
	TypeLowTrustScore        = "low_trust_score"
	TypeBotBehavior          = "bot_behavior"
	TypeIPCollision          = "ip_collision"
	TypeRapidRegistration    = "rapid_account_creation"
	TypeSuspiciousReview     = "suspicious_review"
)

// AlertStore persists alerts.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	Resolve(ctx context.Context, id string) error
	Dismiss(ctx context.Context, id string) error
}

// Broadcaster publishes alertRaised events to the sink.
type Broadcaster interface {
	PublishAlertRaised(ctx context.Context, event events.AlertRaised)
}

// Emitter evaluates scores against thresholds and raises alerts.
type Emitter struct {
	store     AlertStore
	broadcast Broadcaster
	metrics   *metrics.Collector
	cfg       config.AlertingConfig
	logger    *zap.Logger
}

// NewEmitter creates a new alert emitter. broadcast and collector may be nil.
func NewEmitter(store AlertStore, broadcast Broadcaster, collector *metrics.Collector, cfg config.AlertingConfig, logger *zap.Logger) *Emitter {
	return &Emitter{
		store:     store,
		broadcast: broadcast,
		metrics:   collector,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "alert_emitter")),
	}
}

// CheckTrustScore raises a high-severity alert when an actor's recomputed
// trust score falls below the configured floor.
func (e *Emitter) CheckTrustScore(ctx context.Context, actor *models.Actor) error {
	if actor.TrustScore >= e.cfg.LowTrustThreshold {
		return nil
	}
	return e.raise(ctx, &models.Alert{
		Type:        TypeLowTrustScore,
		TargetID:    actor.ID,
		TargetKind:  "actor",
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("trust score dropped to %d", actor.TrustScore),
		Data: models.JSONB{
			"trust_score": actor.TrustScore,
			"risk_level":  string(actor.RiskLevel),
		},
	})
}

// CheckBehavior raises an alert when a session classifies as a bot with high
// confidence, or as suspicious.
func (e *Emitter) CheckBehavior(ctx context.Context, actorID string, cls *behavioral.Classification) error {
	if cls == nil {
		return nil
	}

	var severity models.Severity
	switch {
	case cls.Type == behavioral.TypeBot && cls.Confidence >= e.cfg.BotConfidenceThreshold:
		severity = models.SeverityCritical
	case cls.Type == behavioral.TypeBot:
		severity = models.SeverityHigh
	case cls.Type == behavioral.TypeSuspicious:
		severity = models.SeverityMedium
	default:
		return nil
	}

	return e.raise(ctx, &models.Alert{
		Type:        TypeBotBehavior,
		TargetID:    actorID,
		TargetKind:  "actor",
		Severity:    severity,
		Description: fmt.Sprintf("session classified as %s (confidence %.0f)", cls.Type, cls.Confidence),
		Data: models.JSONB{
			"classification": cls.Type,
			"confidence":     cls.Confidence,
			"risk_factors":   cls.RiskFactors,
		},
	})
}

// CheckCollusion raises alerts for shared-address risk and for registration
// bursts. The burst condition is Critical and reported separately from the
// score adjustment.
func (e *Emitter) CheckCollusion(ctx context.Context, actorID string, result *collusion.Result) error {
	if result == nil {
		return nil
	}

	if result.RapidRegistration {
		err := e.raise(ctx, &models.Alert{
			Type:        TypeRapidRegistration,
			TargetID:    actorID,
			TargetKind:  "actor",
			Severity:    models.SeverityCritical,
			Description: fmt.Sprintf("%d accounts registered from one address within 24h", result.RecentRegistrations),
			Data: models.JSONB{
				"recent_registrations": result.RecentRegistrations,
				"other_actor_ids":      result.OtherActorIDs,
			},
		})
		if err != nil {
			return err
		}
	}

	if result.RiskLevel == models.RiskHigh {
		return e.raise(ctx, &models.Alert{
			Type:        TypeIPCollision,
			TargetID:    actorID,
			TargetKind:  "actor",
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("address shared with %d other accounts", result.UniqueCount),
			Data: models.JSONB{
				"unique_count":    result.UniqueCount,
				"other_actor_ids": result.OtherActorIDs,
			},
		})
	}

	return nil
}

// CheckAuthenticity raises an alert for a review scoring below the
// authenticity floor.
func (e *Emitter) CheckAuthenticity(ctx context.Context, reviewID string, score float64, isSynthetic bool) error {
	if score >= e.cfg.LowAuthenticityThreshold && !isSynthetic {
		return nil
	}

	severity := models.SeverityMedium
	if isSynthetic {
		severity = models.SeverityHigh
	}

	return e.raise(ctx, &models.Alert{
		Type:        TypeSuspiciousReview,
		TargetID:    reviewID,
		TargetKind:  "review",
		Severity:    severity,
		Description: fmt.Sprintf("review authenticity score %.1f", score),
		Data: models.JSONB{
			"authenticity_score": score,
			"is_synthetic":       isSynthetic,
		},
	})
}

// raise persists the alert and publishes it to the sink.
func (e *Emitter) raise(ctx context.Context, alert *models.Alert) error {
	alert.ID = uuid.NewString()
	alert.Status = models.AlertActive
	if alert.Tags == nil {
		// A nil array serializes as SQL NULL; the column is NOT NULL.
		alert.Tags = pq.StringArray{}
	}

	if err := e.store.Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to persist alert: %w", err)
	}

	if e.metrics != nil {
		e.metrics.AlertsRaisedTotal.WithLabelValues(alert.Type, string(alert.Severity)).Inc()
	}

	e.logger.Info("alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.Type),
		zap.String("severity", string(alert.Severity)),
		zap.String("target_id", alert.TargetID))

	if e.broadcast != nil {
		e.broadcast.PublishAlertRaised(ctx, events.AlertRaised{
			Type:        alert.Type,
			TargetID:    alert.TargetID,
			Severity:    alert.Severity,
			Description: alert.Description,
			Data:        alert.Data,
		})
	}

	return nil
}
