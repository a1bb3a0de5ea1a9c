// Package collusion detects network-address sharing between actor accounts.
package collusion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// Score adjustments applied by the trust calculator per collision count.
const (
	uniqueAddressBonus   = 10
	sharedAddressPenalty = -15

	// registrationWindow is the rolling window for burst-registration
	// detection.
	registrationWindow = 24 * time.Hour
)

// ActorDirectory is the registry lookup the detector depends on.
type ActorDirectory interface {
	ListByNetworkAddress(ctx context.Context, address string) ([]*models.Actor, error)
	CountRecentByNetworkAddress(ctx context.Context, address string, since time.Time) (int, error)
}

// Result is the outcome of a collision check for one actor.
type Result struct {
	UniqueCount     int              `json:"unique_count"`
	OtherActorIDs   []string         `json:"other_actor_ids,omitempty"`
	RiskLevel       models.RiskLevel `json:"risk_level"`
	ScoreAdjustment int              `json:"score_adjustment"`

	// RapidRegistration reports that the burst-registration threshold was
	// crossed inside the rolling window. It is a separate Critical-severity
	// condition for the alert path, never folded into ScoreAdjustment.
	RapidRegistration   bool `json:"rapid_registration"`
	RecentRegistrations int  `json:"recent_registrations"`
}

// Detector counts distinct accounts sharing a network address.
type Detector struct {
	directory ActorDirectory
	burstMin  int
	logger    *zap.Logger
}

// NewDetector creates a new collision detector. burstMin is the number of
// registrations inside the rolling window that counts as a burst.
func NewDetector(directory ActorDirectory, burstMin int, logger *zap.Logger) *Detector {
	if burstMin <= 0 {
		burstMin = 3
	}
	return &Detector{
		directory: directory,
		burstMin:  burstMin,
		logger:    logger.With(zap.String("component", "collusion_detector")),
	}
}

// Detect reports how many other accounts share the actor's network address.
// An actor with no recorded address yields a neutral result, not an error.
func (d *Detector) Detect(ctx context.Context, actorID, networkAddress string) (*Result, error) {
	if networkAddress == "" {
		return &Result{RiskLevel: models.RiskUnknown}, nil
	}

	actors, err := d.directory.ListByNetworkAddress(ctx, networkAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to look up address %s: %w", networkAddress, err)
	}

	result := &Result{}
	for _, actor := range actors {
		if actor.ID == actorID {
			continue
		}
		result.OtherActorIDs = append(result.OtherActorIDs, actor.ID)
	}
	result.UniqueCount = len(result.OtherActorIDs)

	switch {
	case result.UniqueCount == 0:
		result.ScoreAdjustment = uniqueAddressBonus
		result.RiskLevel = models.RiskLow
	case result.UniqueCount == 1:
		// One other account is consistent with a shared household.
		result.ScoreAdjustment = 0
		result.RiskLevel = models.RiskLow
	default:
		result.ScoreAdjustment = sharedAddressPenalty
		result.RiskLevel = models.RiskHigh
	}

	recent, err := d.directory.CountRecentByNetworkAddress(ctx, networkAddress, time.Now().Add(-registrationWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent registrations for %s: %w", networkAddress, err)
	}
	result.RecentRegistrations = recent
	result.RapidRegistration = recent >= d.burstMin

	if result.RapidRegistration {
		d.logger.Warn("registration burst detected",
			zap.String("actor_id", actorID),
			zap.Int("recent_registrations", recent))
	}

	return result, nil
}
