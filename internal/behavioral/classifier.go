package behavioral

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// Session labels produced by the classifier.
const (
	TypeHuman            = "human"
	TypeSuspicious       = "suspicious"
	TypeBot              = "bot"
	TypeInsufficientData = "insufficient_data"
)

// Bot-likelihood contributions. Each fired condition is also surfaced as a
// named risk factor so verdicts stay explainable.
const (
	zeroVarianceWeight    = 0.9
	lowVarianceWeight     = 0.6
	noRhythmWeight        = 0.5
	noAccelerationWeight  = 0.3
	noPausesWeight        = 0.4
	nearZeroSkewWeight    = 0.3
	ipCollisionManyWeight = 0.7
	ipCollisionOneWeight  = 0.2

	lowVarianceThreshold = 100.0
	nearZeroSkew         = 0.1

	botThreshold        = 0.7
	suspiciousThreshold = 0.4
	maxConfidence       = 95.0
)

// Mouse-correlation extension constants.
const (
	correlationIntervalTolerance = 50.0
	naturalCorrelationRatio      = 0.3
)

// IPSignal is the optional collision input blended into the bot score.
type IPSignal struct {
	OtherAccounts int
}

// MouseCorrelation is the optional keystroke/pointer comparison result.
type MouseCorrelation struct {
	MatchRatio         float64 `json:"match_ratio"`
	NaturalCorrelation bool    `json:"natural_correlation"`
}

// Classification is the classifier verdict for one session sample.
type Classification struct {
	Type             string            `json:"type"`
	Confidence       float64           `json:"confidence"`
	BotScore         float64           `json:"bot_score"`
	RiskFactors      []string          `json:"risk_factors,omitempty"`
	Features         *Features         `json:"features,omitempty"`
	MouseCorrelation *MouseCorrelation `json:"mouse_correlation,omitempty"`
}

// Classifier labels timing samples as human, suspicious or bot through
// additive scoring against a bot-likelihood accumulator.
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a new behavioral classifier.
func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger.With(zap.String("component", "behavioral_classifier"))}
}

// Classify scores one sample. Sequences shorter than MinSampleSize yield an
// insufficient_data verdict with zero confidence, not an error. pointer may
// be nil; ip may be nil.
func (c *Classifier) Classify(ctx context.Context, intervals []int, pointer []int, ip *IPSignal) *Classification {
	if len(intervals) < MinSampleSize {
		return &Classification{Type: TypeInsufficientData, Confidence: 0}
	}

	features := Extract(intervals)

	var score float64
	var factors []string
	add := func(weight float64, factor string) {
		score += weight
		factors = append(factors, factor)
	}

	if features.Variance == 0 {
		add(zeroVarianceWeight, "zero_timing_variance")
	} else if features.Variance < lowVarianceThreshold {
		add(lowVarianceWeight, "low_timing_variance")
	}
	if !features.HasNaturalRhythm {
		add(noRhythmWeight, "no_natural_rhythm")
	}
	if !features.HasAcceleration {
		add(noAccelerationWeight, "no_acceleration_variability")
	}
	if !features.HasPauses {
		add(noPausesWeight, "no_pauses")
	}
	if math.Abs(features.Skewness) < nearZeroSkew {
		add(nearZeroSkewWeight, "symmetric_timing_distribution")
	}

	if ip != nil {
		switch {
		case ip.OtherAccounts >= 2:
			add(ipCollisionManyWeight, "ip_collision_multiple_accounts")
		case ip.OtherAccounts == 1:
			add(ipCollisionOneWeight, "ip_collision_shared_address")
		}
	}

	result := &Classification{
		BotScore:    score,
		RiskFactors: factors,
		Features:    &features,
	}

	switch {
	case score > botThreshold:
		result.Type = TypeBot
	case score > suspiciousThreshold:
		result.Type = TypeSuspicious
	default:
		result.Type = TypeHuman
	}
	result.Confidence = math.Min(maxConfidence, score*100)

	if len(pointer) == len(intervals) && len(pointer) > 0 {
		result.MouseCorrelation = correlate(intervals, pointer)
	}

	c.logger.Debug("session classified",
		zap.String("type", result.Type),
		zap.Float64("bot_score", score),
		zap.Strings("risk_factors", factors))

	return result
}

// correlate compares keystroke and pointer cadence pairwise. A high share of
// near-matching intervals indicates coordinated, human-like input.
func correlate(keystrokes, pointer []int) *MouseCorrelation {
	matches := 0
	for i := range keystrokes {
		if math.Abs(float64(keystrokes[i]-pointer[i])) < correlationIntervalTolerance {
			matches++
		}
	}
	ratio := float64(matches) / float64(len(keystrokes))
	return &MouseCorrelation{
		MatchRatio:         ratio,
		NaturalCorrelation: ratio > naturalCorrelationRatio,
	}
}
