package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepName identifies an authentication step kind. The set is closed: every
// name maps to exactly one details variant.
type StepName string

const (
	StepInitialAnalysis     StepName = "initial_analysis"
	StepLinguisticAnalysis  StepName = "linguistic_analysis"
	StepBehavioralAnalysis  StepName = "behavioral_analysis"
	StepCommunityValidation StepName = "community_validation"
	StepExpertReview        StepName = "expert_review"
)

// StepDetails is the closed set of per-step payloads. Implementations are
// selected by step name when decoding.
type StepDetails interface {
	stepDetails()
}

// InitialAnalysisDetails carries the fused automated-analysis outcome.
type InitialAnalysisDetails struct {
	LinguisticScore  float64  `json:"linguistic_score"`
	BehavioralScore  float64  `json:"behavioral_score"`
	IsSynthetic      bool     `json:"is_synthetic"`
	PurchaseVerified bool     `json:"purchase_verified"`
	ReasonCodes      []string `json:"reason_codes,omitempty"`
}

// LinguisticAnalysisDetails carries the text-classifier outcome for a step.
type LinguisticAnalysisDetails struct {
	AuthenticityScore float64  `json:"authenticity_score"`
	IsSynthetic       bool     `json:"is_synthetic"`
	Confidence        float64  `json:"confidence"`
	ReasonCodes       []string `json:"reason_codes,omitempty"`
}

// BehavioralAnalysisDetails carries the session-classifier outcome.
type BehavioralAnalysisDetails struct {
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
	BotScore       float64  `json:"bot_score"`
	RiskFactors    []string `json:"risk_factors,omitempty"`
}

// CommunityValidationDetails carries the vote list and current tally.
type CommunityValidationDetails struct {
	Votes          []CommunityVote `json:"votes"`
	MajorityChoice DecisionStatus  `json:"majority_choice,omitempty"`
	MeanConfidence float64         `json:"mean_confidence"`
	QuorumReached  bool            `json:"quorum_reached"`
}

// ExpertReviewDetails carries a manual override decision.
type ExpertReviewDetails struct {
	Decision  DecisionStatus `json:"decision"`
	DecidedBy string         `json:"decided_by"`
	Notes     string         `json:"notes,omitempty"`
}

func (InitialAnalysisDetails) stepDetails() {}

func (LinguisticAnalysisDetails) stepDetails() {}

func (BehavioralAnalysisDetails) stepDetails() {}

func (CommunityValidationDetails) stepDetails() {}

func (ExpertReviewDetails) stepDetails() {}

// AuthenticationStep is one entry in a record's audit trail.
type AuthenticationStep struct {
	Name        StepName    `json:"step"`
	Status      StepStatus  `json:"status"`
	Score       float64     `json:"score"`
	Details     StepDetails `json:"details,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	PerformedBy string      `json:"performed_by"`
}

// stepJSON mirrors AuthenticationStep with raw details for two-phase decode.
type stepJSON struct {
	Name        StepName        `json:"step"`
	Status      StepStatus      `json:"status"`
	Score       float64         `json:"score"`
	Details     json.RawMessage `json:"details,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	PerformedBy string          `json:"performed_by"`
}

// UnmarshalJSON decodes a step, selecting the details variant by step name.
func (s *AuthenticationStep) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.Status = raw.Status
	s.Score = raw.Score
	s.Timestamp = raw.Timestamp
	s.PerformedBy = raw.PerformedBy
	s.Details = nil
	if len(raw.Details) == 0 {
		return nil
	}

	details, err := decodeStepDetails(raw.Name, raw.Details)
	if err != nil {
		return err
	}
	s.Details = details
	return nil
}

func decodeStepDetails(name StepName, raw json.RawMessage) (StepDetails, error) {
	switch name {
	case StepInitialAnalysis:
		var d InitialAnalysisDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StepLinguisticAnalysis:
		var d LinguisticAnalysisDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StepBehavioralAnalysis:
		var d BehavioralAnalysisDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StepCommunityValidation:
		var d CommunityValidationDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case StepExpertReview:
		var d ExpertReviewDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown authentication step %q", name)
	}
}
