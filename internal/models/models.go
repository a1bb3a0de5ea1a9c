package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// RiskLevel classifies how risky an actor or signal is considered.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Severity grades alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertResolved  AlertStatus = "resolved"
	AlertDismissed AlertStatus = "dismissed"
)

// SellerKind tags which store a seller reference resolves against.
type SellerKind string

const (
	SellerUser   SellerKind = "user"
	SellerVendor SellerKind = "vendor"
)

// SellerRef identifies a seller that may live either in the user store or in
// the vendor store. Resolution dispatches on Kind rather than probing both.
type SellerRef struct {
	Kind SellerKind `json:"kind" db:"seller_kind"`
	ID   string     `json:"id" db:"seller_id"`
}

// Resolve dispatches the reference to the lookup for its kind. An unknown
// kind is a validation error; neither lookup is probed for it.
func (s SellerRef) Resolve(user, vendor func(id string) error) error {
	switch s.Kind {
	case SellerUser:
		return user(s.ID)
	case SellerVendor:
		return vendor(s.ID)
	default:
		return NewValidation("unknown seller kind %q", s.Kind)
	}
}

// Actor is a marketplace participant (buyer, seller or product owner) as the
// scoring pipeline sees it.
type Actor struct {
	ID                 string    `json:"id" db:"id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	TransactionCount   int       `json:"transaction_count" db:"transaction_count"`
	LastNetworkAddress string    `json:"last_network_address" db:"last_network_address"`
	TrustScore         int       `json:"trust_score" db:"trust_score"`
	RiskLevel          RiskLevel `json:"risk_level" db:"risk_level"`
	AccountAgeDays     int       `json:"account_age_days" db:"account_age_days"`
	BehavioralSnapshot JSONB     `json:"behavioral_snapshot,omitempty" db:"behavioral_snapshot"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// AgeDays returns the account age in whole days at the given instant.
func (a *Actor) AgeDays(now time.Time) int {
	if now.Before(a.CreatedAt) {
		return 0
	}
	return int(now.Sub(a.CreatedAt).Hours() / 24)
}

// LinguisticAnalysis is the persisted linguistic summary of a review.
type LinguisticAnalysis struct {
	SentenceVariety       float64 `json:"sentence_variety"`
	EmotionalAuthenticity float64 `json:"emotional_authenticity"`
	SpecificDetails       float64 `json:"specific_details"`
	VocabularyComplexity  float64 `json:"vocabulary_complexity"`
	GrammarScore          float64 `json:"grammar_score"`
}

// Review is a user-submitted review together with the pipeline's verdict
// fields. Only the verdict fields are mutated by the pipeline.
type Review struct {
	ID                 string              `json:"id" db:"id"`
	ReviewerID         string              `json:"reviewer_id" db:"reviewer_id"`
	Seller             SellerRef           `json:"seller"`
	Text               string              `json:"text" db:"body"`
	PurchaseVerified   bool                `json:"purchase_verified" db:"purchase_verified"`
	OrderTrustScore    float64             `json:"order_trust_score" db:"order_trust_score"`
	AuthenticityScore  float64             `json:"authenticity_score" db:"authenticity_score"`
	IsAIGenerated      bool                `json:"is_ai_generated" db:"is_ai_generated"`
	LinguisticAnalysis *LinguisticAnalysis `json:"linguistic_analysis,omitempty"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// BehavioralMetrics is the optional session bundle submitted with a review.
type BehavioralMetrics struct {
	IPAddress          string `json:"ip_address"`
	UserAgent          string `json:"user_agent"`
	DeviceFingerprint  string `json:"device_fingerprint"`
	KeystrokeIntervals []int  `json:"keystroke_intervals"`
	PointerIntervals   []int  `json:"pointer_intervals,omitempty"`
}

// WorkflowStage is the position of an authentication record in its lifecycle.
type WorkflowStage string

const (
	StageInitialAnalysis  WorkflowStage = "initial_analysis"
	StageCommunityReview  WorkflowStage = "community_review"
	StageExpertValidation WorkflowStage = "expert_validation"
	StageCompleted        WorkflowStage = "completed"
)

// StepStatus is the status of a single authentication step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
)

// DecisionStatus is the outcome attached to a final decision.
type DecisionStatus string

const (
	DecisionAuthentic             DecisionStatus = "authentic"
	DecisionSuspicious            DecisionStatus = "suspicious"
	DecisionFake                  DecisionStatus = "fake"
	DecisionRequiresInvestigation DecisionStatus = "requires_investigation"
)

// ValidDecisionStatuses lists every accepted decision status, in the order
// reported by validation errors.
var ValidDecisionStatuses = []DecisionStatus{
	DecisionAuthentic,
	DecisionSuspicious,
	DecisionFake,
	DecisionRequiresInvestigation,
}

// IsValidDecisionStatus reports whether s is an accepted decision status.
func IsValidDecisionStatus(s DecisionStatus) bool {
	for _, v := range ValidDecisionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CommunityVote is a single community submission on a disputed review.
type CommunityVote struct {
	VoterID    string         `json:"voter_id"`
	Choice     DecisionStatus `json:"choice"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Timestamp  time.Time      `json:"timestamp"`
}

// FinalDecision is the terminal verdict on a review authentication record.
type FinalDecision struct {
	Status     DecisionStatus `json:"status"`
	Confidence float64        `json:"confidence"`
	Reasoning  []string       `json:"reasoning"`
	DecidedBy  string         `json:"decided_by"`
	DecidedAt  time.Time      `json:"decided_at"`
	Appealable bool           `json:"appealable"`
}

// ReviewAuthenticationRecord owns the full audit trail for one review.
type ReviewAuthenticationRecord struct {
	ID                         string               `json:"id" db:"id"`
	ReviewID                   string               `json:"review_id" db:"review_id"`
	OverallAuthenticationScore float64              `json:"overall_authentication_score" db:"overall_score"`
	Steps                      []AuthenticationStep `json:"authentication_steps"`
	FinalDecision              *FinalDecision       `json:"final_decision,omitempty"`
	CurrentStage               WorkflowStage        `json:"current_stage" db:"current_stage"`
	FraudIndicators            []string             `json:"fraud_indicators"`
	CreatedAt                  time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time            `json:"updated_at" db:"updated_at"`
}

// Step returns the step with the given name, or nil.
func (r *ReviewAuthenticationRecord) Step(name StepName) *AuthenticationStep {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// UpsertStep replaces the step with the same name or appends a new one. The
// step list never holds two entries with the same name.
func (r *ReviewAuthenticationRecord) UpsertStep(step AuthenticationStep) {
	for i := range r.Steps {
		if r.Steps[i].Name == step.Name {
			r.Steps[i] = step
			return
		}
	}
	r.Steps = append(r.Steps, step)
}

// AddFraudIndicators appends indicators not already present.
func (r *ReviewAuthenticationRecord) AddFraudIndicators(indicators ...string) {
	for _, ind := range indicators {
		seen := false
		for _, existing := range r.FraudIndicators {
			if existing == ind {
				seen = true
				break
			}
		}
		if !seen {
			r.FraudIndicators = append(r.FraudIndicators, ind)
		}
	}
}

// Alert is a threshold-crossing notification raised by the pipeline.
type Alert struct {
	ID          string         `json:"id" db:"id"`
	Type        string         `json:"type" db:"type"`
	TargetID    string         `json:"target_id" db:"target_id"`
	TargetKind  string         `json:"target_kind" db:"target_kind"`
	Severity    Severity       `json:"severity" db:"severity"`
	Description string         `json:"description" db:"description"`
	Data        JSONB          `json:"data" db:"data"`
	Status      AlertStatus    `json:"status" db:"status"`
	Tags        pq.StringArray `json:"tags" db:"tags"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// JSONB stores an arbitrary JSON object in a jsonb column.
type JSONB map[string]interface{}

// Value implements driver.Valuer.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}
