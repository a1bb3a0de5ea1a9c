// Package consensus tallies community votes on disputed reviews.
package consensus

import (
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// DefaultQuorum is the vote count at which a tally becomes decisive.
const DefaultQuorum = 3

// DefaultConfidenceThreshold is the mean confidence required for the
// community outcome to stand as a decision.
const DefaultConfidenceThreshold = 70.0

// Tally is the aggregated view over a vote set. It is recomputed from the
// full list on every accepted vote, so the same vote set always produces the
// same tally regardless of arrival order.
type Tally struct {
	Total          int                           `json:"total"`
	Counts         map[models.DecisionStatus]int `json:"counts"`
	Majority       models.DecisionStatus         `json:"majority"`
	MajorityCount  int                           `json:"majority_count"`
	MeanConfidence float64                       `json:"mean_confidence"`
	QuorumReached  bool                          `json:"quorum_reached"`
	Decisive       bool                          `json:"decisive"`
}

// Aggregator computes majority outcomes over community vote sets.
type Aggregator struct {
	quorum              int
	confidenceThreshold float64
}

// NewAggregator creates an aggregator with the given quorum and mean
// confidence threshold. Non-positive values fall back to the defaults.
func NewAggregator(quorum int, confidenceThreshold float64) *Aggregator {
	if quorum <= 0 {
		quorum = DefaultQuorum
	}
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Aggregator{quorum: quorum, confidenceThreshold: confidenceThreshold}
}

// Aggregate tallies the vote set. Ties break to the lexicographically
// smallest choice so the outcome is deterministic for a given set.
func (a *Aggregator) Aggregate(votes []models.CommunityVote) Tally {
	tally := Tally{
		Total:  len(votes),
		Counts: make(map[models.DecisionStatus]int),
	}
	if len(votes) == 0 {
		return tally
	}

	var confidenceSum float64
	for _, v := range votes {
		tally.Counts[v.Choice]++
		confidenceSum += v.Confidence
	}
	tally.MeanConfidence = confidenceSum / float64(len(votes))

	for choice, count := range tally.Counts {
		if count > tally.MajorityCount ||
			(count == tally.MajorityCount && choice < tally.Majority) {
			tally.Majority = choice
			tally.MajorityCount = count
		}
	}

	tally.QuorumReached = tally.Total >= a.quorum
	tally.Decisive = tally.QuorumReached && tally.MeanConfidence >= a.confidenceThreshold

	return tally
}
