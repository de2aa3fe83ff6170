// Package classifier ranks merged candidates and decides between auto
// match, manual review and no match.
package classifier

import (
	"sort"

	"github.com/segyhp/reconciliation-engine/internal/domain"
)

// Policy holds the decision thresholds.
type Policy struct {
	// AutoMatchThreshold is the minimum confidence for an automatic match.
	AutoMatchThreshold int
	// AmbiguityBand: a runner-up within this many points of the top
	// candidate blocks the automatic match.
	AmbiguityBand int
}

func DefaultPolicy() Policy {
	return Policy{AutoMatchThreshold: 95, AmbiguityBand: 5}
}

// Rank sorts candidates in place by confidence descending, then by the
// most recently due obligation (undated last), then by obligation
// reference so the order is deterministic.
func Rank(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		switch {
		case a.DueDate != nil && b.DueDate != nil:
			if !a.DueDate.Equal(*b.DueDate) {
				return a.DueDate.After(*b.DueDate)
			}
		case a.DueDate != nil:
			return true
		case b.DueDate != nil:
			return false
		}
		if a.Obligation.Kind != b.Obligation.Kind {
			return a.Obligation.Kind < b.Obligation.Kind
		}
		if a.Obligation.ID != b.Obligation.ID {
			return a.Obligation.ID < b.Obligation.ID
		}
		return a.SubType < b.SubType
	})
}

// Decide ranks candidates and reaches a decision for paymentID. It never
// mutates anything outside the returned Decision.
func (p Policy) Decide(paymentID string, candidates []domain.Candidate) *domain.Decision {
	ranked := make([]domain.Candidate, len(candidates))
	copy(ranked, candidates)
	Rank(ranked)

	decision := &domain.Decision{
		PaymentID:  paymentID,
		Candidates: ranked,
	}

	if len(ranked) == 0 {
		decision.Outcome = domain.OutcomeNoMatch
		return decision
	}

	top := ranked[0]
	if top.Confidence < p.AutoMatchThreshold || p.contested(ranked) {
		decision.Outcome = domain.OutcomeAmbiguous
		return decision
	}

	decision.Outcome = domain.OutcomeAutoMatched
	decision.Chosen = &top
	ref := top.Obligation
	decision.Binding = &ref
	return decision
}

// contested reports whether the runner-up sits within the ambiguity band
// of the top candidate.
func (p Policy) contested(ranked []domain.Candidate) bool {
	if len(ranked) < 2 {
		return false
	}
	return ranked[0].Confidence-ranked[1].Confidence <= p.AmbiguityBand
}
