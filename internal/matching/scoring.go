// Package matching turns a payment amount into scored candidate matches,
// one generator per obligation kind.
package matching

import (
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

var twenty = decimal.NewFromInt(20)

// Tolerances bound how far a payment may be from the expected amount and
// still count as a candidate.
type Tolerances struct {
	// Absolute applies to installment periods, pawn amounts and deposits.
	Absolute decimal.Decimal
	// Orders accept max(amount * OrderRelativePercent / 100, OrderMin).
	OrderRelativePercent decimal.Decimal
	OrderMin             decimal.Decimal
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		Absolute:             decimal.NewFromInt(100),
		OrderRelativePercent: decimal.NewFromInt(5),
		OrderMin:             decimal.NewFromInt(100),
	}
}

// OrderTolerance is the accepted distance from an order balance for a
// payment of amount.
func (t Tolerances) OrderTolerance(amount decimal.Decimal) decimal.Decimal {
	return utils.MaxDecimal(utils.Percent(amount, t.OrderRelativePercent), t.OrderMin)
}

// scoreAbsolute scores amount against expected: exact is 100, anything
// within tol decays linearly from 90 to 70.
func scoreAbsolute(amount, expected, tol decimal.Decimal) (int, bool) {
	return score(amount, expected, tol, domain.ConfidenceHigh, domain.ConfidenceMedium)
}

// scoreOrder is looser than scoreAbsolute so near order matches decay from
// 70 to 50 and never outrank an exact match of another kind.
func scoreOrder(amount, expected, tol decimal.Decimal) (int, bool) {
	return score(amount, expected, tol, domain.ConfidenceMedium, domain.ConfidenceLow)
}

func score(amount, expected, tol decimal.Decimal, near, floor int) (int, bool) {
	diff := amount.Sub(expected).Abs()
	if diff.IsZero() {
		return domain.ConfidenceExact, true
	}
	if !tol.IsPositive() || diff.GreaterThan(tol) {
		return 0, false
	}
	penalty := int(diff.Mul(twenty).Div(tol).Floor().IntPart())
	return max(near-penalty, floor), true
}

func newCandidate(ob domain.Obligation, sub domain.SubType, amount, expected decimal.Decimal, confidence int, exactReason, closeReason string, due *time.Time) domain.Candidate {
	reason := closeReason
	if confidence == domain.ConfidenceExact {
		reason = exactReason
	}
	return domain.Candidate{
		Obligation:       ob.Ref(),
		SubType:          sub,
		ExpectedAmount:   expected,
		Difference:       amount.Sub(expected),
		Confidence:       confidence,
		Reason:           reason,
		DueDate:          due,
		ObligationStatus: ob.CurrentStatus(),
	}
}
