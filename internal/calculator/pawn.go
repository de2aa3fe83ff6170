package calculator

import (
	"fmt"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// PawnPolicy holds the shop's pawn lending terms.
type PawnPolicy struct {
	PeriodDays          int
	DefaultLoanPercent  decimal.Decimal
	MinLoanPercent      decimal.Decimal
	MaxLoanPercent      decimal.Decimal
	DefaultInterestRate decimal.Decimal
}

func DefaultPawnPolicy() PawnPolicy {
	return PawnPolicy{
		PeriodDays:          30,
		DefaultLoanPercent:  decimal.NewFromInt(65),
		MinLoanPercent:      decimal.NewFromInt(65),
		MaxLoanPercent:      decimal.NewFromInt(70),
		DefaultInterestRate: decimal.NewFromInt(2),
	}
}

// ValidateLoanPercent rejects loan percentages outside the lending band.
func (p PawnPolicy) ValidateLoanPercent(pct decimal.Decimal) error {
	if pct.LessThan(p.MinLoanPercent) || pct.GreaterThan(p.MaxLoanPercent) {
		return fmt.Errorf("loan percentage %s outside %s-%s", pct, p.MinLoanPercent, p.MaxLoanPercent)
	}
	return nil
}

// LoanAmount is round(appraisal * pct / 100).
func LoanAmount(appraisal, pct decimal.Decimal) decimal.Decimal {
	return utils.RoundCurrency(utils.Percent(appraisal, pct))
}

// PeriodicInterest is round(loan * rate / 100).
func PeriodicInterest(loan, rate decimal.Decimal) decimal.Decimal {
	return utils.RoundCurrency(utils.Percent(loan, rate))
}

// OutstandingPeriods is the number of interest periods owed at asOf. A pawn
// that is not yet past its due date owes exactly one; an overdue pawn owes
// max(1, ceil(daysOverdue / periodDays)).
func OutstandingPeriods(nextDue, asOf time.Time, periodDays int) int {
	if periodDays <= 0 {
		periodDays = 30
	}
	overdue := utils.DaysBetween(nextDue, asOf)
	if overdue <= 0 {
		return 1
	}
	return max(1, utils.CeilDiv(overdue, periodDays))
}

// RedemptionAmount is loan + interest * outstanding periods.
func RedemptionAmount(loan, rate decimal.Decimal, nextDue, asOf time.Time, periodDays int) decimal.Decimal {
	periods := OutstandingPeriods(nextDue, asOf, periodDays)
	return loan.Add(PeriodicInterest(loan, rate).Mul(decimal.NewFromInt(int64(periods))))
}

// PawnQuote is the calculator view of one pawn at a given date.
type PawnQuote struct {
	LoanAmount         decimal.Decimal `json:"loan_amount"`
	PeriodicInterest   decimal.Decimal `json:"periodic_interest"`
	OutstandingPeriods int             `json:"outstanding_periods"`
	RedemptionAmount   decimal.Decimal `json:"redemption_amount"`
	DaysOverdue        int             `json:"days_overdue"`
}

// Quote evaluates pawn p as of asOf.
func (pp PawnPolicy) Quote(p *domain.Pawn, asOf time.Time) PawnQuote {
	periodDays := p.PeriodDays
	if periodDays <= 0 {
		periodDays = pp.PeriodDays
	}
	periods := OutstandingPeriods(p.NextDueDate, asOf, periodDays)
	interest := PeriodicInterest(p.LoanAmount, p.InterestRate)
	return PawnQuote{
		LoanAmount:         p.LoanAmount,
		PeriodicInterest:   interest,
		OutstandingPeriods: periods,
		RedemptionAmount:   p.LoanAmount.Add(interest.Mul(decimal.NewFromInt(int64(periods)))),
		DaysOverdue:        max(0, utils.DaysBetween(p.NextDueDate, asOf)),
	}
}

// NextDueAfterInterest advances the due date by one period from the prior
// due date, never from the payment date.
func (pp PawnPolicy) NextDueAfterInterest(p *domain.Pawn) time.Time {
	periodDays := p.PeriodDays
	if periodDays <= 0 {
		periodDays = pp.PeriodDays
	}
	return utils.CalculateDueDate(p.NextDueDate, periodDays)
}
