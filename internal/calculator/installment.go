// Package calculator holds the pure money and date rules for every
// obligation kind. Nothing here performs I/O or reads the clock; callers
// pass the as-of date explicitly.
package calculator

import (
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// InstallmentPolicy fixes the shape of every installment contract.
type InstallmentPolicy struct {
	Periods        int
	ServiceFeeRate decimal.Decimal
	// OffsetDays[i] is the due-date offset of period i+1 from the start date.
	OffsetDays []int
}

// DefaultInstallmentPolicy is three periods over sixty days with a one-time
// 3% service fee collected with the first period.
func DefaultInstallmentPolicy() InstallmentPolicy {
	return InstallmentPolicy{
		Periods:        3,
		ServiceFeeRate: decimal.RequireFromString("0.03"),
		OffsetDays:     []int{0, 30, 60},
	}
}

// ServiceFee is round(financed * rate), charged once.
func (p InstallmentPolicy) ServiceFee(financed decimal.Decimal) decimal.Decimal {
	return utils.RoundCurrency(financed.Mul(p.ServiceFeeRate))
}

// TotalDue is the financed amount plus the service fee.
func (p InstallmentPolicy) TotalDue(financed decimal.Decimal) decimal.Decimal {
	return financed.Add(p.ServiceFee(financed))
}

// offset returns the day offset for period n (1-based). Periods past the
// configured offsets continue at 30-day steps.
func (p InstallmentPolicy) offset(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= len(p.OffsetDays) {
		return p.OffsetDays[n-1]
	}
	last := 0
	if len(p.OffsetDays) > 0 {
		last = p.OffsetDays[len(p.OffsetDays)-1]
	}
	return last + 30*(n-len(p.OffsetDays))
}

// DueDate returns the due date of period n for a contract started on start.
func (p InstallmentPolicy) DueDate(start time.Time, n int) time.Time {
	return utils.CalculateDueDate(start, p.offset(n))
}

// Schedule splits financed into p.Periods periods. Each period gets
// floor(financed / periods); the remainder goes to the last period so the
// base amounts sum exactly to financed. Period 1 additionally carries the fee.
func (p InstallmentPolicy) Schedule(financed decimal.Decimal, start time.Time) []domain.SchedulePeriod {
	n := decimal.NewFromInt(int64(p.Periods))
	base := financed.Div(n).Floor()
	remainder := financed.Sub(base.Mul(n))
	fee := p.ServiceFee(financed)

	periods := make([]domain.SchedulePeriod, 0, p.Periods)
	for i := 1; i <= p.Periods; i++ {
		sp := domain.SchedulePeriod{
			Number:     i,
			DueDate:    p.DueDate(start, i),
			BaseAmount: base,
			Fee:        decimal.Zero,
		}
		if i == p.Periods {
			sp.BaseAmount = base.Add(remainder)
		}
		if i == 1 {
			sp.Fee = fee
		}
		sp.Total = sp.BaseAmount.Add(sp.Fee)
		periods = append(periods, sp)
	}
	return periods
}

// PeriodAmount is the total expected for period n of contract c, or false
// when n is outside the contract.
func (p InstallmentPolicy) PeriodAmount(c *domain.InstallmentContract, n int) (decimal.Decimal, bool) {
	if n < 1 || n > c.TotalPeriods {
		return decimal.Zero, false
	}
	schedule := p.forContract(c).Schedule(c.FinancedAmount, c.StartDate)
	return schedule[n-1].Total, true
}

// NextDueDate returns the due date of the period after paidPeriods, or nil
// when every period is paid.
func (p InstallmentPolicy) NextDueDate(c *domain.InstallmentContract, paidPeriods int) *time.Time {
	if paidPeriods >= c.TotalPeriods {
		return nil
	}
	d := p.DueDate(c.StartDate, paidPeriods+1)
	return &d
}

// forContract honours a contract created with a different period count.
func (p InstallmentPolicy) forContract(c *domain.InstallmentContract) InstallmentPolicy {
	if c.TotalPeriods > 0 && c.TotalPeriods != p.Periods {
		p.Periods = c.TotalPeriods
	}
	return p
}
