package calculator

import (
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// OrderRemaining is total - paid, floored at zero.
func OrderRemaining(total, paid decimal.Decimal) decimal.Decimal {
	remaining := total.Sub(paid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// DepositAmount is round(price * pct / 100).
func DepositAmount(price, pct decimal.Decimal) decimal.Decimal {
	return utils.RoundCurrency(utils.Percent(price, pct))
}

// DepositDue is the stored deposit amount, or the amount implied by the
// deposit percentage for reservations created without one.
func DepositDue(d *domain.Deposit) decimal.Decimal {
	if d.DepositAmount.IsPositive() {
		return d.DepositAmount
	}
	return DepositAmount(d.ProductPrice, d.DepositPercent)
}

// DepositRemaining is what is still owed on the product after the deposit.
func DepositRemaining(price, deposit decimal.Decimal) decimal.Decimal {
	return price.Sub(deposit)
}
