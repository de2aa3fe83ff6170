package service

import (
	"context"
	"fmt"

	"github.com/segyhp/reconciliation-engine/internal/calculator"
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type installmentApplier struct {
	policy      calculator.InstallmentPolicy
	overpayment decimal.Decimal
}

// normalizeSubType defaults to the next unpaid period. Periods after the
// next unpaid one cannot be paid ahead.
func (a *installmentApplier) normalizeSubType(app *application) (domain.SubType, error) {
	contract := app.obligation.(*domain.InstallmentContract)
	if app.subType == "" {
		return domain.PeriodSubType(contract.NextPeriod()), nil
	}

	n, ok := app.subType.PeriodNumber()
	if !ok || n > contract.TotalPeriods {
		return "", customError.WrapValidation(fmt.Sprintf("sub type %q is not a period of contract %s", app.subType, contract.ID)).
			WithDetail("obligation", contract.Ref().String())
	}
	if n > contract.NextPeriod() {
		return "", app.conflict(fmt.Sprintf("period %d is not payable before period %d", n, contract.NextPeriod()))
	}
	return app.subType, nil
}

// apply verifies one period payment and advances the contract: paid
// amount and period count only grow, and the next due date always comes
// from the schedule.
func (a *installmentApplier) apply(ctx context.Context, tx repository.TxStore, app *application) error {
	contract := app.obligation.(*domain.InstallmentContract)
	period, _ := app.subType.PeriodNumber()

	paid := contract.PaidAmount.Add(app.payment.Amount)
	if limit := contract.TotalAmount.Add(a.overpayment); paid.GreaterThan(limit) {
		return app.conflict(fmt.Sprintf("paid amount %s would exceed contract total %s beyond the overpayment tolerance", paid, contract.TotalAmount))
	}

	verifiedAt := app.now
	err := tx.InsertInstallmentPayment(ctx, &domain.InstallmentPayment{
		ID:           uuid.New().String(),
		ContractID:   contract.ID,
		PaymentID:    app.payment.ID,
		PeriodNumber: period,
		Amount:       app.payment.Amount,
		Status:       domain.InstallmentPaymentVerified,
		VerifiedAt:   &verifiedAt,
		CreatedAt:    app.now,
	})
	if err != nil {
		return err
	}

	contract.PaidAmount = paid
	if period > contract.PaidPeriods {
		contract.PaidPeriods = period
	}

	if contract.PaidPeriods >= contract.TotalPeriods || paid.GreaterThanOrEqual(contract.TotalAmount) {
		contract.Status = domain.ContractStatusCompleted
		contract.NextDueDate = nil
		return nil
	}

	contract.NextDueDate = a.policy.NextDueDate(contract, contract.PaidPeriods)
	if contract.Status == domain.ContractStatusOverdue && contract.NextDueDate != nil &&
		!contract.NextDueDate.Before(utils.StartOfDay(app.asOf)) {
		contract.Status = domain.ContractStatusActive
	}
	return nil
}
