package service

import (
	"context"
	"fmt"

	"github.com/segyhp/reconciliation-engine/internal/calculator"
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

type depositApplier struct {
	tolerance   decimal.Decimal
	overpayment decimal.Decimal
}

func (*depositApplier) normalizeSubType(app *application) (domain.SubType, error) {
	switch app.subType {
	case "", domain.SubTypeDeposit:
		return domain.SubTypeDeposit, nil
	}
	return "", customError.WrapValidation(fmt.Sprintf("sub type %q is not valid for a deposit", app.subType))
}

// apply confirms the deposit. Expiry is already checked by AcceptsPayment.
func (a *depositApplier) apply(_ context.Context, _ repository.TxStore, app *application) error {
	deposit := app.obligation.(*domain.Deposit)
	due := calculator.DepositDue(deposit)
	if err := app.checkAmount("deposit amount", due, a.tolerance, a.overpayment); err != nil {
		return err
	}

	depositedAt := app.now
	deposit.Status = domain.DepositStatusDeposited
	deposit.RemainingAmount = calculator.DepositRemaining(deposit.ProductPrice, due)
	deposit.DepositedAt = &depositedAt
	return nil
}
