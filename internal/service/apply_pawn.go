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

type pawnApplier struct {
	policy      calculator.PawnPolicy
	tolerance   decimal.Decimal
	overpayment decimal.Decimal
}

func (a *pawnApplier) normalizeSubType(app *application) (domain.SubType, error) {
	switch app.subType {
	case domain.SubTypeInterest, domain.SubTypeFullRedemption:
		return app.subType, nil
	case "":
		return "", customError.WrapValidation("pawn payments need sub type interest or full_redemption").
			WithDetail("obligation", app.obligation.Ref().String())
	}
	return "", customError.WrapValidation(fmt.Sprintf("sub type %q is not valid for a pawn", app.subType))
}

func (a *pawnApplier) apply(ctx context.Context, tx repository.TxStore, app *application) error {
	pawn := app.obligation.(*domain.Pawn)
	if app.subType == domain.SubTypeFullRedemption {
		return a.redeem(ctx, tx, app, pawn)
	}
	return a.payInterest(ctx, tx, app, pawn)
}

// payInterest extends the pawn by one period counted from the prior due
// date. An overdue pawn becomes active again once the new due date is not
// in the past. At most one period of interest is recorded.
func (a *pawnApplier) payInterest(ctx context.Context, tx repository.TxStore, app *application, pawn *domain.Pawn) error {
	expected := calculator.PeriodicInterest(pawn.LoanAmount, pawn.InterestRate)
	if err := app.checkAmount("periodic interest", expected, a.tolerance, a.overpayment); err != nil {
		return err
	}
	interest := decimal.Min(app.payment.Amount, expected)

	err := tx.InsertPawnPayment(ctx, &domain.PawnPayment{
		ID:              uuid.New().String(),
		PawnID:          pawn.ID,
		PaymentID:       app.payment.ID,
		PaymentType:     domain.PawnPaymentInterest,
		Amount:          app.payment.Amount,
		InterestAmount:  interest,
		PrincipalAmount: decimal.Zero,
		PeriodsCovered:  1,
		CreatedAt:       app.now,
	})
	if err != nil {
		return err
	}

	pawn.PeriodsPaid++
	pawn.TotalInterestPaid = pawn.TotalInterestPaid.Add(interest)
	pawn.NextDueDate = a.policy.NextDueAfterInterest(pawn)
	if pawn.Status == domain.PawnStatusOverdue && !pawn.NextDueDate.Before(utils.StartOfDay(app.asOf)) {
		pawn.Status = domain.PawnStatusActive
	}
	return nil
}

// redeem closes the pawn. The payment must match the redemption amount
// as of today, within tolerance.
func (a *pawnApplier) redeem(ctx context.Context, tx repository.TxStore, app *application, pawn *domain.Pawn) error {
	quote := a.policy.Quote(pawn, app.asOf)
	if err := app.checkAmount("redemption amount", quote.RedemptionAmount, a.tolerance, a.overpayment); err != nil {
		return err
	}

	interest := quote.PeriodicInterest.Mul(decimal.NewFromInt(int64(quote.OutstandingPeriods)))
	err := tx.InsertPawnPayment(ctx, &domain.PawnPayment{
		ID:              uuid.New().String(),
		PawnID:          pawn.ID,
		PaymentID:       app.payment.ID,
		PaymentType:     domain.PawnPaymentFullRedemption,
		Amount:          app.payment.Amount,
		InterestAmount:  interest,
		PrincipalAmount: pawn.LoanAmount,
		PeriodsCovered:  quote.OutstandingPeriods,
		CreatedAt:       app.now,
	})
	if err != nil {
		return err
	}

	redeemedAt := app.now
	pawn.TotalInterestPaid = pawn.TotalInterestPaid.Add(interest)
	pawn.Status = domain.PawnStatusRedeemed
	pawn.RedeemedAt = &redeemedAt
	return nil
}
