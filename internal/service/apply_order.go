package service

import (
	"context"
	"fmt"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

type orderApplier struct {
	overpayment decimal.Decimal
}

func (a *orderApplier) normalizeSubType(app *application) (domain.SubType, error) {
	switch app.subType {
	case "", domain.SubTypeBalance:
		return domain.SubTypeBalance, nil
	}
	return "", customError.WrapValidation(fmt.Sprintf("sub type %q is not valid for an order", app.subType))
}

// apply adds the payment to the paid amount. The order is paid once the
// total is covered, partial otherwise.
func (a *orderApplier) apply(_ context.Context, _ repository.TxStore, app *application) error {
	order := app.obligation.(*domain.Order)

	paid := order.PaidAmount.Add(app.payment.Amount)
	if limit := order.TotalAmount.Add(a.overpayment); paid.GreaterThan(limit) {
		return app.conflict(fmt.Sprintf("paid amount %s would exceed total %s beyond the overpayment tolerance", paid, order.TotalAmount))
	}

	order.PaidAmount = paid
	if paid.GreaterThanOrEqual(order.TotalAmount) {
		order.Status = domain.OrderStatusPaid
	} else {
		order.Status = domain.OrderStatusPartial
	}
	return nil
}
