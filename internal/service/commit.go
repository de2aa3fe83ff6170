package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// applier performs the kind-specific mutation of one obligation inside a
// commit. It mutates app.obligation in place and may write child rows
// through tx; the caller saves the obligation and the payment.
type applier interface {
	// normalizeSubType validates the requested sub type against the locked
	// obligation, filling in the default when empty.
	normalizeSubType(app *application) (domain.SubType, error)
	apply(ctx context.Context, tx repository.TxStore, app *application) error
}

// application is the state one commit works on.
type application struct {
	payment    *domain.Payment
	obligation domain.Obligation
	subType    domain.SubType
	now        time.Time
	asOf       time.Time
}

func (a *application) conflict(reason string) error {
	ref := a.obligation.Ref()
	return customError.WrapObligationConflict(a.payment.ID, string(ref.Kind), ref.ID, a.obligation.CurrentStatus(), reason)
}

// checkAmount rejects a payment outside [expected-under, expected+over].
func (a *application) checkAmount(what string, expected, under, over decimal.Decimal) error {
	amount := a.payment.Amount
	if amount.Add(under).LessThan(expected) {
		return a.conflict(fmt.Sprintf("payment %s is below %s %s", amount, what, expected))
	}
	if amount.GreaterThan(expected.Add(over)) {
		return a.conflict(fmt.Sprintf("payment %s exceeds %s %s beyond the overpayment tolerance", amount, what, expected))
	}
	return nil
}

func newAppliers(settings Settings) map[domain.ObligationKind]applier {
	return map[domain.ObligationKind]applier{
		domain.KindOrder:       &orderApplier{overpayment: settings.OverpaymentTolerance},
		domain.KindInstallment: &installmentApplier{policy: settings.Installments, overpayment: settings.OverpaymentTolerance},
		domain.KindPawn:        &pawnApplier{policy: settings.Pawns, tolerance: settings.Tolerances.Absolute, overpayment: settings.OverpaymentTolerance},
		domain.KindDeposit:     &depositApplier{tolerance: settings.Tolerances.Absolute, overpayment: settings.OverpaymentTolerance},
	}
}

type commitRequest struct {
	paymentID   string
	ref         domain.ObligationRef
	subType     domain.SubType
	actor       string
	action      string
	matchStatus string
	// attempts replaces the payment's match log when set.
	attempts types.JSONText
}

// commit binds a pending payment to an obligation as one unit of work:
// re-check both sides under lock, mutate the obligation, mark the payment
// matched and write the audit entry. Any failure rolls everything back.
func (s *ReconciliationService) commit(ctx context.Context, req commitRequest) (*domain.CommitResult, error) {
	ap, ok := s.appliers[req.ref.Kind]
	if !ok {
		return nil, customError.WrapUnsupportedKind(string(req.ref.Kind))
	}

	now, asOf := s.now()
	var result *domain.CommitResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.TxStore) error {
		payment, err := tx.LockPayment(ctx, req.paymentID)
		if err != nil {
			return notFoundOr(err, customError.WrapPaymentNotFound(req.paymentID))
		}
		if payment.Status != domain.PaymentStatusPending {
			return customError.WrapPaymentConflict(payment.ID, payment.Status)
		}

		obligation, err := tx.LockObligation(ctx, req.ref)
		if err != nil {
			return notFoundOr(err, customError.WrapObligationNotFound(string(req.ref.Kind), req.ref.ID))
		}
		if payment.CustomerID != nil && obligation.OwnerID() != *payment.CustomerID {
			return customError.WrapValidation("obligation belongs to a different customer").
				WithDetail("payment_id", payment.ID).
				WithDetail("obligation", req.ref.String())
		}

		app := &application{payment: payment, obligation: obligation, subType: req.subType, now: now, asOf: asOf}
		if !obligation.AcceptsPayment(asOf) {
			return app.conflict("obligation no longer accepts payments")
		}
		if app.subType, err = ap.normalizeSubType(app); err != nil {
			return err
		}

		paymentBefore := payment.Clone()
		obligationBefore := obligation.Clone()

		if err := ap.apply(ctx, tx, app); err != nil {
			return err
		}
		setUpdatedAt(obligation, now)
		if err := tx.SaveObligation(ctx, obligation); err != nil {
			return err
		}

		kind, id, sub := string(req.ref.Kind), req.ref.ID, string(app.subType)
		actor := req.actor
		payment.Status = domain.PaymentStatusMatched
		payment.MatchStatus = req.matchStatus
		payment.ObligationKind = &kind
		payment.ObligationID = &id
		payment.SubType = &sub
		payment.DecidedBy = &actor
		payment.DecidedAt = &now
		payment.UpdatedAt = now
		if req.attempts != nil {
			payment.MatchAttempts = req.attempts
		}
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		entry, err := newAuditEntry(req.action, actor, now, paymentBefore, payment, obligationBefore, obligation)
		if err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, entry); err != nil {
			return err
		}

		result = &domain.CommitResult{Payment: payment, Obligation: obligation, AuditID: entry.ID}
		return nil
	})
	if err != nil {
		return nil, s.commitError(ctx, req, err)
	}

	s.logger.InfoContext(ctx, "payment committed",
		"payment_id", req.paymentID,
		"obligation", req.ref.String(),
		"sub_type", result.Payment.SubType,
		"action", req.action,
		"actor", req.actor,
		"obligation_status", result.Obligation.CurrentStatus(),
	)
	return result, nil
}

func (s *ReconciliationService) commitError(ctx context.Context, req commitRequest, err error) error {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		be = customError.WrapPersistence(err)
	}
	if customError.IsConflict(be) {
		s.logger.InfoContext(ctx, "commit rejected",
			"payment_id", req.paymentID,
			"obligation", req.ref.String(),
			"details", be.Details,
		)
	} else if customError.IsPersistence(be) {
		s.logger.ErrorContext(ctx, "commit failed",
			"payment_id", req.paymentID,
			"obligation", req.ref.String(),
			"error", err,
		)
	}
	return be
}

func notFoundOr(err error, notFound *customError.BusinessError) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}

func setUpdatedAt(ob domain.Obligation, now time.Time) {
	switch o := ob.(type) {
	case *domain.Order:
		o.UpdatedAt = now
	case *domain.InstallmentContract:
		o.UpdatedAt = now
	case *domain.Pawn:
		o.UpdatedAt = now
	case *domain.Deposit:
		o.UpdatedAt = now
	}
}

func newAuditEntry(action, actor string, now time.Time, paymentBefore, paymentAfter *domain.Payment, obligationBefore, obligationAfter domain.Obligation) (*domain.AuditEntry, error) {
	entry := &domain.AuditEntry{
		ID:        uuid.New().String(),
		PaymentID: paymentAfter.ID,
		Action:    action,
		Actor:     actor,
		CreatedAt: now,
	}
	if paymentAfter.SubType != nil {
		entry.SubType = paymentAfter.SubType
	}

	var err error
	if entry.PaymentBefore, err = snapshot(paymentBefore); err != nil {
		return nil, err
	}
	if entry.PaymentAfter, err = snapshot(paymentAfter); err != nil {
		return nil, err
	}
	if obligationAfter != nil {
		ref := obligationAfter.Ref()
		kind, id := string(ref.Kind), ref.ID
		entry.ObligationKind = &kind
		entry.ObligationID = &id
		if entry.ObligationBefore, err = snapshot(obligationBefore); err != nil {
			return nil, err
		}
		if entry.ObligationAfter, err = snapshot(obligationAfter); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func snapshot(v any) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}
