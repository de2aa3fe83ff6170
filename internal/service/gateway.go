package service

import (
	"context"
	"strings"

	"github.com/segyhp/reconciliation-engine/internal/classifier"
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/matching"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"
)

// Candidates returns the ranked list an operator chooses from, always with
// the reject option. Cached lists from the last classification are reused.
func (s *ReconciliationService) Candidates(ctx context.Context, paymentID string) (*domain.ManualReview, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, customError.WrapPaymentConflict(payment.ID, payment.Status)
	}

	candidates, hit, err := s.cache.Get(ctx, payment.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "candidate cache read failed", "payment_id", payment.ID, "error", err)
	}
	if !hit {
		customerID, err := s.paymentCustomer(ctx, payment)
		if err != nil {
			return nil, err
		}
		_, asOf := s.now()
		result := s.engine.Run(ctx, matching.Query{CustomerID: customerID, Amount: payment.Amount, AsOf: asOf})
		candidates = result.Candidates
		classifier.Rank(candidates)
		if err := s.cache.Put(ctx, payment.ID, candidates); err != nil {
			s.logger.WarnContext(ctx, "failed to cache candidates", "payment_id", payment.ID, "error", err)
		}
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}

	return &domain.ManualReview{
		Payment:    payment,
		Candidates: candidates,
		CanReject:  true,
	}, nil
}

// ApplyManualClassification commits an operator's choice through the same
// path as an automatic match.
func (s *ReconciliationService) ApplyManualClassification(
	ctx context.Context,
	paymentID string,
	ref domain.ObligationRef,
	subType domain.SubType,
	operator string,
) (*domain.CommitResult, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, customError.WrapValidation("payment id is required")
	}
	if !ref.Kind.Valid() {
		return nil, customError.WrapUnsupportedKind(string(ref.Kind))
	}
	if strings.TrimSpace(ref.ID) == "" {
		return nil, customError.WrapValidation("obligation id is required")
	}
	if strings.TrimSpace(operator) == "" {
		return nil, customError.WrapValidation("operator is required")
	}

	result, err := s.commit(ctx, commitRequest{
		paymentID:   paymentID,
		ref:         ref,
		subType:     subType,
		actor:       operator,
		action:      domain.AuditActionManualMatch,
		matchStatus: domain.MatchStatusManualMatched,
	})
	if err != nil {
		return nil, err
	}
	s.forgetCandidates(ctx, paymentID)
	return result, nil
}

// RejectPayment marks a pending payment rejected with the operator's
// reason. No obligation is touched.
func (s *ReconciliationService) RejectPayment(ctx context.Context, paymentID, reason, operator string) (*domain.Payment, error) {
	reason = strings.TrimSpace(reason)
	if strings.TrimSpace(paymentID) == "" {
		return nil, customError.WrapValidation("payment id is required")
	}
	if reason == "" {
		return nil, customError.WrapValidation("reject reason is required")
	}
	if strings.TrimSpace(operator) == "" {
		return nil, customError.WrapValidation("operator is required")
	}

	now, _ := s.now()
	var rejected *domain.Payment

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.TxStore) error {
		payment, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return notFoundOr(err, customError.WrapPaymentNotFound(paymentID))
		}
		if payment.Status != domain.PaymentStatusPending {
			return customError.WrapPaymentConflict(payment.ID, payment.Status)
		}

		before := payment.Clone()
		payment.Status = domain.PaymentStatusRejected
		payment.MatchStatus = domain.MatchStatusRejected
		payment.RejectReason = &reason
		payment.DecidedBy = &operator
		payment.DecidedAt = &now
		payment.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		entry, err := newAuditEntry(domain.AuditActionReject, operator, now, before, payment, nil, nil)
		if err != nil {
			return err
		}
		if err := tx.InsertAudit(ctx, entry); err != nil {
			return err
		}
		rejected = payment
		return nil
	})
	if err != nil {
		return nil, s.commitError(ctx, commitRequest{paymentID: paymentID}, err)
	}

	s.forgetCandidates(ctx, paymentID)
	s.logger.InfoContext(ctx, "payment rejected",
		"payment_id", paymentID,
		"operator", operator,
		"reason", reason,
	)
	return rejected, nil
}
