package repository

import (
	"context"
	"fmt"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const paymentColumns = `id, amount, submitted_at, ocr_sender_name, ocr_reference, ocr_bank,
	customer_id, platform, platform_user_id, status, match_status, match_attempts,
	obligation_kind, obligation_id, sub_type, reject_reason, decided_by, decided_at,
	created_at, updated_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :amount, :submitted_at, :ocr_sender_name, :ocr_reference, :ocr_bank,
			:customer_id, :platform, :platform_user_id, :status, :match_status, :match_attempts,
			:obligation_kind, :obligation_id, :sub_type, :reject_reason, :decided_by, :decided_at,
			:created_at, :updated_at)
	`
	if len(payment.MatchAttempts) == 0 {
		payment.MatchAttempts = types.JSONText("[]")
	}
	_, err := r.db.NamedExecContext(ctx, query, payment)
	return storageError(err)
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, storageError(err)
	}
	return &payment, nil
}

// RecordMatchAttempt only touches pending payments. A payment decided in
// the meantime keeps its final match status.
func (r *paymentRepository) RecordMatchAttempt(ctx context.Context, id, matchStatus string, attempts types.JSONText) error {
	query := `
		UPDATE payments
		SET match_status = $2, match_attempts = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, matchStatus, attempts)
	if err != nil {
		return storageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id); err != nil {
		return storageError(err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (r *paymentRepository) ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error) {
	return r.listPending(ctx, limit,
		domain.MatchStatusUnmatched, domain.MatchStatusAmbiguous, domain.MatchStatusNoMatch)
}

func (r *paymentRepository) ListUnclassified(ctx context.Context, limit int) ([]*domain.Payment, error) {
	return r.listPending(ctx, limit, domain.MatchStatusUnmatched)
}

func (r *paymentRepository) listPending(ctx context.Context, limit int, matchStatuses ...string) ([]*domain.Payment, error) {
	query, args, err := sqlx.In(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = ? AND match_status IN (?)
		ORDER BY submitted_at, id
		LIMIT ?
	`, domain.PaymentStatusPending, matchStatuses, limit)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, r.db.Rebind(query), args...); err != nil {
		return nil, storageError(err)
	}
	return payments, nil
}
