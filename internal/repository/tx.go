package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

type txManager struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewTxManager runs units of work in READ COMMITTED transactions. Rows
// read through Lock* are held with SELECT ... FOR UPDATE, so two commits
// racing on one payment serialize and the second sees the first's result.
// A positive lockTimeout makes lock waits fail fast as transient errors.
func NewTxManager(db *sqlx.DB, lockTimeout time.Duration) TxManager {
	return &txManager{db: db, lockTimeout: lockTimeout}
}

func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storageError(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if m.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", m.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			_ = tx.Rollback()
			return storageError(err)
		}
	}

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return storageError(tx.Commit())
}

type txStore struct {
	tx *sqlx.Tx
}

func (s *txStore) LockPayment(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	var payment domain.Payment
	if err := s.tx.GetContext(ctx, &payment, query, id); err != nil {
		return nil, storageError(err)
	}
	return &payment, nil
}

func (s *txStore) LockObligation(ctx context.Context, ref domain.ObligationRef) (domain.Obligation, error) {
	return loadObligation(ctx, s.tx, ref, true)
}

// SaveObligation writes the fields a commit may change.
func (s *txStore) SaveObligation(ctx context.Context, obligation domain.Obligation) error {
	var query string
	switch obligation.(type) {
	case *domain.Order:
		query = `UPDATE orders
			SET paid_amount = :paid_amount, status = :status, updated_at = :updated_at
			WHERE id = :id`
	case *domain.InstallmentContract:
		query = `UPDATE installment_contracts
			SET paid_amount = :paid_amount, paid_periods = :paid_periods, next_due_date = :next_due_date,
				status = :status, updated_at = :updated_at
			WHERE id = :id`
	case *domain.Pawn:
		query = `UPDATE pawns
			SET periods_paid = :periods_paid, total_interest_paid = :total_interest_paid,
				next_due_date = :next_due_date, status = :status, redeemed_at = :redeemed_at,
				updated_at = :updated_at
			WHERE id = :id`
	case *domain.Deposit:
		query = `UPDATE deposits
			SET status = :status, remaining_amount = :remaining_amount, deposited_at = :deposited_at,
				updated_at = :updated_at
			WHERE id = :id`
	default:
		return fmt.Errorf("unsupported obligation type %T", obligation)
	}
	return s.execOne(ctx, query, obligation)
}

func (s *txStore) InsertInstallmentPayment(ctx context.Context, p *domain.InstallmentPayment) error {
	query := `
		INSERT INTO installment_payments (id, contract_id, payment_id, period_number, amount, status, verified_at, created_at)
		VALUES (:id, :contract_id, :payment_id, :period_number, :amount, :status, :verified_at, :created_at)
	`
	_, err := s.tx.NamedExecContext(ctx, query, p)
	return storageError(err)
}

func (s *txStore) InsertPawnPayment(ctx context.Context, p *domain.PawnPayment) error {
	query := `
		INSERT INTO pawn_payments (id, pawn_id, payment_id, payment_type, amount, interest_amount,
			principal_amount, periods_covered, created_at)
		VALUES (:id, :pawn_id, :payment_id, :payment_type, :amount, :interest_amount,
			:principal_amount, :periods_covered, :created_at)
	`
	_, err := s.tx.NamedExecContext(ctx, query, p)
	return storageError(err)
}

func (s *txStore) UpdatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = :status, match_status = :match_status, match_attempts = :match_attempts,
			obligation_kind = :obligation_kind, obligation_id = :obligation_id, sub_type = :sub_type,
			reject_reason = :reject_reason, decided_by = :decided_by, decided_at = :decided_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	return s.execOne(ctx, query, payment)
}

func (s *txStore) InsertAudit(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.tx.ExecContext(ctx, query,
		entry.ID,
		entry.PaymentID,
		entry.ObligationKind,
		entry.ObligationID,
		entry.SubType,
		entry.Action,
		entry.Actor,
		entry.PaymentBefore,
		entry.PaymentAfter,
		nullJSON(entry.ObligationBefore),
		nullJSON(entry.ObligationAfter),
		entry.CreatedAt,
	)
	return storageError(err)
}

func (s *txStore) execOne(ctx context.Context, query string, arg any) error {
	res, err := s.tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return storageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullJSON(j types.JSONText) any {
	if len(j) == 0 {
		return nil
	}
	return j
}
