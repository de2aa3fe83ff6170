package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/jmoiron/sqlx"
)

const (
	orderColumns = `id, order_no, customer_id, total_amount, paid_amount, status, due_date,
	created_at, updated_at`
	contractColumns = `id, contract_no, customer_id, financed_amount, service_fee, total_amount,
	total_periods, paid_amount, paid_periods, start_date, next_due_date, status, created_at, updated_at`
	pawnColumns = `id, pawn_no, customer_id, appraisal_value, loan_percentage, loan_amount,
	interest_rate, period_days, periods_paid, total_interest_paid, next_due_date, status,
	redeemed_at, created_at, updated_at`
	depositColumns = `id, deposit_no, customer_id, product_price, deposit_percent, deposit_amount,
	remaining_amount, expires_at, status, deposited_at, created_at, updated_at`
)

type obligationRepository struct {
	db *sqlx.DB
}

func NewObligationRepository(db *sqlx.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

func (r *obligationRepository) OpenOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND status IN ('pending', 'partial')
		ORDER BY created_at, id
	`
	var orders []*domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, customerID); err != nil {
		return nil, storageError(err)
	}
	return orders, nil
}

func (r *obligationRepository) OpenContractsByCustomer(ctx context.Context, customerID string) ([]*domain.InstallmentContract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM installment_contracts
		WHERE customer_id = $1 AND status IN ('active', 'overdue')
		ORDER BY created_at, id
	`
	var contracts []*domain.InstallmentContract
	if err := r.db.SelectContext(ctx, &contracts, query, customerID); err != nil {
		return nil, storageError(err)
	}
	return contracts, nil
}

func (r *obligationRepository) OpenPawnsByCustomer(ctx context.Context, customerID string) ([]*domain.Pawn, error) {
	query := `
		SELECT ` + pawnColumns + `
		FROM pawns
		WHERE customer_id = $1 AND status IN ('active', 'overdue')
		ORDER BY created_at, id
	`
	var pawns []*domain.Pawn
	if err := r.db.SelectContext(ctx, &pawns, query, customerID); err != nil {
		return nil, storageError(err)
	}
	return pawns, nil
}

func (r *obligationRepository) PendingDepositsByCustomer(ctx context.Context, customerID string) ([]*domain.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE customer_id = $1 AND status = 'pending_payment'
		ORDER BY created_at, id
	`
	var deposits []*domain.Deposit
	if err := r.db.SelectContext(ctx, &deposits, query, customerID); err != nil {
		return nil, storageError(err)
	}
	return deposits, nil
}

func (r *obligationRepository) GetObligation(ctx context.Context, ref domain.ObligationRef) (domain.Obligation, error) {
	return loadObligation(ctx, r.db, ref, false)
}

// MarkOverdue runs the three status sweeps in one transaction.
func (r *obligationRepository) MarkOverdue(ctx context.Context, asOf time.Time) (SweepResult, error) {
	var res SweepResult
	today := utils.StartOfDay(asOf)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, storageError(err)
	}
	defer tx.Rollback()

	sweeps := []struct {
		query string
		cut   time.Time
		count *int
	}{
		{
			query: `UPDATE installment_contracts SET status = 'overdue', updated_at = $2
				WHERE status = 'active' AND next_due_date < $1`,
			cut:   today,
			count: &res.Contracts,
		},
		{
			query: `UPDATE pawns SET status = 'overdue', updated_at = $2
				WHERE status = 'active' AND next_due_date < $1`,
			cut:   today,
			count: &res.Pawns,
		},
		{
			query: `UPDATE deposits SET status = 'expired', updated_at = $2
				WHERE status = 'pending_payment' AND expires_at < $1`,
			cut:   asOf,
			count: &res.Deposits,
		},
	}
	for _, s := range sweeps {
		result, err := tx.ExecContext(ctx, s.query, s.cut, asOf)
		if err != nil {
			return SweepResult{}, storageError(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return SweepResult{}, storageError(err)
		}
		*s.count = int(n)
	}

	if err := tx.Commit(); err != nil {
		return SweepResult{}, storageError(err)
	}
	return res, nil
}

// loadObligation reads one obligation row, optionally holding a row lock
// until q's transaction ends.
func loadObligation(ctx context.Context, q sqlx.QueryerContext, ref domain.ObligationRef, forUpdate bool) (domain.Obligation, error) {
	var (
		dest    domain.Obligation
		table   string
		columns string
	)
	switch ref.Kind {
	case domain.KindOrder:
		dest, table, columns = &domain.Order{}, "orders", orderColumns
	case domain.KindInstallment:
		dest, table, columns = &domain.InstallmentContract{}, "installment_contracts", contractColumns
	case domain.KindPawn:
		dest, table, columns = &domain.Pawn{}, "pawns", pawnColumns
	case domain.KindDeposit:
		dest, table, columns = &domain.Deposit{}, "deposits", depositColumns
	default:
		return nil, fmt.Errorf("unsupported obligation kind %q", ref.Kind)
	}

	query := `SELECT ` + columns + ` FROM ` + table + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	if err := sqlx.GetContext(ctx, q, dest, query, ref.ID); err != nil {
		return nil, storageError(err)
	}
	return dest, nil
}
