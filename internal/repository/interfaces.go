package repository

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/jmoiron/sqlx/types"
)

// ErrNotFound is returned by every lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// OrderReader returns the customer's orders that can still take a payment.
type OrderReader interface {
	OpenOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
}

// InstallmentReader returns the customer's active or overdue contracts.
type InstallmentReader interface {
	OpenContractsByCustomer(ctx context.Context, customerID string) ([]*domain.InstallmentContract, error)
}

// PawnReader returns the customer's active or overdue pawns.
type PawnReader interface {
	OpenPawnsByCustomer(ctx context.Context, customerID string) ([]*domain.Pawn, error)
}

// DepositReader returns the customer's deposits awaiting payment.
type DepositReader interface {
	PendingDepositsByCustomer(ctx context.Context, customerID string) ([]*domain.Deposit, error)
}

// ObligationRepository is the obligation-snapshot reader plus the
// status-only sweeps run by the scheduler.
type ObligationRepository interface {
	OrderReader
	InstallmentReader
	PawnReader
	DepositReader

	// GetObligation loads any obligation by reference without locking it.
	GetObligation(ctx context.Context, ref domain.ObligationRef) (domain.Obligation, error)

	// MarkOverdue flips active contracts and pawns whose next due date is
	// before asOf to overdue, and expires pending deposits past expiry.
	MarkOverdue(ctx context.Context, asOf time.Time) (SweepResult, error)
}

// SweepResult counts the rows each overdue sweep touched.
type SweepResult struct {
	Contracts int `json:"contracts"`
	Pawns     int `json:"pawns"`
	Deposits  int `json:"deposits"`
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// RecordMatchAttempt stores the queue status and attempt log of a
	// payment that is still pending. It never touches Status.
	RecordMatchAttempt(ctx context.Context, id, matchStatus string, attempts types.JSONText) error

	// ListPendingClassification returns pending payments waiting for an
	// operator, oldest first.
	ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error)

	// ListUnclassified returns pending payments never run through
	// classification, oldest first.
	ListUnclassified(ctx context.Context, limit int) ([]*domain.Payment, error)
}

// CustomerResolver maps a chat-bot or platform identity to a customer id.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, identity domain.CustomerIdentity) (string, error)
}

// AuditRepository reads the audit trail written by commits.
type AuditRepository interface {
	ListByPayment(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error)
}

// TxStore is the view of storage available inside one unit of work. Lock*
// methods hold the row until the transaction ends.
type TxStore interface {
	LockPayment(ctx context.Context, id string) (*domain.Payment, error)
	LockObligation(ctx context.Context, ref domain.ObligationRef) (domain.Obligation, error)
	SaveObligation(ctx context.Context, obligation domain.Obligation) error
	InsertInstallmentPayment(ctx context.Context, p *domain.InstallmentPayment) error
	InsertPawnPayment(ctx context.Context, p *domain.PawnPayment) error
	UpdatePayment(ctx context.Context, payment *domain.Payment) error
	InsertAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// TxManager runs fn inside a single all-or-nothing transaction. Any error
// returned by fn rolls back every write made through the TxStore.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}
