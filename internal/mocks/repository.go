package mocks

import (
	"context"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/mock"
)

type MockObligationRepository struct {
	mock.Mock
}

func (m *MockObligationRepository) OpenOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockObligationRepository) OpenContractsByCustomer(ctx context.Context, customerID string) ([]*domain.InstallmentContract, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentContract), args.Error(1)
}

func (m *MockObligationRepository) OpenPawnsByCustomer(ctx context.Context, customerID string) ([]*domain.Pawn, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Pawn), args.Error(1)
}

func (m *MockObligationRepository) PendingDepositsByCustomer(ctx context.Context, customerID string) ([]*domain.Deposit, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Deposit), args.Error(1)
}

func (m *MockObligationRepository) GetObligation(ctx context.Context, ref domain.ObligationRef) (domain.Obligation, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) MarkOverdue(ctx context.Context, asOf time.Time) (repository.SweepResult, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(repository.SweepResult), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) RecordMatchAttempt(ctx context.Context, id, matchStatus string, attempts types.JSONText) error {
	args := m.Called(ctx, id, matchStatus, attempts)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListUnclassified(ctx context.Context, limit int) ([]*domain.Payment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

type MockCustomerResolver struct {
	mock.Mock
}

func (m *MockCustomerResolver) ResolveCustomer(ctx context.Context, identity domain.CustomerIdentity) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) ListByPayment(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditEntry), args.Error(1)
}

type MockCandidateCache struct {
	mock.Mock
}

func (m *MockCandidateCache) Put(ctx context.Context, paymentID string, candidates []domain.Candidate) error {
	args := m.Called(ctx, paymentID, candidates)
	return args.Error(0)
}

func (m *MockCandidateCache) Get(ctx context.Context, paymentID string) ([]domain.Candidate, bool, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.Candidate), args.Bool(1), args.Error(2)
}

func (m *MockCandidateCache) Delete(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}
