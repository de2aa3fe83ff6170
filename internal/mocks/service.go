package mocks

import (
	"context"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/stretchr/testify/mock"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) SubmitPayment(ctx context.Context, request *domain.SubmitPaymentRequest) (*domain.Payment, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockReconciliationService) Classify(ctx context.Context, paymentID string) (*domain.Decision, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Decision), args.Error(1)
}

func (m *MockReconciliationService) Candidates(ctx context.Context, paymentID string) (*domain.ManualReview, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ManualReview), args.Error(1)
}

func (m *MockReconciliationService) ApplyManualClassification(ctx context.Context, paymentID string, ref domain.ObligationRef, subType domain.SubType, operator string) (*domain.CommitResult, error) {
	args := m.Called(ctx, paymentID, ref, subType, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommitResult), args.Error(1)
}

func (m *MockReconciliationService) RejectPayment(ctx context.Context, paymentID, reason, operator string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID, reason, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockReconciliationService) ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockReconciliationService) ListAudit(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AuditEntry), args.Error(1)
}

// NewMockReconciliationService creates a new mock service instance
func NewMockReconciliationService() *MockReconciliationService {
	return &MockReconciliationService{}
}
