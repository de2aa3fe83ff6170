package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/mocks"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"
	"github.com/segyhp/reconciliation-engine/pkg/logger"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeps struct {
	payments    *mocks.MockPaymentRepository
	obligations *mocks.MockObligationRepository
	customers   *mocks.MockCustomerResolver
	audit       *mocks.MockAuditRepository
	cache       *mocks.MockCandidateCache
	svc         *ReconciliationService
}

func newMockService(now time.Time) *mockDeps {
	d := &mockDeps{
		payments:    new(mocks.MockPaymentRepository),
		obligations: new(mocks.MockObligationRepository),
		customers:   new(mocks.MockCustomerResolver),
		audit:       new(mocks.MockAuditRepository),
		cache:       new(mocks.MockCandidateCache),
	}
	repos := Repositories{
		Payments:    d.payments,
		Obligations: d.obligations,
		Customers:   d.customers,
		Audit:       d.audit,
	}
	d.svc = NewReconciliationService(repos, d.cache, DefaultSettings(), fixedClock{t: now}, logger.Discard())
	return d
}

func (d *mockDeps) assertExpectations(t *testing.T) {
	d.payments.AssertExpectations(t)
	d.obligations.AssertExpectations(t)
	d.customers.AssertExpectations(t)
	d.audit.AssertExpectations(t)
	d.cache.AssertExpectations(t)
}

func TestSubmitPayment_Collaborators(t *testing.T) {
	dbDown := errors.New("connection reset")

	tests := []struct {
		name     string
		setup    func(d *mockDeps)
		request  *domain.SubmitPaymentRequest
		wantCode string
	}{
		{
			name: "unknown customer",
			setup: func(d *mockDeps) {
				d.customers.On("ResolveCustomer", mock.Anything, domain.CustomerIdentity{Platform: "line", PlatformUserID: "U1"}).
					Return("", repository.ErrNotFound)
			},
			request:  &domain.SubmitPaymentRequest{Platform: "line", PlatformUserID: "U1", Amount: dec(500)},
			wantCode: customError.ErrCodeCustomerNotFound,
		},
		{
			name: "resolver failure",
			setup: func(d *mockDeps) {
				d.customers.On("ResolveCustomer", mock.Anything, mock.Anything).Return("", dbDown)
			},
			request:  &domain.SubmitPaymentRequest{CustomerID: customerID, Amount: dec(500)},
			wantCode: customError.ErrCodePersistence,
		},
		{
			name: "insert timeout",
			setup: func(d *mockDeps) {
				d.customers.On("ResolveCustomer", mock.Anything, mock.Anything).Return(customerID, nil)
				d.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).
					Return(errors.Join(customError.ErrTransient, dbDown))
			},
			request:  &domain.SubmitPaymentRequest{CustomerID: customerID, Amount: dec(500)},
			wantCode: customError.ErrCodeTransient,
		},
		{
			name: "chat-bot user shorthand",
			setup: func(d *mockDeps) {
				d.customers.On("ResolveCustomer", mock.Anything, domain.CustomerIdentity{Platform: domain.PlatformWeb, PlatformUserID: "42"}).
					Return(customerID, nil)
				d.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
					return *p.CustomerID == customerID && *p.Platform == domain.PlatformWeb && string(p.MatchAttempts) == "[]"
				})).Return(nil)
			},
			request: &domain.SubmitPaymentRequest{PlatformUserID: "user:42", Amount: dec(500)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMockService(D)
			tt.setup(d)

			payment, err := d.svc.SubmitPayment(context.Background(), tt.request)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, customError.Code(err))
				assert.Nil(t, payment)
			} else {
				require.NoError(t, err)
				assert.Equal(t, domain.PaymentStatusPending, payment.Status)
			}
			d.assertExpectations(t)
		})
	}
}

func TestClassify_CacheFailureDoesNotFailAmbiguousDecision(t *testing.T) {
	d := newMockService(D)
	payment := &domain.Payment{
		ID: "pay-1", Amount: dec(500), CustomerID: stringPtr(customerID),
		Status: domain.PaymentStatusPending, MatchStatus: domain.MatchStatusUnmatched,
		MatchAttempts: types.JSONText("[]"),
	}
	d.payments.On("GetByID", mock.Anything, "pay-1").Return(payment, nil)
	d.obligations.On("OpenOrdersByCustomer", mock.Anything, customerID).
		Return([]*domain.Order{order("o-1", 500), order("o-2", 500)}, nil)
	d.obligations.On("OpenContractsByCustomer", mock.Anything, customerID).Return([]*domain.InstallmentContract{}, nil)
	d.obligations.On("OpenPawnsByCustomer", mock.Anything, customerID).Return([]*domain.Pawn{}, nil)
	d.obligations.On("PendingDepositsByCustomer", mock.Anything, customerID).Return([]*domain.Deposit{}, nil)
	d.payments.On("RecordMatchAttempt", mock.Anything, "pay-1", domain.MatchStatusAmbiguous, mock.Anything).Return(nil)
	d.cache.On("Put", mock.Anything, "pay-1", mock.Anything).
		Return(customError.WrapCacheError(errors.New("redis down")))

	decision, err := d.svc.Classify(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAmbiguous, decision.Outcome)
	assert.Len(t, decision.Candidates, 2)
	d.assertExpectations(t)
}

func TestClassify_RecordAttemptFailure(t *testing.T) {
	d := newMockService(D)
	payment := &domain.Payment{
		ID: "pay-1", Amount: dec(777), CustomerID: stringPtr(customerID),
		Status: domain.PaymentStatusPending, MatchStatus: domain.MatchStatusUnmatched,
	}
	d.payments.On("GetByID", mock.Anything, "pay-1").Return(payment, nil)
	d.obligations.On("OpenOrdersByCustomer", mock.Anything, customerID).Return([]*domain.Order{}, nil)
	d.obligations.On("OpenContractsByCustomer", mock.Anything, customerID).Return([]*domain.InstallmentContract{}, nil)
	d.obligations.On("OpenPawnsByCustomer", mock.Anything, customerID).Return([]*domain.Pawn{}, nil)
	d.obligations.On("PendingDepositsByCustomer", mock.Anything, customerID).Return([]*domain.Deposit{}, nil)
	d.payments.On("RecordMatchAttempt", mock.Anything, "pay-1", domain.MatchStatusNoMatch, mock.Anything).
		Return(errors.New("disk full"))

	_, err := d.svc.Classify(context.Background(), "pay-1")
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodePersistence, customError.Code(err))
	d.assertExpectations(t)
}

func TestClassify_PaymentLookup(t *testing.T) {
	d := newMockService(D)
	d.payments.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
	d.payments.On("GetByID", mock.Anything, "broken").Return(nil, context.DeadlineExceeded)

	_, err := d.svc.Classify(context.Background(), "missing")
	assert.Equal(t, customError.ErrCodePaymentNotFound, customError.Code(err))

	_, err = d.svc.Classify(context.Background(), "broken")
	assert.Equal(t, customError.ErrCodeTransient, customError.Code(err))

	_, err = d.svc.Classify(context.Background(), "  ")
	assert.Equal(t, customError.ErrCodeValidation, customError.Code(err))
	d.assertExpectations(t)
}

func TestListPendingClassification_Limits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, defaultQueueLimit},
		{"negative", -3, defaultQueueLimit},
		{"explicit", 20, 20},
		{"clamped", 10_000, maxQueueLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMockService(D)
			d.payments.On("ListPendingClassification", mock.Anything, tt.want).Return([]*domain.Payment{}, nil)

			_, err := d.svc.ListPendingClassification(context.Background(), tt.limit)
			require.NoError(t, err)
			d.assertExpectations(t)
		})
	}
}

func TestListAudit_EmptyTrail(t *testing.T) {
	d := newMockService(D)
	d.payments.On("GetByID", mock.Anything, "pay-1").Return(&domain.Payment{ID: "pay-1"}, nil)
	d.audit.On("ListByPayment", mock.Anything, "pay-1").Return(nil, nil)

	entries, err := d.svc.ListAudit(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	d.assertExpectations(t)
}

func TestSweepOverdue_UsesBusinessLocation(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	d := newMockService(now)
	d.obligations.On("MarkOverdue", mock.Anything, mock.MatchedBy(func(asOf time.Time) bool {
		return asOf.Equal(now)
	})).Return(repository.SweepResult{Contracts: 2, Pawns: 1}, nil).Once()

	res, err := d.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, repository.SweepResult{Contracts: 2, Pawns: 1}, res)

	d.obligations.On("MarkOverdue", mock.Anything, mock.Anything).
		Return(repository.SweepResult{}, errors.New("boom")).Once()
	_, err = d.svc.SweepOverdue(context.Background())
	assert.Equal(t, customError.ErrCodePersistence, customError.Code(err))
	d.assertExpectations(t)
}

func TestProcessAllPending_ListFailure(t *testing.T) {
	d := newMockService(D)
	d.payments.On("ListUnclassified", mock.Anything, DefaultSettings().BatchSize).Return(nil, errors.New("boom"))

	res, err := d.svc.ProcessAllPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, BatchResult{}, res)
	d.assertExpectations(t)
}

func stringPtr(s string) *string { return &s }
