package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/mocks"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"
	"github.com/segyhp/reconciliation-engine/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouter(svc ReconciliationService) *mux.Router {
	router := mux.NewRouter()
	NewReconciliationHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReconciliationHandler_SubmitPayment(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*mocks.MockReconciliationService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "valid submission",
			requestBody: `{"customer_id":"cust-1","amount":"3270","sender_name":"Somchai"}`,
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("SubmitPayment", mock.Anything, mock.MatchedBy(func(req *domain.SubmitPaymentRequest) bool {
					return req.CustomerID == "cust-1" && req.Amount.Equal(decimal.NewFromInt(3270))
				})).Return(&domain.Payment{ID: "pay-1", Status: domain.PaymentStatusPending}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"pay-1"`,
		},
		{
			name:           "numeric amount is accepted",
			requestBody:    `{"platform":"line","platform_user_id":"U-1","amount":200}`,
			expectedStatus: http.StatusCreated,
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("SubmitPayment", mock.Anything, mock.Anything).
					Return(&domain.Payment{ID: "pay-2"}, nil).Once()
			},
		},
		{
			name:           "zero amount",
			requestBody:    `{"customer_id":"cust-1","amount":"0"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   customError.ErrCodeValidation,
		},
		{
			name:           "negative amount",
			requestBody:    `{"customer_id":"cust-1","amount":"-5"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "no identity",
			requestBody:    `{"amount":"100"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown platform",
			requestBody:    `{"platform":"telegram","platform_user_id":"U-1","amount":"100"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed json",
			requestBody:    `{"amount":`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid request body",
		},
		{
			name:        "unknown customer",
			requestBody: `{"customer_id":"ghost","amount":"100"}`,
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("SubmitPayment", mock.Anything, mock.Anything).
					Return(nil, customError.WrapCustomerNotFound("customer:ghost")).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   customError.ErrCodeCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := mocks.NewMockReconciliationService()
			tt.setupMock(mockService)

			w := do(newRouter(mockService), http.MethodPost, "/api/v1/payments", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestReconciliationHandler_Classify(t *testing.T) {
	mockService := mocks.NewMockReconciliationService()
	ref := domain.ObligationRef{Kind: domain.KindInstallment, ID: "c-1"}
	mockService.On("Classify", mock.Anything, "pay-1").Return(&domain.Decision{
		PaymentID: "pay-1",
		Outcome:   domain.OutcomeAutoMatched,
		Binding:   &ref,
	}, nil).Once()
	mockService.On("Classify", mock.Anything, "gone").Return(nil, customError.WrapPaymentNotFound("gone")).Once()

	router := newRouter(mockService)

	w := do(router, http.MethodPost, "/api/v1/payments/pay-1/classify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data domain.Decision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.OutcomeAutoMatched, body.Data.Outcome)
	assert.Equal(t, ref, *body.Data.Binding)

	w = do(router, http.MethodPost, "/api/v1/payments/gone/classify", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestReconciliationHandler_Candidates(t *testing.T) {
	mockService := mocks.NewMockReconciliationService()
	mockService.On("Candidates", mock.Anything, "pay-1").Return(&domain.ManualReview{
		Payment:    &domain.Payment{ID: "pay-1"},
		Candidates: []domain.Candidate{{Obligation: domain.ObligationRef{Kind: domain.KindOrder, ID: "o-1"}, Confidence: 100}},
		CanReject:  true,
	}, nil).Once()

	w := do(newRouter(mockService), http.MethodGet, "/api/v1/payments/pay-1/candidates", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"can_reject":true`)
	mockService.AssertExpectations(t)
}

func TestReconciliationHandler_ApplyClassification(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*mocks.MockReconciliationService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "operator binds to pawn interest",
			requestBody: domain.ManualClassificationRequest{
				Kind: domain.KindPawn, ObligationID: "p-1", SubType: domain.SubTypeInterest, Operator: "admin",
			},
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("ApplyManualClassification", mock.Anything, "pay-1",
					domain.ObligationRef{Kind: domain.KindPawn, ID: "p-1"}, domain.SubTypeInterest, "admin").
					Return(&domain.CommitResult{Payment: &domain.Payment{ID: "pay-1"}, AuditID: "a-1"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"a-1"`,
		},
		{
			name: "conflict carries details",
			requestBody: domain.ManualClassificationRequest{
				Kind: domain.KindOrder, ObligationID: "o-1", Operator: "admin",
			},
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("ApplyManualClassification", mock.Anything, "pay-1", mock.Anything, domain.SubType(""), "admin").
					Return(nil, customError.WrapObligationConflict("pay-1", "order", "o-1", "paid", "obligation no longer accepts payments")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"obligation_status":"paid"`,
		},
		{
			name:           "unknown kind",
			requestBody:    `{"kind":"layaway","obligation_id":"x","operator":"admin"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing operator",
			requestBody:    `{"kind":"order","obligation_id":"o-1"}`,
			setupMock:      func(m *mocks.MockReconciliationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "storage failure",
			requestBody: `{"kind":"order","obligation_id":"o-1","operator":"admin"}`,
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("ApplyManualClassification", mock.Anything, "pay-1", mock.Anything, mock.Anything, "admin").
					Return(nil, customError.WrapPersistence(errors.New("connection reset"))).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:        "lock timeout is retryable",
			requestBody: `{"kind":"order","obligation_id":"o-1","operator":"admin"}`,
			setupMock: func(m *mocks.MockReconciliationService) {
				m.On("ApplyManualClassification", mock.Anything, "pay-1", mock.Anything, mock.Anything, "admin").
					Return(nil, customError.WrapPersistence(context.DeadlineExceeded)).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := mocks.NewMockReconciliationService()
			tt.setupMock(mockService)

			w := do(newRouter(mockService), http.MethodPost, "/api/v1/payments/pay-1/classification", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestReconciliationHandler_Reject(t *testing.T) {
	mockService := mocks.NewMockReconciliationService()
	reason := "duplicate slip"
	mockService.On("RejectPayment", mock.Anything, "pay-1", reason, "admin").
		Return(&domain.Payment{ID: "pay-1", Status: domain.PaymentStatusRejected, RejectReason: &reason}, nil).Once()

	router := newRouter(mockService)
	w := do(router, http.MethodPost, "/api/v1/payments/pay-1/reject", domain.RejectPaymentRequest{Reason: reason, Operator: "admin"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rejected"`)

	w = do(router, http.MethodPost, "/api/v1/payments/pay-1/reject", `{"operator":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestReconciliationHandler_ListPending(t *testing.T) {
	mockService := mocks.NewMockReconciliationService()
	mockService.On("ListPendingClassification", mock.Anything, 0).Return([]*domain.Payment{{ID: "pay-1"}}, nil).Once()
	mockService.On("ListPendingClassification", mock.Anything, 20).Return([]*domain.Payment{}, nil).Once()

	router := newRouter(mockService)

	w := do(router, http.MethodGet, "/api/v1/payments/pending", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pay-1")

	w = do(router, http.MethodGet, "/api/v1/payments/pending?limit=20", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/v1/payments/pending?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertExpectations(t)
}

func TestReconciliationHandler_Audit(t *testing.T) {
	mockService := mocks.NewMockReconciliationService()
	mockService.On("ListAudit", mock.Anything, "pay-1").Return([]*domain.AuditEntry{
		{ID: "a-1", PaymentID: "pay-1", Action: domain.AuditActionAutoMatch, Actor: "system"},
	}, nil).Once()

	w := do(newRouter(mockService), http.MethodGet, "/api/v1/payments/pay-1/audit", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []domain.AuditEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "system", body.Data[0].Actor)
	mockService.AssertExpectations(t)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	router := mux.NewRouter()
	NewHealthHandlerWithChecks(map[string]Pinger{"database": stubPinger{}}, 0).RegisterRoutes(router)

	w := do(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	router = mux.NewRouter()
	NewHealthHandlerWithChecks(map[string]Pinger{
		"database": stubPinger{},
		"redis":    stubPinger{err: errors.New("connection refused")},
	}, 0).RegisterRoutes(router)

	w = do(router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Data HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Data.Status)
	assert.Equal(t, "ok", body.Data.Checks["database"])
	assert.Contains(t, body.Data.Checks["redis"], "connection refused")
}

func TestNewValidator_DecimalRule(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{name: "positive", amount: "1500.50", valid: true},
		{name: "zero", amount: "0", valid: false},
		{name: "negative", amount: "-10", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&domain.SubmitPaymentRequest{CustomerID: "cust-1", Amount: decimal.RequireFromString(tt.amount)})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
