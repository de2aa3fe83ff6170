package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"
	"github.com/segyhp/reconciliation-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// ReconciliationService is what the admin UI and chat-bot flows call.
type ReconciliationService interface {
	SubmitPayment(ctx context.Context, request *domain.SubmitPaymentRequest) (*domain.Payment, error)
	Classify(ctx context.Context, paymentID string) (*domain.Decision, error)
	Candidates(ctx context.Context, paymentID string) (*domain.ManualReview, error)
	ApplyManualClassification(ctx context.Context, paymentID string, ref domain.ObligationRef, subType domain.SubType, operator string) (*domain.CommitResult, error)
	RejectPayment(ctx context.Context, paymentID, reason, operator string) (*domain.Payment, error)
	ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error)
	ListAudit(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error)
}

type ReconciliationHandler struct {
	service   ReconciliationService
	validator *validator.Validate
	logger    *slog.Logger
}

func NewReconciliationHandler(service ReconciliationService, logger *slog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		service:   service,
		validator: newValidator(),
		logger:    logger,
	}
}

// newValidator registers decimal.Decimal as a string so amount tags run on
// its value, plus the dgt0 rule (decimal greater than zero).
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	err := v.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	if err != nil {
		panic(fmt.Sprintf("register dgt0 validation: %v", err))
	}
	return v
}

func (h *ReconciliationHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/payments", h.SubmitPayment).Methods(http.MethodPost)
	api.HandleFunc("/payments/pending", h.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/classify", h.Classify).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/candidates", h.Candidates).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id}/classification", h.ApplyClassification).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/reject", h.Reject).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id}/audit", h.Audit).Methods(http.MethodGet)
}

// SubmitPayment handles POST /api/v1/payments
func (h *ReconciliationHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.service.SubmitPayment(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, payment)
}

// ListPending handles GET /api/v1/payments/pending?limit=N
func (h *ReconciliationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(w, "Invalid limit", fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	payments, err := h.service.ListPendingClassification(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payments)
}

// Classify handles POST /api/v1/payments/{id}/classify
func (h *ReconciliationHandler) Classify(w http.ResponseWriter, r *http.Request) {
	decision, err := h.service.Classify(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, decision)
}

// Candidates handles GET /api/v1/payments/{id}/candidates
func (h *ReconciliationHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.Candidates(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, review)
}

// ApplyClassification handles POST /api/v1/payments/{id}/classification
func (h *ReconciliationHandler) ApplyClassification(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualClassificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	ref := domain.ObligationRef{Kind: req.Kind, ID: req.ObligationID}
	result, err := h.service.ApplyManualClassification(r.Context(), mux.Vars(r)["id"], ref, req.SubType, req.Operator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, result)
}

// Reject handles POST /api/v1/payments/{id}/reject
func (h *ReconciliationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req domain.RejectPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.service.RejectPayment(r.Context(), mux.Vars(r)["id"], req.Reason, req.Operator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, payment)
}

// Audit handles GET /api/v1/payments/{id}/audit
func (h *ReconciliationHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListAudit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, entries)
}

func (h *ReconciliationHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.FromError(w, customError.WrapValidation(err.Error()))
		return false
	}
	return true
}

func (h *ReconciliationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if response.StatusFor(customError.Code(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	response.FromError(w, err)
}
