package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/cache"
	"github.com/segyhp/reconciliation-engine/internal/calculator"
	"github.com/segyhp/reconciliation-engine/internal/classifier"
	"github.com/segyhp/reconciliation-engine/internal/config"
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/matching"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

const (
	systemActor       = "system"
	defaultQueueLimit = 50
	maxQueueLimit     = 500
	maxMatchAttempts  = 10
)

// Clock supplies the current time. Tests pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }

// Repositories groups the storage collaborators of the service.
type Repositories struct {
	Payments    repository.PaymentRepository
	Obligations repository.ObligationRepository
	Customers   repository.CustomerResolver
	Audit       repository.AuditRepository
	Tx          repository.TxManager
}

// Settings holds matching, decision and obligation policies.
type Settings struct {
	Tolerances           matching.Tolerances
	Decision             classifier.Policy
	Installments         calculator.InstallmentPolicy
	Pawns                calculator.PawnPolicy
	OverpaymentTolerance decimal.Decimal
	Location             *time.Location
	BatchSize            int
}

func DefaultSettings() Settings {
	return Settings{
		Tolerances:           matching.DefaultTolerances(),
		Decision:             classifier.DefaultPolicy(),
		Installments:         calculator.DefaultInstallmentPolicy(),
		Pawns:                calculator.DefaultPawnPolicy(),
		OverpaymentTolerance: decimal.NewFromInt(100),
		Location:             time.UTC,
		BatchSize:            200,
	}
}

// SettingsFromConfig reads the matching and policy sections. Values were
// checked by config.Validate.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Tolerances: matching.Tolerances{
			Absolute:             decimal.RequireFromString(cfg.Matching.AbsoluteTolerance),
			OrderRelativePercent: decimal.RequireFromString(cfg.Matching.OrderRelativePercent),
			OrderMin:             decimal.RequireFromString(cfg.Matching.OrderMinTolerance),
		},
		Decision: classifier.Policy{
			AutoMatchThreshold: cfg.Matching.AutoMatchThreshold,
			AmbiguityBand:      cfg.Matching.AmbiguityBand,
		},
		Installments:         cfg.InstallmentPolicy(),
		Pawns:                cfg.PawnPolicy(),
		OverpaymentTolerance: decimal.RequireFromString(cfg.Matching.OverpaymentTolerance),
		Location:             cfg.Location(),
		BatchSize:            cfg.Scheduler.BatchSize,
	}
}

type ReconciliationService struct {
	payments    repository.PaymentRepository
	obligations repository.ObligationRepository
	customers   repository.CustomerResolver
	audit       repository.AuditRepository
	tx          repository.TxManager
	cache       cache.CandidateCache

	engine   *matching.Engine
	decision classifier.Policy
	appliers map[domain.ObligationKind]applier
	settings Settings
	clock    Clock
	logger   *slog.Logger
}

func NewReconciliationService(
	repos Repositories,
	candidateCache cache.CandidateCache,
	settings Settings,
	clock Clock,
	logger *slog.Logger,
) *ReconciliationService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if clock == nil {
		clock = SystemClock()
	}

	engine := matching.NewEngine(logger,
		matching.NewOrderGenerator(repos.Obligations, settings.Tolerances),
		matching.NewInstallmentGenerator(repos.Obligations, settings.Installments, settings.Tolerances),
		matching.NewPawnGenerator(repos.Obligations, settings.Pawns, settings.Tolerances),
		matching.NewDepositGenerator(repos.Obligations, settings.Tolerances),
	)

	return &ReconciliationService{
		payments:    repos.Payments,
		obligations: repos.Obligations,
		customers:   repos.Customers,
		audit:       repos.Audit,
		tx:          repos.Tx,
		cache:       candidateCache,
		engine:      engine,
		decision:    settings.Decision,
		appliers:    newAppliers(settings),
		settings:    settings,
		clock:       clock,
		logger:      logger,
	}
}

// now returns the instant and the business-local as-of time.
func (s *ReconciliationService) now() (time.Time, time.Time) {
	now := s.clock.Now()
	return now, now.In(s.settings.Location)
}

// SubmitPayment records a new pending payment after resolving who sent it.
func (s *ReconciliationService) SubmitPayment(ctx context.Context, request *domain.SubmitPaymentRequest) (*domain.Payment, error) {
	if !request.Amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(request.Amount.String())
	}

	identity := domain.CustomerIdentity{
		CustomerID:     request.CustomerID,
		Platform:       request.Platform,
		PlatformUserID: request.PlatformUserID,
	}.Normalize()
	if identity.IsZero() {
		return nil, customError.WrapValidation("customer_id or platform_user_id is required")
	}

	customerID, err := s.resolveCustomer(ctx, identity)
	if err != nil {
		return nil, err
	}

	now, _ := s.now()
	submittedAt := now
	if request.SubmittedAt != nil {
		submittedAt = *request.SubmittedAt
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		Amount:         request.Amount,
		SubmittedAt:    submittedAt,
		SenderName:     optional(request.SenderName),
		ReferenceCode:  optional(request.ReferenceCode),
		Bank:           optional(request.Bank),
		CustomerID:     &customerID,
		Platform:       optional(identity.Platform),
		PlatformUserID: optional(identity.PlatformUserID),
		Status:         domain.PaymentStatusPending,
		MatchStatus:    domain.MatchStatusUnmatched,
		MatchAttempts:  types.JSONText("[]"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, customError.WrapPersistence(err)
	}

	s.logger.InfoContext(ctx, "payment submitted",
		"payment_id", payment.ID,
		"customer_id", customerID,
		"amount", payment.Amount.String(),
	)
	return payment, nil
}

// Classify generates candidates for a pending payment, decides, and
// commits an automatic match. A matched payment returns its existing
// binding without searching again.
func (s *ReconciliationService) Classify(ctx context.Context, paymentID string) (*domain.Decision, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentStatusMatched:
		return &domain.Decision{
			PaymentID:  payment.ID,
			Outcome:    domain.OutcomeAlreadyMatched,
			Candidates: []domain.Candidate{},
			Binding:    payment.Binding(),
		}, nil
	case domain.PaymentStatusRejected:
		return nil, customError.WrapPaymentConflict(payment.ID, payment.Status)
	}

	if !payment.Amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(payment.Amount.String())
	}
	customerID, err := s.paymentCustomer(ctx, payment)
	if err != nil {
		return nil, err
	}

	now, asOf := s.now()
	result := s.engine.Run(ctx, matching.Query{CustomerID: customerID, Amount: payment.Amount, AsOf: asOf})
	decision := s.decision.Decide(payment.ID, result.Candidates)

	attempts := appendAttempt(payment.MatchAttempts, domain.MatchAttempt{
		SearchedAt:    now,
		AsOf:          asOf,
		CustomerID:    customerID,
		Amount:        payment.Amount,
		Outcome:       decision.Outcome,
		Candidates:    decision.Candidates,
		FailedKinds:   result.FailedKinds,
		CountsPerKind: result.CountsPerKind,
	})

	switch decision.Outcome {
	case domain.OutcomeAutoMatched:
		commit, err := s.commit(ctx, commitRequest{
			paymentID:   payment.ID,
			ref:         decision.Chosen.Obligation,
			subType:     decision.Chosen.SubType,
			actor:       systemActor,
			action:      domain.AuditActionAutoMatch,
			matchStatus: domain.MatchStatusAutoMatched,
			attempts:    attempts,
		})
		if err != nil {
			return nil, err
		}
		decision.Commit = commit
		s.forgetCandidates(ctx, payment.ID)

	case domain.OutcomeAmbiguous:
		if err := s.payments.RecordMatchAttempt(ctx, payment.ID, domain.MatchStatusAmbiguous, attempts); err != nil {
			return nil, customError.WrapPersistence(err)
		}
		if err := s.cache.Put(ctx, payment.ID, decision.Candidates); err != nil {
			s.logger.WarnContext(ctx, "failed to cache candidates", "payment_id", payment.ID, "error", err)
		}

	case domain.OutcomeNoMatch:
		if err := s.payments.RecordMatchAttempt(ctx, payment.ID, domain.MatchStatusNoMatch, attempts); err != nil {
			return nil, customError.WrapPersistence(err)
		}
		s.forgetCandidates(ctx, payment.ID)
	}

	s.logger.InfoContext(ctx, "payment classified",
		"payment_id", payment.ID,
		"outcome", decision.Outcome,
		"candidates", len(decision.Candidates),
		"failed_kinds", result.FailedKinds,
	)
	return decision, nil
}

// BatchResult summarises one ProcessAllPending run.
type BatchResult struct {
	Processed   int `json:"processed"`
	AutoMatched int `json:"auto_matched"`
	Ambiguous   int `json:"ambiguous"`
	NoMatch     int `json:"no_match"`
	Failed      int `json:"failed"`
}

// ProcessAllPending classifies every pending payment that has never been
// through classification. One payment failing does not stop the batch.
func (s *ReconciliationService) ProcessAllPending(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	payments, err := s.payments.ListUnclassified(ctx, s.settings.BatchSize)
	if err != nil {
		return res, customError.WrapPersistence(err)
	}

	for _, p := range payments {
		if err := ctx.Err(); err != nil {
			return res, customError.WrapPersistence(err)
		}
		res.Processed++

		decision, err := s.Classify(ctx, p.ID)
		if err != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "batch classification failed",
				"payment_id", p.ID,
				"code", customError.Code(err),
				"error", err,
			)
			continue
		}
		switch decision.Outcome {
		case domain.OutcomeAutoMatched:
			res.AutoMatched++
		case domain.OutcomeAmbiguous:
			res.Ambiguous++
		case domain.OutcomeNoMatch:
			res.NoMatch++
		}
	}

	s.logger.InfoContext(ctx, "pending payments processed",
		"processed", res.Processed,
		"auto_matched", res.AutoMatched,
		"ambiguous", res.Ambiguous,
		"no_match", res.NoMatch,
		"failed", res.Failed,
	)
	return res, nil
}

// ListPendingClassification returns the operator queue, oldest first.
func (s *ReconciliationService) ListPendingClassification(ctx context.Context, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	limit = min(limit, maxQueueLimit)

	payments, err := s.payments.ListPendingClassification(ctx, limit)
	if err != nil {
		return nil, customError.WrapPersistence(err)
	}
	return payments, nil
}

// ListAudit returns the audit trail of one payment.
func (s *ReconciliationService) ListAudit(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error) {
	if _, err := s.getPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, customError.WrapPersistence(err)
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries, nil
}

// SweepOverdue applies the status-only overdue and expiry transitions.
func (s *ReconciliationService) SweepOverdue(ctx context.Context) (repository.SweepResult, error) {
	_, asOf := s.now()
	res, err := s.obligations.MarkOverdue(ctx, asOf)
	if err != nil {
		return res, customError.WrapPersistence(err)
	}
	s.logger.InfoContext(ctx, "overdue sweep finished",
		"contracts", res.Contracts,
		"pawns", res.Pawns,
		"deposits", res.Deposits,
	)
	return res, nil
}

func (s *ReconciliationService) getPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, customError.WrapValidation("payment id is required")
	}
	payment, err := s.payments.GetByID(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapPaymentNotFound(paymentID)
	}
	if err != nil {
		return nil, customError.WrapPersistence(err)
	}
	return payment, nil
}

func (s *ReconciliationService) resolveCustomer(ctx context.Context, identity domain.CustomerIdentity) (string, error) {
	customerID, err := s.customers.ResolveCustomer(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return "", customError.WrapCustomerNotFound(identity.String())
	}
	if err != nil {
		return "", customError.WrapPersistence(err)
	}
	return customerID, nil
}

// paymentCustomer returns the resolved customer of a payment, resolving
// from its identity hints for payments stored without one.
func (s *ReconciliationService) paymentCustomer(ctx context.Context, payment *domain.Payment) (string, error) {
	if payment.CustomerID != nil && *payment.CustomerID != "" {
		return *payment.CustomerID, nil
	}
	identity := payment.Identity().Normalize()
	if identity.IsZero() {
		return "", customError.WrapValidation("payment carries no customer identity").
			WithDetail("payment_id", payment.ID)
	}
	return s.resolveCustomer(ctx, identity)
}

func (s *ReconciliationService) forgetCandidates(ctx context.Context, paymentID string) {
	if err := s.cache.Delete(ctx, paymentID); err != nil {
		s.logger.WarnContext(ctx, "failed to drop cached candidates", "payment_id", paymentID, "error", err)
	}
}

// appendAttempt adds attempt to the JSON log, keeping the latest few.
func appendAttempt(existing types.JSONText, attempt domain.MatchAttempt) types.JSONText {
	var log []json.RawMessage
	if len(existing) > 0 {
		// an unreadable log is replaced rather than blocking classification
		_ = json.Unmarshal(existing, &log)
	}
	raw, err := json.Marshal(attempt)
	if err != nil {
		return existing
	}
	log = append(log, raw)
	if len(log) > maxMatchAttempts {
		log = log[len(log)-maxMatchAttempts:]
	}
	out, err := json.Marshal(log)
	if err != nil {
		return existing
	}
	return types.JSONText(out)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
