// Package memstore is an in-process implementation of the repository
// interfaces. Transactions are serialized behind one mutex and staged, so
// a failed unit of work leaves nothing behind.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	"github.com/segyhp/reconciliation-engine/pkg/utils"

	"github.com/jmoiron/sqlx/types"
)

type identityKey struct {
	platform string
	userID   string
}

type Store struct {
	mu sync.Mutex

	customers           map[string]bool
	identities          map[identityKey]string
	payments            map[string]*domain.Payment
	obligations         map[domain.ObligationRef]domain.Obligation
	installmentPayments []*domain.InstallmentPayment
	pawnPayments        []*domain.PawnPayment
	audit               []*domain.AuditEntry

	// failures makes the named TxStore method return the given error.
	failures map[string]error
}

func New() *Store {
	return &Store{
		customers:   make(map[string]bool),
		identities:  make(map[identityKey]string),
		payments:    make(map[string]*domain.Payment),
		obligations: make(map[domain.ObligationRef]domain.Obligation),
		failures:    make(map[string]error),
	}
}

var (
	_ repository.ObligationRepository = (*Store)(nil)
	_ repository.PaymentRepository    = (*Store)(nil)
	_ repository.CustomerResolver     = (*Store)(nil)
	_ repository.AuditRepository      = (*Store)(nil)
	_ repository.TxManager            = (*Store)(nil)
)

// Seeding

func (s *Store) AddCustomer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[id] = true
}

func (s *Store) LinkIdentity(platform, platformUserID, customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customerID] = true
	s.identities[identityKey{platform: platform, userID: platformUserID}] = customerID
}

// PutObligation inserts or replaces an obligation snapshot.
func (s *Store) PutObligation(ob domain.Obligation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[ob.OwnerID()] = true
	s.obligations[ob.Ref()] = ob.Clone()
}

// FailOn injects err into the named TxStore method, e.g. "InsertAudit".
// A nil err clears the injection.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) InstallmentPayments(contractID string) []*domain.InstallmentPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.InstallmentPayment
	for _, p := range s.installmentPayments {
		if p.ContractID == contractID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) PawnPayments(pawnID string) []*domain.PawnPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PawnPayment
	for _, p := range s.pawnPayments {
		if p.PawnID == pawnID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

// Obligation snapshot reader

func (s *Store) OpenOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, ob := range s.byKind(domain.KindOrder, customerID) {
		o := ob.(*domain.Order)
		if o.Status == domain.OrderStatusPending || o.Status == domain.OrderStatusPartial {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) OpenContractsByCustomer(_ context.Context, customerID string) ([]*domain.InstallmentContract, error) {
	var out []*domain.InstallmentContract
	for _, ob := range s.byKind(domain.KindInstallment, customerID) {
		c := ob.(*domain.InstallmentContract)
		if c.Status == domain.ContractStatusActive || c.Status == domain.ContractStatusOverdue {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) OpenPawnsByCustomer(_ context.Context, customerID string) ([]*domain.Pawn, error) {
	var out []*domain.Pawn
	for _, ob := range s.byKind(domain.KindPawn, customerID) {
		p := ob.(*domain.Pawn)
		if p.Status == domain.PawnStatusActive || p.Status == domain.PawnStatusOverdue {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) PendingDepositsByCustomer(_ context.Context, customerID string) ([]*domain.Deposit, error) {
	var out []*domain.Deposit
	for _, ob := range s.byKind(domain.KindDeposit, customerID) {
		d := ob.(*domain.Deposit)
		if d.Status == domain.DepositStatusPendingPayment {
			out = append(out, d)
		}
	}
	return out, nil
}

// byKind returns clones ordered by id.
func (s *Store) byKind(kind domain.ObligationKind, customerID string) []domain.Obligation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Obligation
	for ref, ob := range s.obligations {
		if ref.Kind == kind && ob.OwnerID() == customerID {
			out = append(out, ob.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().ID < out[j].Ref().ID })
	return out
}

func (s *Store) GetObligation(_ context.Context, ref domain.ObligationRef) (domain.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.obligations[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ob.Clone(), nil
}

func (s *Store) MarkOverdue(_ context.Context, asOf time.Time) (repository.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := utils.StartOfDay(asOf)
	var res repository.SweepResult
	for _, ob := range s.obligations {
		switch o := ob.(type) {
		case *domain.InstallmentContract:
			if o.Status == domain.ContractStatusActive && o.NextDueDate != nil && o.NextDueDate.Before(today) {
				o.Status = domain.ContractStatusOverdue
				o.UpdatedAt = asOf
				res.Contracts++
			}
		case *domain.Pawn:
			if o.Status == domain.PawnStatusActive && o.NextDueDate.Before(today) {
				o.Status = domain.PawnStatusOverdue
				o.UpdatedAt = asOf
				res.Pawns++
			}
		case *domain.Deposit:
			if o.Status == domain.DepositStatusPendingPayment && o.ExpiresAt.Before(asOf) {
				o.Status = domain.DepositStatusExpired
				o.UpdatedAt = asOf
				res.Deposits++
			}
		}
	}
	return res, nil
}

// Payments

func (s *Store) Create(_ context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; exists {
		return fmt.Errorf("payment %s already exists", payment.ID)
	}
	s.payments[payment.ID] = payment.Clone()
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) RecordMatchAttempt(_ context.Context, id, matchStatus string, attempts types.JSONText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return nil
	}
	p.MatchStatus = matchStatus
	p.MatchAttempts = append(types.JSONText(nil), attempts...)
	return nil
}

func (s *Store) ListPendingClassification(_ context.Context, limit int) ([]*domain.Payment, error) {
	return s.listPending(limit, func(p *domain.Payment) bool {
		switch p.MatchStatus {
		case domain.MatchStatusAmbiguous, domain.MatchStatusNoMatch, domain.MatchStatusUnmatched:
			return true
		}
		return false
	}), nil
}

func (s *Store) ListUnclassified(_ context.Context, limit int) ([]*domain.Payment, error) {
	return s.listPending(limit, func(p *domain.Payment) bool {
		return p.MatchStatus == domain.MatchStatusUnmatched
	}), nil
}

func (s *Store) listPending(limit int, keep func(*domain.Payment) bool) []*domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range s.payments {
		if p.Status == domain.PaymentStatusPending && keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Customers

func (s *Store) ResolveCustomer(_ context.Context, identity domain.CustomerIdentity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity = identity.Normalize()
	if identity.CustomerID != "" {
		if !s.customers[identity.CustomerID] {
			return "", repository.ErrNotFound
		}
		return identity.CustomerID, nil
	}
	if identity.Platform != "" {
		if id, ok := s.identities[identityKey{platform: identity.Platform, userID: identity.PlatformUserID}]; ok {
			return id, nil
		}
		return "", repository.ErrNotFound
	}

	// platform unknown: the user id must be unambiguous across platforms
	var found []string
	for k, id := range s.identities {
		if k.userID == identity.PlatformUserID {
			found = append(found, id)
		}
	}
	if len(found) != 1 {
		return "", repository.ErrNotFound
	}
	return found[0], nil
}

// Audit

func (s *Store) ListByPayment(_ context.Context, paymentID string) ([]*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range s.audit {
		if e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
