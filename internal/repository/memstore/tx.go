package memstore

import (
	"context"
	"fmt"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"
)

// WithinTx holds the store lock for the whole unit of work. Writes are
// staged on the tx and copied into the store only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.TxStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		store:       s,
		payments:    make(map[string]*domain.Payment),
		obligations: make(map[domain.ObligationRef]domain.Obligation),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range t.payments {
		s.payments[id] = p
	}
	for ref, ob := range t.obligations {
		s.obligations[ref] = ob
	}
	s.installmentPayments = append(s.installmentPayments, t.installmentPayments...)
	s.pawnPayments = append(s.pawnPayments, t.pawnPayments...)
	s.audit = append(s.audit, t.audit...)
	return nil
}

type tx struct {
	store *Store

	payments            map[string]*domain.Payment
	obligations         map[domain.ObligationRef]domain.Obligation
	installmentPayments []*domain.InstallmentPayment
	pawnPayments        []*domain.PawnPayment
	audit               []*domain.AuditEntry
}

func (t *tx) fail(method string) error {
	return t.store.failures[method]
}

func (t *tx) LockPayment(_ context.Context, id string) (*domain.Payment, error) {
	if err := t.fail("LockPayment"); err != nil {
		return nil, err
	}
	if p, ok := t.payments[id]; ok {
		return p.Clone(), nil
	}
	p, ok := t.store.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *tx) LockObligation(_ context.Context, ref domain.ObligationRef) (domain.Obligation, error) {
	if err := t.fail("LockObligation"); err != nil {
		return nil, err
	}
	if ob, ok := t.obligations[ref]; ok {
		return ob.Clone(), nil
	}
	ob, ok := t.store.obligations[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ob.Clone(), nil
}

func (t *tx) SaveObligation(_ context.Context, ob domain.Obligation) error {
	if err := t.fail("SaveObligation"); err != nil {
		return err
	}
	if _, ok := t.store.obligations[ob.Ref()]; !ok {
		return repository.ErrNotFound
	}
	t.obligations[ob.Ref()] = ob.Clone()
	return nil
}

func (t *tx) InsertInstallmentPayment(_ context.Context, p *domain.InstallmentPayment) error {
	if err := t.fail("InsertInstallmentPayment"); err != nil {
		return err
	}
	for _, list := range [][]*domain.InstallmentPayment{t.store.installmentPayments, t.installmentPayments} {
		for _, existing := range list {
			if existing.PaymentID == p.PaymentID {
				return fmt.Errorf("installment payment for payment %s already exists", p.PaymentID)
			}
		}
	}
	cp := *p
	t.installmentPayments = append(t.installmentPayments, &cp)
	return nil
}

func (t *tx) InsertPawnPayment(_ context.Context, p *domain.PawnPayment) error {
	if err := t.fail("InsertPawnPayment"); err != nil {
		return err
	}
	for _, list := range [][]*domain.PawnPayment{t.store.pawnPayments, t.pawnPayments} {
		for _, existing := range list {
			if existing.PaymentID == p.PaymentID {
				return fmt.Errorf("pawn payment for payment %s already exists", p.PaymentID)
			}
		}
	}
	cp := *p
	t.pawnPayments = append(t.pawnPayments, &cp)
	return nil
}

func (t *tx) UpdatePayment(_ context.Context, payment *domain.Payment) error {
	if err := t.fail("UpdatePayment"); err != nil {
		return err
	}
	if _, ok := t.store.payments[payment.ID]; !ok {
		return repository.ErrNotFound
	}
	t.payments[payment.ID] = payment.Clone()
	return nil
}

func (t *tx) InsertAudit(_ context.Context, entry *domain.AuditEntry) error {
	if err := t.fail("InsertAudit"); err != nil {
		return err
	}
	cp := *entry
	t.audit = append(t.audit, &cp)
	return nil
}
