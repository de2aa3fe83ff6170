package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/calculator"
	"github.com/segyhp/reconciliation-engine/internal/domain"
	"github.com/segyhp/reconciliation-engine/internal/repository"

	"github.com/shopspring/decimal"
)

// Query is what every generator is asked: which of this customer's open
// obligations could a payment of Amount settle as of AsOf.
type Query struct {
	CustomerID string
	Amount     decimal.Decimal
	AsOf       time.Time
}

// Generator produces candidates for one obligation kind. Implementations
// only read obligations.
type Generator interface {
	Kind() domain.ObligationKind
	Generate(ctx context.Context, q Query) ([]domain.Candidate, error)
}

type orderGenerator struct {
	orders repository.OrderReader
	tol    Tolerances
}

func NewOrderGenerator(orders repository.OrderReader, tol Tolerances) Generator {
	return &orderGenerator{orders: orders, tol: tol}
}

func (g *orderGenerator) Kind() domain.ObligationKind { return domain.KindOrder }

func (g *orderGenerator) Generate(ctx context.Context, q Query) ([]domain.Candidate, error) {
	orders, err := g.orders.OpenOrdersByCustomer(ctx, q.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}

	tol := g.tol.OrderTolerance(q.Amount)
	var candidates []domain.Candidate
	for _, o := range orders {
		if !o.AcceptsPayment(q.AsOf) {
			continue
		}
		remaining := calculator.OrderRemaining(o.TotalAmount, o.PaidAmount)
		if remaining.IsZero() {
			continue
		}
		confidence, ok := scoreOrder(q.Amount, remaining, tol)
		if !ok {
			continue
		}
		candidates = append(candidates, newCandidate(o, domain.SubTypeBalance, q.Amount, remaining, confidence,
			domain.ReasonExactRemaining, domain.ReasonCloseRemaining, o.DueOn()))
	}
	return candidates, nil
}

type installmentGenerator struct {
	contracts repository.InstallmentReader
	policy    calculator.InstallmentPolicy
	tol       Tolerances
}

func NewInstallmentGenerator(contracts repository.InstallmentReader, policy calculator.InstallmentPolicy, tol Tolerances) Generator {
	return &installmentGenerator{contracts: contracts, policy: policy, tol: tol}
}

func (g *installmentGenerator) Kind() domain.ObligationKind { return domain.KindInstallment }

// Generate compares the payment with the next unpaid period only.
func (g *installmentGenerator) Generate(ctx context.Context, q Query) ([]domain.Candidate, error) {
	contracts, err := g.contracts.OpenContractsByCustomer(ctx, q.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load open contracts: %w", err)
	}

	var candidates []domain.Candidate
	for _, c := range contracts {
		if !c.AcceptsPayment(q.AsOf) {
			continue
		}
		period := c.NextPeriod()
		expected, ok := g.policy.PeriodAmount(c, period)
		if !ok {
			continue
		}
		confidence, ok := scoreAbsolute(q.Amount, expected, g.tol.Absolute)
		if !ok {
			continue
		}
		due := g.policy.DueDate(c.StartDate, period)
		candidates = append(candidates, newCandidate(c, domain.PeriodSubType(period), q.Amount, expected, confidence,
			domain.ReasonExactPeriod, domain.ReasonClosePeriod, &due))
	}
	return candidates, nil
}

type pawnGenerator struct {
	pawns  repository.PawnReader
	policy calculator.PawnPolicy
	tol    Tolerances
}

func NewPawnGenerator(pawns repository.PawnReader, policy calculator.PawnPolicy, tol Tolerances) Generator {
	return &pawnGenerator{pawns: pawns, policy: policy, tol: tol}
}

func (g *pawnGenerator) Kind() domain.ObligationKind { return domain.KindPawn }

// Generate scores each pawn twice, as an interest payment and as a full
// redemption. Both are kept when both fall within tolerance.
func (g *pawnGenerator) Generate(ctx context.Context, q Query) ([]domain.Candidate, error) {
	pawns, err := g.pawns.OpenPawnsByCustomer(ctx, q.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load open pawns: %w", err)
	}

	var candidates []domain.Candidate
	for _, p := range pawns {
		if !p.AcceptsPayment(q.AsOf) {
			continue
		}
		quote := g.policy.Quote(p, q.AsOf)
		due := p.DueOn()

		if confidence, ok := scoreAbsolute(q.Amount, quote.PeriodicInterest, g.tol.Absolute); ok {
			candidates = append(candidates, newCandidate(p, domain.SubTypeInterest, q.Amount, quote.PeriodicInterest, confidence,
				domain.ReasonExactInterest, domain.ReasonCloseInterest, due))
		}
		if confidence, ok := scoreAbsolute(q.Amount, quote.RedemptionAmount, g.tol.Absolute); ok {
			candidates = append(candidates, newCandidate(p, domain.SubTypeFullRedemption, q.Amount, quote.RedemptionAmount, confidence,
				domain.ReasonExactRedemption, domain.ReasonCloseRedemption, due))
		}
	}
	return candidates, nil
}

type depositGenerator struct {
	deposits repository.DepositReader
	tol      Tolerances
}

func NewDepositGenerator(deposits repository.DepositReader, tol Tolerances) Generator {
	return &depositGenerator{deposits: deposits, tol: tol}
}

func (g *depositGenerator) Kind() domain.ObligationKind { return domain.KindDeposit }

func (g *depositGenerator) Generate(ctx context.Context, q Query) ([]domain.Candidate, error) {
	deposits, err := g.deposits.PendingDepositsByCustomer(ctx, q.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load pending deposits: %w", err)
	}

	var candidates []domain.Candidate
	for _, d := range deposits {
		// expired deposits are skipped even before the sweep marks them
		if !d.AcceptsPayment(q.AsOf) {
			continue
		}
		expected := calculator.DepositDue(d)
		confidence, ok := scoreAbsolute(q.Amount, expected, g.tol.Absolute)
		if !ok {
			continue
		}
		candidates = append(candidates, newCandidate(d, domain.SubTypeDeposit, q.Amount, expected, confidence,
			domain.ReasonExactDeposit, domain.ReasonCloseDeposit, d.DueOn()))
	}
	return candidates, nil
}
