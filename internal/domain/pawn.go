package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PawnStatusPendingApproval = "pending_approval"
	PawnStatusActive          = "active"
	PawnStatusOverdue         = "overdue"
	PawnStatusRedeemed        = "redeemed"
	PawnStatusForfeited       = "forfeited"
	PawnStatusCancelled       = "cancelled"
)

const (
	PawnPaymentInterest       = "interest"
	PawnPaymentFullRedemption = "full_redemption"
)

// Pawn is a loan secured by an item bought from the shop.
type Pawn struct {
	ID                string          `json:"id" db:"id"`
	PawnNo            string          `json:"pawn_no" db:"pawn_no"`
	CustomerID        string          `json:"customer_id" db:"customer_id"`
	AppraisalValue    decimal.Decimal `json:"appraisal_value" db:"appraisal_value"`
	LoanPercentage    decimal.Decimal `json:"loan_percentage" db:"loan_percentage"`
	LoanAmount        decimal.Decimal `json:"loan_amount" db:"loan_amount"`
	InterestRate      decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	PeriodDays        int             `json:"period_days" db:"period_days"`
	PeriodsPaid       int             `json:"periods_paid" db:"periods_paid"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid" db:"total_interest_paid"`
	NextDueDate       time.Time       `json:"next_due_date" db:"next_due_date"`
	Status            string          `json:"status" db:"status"`
	RedeemedAt        *time.Time      `json:"redeemed_at,omitempty" db:"redeemed_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (p *Pawn) Ref() ObligationRef    { return ObligationRef{Kind: KindPawn, ID: p.ID} }
func (p *Pawn) OwnerID() string       { return p.CustomerID }
func (p *Pawn) CurrentStatus() string { return p.Status }

func (p *Pawn) DueOn() *time.Time {
	d := p.NextDueDate
	return &d
}

func (p *Pawn) AcceptsPayment(time.Time) bool {
	return p.Status == PawnStatusActive || p.Status == PawnStatusOverdue
}

func (p *Pawn) Clone() Obligation {
	c := *p
	c.RedeemedAt = cloneTime(p.RedeemedAt)
	return &c
}

// PawnPayment records an interest or redemption payment against a pawn.
type PawnPayment struct {
	ID              string          `json:"id" db:"id"`
	PawnID          string          `json:"pawn_id" db:"pawn_id"`
	PaymentID       string          `json:"payment_id" db:"payment_id"`
	PaymentType     string          `json:"payment_type" db:"payment_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	PeriodsCovered  int             `json:"periods_covered" db:"periods_covered"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
