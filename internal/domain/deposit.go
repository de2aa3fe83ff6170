package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DepositStatusPendingPayment = "pending_payment"
	DepositStatusDeposited      = "deposited"
	DepositStatusConverted      = "converted"
	DepositStatusExpired        = "expired"
	DepositStatusCancelled      = "cancelled"
)

// Deposit reserves a product against a partial up-front payment.
type Deposit struct {
	ID             string          `json:"id" db:"id"`
	DepositNo      string          `json:"deposit_no" db:"deposit_no"`
	CustomerID     string          `json:"customer_id" db:"customer_id"`
	ProductPrice   decimal.Decimal `json:"product_price" db:"product_price"`
	DepositPercent decimal.Decimal `json:"deposit_percent" db:"deposit_percent"`
	DepositAmount  decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	// RemainingAmount is what the customer still owes at pickup.
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	ExpiresAt       time.Time       `json:"expires_at" db:"expires_at"`
	Status          string          `json:"status" db:"status"`
	DepositedAt     *time.Time      `json:"deposited_at,omitempty" db:"deposited_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

func (d *Deposit) Ref() ObligationRef    { return ObligationRef{Kind: KindDeposit, ID: d.ID} }
func (d *Deposit) OwnerID() string       { return d.CustomerID }
func (d *Deposit) CurrentStatus() string { return d.Status }

func (d *Deposit) DueOn() *time.Time {
	e := d.ExpiresAt
	return &e
}

// AcceptsPayment is false once the reservation window has passed, even
// before the expiry sweep has flipped the status.
func (d *Deposit) AcceptsPayment(asOf time.Time) bool {
	return d.Status == DepositStatusPendingPayment && !asOf.After(d.ExpiresAt)
}

func (d *Deposit) Clone() Obligation {
	c := *d
	c.DepositedAt = cloneTime(d.DepositedAt)
	return &c
}
