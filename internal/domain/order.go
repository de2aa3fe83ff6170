package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPartial   = "partial"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order is a sales order awaiting full payment.
type Order struct {
	ID          string          `json:"id" db:"id"`
	OrderNo     string          `json:"order_no" db:"order_no"`
	CustomerID  string          `json:"customer_id" db:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Status      string          `json:"status" db:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

func (o *Order) Ref() ObligationRef    { return ObligationRef{Kind: KindOrder, ID: o.ID} }
func (o *Order) OwnerID() string       { return o.CustomerID }
func (o *Order) CurrentStatus() string { return o.Status }
func (o *Order) DueOn() *time.Time     { return o.DueDate }

func (o *Order) AcceptsPayment(time.Time) bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartial
}

func (o *Order) Clone() Obligation {
	c := *o
	c.DueDate = cloneTime(o.DueDate)
	return &c
}
