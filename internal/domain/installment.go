package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ContractStatusPendingApproval = "pending_approval"
	ContractStatusActive          = "active"
	ContractStatusOverdue         = "overdue"
	ContractStatusCompleted       = "completed"
	ContractStatusCancelled       = "cancelled"
)

const (
	InstallmentPaymentPending  = "pending"
	InstallmentPaymentVerified = "verified"
	InstallmentPaymentRejected = "rejected"
)

// InstallmentContract finances a product over a fixed number of periods.
// Ownership of the goods passes only once every period is paid.
type InstallmentContract struct {
	ID             string          `json:"id" db:"id"`
	ContractNo     string          `json:"contract_no" db:"contract_no"`
	CustomerID     string          `json:"customer_id" db:"customer_id"`
	FinancedAmount decimal.Decimal `json:"financed_amount" db:"financed_amount"`
	ServiceFee     decimal.Decimal `json:"service_fee" db:"service_fee"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	TotalPeriods   int             `json:"total_periods" db:"total_periods"`
	PaidAmount     decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PaidPeriods    int             `json:"paid_periods" db:"paid_periods"`
	StartDate      time.Time       `json:"start_date" db:"start_date"`
	NextDueDate    *time.Time      `json:"next_due_date,omitempty" db:"next_due_date"`
	Status         string          `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func (c *InstallmentContract) Ref() ObligationRef {
	return ObligationRef{Kind: KindInstallment, ID: c.ID}
}
func (c *InstallmentContract) OwnerID() string       { return c.CustomerID }
func (c *InstallmentContract) CurrentStatus() string { return c.Status }
func (c *InstallmentContract) DueOn() *time.Time     { return c.NextDueDate }

func (c *InstallmentContract) AcceptsPayment(time.Time) bool {
	if c.PaidPeriods >= c.TotalPeriods {
		return false
	}
	return c.Status == ContractStatusActive || c.Status == ContractStatusOverdue
}

// NextPeriod is the first period that has not been paid yet.
func (c *InstallmentContract) NextPeriod() int {
	return c.PaidPeriods + 1
}

func (c *InstallmentContract) Clone() Obligation {
	cp := *c
	cp.NextDueDate = cloneTime(c.NextDueDate)
	return &cp
}

// InstallmentPayment records one payment attempt against a contract period.
type InstallmentPayment struct {
	ID           string          `json:"id" db:"id"`
	ContractID   string          `json:"contract_id" db:"contract_id"`
	PaymentID    string          `json:"payment_id" db:"payment_id"`
	PeriodNumber int             `json:"period_number" db:"period_number"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Status       string          `json:"status" db:"status"`
	VerifiedAt   *time.Time      `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// SchedulePeriod is one computed due date/amount unit of a contract.
type SchedulePeriod struct {
	Number     int             `json:"number"`
	DueDate    time.Time       `json:"due_date"`
	BaseAmount decimal.Decimal `json:"base_amount"`
	Fee        decimal.Decimal `json:"fee"`
	Total      decimal.Decimal `json:"total"`
}
