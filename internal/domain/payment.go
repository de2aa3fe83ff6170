package domain

import (
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusMatched  = "matched"
	PaymentStatusRejected = "rejected"
)

// Match status tracks where a payment sits in the classification queue.
// It is independent of Status, which only Application/Commit changes.
const (
	MatchStatusUnmatched     = "unmatched"
	MatchStatusAutoMatched   = "auto_matched"
	MatchStatusManualMatched = "manual_matched"
	MatchStatusAmbiguous     = "ambiguous"
	MatchStatusNoMatch       = "no_match"
	MatchStatusRejected      = "rejected"
)

// Payment is one submitted bank transfer slip.
type Payment struct {
	ID             string          `json:"id" db:"id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	SubmittedAt    time.Time       `json:"submitted_at" db:"submitted_at"`
	SenderName     *string         `json:"sender_name,omitempty" db:"ocr_sender_name"`
	ReferenceCode  *string         `json:"reference_code,omitempty" db:"ocr_reference"`
	Bank           *string         `json:"bank,omitempty" db:"ocr_bank"`
	CustomerID     *string         `json:"customer_id,omitempty" db:"customer_id"`
	Platform       *string         `json:"platform,omitempty" db:"platform"`
	PlatformUserID *string         `json:"platform_user_id,omitempty" db:"platform_user_id"`
	Status         string          `json:"status" db:"status"`
	MatchStatus    string          `json:"match_status" db:"match_status"`
	MatchAttempts  types.JSONText  `json:"match_attempts,omitempty" db:"match_attempts"`
	ObligationKind *string         `json:"obligation_kind,omitempty" db:"obligation_kind"`
	ObligationID   *string         `json:"obligation_id,omitempty" db:"obligation_id"`
	SubType        *string         `json:"sub_type,omitempty" db:"sub_type"`
	RejectReason   *string         `json:"reject_reason,omitempty" db:"reject_reason"`
	DecidedBy      *string         `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Identity returns the customer identity hints carried by the payment.
func (p *Payment) Identity() CustomerIdentity {
	var id CustomerIdentity
	if p.CustomerID != nil {
		id.CustomerID = *p.CustomerID
	}
	if p.Platform != nil {
		id.Platform = *p.Platform
	}
	if p.PlatformUserID != nil {
		id.PlatformUserID = *p.PlatformUserID
	}
	return id
}

// Binding returns the obligation the payment was applied to, if any.
func (p *Payment) Binding() *ObligationRef {
	if p.ObligationKind == nil || p.ObligationID == nil {
		return nil
	}
	return &ObligationRef{Kind: ObligationKind(*p.ObligationKind), ID: *p.ObligationID}
}

func (p *Payment) Clone() *Payment {
	c := *p
	c.SenderName = cloneString(p.SenderName)
	c.ReferenceCode = cloneString(p.ReferenceCode)
	c.Bank = cloneString(p.Bank)
	c.CustomerID = cloneString(p.CustomerID)
	c.Platform = cloneString(p.Platform)
	c.PlatformUserID = cloneString(p.PlatformUserID)
	c.ObligationKind = cloneString(p.ObligationKind)
	c.ObligationID = cloneString(p.ObligationID)
	c.SubType = cloneString(p.SubType)
	c.RejectReason = cloneString(p.RejectReason)
	c.DecidedBy = cloneString(p.DecidedBy)
	c.DecidedAt = cloneTime(p.DecidedAt)
	if p.MatchAttempts != nil {
		c.MatchAttempts = append(types.JSONText(nil), p.MatchAttempts...)
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CustomerIdentity is the loosely-known identity a slip arrives with.
type CustomerIdentity struct {
	CustomerID     string `json:"customer_id,omitempty"`
	Platform       string `json:"platform,omitempty"`
	PlatformUserID string `json:"platform_user_id,omitempty"`
}

func (c CustomerIdentity) IsZero() bool {
	return c.CustomerID == "" && c.PlatformUserID == ""
}

// PlatformWeb is the platform of web accounts addressed as "user:<id>".
const PlatformWeb = "web"

// Normalize rewrites the "user:<id>" shorthand used by the chat-bot into an
// explicit web platform identity.
func (c CustomerIdentity) Normalize() CustomerIdentity {
	c.CustomerID = strings.TrimSpace(c.CustomerID)
	c.PlatformUserID = strings.TrimSpace(c.PlatformUserID)
	if id, ok := strings.CutPrefix(c.PlatformUserID, "user:"); ok && id != "" {
		c.Platform = PlatformWeb
		c.PlatformUserID = id
	}
	return c
}

func (c CustomerIdentity) String() string {
	if c.CustomerID != "" {
		return "customer:" + c.CustomerID
	}
	if c.Platform != "" {
		return c.Platform + ":" + c.PlatformUserID
	}
	return c.PlatformUserID
}

// DTOs for requests and responses

type SubmitPaymentRequest struct {
	CustomerID     string          `json:"customer_id" validate:"required_without=PlatformUserID"`
	Platform       string          `json:"platform" validate:"omitempty,oneof=line facebook web"`
	PlatformUserID string          `json:"platform_user_id" validate:"required_without=CustomerID"`
	Amount         decimal.Decimal `json:"amount" validate:"dgt0"`
	SubmittedAt    *time.Time      `json:"submitted_at"`
	SenderName     string          `json:"sender_name" validate:"max=255"`
	ReferenceCode  string          `json:"reference_code" validate:"max=128"`
	Bank           string          `json:"bank" validate:"max=64"`
}

type ManualClassificationRequest struct {
	Kind         ObligationKind `json:"kind" validate:"required,oneof=order installment pawn deposit"`
	ObligationID string         `json:"obligation_id" validate:"required"`
	SubType      SubType        `json:"sub_type"`
	Operator     string         `json:"operator" validate:"required"`
}

type RejectPaymentRequest struct {
	Reason   string `json:"reason" validate:"required,max=255"`
	Operator string `json:"operator" validate:"required"`
}
