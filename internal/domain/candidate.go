package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Confidence levels on a 0-100 scale.
const (
	ConfidenceExact  = 100
	ConfidenceHigh   = 90
	ConfidenceMedium = 70
	ConfidenceLow    = 50
)

// Match reasons recorded on candidates.
const (
	ReasonExactRemaining  = "exact_remaining_amount"
	ReasonCloseRemaining  = "close_remaining_amount"
	ReasonExactPeriod     = "exact_period_amount"
	ReasonClosePeriod     = "close_period_amount"
	ReasonExactInterest   = "exact_interest_amount"
	ReasonCloseInterest   = "close_interest_amount"
	ReasonExactRedemption = "exact_redemption_amount"
	ReasonCloseRedemption = "close_redemption_amount"
	ReasonExactDeposit    = "exact_deposit_amount"
	ReasonCloseDeposit    = "close_deposit_amount"
)

// Candidate is a scored hypothesis that a payment settles an obligation.
type Candidate struct {
	Obligation       ObligationRef   `json:"obligation"`
	SubType          SubType         `json:"sub_type"`
	ExpectedAmount   decimal.Decimal `json:"expected_amount"`
	Difference       decimal.Decimal `json:"difference"`
	Confidence       int             `json:"confidence"`
	Reason           string          `json:"reason"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	ObligationStatus string          `json:"obligation_status"`
}

// Outcome is the result of classifying a payment.
type Outcome string

const (
	OutcomeAutoMatched    Outcome = "auto_matched"
	OutcomeAmbiguous      Outcome = "ambiguous"
	OutcomeNoMatch        Outcome = "no_match"
	OutcomeAlreadyMatched Outcome = "already_matched"
)

// Decision is what the classifier concluded for one payment.
type Decision struct {
	PaymentID  string         `json:"payment_id"`
	Outcome    Outcome        `json:"outcome"`
	Chosen     *Candidate     `json:"chosen,omitempty"`
	Candidates []Candidate    `json:"candidates"`
	Binding    *ObligationRef `json:"binding,omitempty"`
	Commit     *CommitResult  `json:"commit,omitempty"`
}

// CommitResult is returned by a successful Application/Commit.
type CommitResult struct {
	Payment    *Payment   `json:"payment"`
	Obligation Obligation `json:"obligation"`
	AuditID    string     `json:"audit_id"`
}

// ManualReview is the operator-facing view of an unresolved payment.
type ManualReview struct {
	Payment    *Payment    `json:"payment"`
	Candidates []Candidate `json:"candidates"`
	// CanReject is always offered alongside the candidates.
	CanReject bool `json:"can_reject"`
}

// MatchAttempt is the JSON log stored on the payment after classification.
type MatchAttempt struct {
	SearchedAt    time.Time              `json:"searched_at"`
	AsOf          time.Time              `json:"as_of"`
	CustomerID    string                 `json:"customer_id"`
	Amount        decimal.Decimal        `json:"amount"`
	Outcome       Outcome                `json:"outcome"`
	Candidates    []Candidate            `json:"candidates"`
	FailedKinds   []ObligationKind       `json:"failed_kinds,omitempty"`
	CountsPerKind map[ObligationKind]int `json:"counts_per_kind"`
}
