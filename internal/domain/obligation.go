package domain

import (
	"fmt"
	"strings"
	"time"
)

// ObligationKind tags the concrete variant behind an Obligation.
type ObligationKind string

const (
	KindOrder       ObligationKind = "order"
	KindInstallment ObligationKind = "installment"
	KindPawn        ObligationKind = "pawn"
	KindDeposit     ObligationKind = "deposit"
)

// Kinds lists every obligation kind in a stable order.
var Kinds = []ObligationKind{KindOrder, KindInstallment, KindPawn, KindDeposit}

func (k ObligationKind) Valid() bool {
	switch k {
	case KindOrder, KindInstallment, KindPawn, KindDeposit:
		return true
	}
	return false
}

// SubType narrows what part of an obligation a payment settles.
type SubType string

const (
	SubTypeBalance        SubType = "balance"
	SubTypeInterest       SubType = "interest"
	SubTypeFullRedemption SubType = "full_redemption"
	SubTypeDeposit        SubType = "deposit"
)

// PeriodSubType is the sub type used for installment period n.
func PeriodSubType(n int) SubType {
	return SubType(fmt.Sprintf("period_%d", n))
}

// PeriodNumber parses a period_<n> sub type.
func (s SubType) PeriodNumber() (int, bool) {
	var n int
	if _, err := fmt.Sscanf(string(s), "period_%d", &n); err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ObligationRef identifies one obligation across kinds.
type ObligationRef struct {
	Kind ObligationKind `json:"kind"`
	ID   string         `json:"id"`
}

func (r ObligationRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

func (r ObligationRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// ParseObligationRef parses the "<kind>:<id>" form produced by String.
func ParseObligationRef(s string) (ObligationRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" || !ObligationKind(kind).Valid() {
		return ObligationRef{}, fmt.Errorf("invalid obligation reference %q", s)
	}
	return ObligationRef{Kind: ObligationKind(kind), ID: id}, nil
}

// Obligation is the tagged union over orders, installment contracts, pawns
// and deposits. Generators and appliers dispatch on Ref().Kind.
type Obligation interface {
	Ref() ObligationRef
	OwnerID() string
	CurrentStatus() string
	// DueOn is the date the obligation is next expected to be paid, if any.
	DueOn() *time.Time
	// AcceptsPayment reports whether the current state can take a payment.
	AcceptsPayment(asOf time.Time) bool
	Clone() Obligation
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
