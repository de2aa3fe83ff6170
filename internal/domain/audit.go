package domain

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	AuditActionAutoMatch   = "auto_match"
	AuditActionManualMatch = "manual_match"
	AuditActionReject      = "reject"
)

// AuditEntry captures one committed state transition of a payment and,
// unless the payment was rejected, the obligation it was applied to.
type AuditEntry struct {
	ID               string         `json:"id" db:"id"`
	PaymentID        string         `json:"payment_id" db:"payment_id"`
	ObligationKind   *string        `json:"obligation_kind,omitempty" db:"obligation_kind"`
	ObligationID     *string        `json:"obligation_id,omitempty" db:"obligation_id"`
	SubType          *string        `json:"sub_type,omitempty" db:"sub_type"`
	Action           string         `json:"action" db:"action"`
	Actor            string         `json:"actor" db:"actor"`
	PaymentBefore    types.JSONText `json:"payment_before" db:"payment_before"`
	PaymentAfter     types.JSONText `json:"payment_after" db:"payment_after"`
	ObligationBefore types.JSONText `json:"obligation_before,omitempty" db:"obligation_before"`
	ObligationAfter  types.JSONText `json:"obligation_after,omitempty" db:"obligation_after"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}
