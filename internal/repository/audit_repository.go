package repository

import (
	"context"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const auditColumns = `id, payment_id, obligation_kind, obligation_id, sub_type, action, actor,
	payment_before, payment_after, obligation_before, obligation_after, created_at`

// auditRow scans the nullable obligation snapshots of reject entries.
type auditRow struct {
	domain.AuditEntry
	ObligationBefore types.NullJSONText `db:"obligation_before"`
	ObligationAfter  types.NullJSONText `db:"obligation_after"`
}

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) ListByPayment(ctx context.Context, paymentID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE payment_id = $1
		ORDER BY created_at, id
	`
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, paymentID); err != nil {
		return nil, storageError(err)
	}

	entries := make([]*domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := row.AuditEntry
		if row.ObligationBefore.Valid {
			entry.ObligationBefore = row.ObligationBefore.JSONText
		}
		if row.ObligationAfter.Valid {
			entry.ObligationAfter = row.ObligationAfter.JSONText
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
