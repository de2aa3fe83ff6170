package repository

import (
	"context"

	"github.com/segyhp/reconciliation-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerResolver {
	return &customerRepository{db: db}
}

// ResolveCustomer accepts a direct customer id, a platform identity, or a
// bare platform user id that is linked on exactly one platform.
func (r *customerRepository) ResolveCustomer(ctx context.Context, identity domain.CustomerIdentity) (string, error) {
	identity = identity.Normalize()

	var ids []string
	var err error
	switch {
	case identity.CustomerID != "":
		err = r.db.SelectContext(ctx, &ids, `SELECT id FROM customers WHERE id = $1`, identity.CustomerID)
	case identity.Platform != "":
		err = r.db.SelectContext(ctx, &ids, `
			SELECT customer_id FROM customer_identities
			WHERE platform = $1 AND platform_user_id = $2
		`, identity.Platform, identity.PlatformUserID)
	default:
		err = r.db.SelectContext(ctx, &ids, `
			SELECT DISTINCT customer_id FROM customer_identities
			WHERE platform_user_id = $1
			LIMIT 2
		`, identity.PlatformUserID)
	}
	if err != nil {
		return "", storageError(err)
	}
	if len(ids) != 1 {
		return "", ErrNotFound
	}
	return ids[0], nil
}
