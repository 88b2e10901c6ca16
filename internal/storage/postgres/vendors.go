package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/vendorguard"
	"resilience-platform/pkg/utils"
)

// VendorRepo is the Postgres vendor store.
//
// SetBreakerState is compare-and-set through a conditional WHERE, so two
// concurrent transitions on the same vendor cannot both win.
type VendorRepo struct {
	db *sql.DB
}

func NewVendorRepo(db *sql.DB) *VendorRepo {
	return &VendorRepo{db: db}
}

const vendorColumns = `
id, name, breaker_state, failure_count, last_failure_at, last_success_at`

func (r *VendorRepo) Get(ctx context.Context, id uuid.UUID) (vendorguard.Vendor, bool, error) {
	const q = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`
	return r.one(r.db.QueryRowContext(ctx, q, id))
}

func (r *VendorRepo) GetByName(ctx context.Context, name string) (vendorguard.Vendor, bool, error) {
	const q = `SELECT ` + vendorColumns + ` FROM vendors WHERE name = $1`
	return r.one(r.db.QueryRowContext(ctx, q, name))
}

func (r *VendorRepo) Create(ctx context.Context, v vendorguard.Vendor) (vendorguard.Vendor, error) {
	const q = `
INSERT INTO vendors (` + vendorColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := r.db.ExecContext(ctx, q, v.ID, v.Name, v.BreakerState, v.FailureCount, v.LastFailureAt, v.LastSuccessAt)
	if err != nil {
		return vendorguard.Vendor{}, err
	}
	return v, nil
}

func (r *VendorRepo) IncrementFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (vendorguard.Vendor, error) {
	const q = `
UPDATE vendors
SET failure_count = failure_count + 1,
    last_failure_at = $2
WHERE id = $1
RETURNING ` + vendorColumns

	v, ok, err := r.one(r.db.QueryRowContext(ctx, q, id, at))
	if err != nil {
		return vendorguard.Vendor{}, err
	}
	if !ok {
		return vendorguard.Vendor{}, sql.ErrNoRows
	}
	return v, nil
}

func (r *VendorRepo) ResetFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (vendorguard.Vendor, error) {
	const q = `
UPDATE vendors
SET failure_count = 0,
    last_success_at = $2
WHERE id = $1
RETURNING ` + vendorColumns

	v, ok, err := r.one(r.db.QueryRowContext(ctx, q, id, at))
	if err != nil {
		return vendorguard.Vendor{}, err
	}
	if !ok {
		return vendorguard.Vendor{}, sql.ErrNoRows
	}
	return v, nil
}

func (r *VendorRepo) SetBreakerState(ctx context.Context, id uuid.UUID, from, to vendorguard.State) (vendorguard.Vendor, bool, error) {
	const q = `
UPDATE vendors
SET breaker_state = $3
WHERE id = $1 AND breaker_state = $2
RETURNING ` + vendorColumns

	const current = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	var v vendorguard.Vendor
	var applied bool
	// One transaction so the losing side of a CAS race reports the row as
	// the winner left it, not some later state.
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var ok bool
		var err error
		v, ok, err = r.one(tx.QueryRowContext(ctx, q, id, from, to))
		if err != nil {
			return err
		}
		if ok {
			applied = true
			return nil
		}
		v, _, err = r.one(tx.QueryRowContext(ctx, current, id))
		return err
	})
	if err != nil {
		return vendorguard.Vendor{}, false, err
	}
	return v, applied, nil
}

func (r *VendorRepo) one(row rowScanner) (vendorguard.Vendor, bool, error) {
	var v vendorguard.Vendor
	if err := row.Scan(
		&v.ID,
		&v.Name,
		&v.BreakerState,
		&v.FailureCount,
		&v.LastFailureAt,
		&v.LastSuccessAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return vendorguard.Vendor{}, false, nil
		}
		return vendorguard.Vendor{}, false, err
	}
	return v, true, nil
}
