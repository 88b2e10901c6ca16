package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/killswitch"
)

// SwitchRepo is the Postgres kill switch store.
type SwitchRepo struct {
	db *sql.DB
}

func NewSwitchRepo(db *sql.DB) *SwitchRepo {
	return &SwitchRepo{db: db}
}

const switchColumns = `
id, scope, target_id, is_active, reason, activated_by, activated_at, deactivated_at, created_at`

func (r *SwitchRepo) Create(ctx context.Context, sw killswitch.Switch) error {
	const q = `
INSERT INTO kill_switches (` + switchColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := r.db.ExecContext(ctx, q,
		sw.ID, sw.Scope, sw.TargetID, sw.IsActive, sw.Reason, sw.ActivatedBy, sw.ActivatedAt, sw.DeactivatedAt, sw.CreatedAt,
	)
	return err
}

func (r *SwitchRepo) Get(ctx context.Context, id uuid.UUID) (killswitch.Switch, error) {
	const q = `SELECT ` + switchColumns + ` FROM kill_switches WHERE id = $1`
	sw, err := scanSwitch(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return killswitch.Switch{}, killswitch.ErrSwitchNotFound
		}
		return killswitch.Switch{}, err
	}
	return sw, nil
}

func (r *SwitchRepo) ActiveForScope(ctx context.Context, scope killswitch.Scope, targetID uuid.UUID) ([]killswitch.Switch, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if scope == killswitch.ScopeGlobal {
		const q = `SELECT ` + switchColumns + ` FROM kill_switches WHERE is_active AND scope = $1`
		rows, err = r.db.QueryContext(ctx, q, scope)
	} else {
		const q = `SELECT ` + switchColumns + ` FROM kill_switches WHERE is_active AND scope = $1 AND target_id = $2`
		rows, err = r.db.QueryContext(ctx, q, scope, targetID)
	}
	if err != nil {
		return nil, err
	}
	return collectSwitches(rows)
}

func (r *SwitchRepo) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (killswitch.Switch, error) {
	const q = `
UPDATE kill_switches
SET is_active = false,
    deactivated_at = $2
WHERE id = $1 AND is_active
RETURNING ` + switchColumns

	sw, err := scanSwitch(r.db.QueryRowContext(ctx, q, id, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already inactive, or missing; Get disambiguates.
			return r.Get(ctx, id)
		}
		return killswitch.Switch{}, err
	}
	return sw, nil
}

func (r *SwitchRepo) ListActive(ctx context.Context) ([]killswitch.Switch, error) {
	const q = `SELECT ` + switchColumns + ` FROM kill_switches WHERE is_active ORDER BY activated_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectSwitches(rows)
}

func collectSwitches(rows *sql.Rows) ([]killswitch.Switch, error) {
	defer rows.Close()
	var out []killswitch.Switch
	for rows.Next() {
		sw, err := scanSwitch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func scanSwitch(row rowScanner) (killswitch.Switch, error) {
	var sw killswitch.Switch
	var deactivatedAt sql.NullTime
	if err := row.Scan(
		&sw.ID,
		&sw.Scope,
		&sw.TargetID,
		&sw.IsActive,
		&sw.Reason,
		&sw.ActivatedBy,
		&sw.ActivatedAt,
		&deactivatedAt,
		&sw.CreatedAt,
	); err != nil {
		return killswitch.Switch{}, err
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		sw.DeactivatedAt = &t
	}
	return sw, nil
}
