package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"resilience-platform/internal/action"
)

// ActionRepo is the Postgres action store. UpdateStatus is compare-and-set
// on the current status, matching the state machine's atomicity contract.
type ActionRepo struct {
	db *sql.DB
}

func NewActionRepo(db *sql.DB) *ActionRepo {
	return &ActionRepo{db: db}
}

const actionColumns = `
id, decision_id, action_type, status, parameters, result, error_message,
is_reversible, reversal_action_id, created_at, updated_at`

func (r *ActionRepo) Create(ctx context.Context, a action.Action) (action.Action, error) {
	params, err := toJSONB(a.Parameters)
	if err != nil {
		return action.Action{}, err
	}
	result, err := toJSONB(a.Result)
	if err != nil {
		return action.Action{}, err
	}

	const q = `
INSERT INTO actions (` + actionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	_, err = r.db.ExecContext(ctx, q,
		a.ID, a.DecisionID, a.Type, a.Status, params, result, a.ErrorMessage,
		a.IsReversible, a.ReversalActionID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return action.Action{}, err
	}
	return a, nil
}

func (r *ActionRepo) Get(ctx context.Context, id uuid.UUID) (action.Action, bool, error) {
	const q = `SELECT ` + actionColumns + ` FROM actions WHERE id = $1`
	a, err := scanAction(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return action.Action{}, false, nil
		}
		return action.Action{}, false, err
	}
	return a, true, nil
}

func (r *ActionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to action.Status, result map[string]any, errMsg string) (action.Action, bool, error) {
	resultJSON, err := toJSONB(result)
	if err != nil {
		return action.Action{}, false, err
	}

	const q = `
UPDATE actions
SET status = $3,
    result = CASE WHEN $3 = 'completed' THEN $4 ELSE result END,
    error_message = CASE WHEN $3 = 'failed' THEN $5 ELSE error_message END,
    updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + actionColumns

	a, err := scanAction(r.db.QueryRowContext(ctx, q, id, from, to, resultJSON, errMsg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race; return the current row unapplied.
			current, ok, err := r.Get(ctx, id)
			if err != nil {
				return action.Action{}, false, err
			}
			if !ok {
				return action.Action{}, false, action.ErrActionNotFound
			}
			return current, false, nil
		}
		return action.Action{}, false, err
	}
	return a, true, nil
}

func scanAction(row rowScanner) (action.Action, error) {
	var a action.Action
	var params, result []byte
	if err := row.Scan(
		&a.ID,
		&a.DecisionID,
		&a.Type,
		&a.Status,
		&params,
		&result,
		&a.ErrorMessage,
		&a.IsReversible,
		&a.ReversalActionID,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return action.Action{}, err
	}

	var err error
	if a.Parameters, err = fromJSONB(params); err != nil {
		return action.Action{}, err
	}
	if a.Result, err = fromJSONB(result); err != nil {
		return action.Action{}, err
	}
	return a, nil
}
