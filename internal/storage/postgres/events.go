package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"resilience-platform/internal/event"
)

// EventRepo is the Postgres event store. Events are insert-only; no update
// or delete statements exist here on purpose.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Create(ctx context.Context, e event.Event) (event.Event, error) {
	payload, err := toJSONB(e.Payload)
	if err != nil {
		return event.Event{}, err
	}

	const q = `
INSERT INTO events (id, tenant_id, workflow_id, event_type, payload, idempotency_key, occurred_at, schema_version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err = r.db.ExecContext(ctx, q,
		e.ID, e.TenantID, e.WorkflowID, e.EventType, payload, e.IdempotencyKey, e.OccurredAt, e.SchemaVersion, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return event.Event{}, event.ErrDuplicateIdempotencyKey
		}
		return event.Event{}, err
	}
	return e, nil
}

func (r *EventRepo) GetByIdempotencyKey(ctx context.Context, key string) (event.Event, bool, error) {
	const q = `
SELECT id, tenant_id, workflow_id, event_type, payload, idempotency_key, occurred_at, schema_version, created_at
FROM events
WHERE idempotency_key = $1
`
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, false, nil
		}
		return event.Event{}, false, err
	}
	return e, true, nil
}

func (r *EventRepo) ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID) ([]event.Event, error) {
	const q = `
SELECT id, tenant_id, workflow_id, event_type, payload, idempotency_key, occurred_at, schema_version, created_at
FROM events
WHERE tenant_id = $1 AND workflow_id = $2
ORDER BY occurred_at
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var e event.Event
	var payload []byte
	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.WorkflowID,
		&e.EventType,
		&payload,
		&e.IdempotencyKey,
		&e.OccurredAt,
		&e.SchemaVersion,
		&e.CreatedAt,
	); err != nil {
		return event.Event{}, err
	}
	var err error
	e.Payload, err = fromJSONB(payload)
	return e, err
}

// Directory resolves tenants and workflows for ingestion validation.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetTenant(ctx context.Context, id uuid.UUID) (event.Tenant, bool, error) {
	const q = `SELECT id, name, is_active FROM tenants WHERE id = $1`
	var t event.Tenant
	if err := d.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Tenant{}, false, nil
		}
		return event.Tenant{}, false, err
	}
	return t, true, nil
}

func (d *Directory) GetWorkflow(ctx context.Context, id uuid.UUID) (event.Workflow, bool, error) {
	const q = `SELECT id, tenant_id, name, is_active FROM workflows WHERE id = $1`
	var w event.Workflow
	if err := d.db.QueryRowContext(ctx, q, id).Scan(&w.ID, &w.TenantID, &w.Name, &w.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Workflow{}, false, nil
		}
		return event.Workflow{}, false, err
	}
	return w, true, nil
}
