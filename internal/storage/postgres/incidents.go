package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/incident"
)

// IncidentRepo is the Postgres incident store.
//
// AppendEvent and UpdateStatus are single-statement updates so concurrent
// correlators cannot interleave half-applied writes.
type IncidentRepo struct {
	db *sql.DB
}

func NewIncidentRepo(db *sql.DB) *IncidentRepo {
	return &IncidentRepo{db: db}
}

const incidentColumns = `
id, tenant_id, vendor_id, workflow_id, error_signature, status, severity,
correlated_event_ids, first_occurrence_at, last_occurrence_at, metadata,
created_at, updated_at`

func (r *IncidentRepo) Create(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	eventIDs, err := json.Marshal(inc.CorrelatedEventIDs)
	if err != nil {
		return incident.Incident{}, err
	}
	metadata, err := toJSONB(inc.Metadata)
	if err != nil {
		return incident.Incident{}, err
	}

	const q = `
INSERT INTO incidents (` + incidentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`
	_, err = r.db.ExecContext(ctx, q,
		inc.ID, inc.TenantID, inc.VendorID, inc.WorkflowID, inc.ErrorSignature, inc.Status, inc.Severity,
		eventIDs, inc.FirstOccurrenceAt, inc.LastOccurrenceAt, metadata, inc.CreatedAt, inc.UpdatedAt,
	)
	if err != nil {
		return incident.Incident{}, err
	}
	return inc, nil
}

func (r *IncidentRepo) Get(ctx context.Context, id uuid.UUID) (incident.Incident, bool, error) {
	const q = `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return incident.Incident{}, false, nil
		}
		return incident.Incident{}, false, err
	}
	return inc, true, nil
}

func (r *IncidentRepo) ActiveBySignature(ctx context.Context, tenantID uuid.UUID, signature string) ([]incident.Incident, error) {
	const q = `
SELECT ` + incidentColumns + `
FROM incidents
WHERE tenant_id = $1 AND error_signature = $2 AND status NOT IN ('resolved', 'ignored')
ORDER BY created_at DESC
`
	return r.list(ctx, q, tenantID, signature)
}

// AppendEvent correlates an event into an incident. The jsonb containment
// guard makes re-appending the same event a no-op that still returns the
// current row.
func (r *IncidentRepo) AppendEvent(ctx context.Context, incidentID, eventID uuid.UUID, at time.Time) (incident.Incident, error) {
	const q = `
UPDATE incidents
SET correlated_event_ids = CASE
        WHEN correlated_event_ids @> to_jsonb($2::text) THEN correlated_event_ids
        ELSE correlated_event_ids || to_jsonb($2::text)
    END,
    last_occurrence_at = GREATEST(last_occurrence_at, $3),
    updated_at = $3
WHERE id = $1
RETURNING ` + incidentColumns

	inc, err := scanIncident(r.db.QueryRowContext(ctx, q, incidentID, eventID.String(), at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return incident.Incident{}, incident.ErrIncidentNotFound
		}
		return incident.Incident{}, err
	}
	return inc, nil
}

func (r *IncidentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status incident.Status, metadataPatch map[string]any) (incident.Incident, error) {
	patch, err := toJSONB(metadataPatch)
	if err != nil {
		return incident.Incident{}, err
	}

	const q = `
UPDATE incidents
SET status = $2,
    metadata = metadata || $3,
    updated_at = now()
WHERE id = $1
RETURNING ` + incidentColumns

	inc, err := scanIncident(r.db.QueryRowContext(ctx, q, id, status, patch))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return incident.Incident{}, incident.ErrIncidentNotFound
		}
		return incident.Incident{}, err
	}
	return inc, nil
}

func (r *IncidentRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, status incident.Status) ([]incident.Incident, error) {
	const q = `
SELECT ` + incidentColumns + `
FROM incidents
WHERE tenant_id = $1 AND status = $2
ORDER BY created_at DESC
`
	return r.list(ctx, q, tenantID, status)
}

func (r *IncidentRepo) list(ctx context.Context, q string, args ...any) ([]incident.Incident, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanIncident(row rowScanner) (incident.Incident, error) {
	var inc incident.Incident
	var eventIDs, metadata []byte
	if err := row.Scan(
		&inc.ID,
		&inc.TenantID,
		&inc.VendorID,
		&inc.WorkflowID,
		&inc.ErrorSignature,
		&inc.Status,
		&inc.Severity,
		&eventIDs,
		&inc.FirstOccurrenceAt,
		&inc.LastOccurrenceAt,
		&metadata,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	); err != nil {
		return incident.Incident{}, err
	}

	if len(eventIDs) > 0 {
		if err := json.Unmarshal(eventIDs, &inc.CorrelatedEventIDs); err != nil {
			return incident.Incident{}, err
		}
	}
	var err error
	inc.Metadata, err = fromJSONB(metadata)
	return inc, err
}
