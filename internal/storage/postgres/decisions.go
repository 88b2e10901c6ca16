package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"resilience-platform/internal/decision"
)

// DecisionRepo is the Postgres decision log. Append-only: the table has no
// update path and none is exposed here.
type DecisionRepo struct {
	db *sql.DB
}

func NewDecisionRepo(db *sql.DB) *DecisionRepo {
	return &DecisionRepo{db: db}
}

func (r *DecisionRepo) Append(ctx context.Context, d decision.Decision) error {
	metadata, err := toJSONB(d.Metadata)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO decisions (id, incident_id, decision_type, rule_triggered, confidence_score, reasoning, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err = r.db.ExecContext(ctx, q,
		d.ID, d.IncidentID, d.Type, d.RuleTriggered, d.ConfidenceScore, d.Reasoning, metadata, d.CreatedAt,
	)
	return err
}

func (r *DecisionRepo) ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]decision.Decision, error) {
	const q = `
SELECT id, incident_id, decision_type, rule_triggered, confidence_score, reasoning, metadata, created_at
FROM decisions
WHERE incident_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []decision.Decision
	for rows.Next() {
		var d decision.Decision
		var metadata []byte
		if err := rows.Scan(&d.ID, &d.IncidentID, &d.Type, &d.RuleTriggered, &d.ConfidenceScore, &d.Reasoning, &metadata, &d.CreatedAt); err != nil {
			return nil, err
		}
		if d.Metadata, err = fromJSONB(metadata); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ decision.Repository = (*DecisionRepo)(nil)
