package decision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for decisions.
//
// It MUST be append-only. No Update/Delete methods are provided by design;
// the decision log is the audit trail for every automated and manual call
// the system makes.
type Repository interface {
	Append(ctx context.Context, d Decision) error
	ListByIncident(ctx context.Context, incidentID uuid.UUID) ([]Decision, error)
}

// Service records why actions were or were not taken.
//
// Callers should treat decision logging as mandatory for automated flows:
// an action without a decision breaks the audit invariant that every action
// references exactly one decision.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidDecision = errors.New("decision: invalid decision")

func (s *Service) Append(ctx context.Context, d Decision) (Decision, error) {
	if s.repo == nil {
		return Decision{}, errors.New("decision: repository not configured")
	}
	if d.IncidentID == uuid.Nil {
		return Decision{}, ErrInvalidDecision
	}
	if d.Type == "" {
		return Decision{}, ErrInvalidDecision
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.clock().UTC()
	}
	return d, s.repo.Append(ctx, d)
}

// RecordRuleBased logs an automated rule-engine verdict for an incident.
func (s *Service) RecordRuleBased(ctx context.Context, incidentID uuid.UUID, ruleTriggered, reasoning string, confidence float64, metadata map[string]any) (Decision, error) {
	return s.Append(ctx, Decision{
		IncidentID:      incidentID,
		Type:            TypeRuleBased,
		RuleTriggered:   ruleTriggered,
		ConfidenceScore: confidence,
		Reasoning:       reasoning,
		Metadata:        metadata,
	})
}

// RecordAIAssisted logs a model-derived classification for an incident.
func (s *Service) RecordAIAssisted(ctx context.Context, incidentID uuid.UUID, reasoning string, confidence float64, metadata map[string]any) (Decision, error) {
	return s.Append(ctx, Decision{
		IncidentID:      incidentID,
		Type:            TypeAIAssisted,
		ConfidenceScore: confidence,
		Reasoning:       reasoning,
		Metadata:        metadata,
	})
}

// RecordManual logs an operator-driven decision for an incident.
func (s *Service) RecordManual(ctx context.Context, incidentID uuid.UUID, reasoning string, metadata map[string]any) (Decision, error) {
	return s.Append(ctx, Decision{
		IncidentID:      incidentID,
		Type:            TypeManual,
		ConfidenceScore: 1.0,
		Reasoning:       reasoning,
		Metadata:        metadata,
	})
}
