package incident

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"resilience-platform/pkg/logger"
)

var ErrIncidentNotFound = errors.New("incident: not found")

// Manager owns incident lifecycle transitions.
//
// The transition rules are intent-driven rather than a strict table:
//   Detected  -> Analyzing, Escalated, Resolved, Ignored
//   Analyzing -> Resolved, Escalated, Ignored
//   Escalated -> Resolved, Ignored    (manual closure after escalation)
//   Resolved  -> (terminal)
//   Ignored   -> (terminal)
// Resolved and Ignored are not reachable from each other. A disallowed
// transition is a logged no-op returning the unchanged incident, so a
// blindly retrying client cannot corrupt lifecycle integrity.
type Manager struct {
	repo Repository
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

func canTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusAnalyzing:
		return from == StatusDetected
	case StatusEscalated:
		return from == StatusDetected || from == StatusAnalyzing
	case StatusResolved:
		return from == StatusDetected || from == StatusAnalyzing || from == StatusEscalated
	case StatusIgnored:
		return from != StatusResolved && from != StatusIgnored
	default:
		return false
	}
}

// TransitionToAnalyzing moves a detected incident into analysis.
func (m *Manager) TransitionToAnalyzing(ctx context.Context, incidentID uuid.UUID) (Incident, error) {
	return m.transition(ctx, incidentID, StatusAnalyzing, nil)
}

// Resolve closes an incident, recording the resolution notes in metadata.
func (m *Manager) Resolve(ctx context.Context, incidentID uuid.UUID, notes string) (Incident, error) {
	return m.transition(ctx, incidentID, StatusResolved, map[string]any{"resolution_notes": notes})
}

// Escalate marks an incident escalated, recording the reason in metadata.
func (m *Manager) Escalate(ctx context.Context, incidentID uuid.UUID, reason string) (Incident, error) {
	return m.transition(ctx, incidentID, StatusEscalated, map[string]any{"escalation_reason": reason})
}

// Ignore suppresses an incident, recording the reason in metadata.
func (m *Manager) Ignore(ctx context.Context, incidentID uuid.UUID, reason string) (Incident, error) {
	return m.transition(ctx, incidentID, StatusIgnored, map[string]any{"ignore_reason": reason})
}

func (m *Manager) transition(ctx context.Context, incidentID uuid.UUID, to Status, metadataPatch map[string]any) (Incident, error) {
	inc, ok, err := m.repo.Get(ctx, incidentID)
	if err != nil {
		return Incident{}, err
	}
	if !ok {
		return Incident{}, ErrIncidentNotFound
	}

	if !canTransition(inc.Status, to) {
		logger.From(ctx).Warn("invalid incident transition rejected",
			"incident_id", incidentID,
			"from", inc.Status,
			"to", to,
		)
		return inc, nil
	}

	updated, err := m.repo.UpdateStatus(ctx, incidentID, to, metadataPatch)
	if err != nil {
		return Incident{}, err
	}
	logger.From(ctx).Info("incident transitioned",
		"incident_id", incidentID,
		"from", inc.Status,
		"to", to,
	)
	return updated, nil
}
