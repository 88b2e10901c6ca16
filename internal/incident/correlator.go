package incident

import (
	"context"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/rules"
)

// Correlation parameters. The window slides against "now", not against event
// occurrence times: correlation reflects detection time.
const (
	CorrelationWindow   = 30 * time.Minute
	EscalationThreshold = 10
)

// Repository is the persistence contract for incidents.
//
// ActiveBySignature only returns open incidents (not Resolved, not Ignored)
// for the tenant and signature; the correlator applies the time window on
// top. AppendEvent must be one atomic, idempotent operation: concurrent
// correlation of two events into the same incident must not lose either.
type Repository interface {
	Create(ctx context.Context, inc Incident) (Incident, error)
	Get(ctx context.Context, id uuid.UUID) (Incident, bool, error)
	ActiveBySignature(ctx context.Context, tenantID uuid.UUID, signature string) ([]Incident, error)
	AppendEvent(ctx context.Context, incidentID, eventID uuid.UUID, at time.Time) (Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, metadataPatch map[string]any) (Incident, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, status Status) ([]Incident, error)
}

// Correlator decides whether a signature extends an existing incident.
type Correlator struct {
	repo  Repository
	clock func() time.Time
}

func NewCorrelator(repo Repository) *Correlator {
	return &Correlator{repo: repo, clock: time.Now}
}

// FindRelatedIncident returns the open incident for (tenant, signature)
// whose last occurrence falls inside the correlation window, or false when
// the caller should create a fresh one. Resolved and Ignored incidents never
// match. Among multiple candidates the most recently created wins.
func (c *Correlator) FindRelatedIncident(ctx context.Context, signature string, tenantID uuid.UUID) (Incident, bool, error) {
	threshold := c.clock().UTC().Add(-CorrelationWindow)

	candidates, err := c.repo.ActiveBySignature(ctx, tenantID, signature)
	if err != nil {
		return Incident{}, false, err
	}

	var best Incident
	found := false
	for _, inc := range candidates {
		if !inc.Open() {
			continue
		}
		if inc.LastOccurrenceAt.Before(threshold) {
			continue
		}
		if !found || inc.CreatedAt.After(best.CreatedAt) {
			best = inc
			found = true
		}
	}
	return best, found, nil
}

// AddEventToIncident appends the event and bumps last_occurrence_at to
// "now". Idempotent: re-adding a correlated event changes nothing.
func (c *Correlator) AddEventToIncident(ctx context.Context, inc Incident, eventID uuid.UUID) (Incident, error) {
	if inc.HasEvent(eventID) {
		return inc, nil
	}
	return c.repo.AppendEvent(ctx, inc.ID, eventID, c.clock().UTC())
}

// ShouldEscalate signals that the incident warrants escalation: enough
// correlated events, or critical severity. Already-escalated incidents do
// not re-signal. This is a signal only; the lifecycle manager performs the
// actual transition.
func (c *Correlator) ShouldEscalate(inc Incident) bool {
	if inc.Status == StatusEscalated {
		return false
	}
	if len(inc.CorrelatedEventIDs) >= EscalationThreshold {
		return true
	}
	return inc.Severity == rules.SeverityCritical
}
