package incident

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedIncident(t *testing.T, repo *MemoryRepo, tenantID uuid.UUID, sig string, status Status, lastAt time.Time) Incident {
	t.Helper()
	inc, err := repo.Create(context.Background(), Incident{
		ID:                uuid.New(),
		TenantID:          tenantID,
		ErrorSignature:    sig,
		Status:            status,
		Severity:          "medium",
		FirstOccurrenceAt: lastAt,
		LastOccurrenceAt:  lastAt,
		CreatedAt:         lastAt,
		UpdatedAt:         lastAt,
	})
	if err != nil {
		t.Fatalf("seed incident: %v", err)
	}
	return inc
}

func TestFindRelatedIncident_WindowBoundary(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCorrelator(repo)

	now := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return now }

	tenant := uuid.New()
	inside := seedIncident(t, repo, tenant, "sig-inside", StatusDetected, now.Add(-29*time.Minute))
	seedIncident(t, repo, tenant, "sig-outside", StatusDetected, now.Add(-30*time.Minute-time.Second))

	got, found, err := c.FindRelatedIncident(context.Background(), "sig-inside", tenant)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found || got.ID != inside.ID {
		t.Fatalf("expected in-window incident to match")
	}

	if _, found, _ := c.FindRelatedIncident(context.Background(), "sig-outside", tenant); found {
		t.Fatalf("stale incident must not match")
	}
}

func TestFindRelatedIncident_TerminalStatusesNeverMatch(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCorrelator(repo)

	now := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return now }

	tenant := uuid.New()
	seedIncident(t, repo, tenant, "sig", StatusResolved, now)
	seedIncident(t, repo, tenant, "sig", StatusIgnored, now)

	if _, found, _ := c.FindRelatedIncident(context.Background(), "sig", tenant); found {
		t.Fatalf("resolved/ignored incidents must not absorb new events")
	}
}

func TestFindRelatedIncident_MostRecentlyCreatedWins(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCorrelator(repo)

	now := time.Unix(1700000000, 0).UTC()
	c.clock = func() time.Time { return now }

	tenant := uuid.New()
	seedIncident(t, repo, tenant, "sig", StatusDetected, now.Add(-10*time.Minute))
	newer := seedIncident(t, repo, tenant, "sig", StatusDetected, now.Add(-time.Minute))

	got, found, err := c.FindRelatedIncident(context.Background(), "sig", tenant)
	if err != nil || !found {
		t.Fatalf("expected a match, err=%v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected most recently created incident")
	}
}

func TestAddEventToIncident_IdempotentAndBumpsWindow(t *testing.T) {
	repo := NewMemoryRepo()
	c := NewCorrelator(repo)

	start := time.Unix(1700000000, 0).UTC()
	now := start
	c.clock = func() time.Time { return now }

	tenant := uuid.New()
	inc := seedIncident(t, repo, tenant, "sig", StatusDetected, start)

	eventID := uuid.New()
	now = start.Add(5 * time.Minute)
	inc, err := c.AddEventToIncident(context.Background(), inc, eventID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(inc.CorrelatedEventIDs) != 1 {
		t.Fatalf("expected 1 correlated event, got %d", len(inc.CorrelatedEventIDs))
	}
	if !inc.LastOccurrenceAt.Equal(now) {
		t.Fatalf("expected last occurrence bumped to now")
	}

	again, err := c.AddEventToIncident(context.Background(), inc, eventID)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if len(again.CorrelatedEventIDs) != 1 {
		t.Fatalf("re-adding the same event must be a no-op")
	}
}

func TestShouldEscalate(t *testing.T) {
	c := NewCorrelator(NewMemoryRepo())

	ids := make([]uuid.UUID, EscalationThreshold)
	for i := range ids {
		ids[i] = uuid.New()
	}

	if !c.ShouldEscalate(Incident{Status: StatusDetected, CorrelatedEventIDs: ids}) {
		t.Fatalf("threshold events should escalate")
	}
	if c.ShouldEscalate(Incident{Status: StatusEscalated, CorrelatedEventIDs: ids}) {
		t.Fatalf("escalated incidents must not re-signal")
	}
	if !c.ShouldEscalate(Incident{Status: StatusDetected, Severity: "critical"}) {
		t.Fatalf("critical severity should escalate regardless of count")
	}
	if c.ShouldEscalate(Incident{Status: StatusDetected, CorrelatedEventIDs: ids[:3]}) {
		t.Fatalf("three events should not escalate")
	}
}
