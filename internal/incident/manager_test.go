package incident

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func managedIncident(t *testing.T, repo *MemoryRepo, status Status) Incident {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	return seedIncident(t, repo, uuid.New(), "sig-"+uuid.NewString(), status, now)
}

func TestManager_HappyPath(t *testing.T) {
	repo := NewMemoryRepo()
	m := NewManager(repo)
	ctx := context.Background()

	inc := managedIncident(t, repo, StatusDetected)

	inc, err := m.TransitionToAnalyzing(ctx, inc.ID)
	if err != nil || inc.Status != StatusAnalyzing {
		t.Fatalf("analyze: status=%q err=%v", inc.Status, err)
	}

	inc, err = m.Resolve(ctx, inc.ID, "root cause fixed")
	if err != nil || inc.Status != StatusResolved {
		t.Fatalf("resolve: status=%q err=%v", inc.Status, err)
	}
	if inc.Metadata["resolution_notes"] != "root cause fixed" {
		t.Fatalf("resolution notes not recorded: %v", inc.Metadata)
	}
}

func TestManager_EscalateRecordsReason(t *testing.T) {
	repo := NewMemoryRepo()
	m := NewManager(repo)

	inc := managedIncident(t, repo, StatusDetected)
	inc, err := m.Escalate(context.Background(), inc.ID, "correlation threshold")
	if err != nil || inc.Status != StatusEscalated {
		t.Fatalf("escalate: status=%q err=%v", inc.Status, err)
	}
	if inc.Metadata["escalation_reason"] != "correlation threshold" {
		t.Fatalf("escalation reason not recorded")
	}
}

func TestManager_InvalidTransitionIsNoop(t *testing.T) {
	repo := NewMemoryRepo()
	m := NewManager(repo)
	ctx := context.Background()

	resolved := managedIncident(t, repo, StatusResolved)

	inc, err := m.Escalate(ctx, resolved.ID, "too late")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if inc.Status != StatusResolved {
		t.Fatalf("resolved incident must stay resolved, got %q", inc.Status)
	}

	inc, err = m.Ignore(ctx, resolved.ID, "noise")
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if inc.Status != StatusResolved {
		t.Fatalf("resolved and ignored are not reachable from each other")
	}
}

func TestManager_EscalatedCanStillClose(t *testing.T) {
	repo := NewMemoryRepo()
	m := NewManager(repo)

	inc := managedIncident(t, repo, StatusEscalated)
	inc, err := m.Resolve(context.Background(), inc.ID, "handled by on-call")
	if err != nil || inc.Status != StatusResolved {
		t.Fatalf("escalated incidents must be resolvable: status=%q err=%v", inc.Status, err)
	}
}

func TestManager_MissingIncident(t *testing.T) {
	m := NewManager(NewMemoryRepo())

	_, err := m.Resolve(context.Background(), uuid.New(), "")
	if !errors.Is(err, ErrIncidentNotFound) {
		t.Fatalf("expected ErrIncidentNotFound, got %v", err)
	}
}
