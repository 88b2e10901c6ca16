package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestAppend_RequiresIncidentAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if _, err := svc.Append(ctx, Decision{Type: TypeManual}); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("missing incident: got %v", err)
	}
	if _, err := svc.Append(ctx, Decision{IncidentID: uuid.New()}); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("missing type: got %v", err)
	}
}

func TestRecordRuleBased_PopulatesEntry(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	incidentID := uuid.New()
	d, err := svc.RecordRuleBased(ctx, incidentID, "transient", "retry within budget", 1.0, map[string]any{"retry_count": 1})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if d.ID == uuid.Nil || d.CreatedAt.IsZero() {
		t.Fatalf("entry not fully populated: %+v", d)
	}

	logged, err := repo.ListByIncident(ctx, incidentID)
	if err != nil || len(logged) != 1 {
		t.Fatalf("expected 1 entry, got %d (err %v)", len(logged), err)
	}
	if logged[0].RuleTriggered != "transient" || logged[0].Type != TypeRuleBased {
		t.Fatalf("unexpected entry: %+v", logged[0])
	}
}

func TestListByIncident_Isolates(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	if _, err := svc.RecordManual(ctx, a, "operator override", nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := svc.RecordManual(ctx, b, "other incident", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	logged, _ := repo.ListByIncident(ctx, a)
	if len(logged) != 1 || logged[0].Reasoning != "operator override" {
		t.Fatalf("incident a log polluted: %+v", logged)
	}
}
