package incident

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/event"
	"resilience-platform/internal/rules"
	"resilience-platform/internal/signature"
)

func testEngine() *rules.Engine {
	tables := rules.Tables{
		ErrorCodes: map[string]rules.ErrorCodeDef{
			"timeout":     {Severity: rules.SeverityMedium},
			"auth_broken": {Severity: rules.SeverityCritical},
		},
		RetryPolicies: map[string]rules.RetryPolicy{},
	}
	return rules.NewEngine(tables, rand.New(rand.NewSource(1)))
}

func newTestDetector(repo *MemoryRepo) *Detector {
	return NewDetector(repo, signature.NewGenerator(), NewCorrelator(repo), testEngine())
}

func failureEvent(tenantID uuid.UUID, errCode, msg string) event.Event {
	return event.Event{
		ID:         uuid.New(),
		TenantID:   tenantID,
		WorkflowID: uuid.New(),
		EventType:  "payment.failed",
		Payload: map[string]any{
			"error_code":    errCode,
			"vendor":        "stripe",
			"error_message": msg,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func TestDetectFailure(t *testing.T) {
	d := newTestDetector(NewMemoryRepo())

	cases := []struct {
		name string
		e    event.Event
		want bool
	}{
		{"failure keyword in type", event.Event{EventType: "payment.failed"}, true},
		{"timeout keyword", event.Event{EventType: "api_call.timeout"}, true},
		{"error code in payload", event.Event{EventType: "step.completed", Payload: map[string]any{"error_code": "x"}}, true},
		{"failing status", event.Event{EventType: "step.completed", Payload: map[string]any{"status": "failed"}}, true},
		{"clean success", event.Event{EventType: "step.completed", Payload: map[string]any{"status": "ok"}}, false},
		{"no payload", event.Event{EventType: "workflow.started"}, false},
	}
	for _, tc := range cases {
		if got := d.DetectFailure(tc.e); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestProcessEvent_CreatesThenCorrelates(t *testing.T) {
	repo := NewMemoryRepo()
	d := newTestDetector(repo)

	ctx := context.Background()
	tenant := uuid.New()

	first, processed, err := d.ProcessEvent(ctx, failureEvent(tenant, "timeout", "request timed out"))
	if err != nil || !processed {
		t.Fatalf("first event: processed=%v err=%v", processed, err)
	}
	if !first.Created {
		t.Fatalf("first event should open an incident")
	}
	if first.Incident.Status != StatusDetected {
		t.Fatalf("new incident should be detected, got %q", first.Incident.Status)
	}

	second, processed, err := d.ProcessEvent(ctx, failureEvent(tenant, "timeout", "request timed out"))
	if err != nil || !processed {
		t.Fatalf("second event: processed=%v err=%v", processed, err)
	}
	if second.Created {
		t.Fatalf("matching signature should correlate, not create")
	}
	if second.Incident.ID != first.Incident.ID {
		t.Fatalf("expected the same incident")
	}
}

func TestProcessEvent_NonFailureIgnored(t *testing.T) {
	d := newTestDetector(NewMemoryRepo())

	_, processed, err := d.ProcessEvent(context.Background(), event.Event{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		EventType: "workflow.started",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed {
		t.Fatalf("non-failure events must not touch incidents")
	}
}

func TestProcessEvent_EscalatesAtThreshold(t *testing.T) {
	repo := NewMemoryRepo()
	d := newTestDetector(repo)

	ctx := context.Background()
	tenant := uuid.New()

	var last ProcessResult
	for i := 0; i < EscalationThreshold; i++ {
		result, processed, err := d.ProcessEvent(ctx, failureEvent(tenant, "timeout", "request timed out"))
		if err != nil || !processed {
			t.Fatalf("event %d: processed=%v err=%v", i, processed, err)
		}
		last = result
	}

	if !last.ShouldEscalate {
		t.Fatalf("expected escalation signal after %d correlated events", EscalationThreshold)
	}
}

func TestProcessEvent_CriticalSeverityEscalatesImmediately(t *testing.T) {
	repo := NewMemoryRepo()
	d := newTestDetector(repo)

	result, processed, err := d.ProcessEvent(context.Background(), failureEvent(uuid.New(), "auth_broken", "auth misconfigured"))
	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}
	if result.Incident.Severity != rules.SeverityCritical {
		t.Fatalf("expected critical severity, got %q", result.Incident.Severity)
	}
	if !result.ShouldEscalate {
		t.Fatalf("critical incidents escalate on the first event")
	}
}

func TestTenantsDoNotShareIncidents(t *testing.T) {
	repo := NewMemoryRepo()
	d := newTestDetector(repo)

	ctx := context.Background()
	a, _, _ := d.ProcessEvent(ctx, failureEvent(uuid.New(), "timeout", "request timed out"))
	b, _, _ := d.ProcessEvent(ctx, failureEvent(uuid.New(), "timeout", "request timed out"))

	if a.Incident.ID == b.Incident.ID {
		t.Fatalf("tenants must get separate incidents for the same signature")
	}
	if !a.Created || !b.Created {
		t.Fatalf("both tenants should open fresh incidents")
	}
}
