package retry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/action"
	"resilience-platform/internal/decision"
	"resilience-platform/internal/incident"
	"resilience-platform/internal/metrics"
	"resilience-platform/internal/rules"
	"resilience-platform/internal/safety"
	"resilience-platform/internal/vendorguard"
)

type fixture struct {
	coordinator *Coordinator
	vendors     *vendorguard.MemoryRepo
	actions     *action.MemoryRepo
	decisions   *decision.MemoryRepo
	store       *safety.MemoryCounterStore
	limiter     *safety.Limiter
	breaker     *vendorguard.Breaker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tables := rules.Tables{
		ErrorCodes: map[string]rules.ErrorCodeDef{
			"timeout":       {Severity: rules.SeverityMedium, RetryPolicy: "transient"},
			"card_declined": {Severity: rules.SeverityLow},
		},
		RetryPolicies: map[string]rules.RetryPolicy{
			"transient": {Retryable: true, MaxRetries: 3, InitialDelaySeconds: 1, MaxDelaySeconds: 60, BackoffMultiplier: 2},
		},
	}
	engine := rules.NewEngine(tables, rand.New(rand.NewSource(1)))

	store := safety.NewMemoryCounterStore()
	limiter := safety.NewLimiter(store, safety.LimiterConfig{MaxRetriesPerWorkflow: 2, MaxRetriesPerVendor: 100, FailOpen: true})

	overrides, err := vendorguard.LoadOverrides(t.TempDir(), 10, 5*time.Minute, 100)
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	vendors := vendorguard.NewMemoryRepo()
	breaker := vendorguard.NewBreaker(vendors, overrides)

	decisions := decision.NewMemoryRepo()
	actions := action.NewMemoryRepo()

	return &fixture{
		coordinator: NewCoordinator(engine, limiter, breaker, decision.NewService(decisions), actions),
		vendors:     vendors,
		actions:     actions,
		decisions:   decisions,
		store:       store,
		limiter:     limiter,
		breaker:     breaker,
	}
}

func testIncident(workflowID, vendorID *uuid.UUID) incident.Incident {
	return incident.Incident{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		WorkflowID: workflowID,
		VendorID:   vendorID,
		Status:     incident.StatusDetected,
	}
}

func TestEvaluateRetry_SchedulesActionAndDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf := uuid.New()
	inc := testIncident(&wf, nil)

	verdict, err := f.coordinator.EvaluateRetry(ctx, inc, "timeout", 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Allowed {
		t.Fatalf("expected retry allowed, denied by %q", verdict.DeniedBy)
	}
	if verdict.Action == nil || verdict.Action.Type != action.TypeRetry || verdict.Action.Status != action.StatusPending {
		t.Fatalf("expected a pending retry action: %+v", verdict.Action)
	}
	if verdict.Action.Parameters["backoff_seconds"] == nil {
		t.Fatalf("backoff missing from action parameters")
	}
	if verdict.Action.DecisionID != verdict.Decision.ID {
		t.Fatalf("action must reference the decision")
	}

	logged, err := f.decisions.ListByIncident(ctx, inc.ID)
	if err != nil || len(logged) != 1 {
		t.Fatalf("expected 1 decision, got %d (err %v)", len(logged), err)
	}
	if logged[0].Type != decision.TypeRuleBased {
		t.Fatalf("expected rule_based decision, got %q", logged[0].Type)
	}
}

func TestEvaluateRetry_DeniedByRules(t *testing.T) {
	f := newFixture(t)

	wf := uuid.New()
	verdict, err := f.coordinator.EvaluateRetry(context.Background(), testIncident(&wf, nil), "card_declined", 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("non-retryable code must be denied")
	}
	if verdict.DeniedBy != metrics.GateRules {
		t.Fatalf("expected rules gate, got %q", verdict.DeniedBy)
	}
	if verdict.Action != nil {
		t.Fatalf("denied verdicts must not schedule actions")
	}
}

func TestEvaluateRetry_DeniedByWorkflowLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf := uuid.New()
	inc := testIncident(&wf, nil)

	// Burn the workflow budget (limit 2).
	for i := 0; i < 2; i++ {
		verdict, err := f.coordinator.EvaluateRetry(ctx, inc, "timeout", i)
		if err != nil || !verdict.Allowed {
			t.Fatalf("warmup %d: allowed=%v err=%v", i, verdict.Allowed, err)
		}
	}

	verdict, err := f.coordinator.EvaluateRetry(ctx, inc, "timeout", 2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("workflow budget spent; retry must be denied")
	}
	if verdict.DeniedBy != metrics.GateWorkflow {
		t.Fatalf("expected workflow gate, got %q", verdict.DeniedBy)
	}
}

func TestEvaluateRetry_DeniedByOpenBreaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vendor, err := f.vendors.Create(ctx, vendorguard.Vendor{
		ID:           uuid.New(),
		Name:         "stripe",
		BreakerState: vendorguard.StateOpen,
	})
	if err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	wf := uuid.New()
	verdict, err := f.coordinator.EvaluateRetry(ctx, testIncident(&wf, &vendor.ID), "timeout", 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("open breaker must deny retries")
	}
	if verdict.DeniedBy != metrics.GateBreaker {
		t.Fatalf("expected breaker gate, got %q", verdict.DeniedBy)
	}
}

func TestEvaluateRetry_DeniedRetryDoesNotBurnBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf := uuid.New()
	inc := testIncident(&wf, nil)

	// Denied by rules; must not consume the workflow budget.
	for i := 0; i < 5; i++ {
		if v, _ := f.coordinator.EvaluateRetry(ctx, inc, "card_declined", 0); v.Allowed {
			t.Fatalf("card_declined should never retry")
		}
	}

	verdict, err := f.coordinator.EvaluateRetry(ctx, inc, "timeout", 0)
	if err != nil || !verdict.Allowed {
		t.Fatalf("budget should be untouched: allowed=%v err=%v", verdict.Allowed, err)
	}
}
