package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/action"
	"resilience-platform/internal/decision"
	"resilience-platform/internal/incident"
	"resilience-platform/internal/metrics"
	"resilience-platform/internal/rules"
	"resilience-platform/internal/safety"
	"resilience-platform/internal/vendorguard"
	"resilience-platform/pkg/logger"
)

// Verdict is the outcome of one retry evaluation.
//
// DeniedBy carries the gate label when Allowed is false; Action is the
// scheduled retry action when Allowed is true. Every verdict, allowed or
// denied, is backed by a decision log entry.
type Verdict struct {
	Allowed    bool
	DeniedBy   string
	Evaluation rules.Evaluation
	Decision   decision.Decision
	Action     *action.Action
}

// Coordinator runs the retry safety gauntlet.
//
// The gate order is fixed and short-circuiting: rule engine, workflow
// retry limit, vendor retry limit, circuit breaker. Counters are only
// consumed after every gate has passed, so a denied evaluation never
// burns retry budget.
type Coordinator struct {
	engine    *rules.Engine
	limiter   *safety.Limiter
	breaker   *vendorguard.Breaker
	decisions *decision.Service
	actions   action.Repository
	clock     func() time.Time
}

func NewCoordinator(engine *rules.Engine, limiter *safety.Limiter, breaker *vendorguard.Breaker, decisions *decision.Service, actions action.Repository) *Coordinator {
	return &Coordinator{
		engine:    engine,
		limiter:   limiter,
		breaker:   breaker,
		decisions: decisions,
		actions:   actions,
		clock:     time.Now,
	}
}

// EvaluateRetry decides whether the incident's workflow should retry, and
// when it should, schedules a pending retry action with the computed
// backoff.
func (c *Coordinator) EvaluateRetry(ctx context.Context, inc incident.Incident, errorCode string, retryCount int) (Verdict, error) {
	log := logger.From(ctx)

	eval := c.engine.EvaluateError(errorCode, rules.ErrorContext{
		ErrorCode:  errorCode,
		RetryCount: retryCount,
	})

	if !eval.ShouldRetry {
		return c.deny(ctx, inc, eval, metrics.GateRules,
			fmt.Sprintf("rule %q does not permit retry %d of error %q", eval.RuleTriggered, retryCount+1, errorCode))
	}

	if inc.WorkflowID != nil && !c.limiter.CheckWorkflowRetryLimit(ctx, *inc.WorkflowID) {
		return c.deny(ctx, inc, eval, metrics.GateWorkflow,
			fmt.Sprintf("workflow %s exhausted its hourly retry budget", inc.WorkflowID))
	}

	if inc.VendorID != nil {
		if !c.limiter.CheckVendorRetryLimit(ctx, *inc.VendorID) {
			return c.deny(ctx, inc, eval, metrics.GateVendor,
				fmt.Sprintf("vendor %s exhausted its hourly retry budget", inc.VendorID))
		}
		if !c.breaker.ShouldAllowRequest(ctx, *inc.VendorID) {
			return c.deny(ctx, inc, eval, metrics.GateBreaker,
				fmt.Sprintf("circuit breaker open for vendor %s", inc.VendorID))
		}
	}

	dec, err := c.decisions.RecordRuleBased(ctx, inc.ID, eval.RuleTriggered, eval.Reasoning, 1.0, map[string]any{
		"error_code":      errorCode,
		"retry_count":     retryCount,
		"backoff_seconds": eval.BackoffSeconds,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("retry: record decision: %w", err)
	}

	now := c.clock().UTC()
	act, err := c.actions.Create(ctx, action.Action{
		ID:         uuid.New(),
		DecisionID: dec.ID,
		Type:       action.TypeRetry,
		Status:     action.StatusPending,
		Parameters: map[string]any{
			"incident_id":     inc.ID.String(),
			"error_code":      errorCode,
			"retry_count":     retryCount + 1,
			"backoff_seconds": eval.BackoffSeconds,
			"execute_after":   now.Add(time.Duration(eval.BackoffSeconds * float64(time.Second))).Format(time.RFC3339),
		},
		IsReversible: false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("retry: create action: %w", err)
	}

	if inc.WorkflowID != nil {
		c.limiter.IncrementWorkflowRetryCount(ctx, *inc.WorkflowID)
	}
	if inc.VendorID != nil {
		c.limiter.IncrementVendorRetryCount(ctx, *inc.VendorID)
	}

	metrics.RetryScheduled()
	log.Info("retry scheduled",
		"incident_id", inc.ID,
		"error_code", errorCode,
		"retry_count", retryCount+1,
		"backoff_seconds", eval.BackoffSeconds,
	)

	return Verdict{Allowed: true, Evaluation: eval, Decision: dec, Action: &act}, nil
}

func (c *Coordinator) deny(ctx context.Context, inc incident.Incident, eval rules.Evaluation, gate, reason string) (Verdict, error) {
	metrics.RetryDenied(gate)
	logger.From(ctx).Info("retry denied",
		"incident_id", inc.ID,
		"gate", gate,
		"reason", reason,
	)

	dec, err := c.decisions.RecordRuleBased(ctx, inc.ID, eval.RuleTriggered, reason, 1.0, map[string]any{
		"denied_by": gate,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("retry: record decision: %w", err)
	}
	return Verdict{Allowed: false, DeniedBy: gate, Evaluation: eval, Decision: dec}, nil
}
