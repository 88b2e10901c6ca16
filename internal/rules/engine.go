package rules

import (
	"fmt"
	"math"
	"math/rand"
)

const defaultPolicyName = "default"

// Engine evaluates error codes against the static rule tables.
//
// Contract:
// - Stateless lookups over immutable tables; safe for concurrent use so long
//   as the RNG is not shared with other writers.
// - Unknown error codes fall back to severity medium and the "default"
//   policy, which never retries.
// - No side effects. The engine decides; callers act.
type Engine struct {
	tables Tables

	// rng is injectable so backoff tests can pin the jitter draw.
	rng *rand.Rand
}

func NewEngine(tables Tables, rng *rand.Rand) *Engine {
	return &Engine{tables: tables, rng: rng}
}

var defaultPolicy = RetryPolicy{
	Retryable:           false,
	MaxRetries:          0,
	InitialDelaySeconds: 1.0,
	MaxDelaySeconds:     300.0,
	BackoffMultiplier:   2.0,
}

// EvaluateError decides whether an error occurrence should be retried and
// what to do when it should not.
func (e *Engine) EvaluateError(errorCode string, ctx ErrorContext) Evaluation {
	severity := e.ErrorSeverity(errorCode)
	policyName, policy := e.lookupPolicy(errorCode)

	shouldRetry := policy.Retryable && ctx.RetryCount < policy.MaxRetries

	backoff := 0.0
	if shouldRetry {
		backoff = e.CalculateBackoff(errorCode, ctx.RetryCount).TotalDelay
	}

	action := ActionNotify
	switch {
	case shouldRetry:
		action = ActionRetry
	case severity == SeverityHigh || severity == SeverityCritical:
		action = ActionEscalate
	}

	return Evaluation{
		ShouldRetry:       shouldRetry,
		RecommendedAction: action,
		BackoffSeconds:    backoff,
		Severity:          severity,
		RuleTriggered:     policyName,
		Reasoning:         fmt.Sprintf("error code %q evaluated with policy %q", errorCode, policyName),
	}
}

// ShouldRetry answers just the retry question without computing backoff.
func (e *Engine) ShouldRetry(errorCode string, retryCount int) bool {
	_, policy := e.lookupPolicy(errorCode)
	return policy.Retryable && retryCount < policy.MaxRetries
}

// CalculateBackoff computes exponential backoff with symmetric jitter.
// delay = min(initial * multiplier^retryCount, max), jittered by a uniform
// draw in +-20% of the base, clamped at zero. The distribution is the
// contract, not the exact value.
func (e *Engine) CalculateBackoff(errorCode string, retryCount int) Backoff {
	_, policy := e.lookupPolicy(errorCode)

	initial := policy.InitialDelaySeconds
	if initial <= 0 {
		initial = defaultPolicy.InitialDelaySeconds
	}
	maxDelay := policy.MaxDelaySeconds
	if maxDelay <= 0 {
		maxDelay = defaultPolicy.MaxDelaySeconds
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = defaultPolicy.BackoffMultiplier
	}

	base := math.Min(initial*math.Pow(multiplier, float64(retryCount)), maxDelay)

	jitter := base * 0.2 * (2*e.draw() - 1)
	total := math.Max(0, base+jitter)

	return Backoff{
		BaseDelay:  base,
		Jitter:     jitter,
		TotalDelay: total,
		RetryCount: retryCount,
	}
}

// ErrorSeverity is a pure lookup with a medium default.
func (e *Engine) ErrorSeverity(errorCode string) Severity {
	def, ok := e.tables.ErrorCodes[errorCode]
	if !ok || !def.Severity.Valid() {
		return SeverityMedium
	}
	return def.Severity
}

func (e *Engine) lookupPolicy(errorCode string) (string, RetryPolicy) {
	name := defaultPolicyName
	if def, ok := e.tables.ErrorCodes[errorCode]; ok && def.RetryPolicy != "" {
		name = def.RetryPolicy
	}
	if policy, ok := e.tables.RetryPolicies[name]; ok {
		return name, policy
	}
	return defaultPolicyName, defaultPolicy
}

func (e *Engine) draw() float64 {
	if e.rng != nil {
		return e.rng.Float64()
	}
	return rand.Float64()
}
