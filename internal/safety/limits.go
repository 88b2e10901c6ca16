package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resilience-platform/pkg/logger"
)

// Window lengths for the limit families.
const (
	retryWindow = time.Hour
	quotaWindow = 24 * time.Hour
)

// Tenant quota resources and their daily ceilings.
const (
	ResourceEvents    = "events"
	ResourceIncidents = "incidents"
	ResourceActions   = "actions"
)

var tenantQuotas = map[string]int64{
	ResourceEvents:    10000,
	ResourceIncidents: 1000,
	ResourceActions:   5000,
}

const defaultTenantQuota int64 = 10000

// LimiterConfig carries the retry ceilings and the store-error policy.
type LimiterConfig struct {
	MaxRetriesPerWorkflow int
	MaxRetriesPerVendor   int

	// FailOpen controls the policy branch taken when the counter store is
	// unreachable: true allows the operation (availability over strict
	// enforcement), false denies it. The shipped default is fail-open.
	FailOpen bool
}

// Limiter enforces the sliding-window retry ceilings and tenant quotas.
//
// Counter-store errors never propagate to callers; they resolve through the
// configured policy branch. Everything else about a check is a pure
// read-and-compare.
type Limiter struct {
	store CounterStore
	cfg   LimiterConfig
}

func NewLimiter(store CounterStore, cfg LimiterConfig) *Limiter {
	if cfg.MaxRetriesPerWorkflow <= 0 {
		cfg.MaxRetriesPerWorkflow = 5
	}
	if cfg.MaxRetriesPerVendor <= 0 {
		cfg.MaxRetriesPerVendor = 100
	}
	return &Limiter{store: store, cfg: cfg}
}

func workflowRetryKey(workflowID uuid.UUID) string {
	return fmt.Sprintf("safety:workflow_retries:%s", workflowID)
}

func vendorRetryKey(vendorID uuid.UUID) string {
	return fmt.Sprintf("safety:vendor_retries:%s", vendorID)
}

func tenantQuotaKey(tenantID uuid.UUID, resource string) string {
	return fmt.Sprintf("safety:tenant_quota:%s:%s", tenantID, resource)
}

// CheckWorkflowRetryLimit reports whether the workflow may retry again
// within the trailing hour.
func (l *Limiter) CheckWorkflowRetryLimit(ctx context.Context, workflowID uuid.UUID) bool {
	return l.underLimit(ctx, workflowRetryKey(workflowID), int64(l.cfg.MaxRetriesPerWorkflow))
}

// IncrementWorkflowRetryCount bumps the workflow retry counter.
// Returns the new count, or 0 when the store is unavailable.
func (l *Limiter) IncrementWorkflowRetryCount(ctx context.Context, workflowID uuid.UUID) int64 {
	return l.increment(ctx, workflowRetryKey(workflowID), retryWindow)
}

// CheckVendorRetryLimit reports whether the vendor may absorb another retry
// within the trailing hour.
func (l *Limiter) CheckVendorRetryLimit(ctx context.Context, vendorID uuid.UUID) bool {
	return l.underLimit(ctx, vendorRetryKey(vendorID), int64(l.cfg.MaxRetriesPerVendor))
}

// IncrementVendorRetryCount bumps the vendor retry counter.
func (l *Limiter) IncrementVendorRetryCount(ctx context.Context, vendorID uuid.UUID) int64 {
	return l.increment(ctx, vendorRetryKey(vendorID), retryWindow)
}

// CheckTenantQuota reports whether the tenant is within its daily ceiling
// for the given resource.
func (l *Limiter) CheckTenantQuota(ctx context.Context, tenantID uuid.UUID, resource string) bool {
	limit, ok := tenantQuotas[resource]
	if !ok {
		limit = defaultTenantQuota
	}
	return l.underLimit(ctx, tenantQuotaKey(tenantID, resource), limit)
}

// IncrementTenantQuota bumps the tenant's daily resource counter.
func (l *Limiter) IncrementTenantQuota(ctx context.Context, tenantID uuid.UUID, resource string) int64 {
	return l.increment(ctx, tenantQuotaKey(tenantID, resource), quotaWindow)
}

func (l *Limiter) underLimit(ctx context.Context, key string, limit int64) bool {
	count, err := l.store.Get(ctx, key)
	if err != nil {
		logger.From(ctx).Warn("counter store unavailable, applying store-error policy",
			"key", key,
			"fail_open", l.cfg.FailOpen,
			"err", err,
		)
		return l.cfg.FailOpen
	}
	return count < limit
}

func (l *Limiter) increment(ctx context.Context, key string, window time.Duration) int64 {
	count, err := l.store.IncrWindow(ctx, key, window)
	if err != nil {
		logger.From(ctx).Warn("counter increment failed", "key", key, "err", err)
		return 0
	}
	return count
}
