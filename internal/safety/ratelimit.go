package safety

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/vendorguard"
	"resilience-platform/pkg/logger"
)

const rateLimitWindow = time.Minute

// RateLimitResult is the outcome of a rate limit check.
// RetryAfter is only meaningful when Allowed is false.
type RateLimitResult struct {
	Allowed    bool  `json:"allowed"`
	Remaining  int64 `json:"remaining"`
	RetryAfter int64 `json:"retry_after,omitempty"`
	Limit      int64 `json:"limit"`
}

// RateLimiter throttles requests per (vendor, tenant) pair over a one-minute
// window. The check-then-consume sequence is deliberately not atomic across
// the two calls; a handful of over-admits under concurrency is acceptable,
// but each increment itself is atomic with its expiry.
type RateLimiter struct {
	store     CounterStore
	overrides vendorguard.Overrides
	failOpen  bool
}

func NewRateLimiter(store CounterStore, overrides vendorguard.Overrides, failOpen bool) *RateLimiter {
	return &RateLimiter{store: store, overrides: overrides, failOpen: failOpen}
}

func rateLimitKey(vendorName string, tenantID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:%s:%s", vendorName, tenantID)
}

// CheckRateLimit reports whether another request to the vendor is within the
// tenant's per-minute budget.
func (r *RateLimiter) CheckRateLimit(ctx context.Context, vendorName string, tenantID uuid.UUID) RateLimitResult {
	limit := int64(r.overrides.RequestsPerMinute(vendorName))
	key := rateLimitKey(vendorName, tenantID)

	count, err := r.store.Get(ctx, key)
	if err != nil {
		logger.From(ctx).Warn("rate limit store unavailable, applying store-error policy",
			"vendor", vendorName,
			"fail_open", r.failOpen,
			"err", err,
		)
		if r.failOpen {
			return RateLimitResult{Allowed: true, Remaining: limit, Limit: limit}
		}
		return RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: int64(rateLimitWindow.Seconds()), Limit: limit}
	}

	if count >= limit {
		retryAfter := int64(rateLimitWindow.Seconds())
		if ttl, err := r.store.TTL(ctx, key); err == nil && ttl > 0 {
			retryAfter = int64(ttl.Seconds())
		}
		return RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: retryAfter, Limit: limit}
	}

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{Allowed: true, Remaining: remaining, Limit: limit}
}

// ConsumeToken checks the limit and, when allowed, burns one slot of the
// window. Returns false only when the limit is exhausted.
func (r *RateLimiter) ConsumeToken(ctx context.Context, vendorName string, tenantID uuid.UUID) bool {
	result := r.CheckRateLimit(ctx, vendorName, tenantID)
	if !result.Allowed {
		return false
	}

	if _, err := r.store.IncrWindow(ctx, rateLimitKey(vendorName, tenantID), rateLimitWindow); err != nil {
		logger.From(ctx).Warn("rate limit increment failed", "vendor", vendorName, "err", err)
		return r.failOpen
	}
	return true
}

// RetryAfter returns the seconds until the window resets, or 0 when the
// caller is within the limit.
func (r *RateLimiter) RetryAfter(ctx context.Context, vendorName string, tenantID uuid.UUID) int64 {
	return r.CheckRateLimit(ctx, vendorName, tenantID).RetryAfter
}
