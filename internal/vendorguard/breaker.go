package vendorguard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/metrics"
	"resilience-platform/pkg/logger"
)

// Repository is the persistence contract for vendors.
//
// SetBreakerState is compare-and-set: it only writes when the stored state
// still equals from, and reports whether the swap happened. That keeps
// concurrent evaluations from completing conflicting transitions on the
// same vendor.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Vendor, bool, error)
	GetByName(ctx context.Context, name string) (Vendor, bool, error)
	Create(ctx context.Context, v Vendor) (Vendor, error)
	IncrementFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (Vendor, error)
	ResetFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (Vendor, error)
	SetBreakerState(ctx context.Context, id uuid.UUID, from, to State) (Vendor, bool, error)
}

// Breaker manages circuit breaker transitions for vendors.
//
// Missing vendors are treated as Closed and every operation on them is a
// no-op; a correlation pipeline must never fall over because a vendor row
// has not been provisioned yet.
type Breaker struct {
	repo      Repository
	overrides Overrides

	clock func() time.Time
}

func NewBreaker(repo Repository, overrides Overrides) *Breaker {
	return &Breaker{repo: repo, overrides: overrides, clock: time.Now}
}

// RecordFailure bumps the consecutive failure counter and opens the breaker
// when a Closed vendor crosses its threshold. Open and HalfOpen vendors keep
// their state here; probe failures go through HandleHalfOpenResult.
func (b *Breaker) RecordFailure(ctx context.Context, vendorID uuid.UUID) State {
	vendor, ok, err := b.repo.Get(ctx, vendorID)
	if err != nil || !ok {
		return StateClosed
	}

	vendor, err = b.repo.IncrementFailureCount(ctx, vendorID, b.clock().UTC())
	if err != nil {
		return StateClosed
	}

	threshold := b.overrides.FailureThreshold(vendor.Name)
	if vendor.BreakerState == StateClosed && vendor.FailureCount >= threshold {
		if updated, swapped, err := b.repo.SetBreakerState(ctx, vendorID, StateClosed, StateOpen); err == nil && swapped {
			logger.From(ctx).Warn("circuit breaker opened",
				"vendor", updated.Name,
				"failure_count", updated.FailureCount,
				"threshold", threshold,
			)
			metrics.BreakerTransition(string(StateOpen))
			return StateOpen
		}
	}

	return vendor.BreakerState
}

// RecordSuccess resets the failure counter. A success while HalfOpen closes
// the breaker (the probe passed). Open vendors are unaffected; recovery from
// Open only happens via the HalfOpen probe.
func (b *Breaker) RecordSuccess(ctx context.Context, vendorID uuid.UUID) State {
	vendor, ok, err := b.repo.Get(ctx, vendorID)
	if err != nil || !ok {
		return StateClosed
	}

	now := b.clock().UTC()

	switch vendor.BreakerState {
	case StateHalfOpen:
		if _, err := b.repo.ResetFailureCount(ctx, vendorID, now); err != nil {
			return vendor.BreakerState
		}
		if updated, swapped, err := b.repo.SetBreakerState(ctx, vendorID, StateHalfOpen, StateClosed); err == nil && swapped {
			logger.From(ctx).Info("circuit breaker closed", "vendor", updated.Name)
			metrics.BreakerTransition(string(StateClosed))
			return StateClosed
		}
		return vendor.BreakerState
	case StateClosed:
		_, _ = b.repo.ResetFailureCount(ctx, vendorID, now)
		return StateClosed
	default:
		return vendor.BreakerState
	}
}

// CheckState returns the current state, lazily moving an Open vendor to
// HalfOpen once its cooldown has elapsed. The HalfOpen slot admits exactly
// the next request as a probe.
func (b *Breaker) CheckState(ctx context.Context, vendorID uuid.UUID) State {
	vendor, ok, err := b.repo.Get(ctx, vendorID)
	if err != nil || !ok {
		return StateClosed
	}

	if vendor.BreakerState != StateOpen || vendor.LastFailureAt == nil {
		return vendor.BreakerState
	}

	timeout := b.overrides.OpenTimeout(vendor.Name)
	if b.clock().UTC().Sub(*vendor.LastFailureAt) < timeout {
		return StateOpen
	}

	if updated, swapped, err := b.repo.SetBreakerState(ctx, vendorID, StateOpen, StateHalfOpen); err == nil && swapped {
		logger.From(ctx).Info("circuit breaker half-open", "vendor", updated.Name)
		metrics.BreakerTransition(string(StateHalfOpen))
		return StateHalfOpen
	}
	// Lost the race; another caller already moved it.
	if current, ok, err := b.repo.Get(ctx, vendorID); err == nil && ok {
		return current.BreakerState
	}
	return StateOpen
}

// ShouldAllowRequest reports whether a call to the vendor is admitted.
// Closed and HalfOpen admit; Open blocks.
func (b *Breaker) ShouldAllowRequest(ctx context.Context, vendorID uuid.UUID) bool {
	return b.CheckState(ctx, vendorID) != StateOpen
}

// HandleHalfOpenResult closes the probe window: success recovers the vendor,
// failure slams the breaker back to Open and restarts the cooldown.
func (b *Breaker) HandleHalfOpenResult(ctx context.Context, vendorID uuid.UUID, success bool) State {
	if success {
		return b.RecordSuccess(ctx, vendorID)
	}

	if _, ok, err := b.repo.Get(ctx, vendorID); err != nil || !ok {
		return StateClosed
	}

	if _, swapped, err := b.repo.SetBreakerState(ctx, vendorID, StateHalfOpen, StateOpen); err != nil || !swapped {
		if current, ok, err := b.repo.Get(ctx, vendorID); err == nil && ok {
			return current.BreakerState
		}
		return StateOpen
	}
	_, _ = b.repo.IncrementFailureCount(ctx, vendorID, b.clock().UTC())
	metrics.BreakerTransition(string(StateOpen))
	return StateOpen
}
