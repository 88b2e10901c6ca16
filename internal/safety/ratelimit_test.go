package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/vendorguard"
)

func rlOverrides(t *testing.T) vendorguard.Overrides {
	t.Helper()
	o, err := vendorguard.LoadOverrides(t.TempDir(), 10, 5*time.Minute, 3)
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	return o
}

func TestConsumeToken_ExhaustsWindow(t *testing.T) {
	store := NewMemoryCounterStore()
	rl := NewRateLimiter(store, rlOverrides(t), true)

	ctx := context.Background()
	tenant := uuid.New()

	for i := 0; i < 3; i++ {
		if !rl.ConsumeToken(ctx, "twilio", tenant) {
			t.Fatalf("token %d should be admitted", i)
		}
	}
	if rl.ConsumeToken(ctx, "twilio", tenant) {
		t.Fatalf("4th token should be rejected")
	}

	result := rl.CheckRateLimit(ctx, "twilio", tenant)
	if result.Allowed {
		t.Fatalf("check should report exhausted")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > 60 {
		t.Fatalf("retry_after should be within the window, got %d", result.RetryAfter)
	}
}

func TestCheckRateLimit_IsolatesTenants(t *testing.T) {
	store := NewMemoryCounterStore()
	rl := NewRateLimiter(store, rlOverrides(t), true)

	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		rl.ConsumeToken(ctx, "twilio", a)
	}
	if rl.CheckRateLimit(ctx, "twilio", a).Allowed {
		t.Fatalf("tenant a should be throttled")
	}
	if !rl.CheckRateLimit(ctx, "twilio", b).Allowed {
		t.Fatalf("tenant b must not share tenant a's window")
	}
}

func TestCheckRateLimit_StoreErrorPolicy(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()

	down := NewMemoryCounterStore()
	down.FailWith = errors.New("redis down")

	if got := NewRateLimiter(down, rlOverrides(t), true).CheckRateLimit(ctx, "twilio", tenant); !got.Allowed {
		t.Fatalf("fail-open must allow on store error")
	}
	if got := NewRateLimiter(down, rlOverrides(t), false).CheckRateLimit(ctx, "twilio", tenant); got.Allowed {
		t.Fatalf("fail-closed must deny on store error")
	}
}
