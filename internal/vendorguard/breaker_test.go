package vendorguard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testOverrides(threshold int, timeout time.Duration) Overrides {
	return Overrides{
		vendors:          map[string]VendorConfig{},
		defaultThreshold: threshold,
		defaultTimeout:   timeout,
		defaultRPM:       100,
	}
}

func seedVendor(t *testing.T, repo *MemoryRepo) Vendor {
	t.Helper()
	v, err := repo.Create(context.Background(), Vendor{
		ID:           uuid.New(),
		Name:         "twilio",
		BreakerState: StateClosed,
	})
	if err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return v
}

func TestRecordFailure_OpensAtThreshold(t *testing.T) {
	repo := NewMemoryRepo()
	b := NewBreaker(repo, testOverrides(3, 5*time.Minute))
	v := seedVendor(t, repo)

	ctx := context.Background()
	if got := b.RecordFailure(ctx, v.ID); got != StateClosed {
		t.Fatalf("1st failure: got %q", got)
	}
	if got := b.RecordFailure(ctx, v.ID); got != StateClosed {
		t.Fatalf("2nd failure: got %q", got)
	}
	if got := b.RecordFailure(ctx, v.ID); got != StateOpen {
		t.Fatalf("3rd failure should open, got %q", got)
	}
	if b.ShouldAllowRequest(ctx, v.ID) {
		t.Fatalf("open breaker must block requests")
	}
}

func TestRecordFailure_MissingVendorIsClosedNoop(t *testing.T) {
	b := NewBreaker(NewMemoryRepo(), testOverrides(3, time.Minute))

	if got := b.RecordFailure(context.Background(), uuid.New()); got != StateClosed {
		t.Fatalf("missing vendor should report closed, got %q", got)
	}
	if !b.ShouldAllowRequest(context.Background(), uuid.New()) {
		t.Fatalf("missing vendor must not block")
	}
}

func TestCheckState_HalfOpenAfterTimeout(t *testing.T) {
	repo := NewMemoryRepo()
	b := NewBreaker(repo, testOverrides(1, 5*time.Minute))
	v := seedVendor(t, repo)

	now := time.Unix(1700000000, 0).UTC()
	b.clock = func() time.Time { return now }

	ctx := context.Background()
	if got := b.RecordFailure(ctx, v.ID); got != StateOpen {
		t.Fatalf("expected open at threshold 1, got %q", got)
	}

	now = now.Add(4 * time.Minute)
	if got := b.CheckState(ctx, v.ID); got != StateOpen {
		t.Fatalf("before timeout: got %q", got)
	}

	now = now.Add(2 * time.Minute)
	if got := b.CheckState(ctx, v.ID); got != StateHalfOpen {
		t.Fatalf("after timeout: got %q", got)
	}
	if !b.ShouldAllowRequest(ctx, v.ID) {
		t.Fatalf("half-open must admit the probe")
	}
}

func TestHandleHalfOpenResult_SuccessCloses(t *testing.T) {
	repo := NewMemoryRepo()
	b := NewBreaker(repo, testOverrides(1, time.Minute))
	v := seedVendor(t, repo)

	now := time.Unix(1700000000, 0).UTC()
	b.clock = func() time.Time { return now }

	ctx := context.Background()
	b.RecordFailure(ctx, v.ID)
	now = now.Add(2 * time.Minute)
	if got := b.CheckState(ctx, v.ID); got != StateHalfOpen {
		t.Fatalf("setup: expected half-open, got %q", got)
	}

	if got := b.HandleHalfOpenResult(ctx, v.ID, true); got != StateClosed {
		t.Fatalf("probe success should close, got %q", got)
	}
	stored, _, _ := repo.Get(ctx, v.ID)
	if stored.FailureCount != 0 {
		t.Fatalf("failure count should reset, got %d", stored.FailureCount)
	}
}

func TestHandleHalfOpenResult_FailureReopens(t *testing.T) {
	repo := NewMemoryRepo()
	b := NewBreaker(repo, testOverrides(1, time.Minute))
	v := seedVendor(t, repo)

	now := time.Unix(1700000000, 0).UTC()
	b.clock = func() time.Time { return now }

	ctx := context.Background()
	b.RecordFailure(ctx, v.ID)
	now = now.Add(2 * time.Minute)
	b.CheckState(ctx, v.ID)

	if got := b.HandleHalfOpenResult(ctx, v.ID, false); got != StateOpen {
		t.Fatalf("probe failure should reopen, got %q", got)
	}

	// Cooldown restarts from the probe failure.
	now = now.Add(30 * time.Second)
	if got := b.CheckState(ctx, v.ID); got != StateOpen {
		t.Fatalf("expected open during restarted cooldown, got %q", got)
	}
}

func TestRecordSuccess_OpenUnaffected(t *testing.T) {
	repo := NewMemoryRepo()
	b := NewBreaker(repo, testOverrides(1, time.Hour))
	v := seedVendor(t, repo)

	ctx := context.Background()
	b.RecordFailure(ctx, v.ID)
	if got := b.RecordSuccess(ctx, v.ID); got != StateOpen {
		t.Fatalf("success while open must not close the breaker, got %q", got)
	}
}
