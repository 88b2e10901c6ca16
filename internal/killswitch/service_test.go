package killswitch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestActivate_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()

	if _, err := svc.Activate(ctx, "bogus", nil, "r", "op"); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("invalid scope: got %v", err)
	}
	if _, err := svc.Activate(ctx, ScopeWorkflow, nil, "r", "op"); !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("workflow scope without target: got %v", err)
	}
	if _, err := svc.Activate(ctx, ScopeGlobal, nil, "stop the world", "op"); err != nil {
		t.Fatalf("global needs no target: %v", err)
	}
}

func TestIsBlocked_GlobalWinsOverScoped(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()

	tenantID, workflowID := uuid.New(), uuid.New()

	blocked, _, err := svc.IsBlocked(ctx, tenantID, workflowID)
	if err != nil || blocked {
		t.Fatalf("nothing active: blocked=%v err=%v", blocked, err)
	}

	if _, err := svc.Activate(ctx, ScopeWorkflow, &workflowID, "flaky workflow", "op"); err != nil {
		t.Fatalf("activate workflow: %v", err)
	}
	if _, err := svc.Activate(ctx, ScopeGlobal, nil, "maintenance window", "op"); err != nil {
		t.Fatalf("activate global: %v", err)
	}

	blocked, reason, err := svc.IsBlocked(ctx, tenantID, workflowID)
	if err != nil || !blocked {
		t.Fatalf("expected blocked, err=%v", err)
	}
	if reason != "maintenance window" {
		t.Fatalf("global switch should win, got reason %q", reason)
	}
}

func TestIsBlocked_ScopedMatchesOnlyTarget(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()

	tenantID, workflowID := uuid.New(), uuid.New()
	if _, err := svc.Activate(ctx, ScopeTenant, &tenantID, "tenant abuse", "op"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if blocked, _, _ := svc.IsBlocked(ctx, tenantID, workflowID); !blocked {
		t.Fatalf("targeted tenant should be blocked")
	}
	if blocked, _, _ := svc.IsBlocked(ctx, uuid.New(), workflowID); blocked {
		t.Fatalf("other tenants must be unaffected")
	}
}

func TestDeactivate_IdempotentNoop(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()

	sw, err := svc.Activate(ctx, ScopeGlobal, nil, "drill", "op")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	first, err := svc.Deactivate(ctx, sw.ID)
	if err != nil || first.IsActive {
		t.Fatalf("deactivate: active=%v err=%v", first.IsActive, err)
	}

	second, err := svc.Deactivate(ctx, sw.ID)
	if err != nil || second.IsActive {
		t.Fatalf("repeat deactivate must be a no-op: active=%v err=%v", second.IsActive, err)
	}

	if blocked, _, _ := svc.IsBlocked(ctx, uuid.New(), uuid.New()); blocked {
		t.Fatalf("deactivated switch must not block")
	}
}

func TestIsVendorBlocked(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	ctx := context.Background()

	vendorID := uuid.New()
	if _, err := svc.Activate(ctx, ScopeVendor, &vendorID, "vendor outage", "op"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if blocked, _, _ := svc.IsVendorBlocked(ctx, vendorID); !blocked {
		t.Fatalf("targeted vendor should be blocked")
	}
	if blocked, _, _ := svc.IsVendorBlocked(ctx, uuid.New()); blocked {
		t.Fatalf("other vendors must be unaffected")
	}
}
