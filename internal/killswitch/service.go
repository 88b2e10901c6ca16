package killswitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for kill switches.
type Repository interface {
	Create(ctx context.Context, sw Switch) error
	Get(ctx context.Context, id uuid.UUID) (Switch, error)
	// ActiveForScope returns active switches for a scope. targetID is
	// ignored for ScopeGlobal and matched exactly otherwise.
	ActiveForScope(ctx context.Context, scope Scope, targetID uuid.UUID) ([]Switch, error)
	// Deactivate flips an active switch off. It is a no-op returning the
	// current row when the switch is already inactive.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) (Switch, error)
	ListActive(ctx context.Context) ([]Switch, error)
}

var (
	ErrSwitchNotFound = errors.New("killswitch: switch not found")
	ErrInvalidScope   = errors.New("killswitch: invalid scope")
	ErrMissingTarget  = errors.New("killswitch: scope requires a target id")
)

// Service evaluates and administers kill switches.
//
// Evaluation order is fixed: global first, then tenant, then workflow.
// The first active switch wins; its reason is what callers surface.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

// Activate turns a switch on. Global switches take no target.
func (s *Service) Activate(ctx context.Context, scope Scope, targetID *uuid.UUID, reason, activatedBy string) (Switch, error) {
	if !scope.Valid() {
		return Switch{}, ErrInvalidScope
	}
	if scope != ScopeGlobal && (targetID == nil || *targetID == uuid.Nil) {
		return Switch{}, ErrMissingTarget
	}
	if scope == ScopeGlobal {
		targetID = nil
	}

	now := s.clock().UTC()
	sw := Switch{
		ID:          uuid.New(),
		Scope:       scope,
		TargetID:    targetID,
		IsActive:    true,
		Reason:      reason,
		ActivatedBy: activatedBy,
		ActivatedAt: now,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, sw); err != nil {
		return Switch{}, fmt.Errorf("killswitch: create: %w", err)
	}
	s.log.Warn("kill switch activated",
		"switch_id", sw.ID, "scope", sw.Scope, "reason", reason, "activated_by", activatedBy)
	return sw, nil
}

// Deactivate turns a switch off. Deactivating an inactive switch is a no-op.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (Switch, error) {
	sw, err := s.repo.Deactivate(ctx, id, s.clock().UTC())
	if err != nil {
		return Switch{}, err
	}
	s.log.Info("kill switch deactivated", "switch_id", sw.ID, "scope", sw.Scope)
	return sw, nil
}

func (s *Service) ListActive(ctx context.Context) ([]Switch, error) {
	return s.repo.ListActive(ctx)
}

// IsBlocked reports whether automated processing is blocked for the given
// tenant and workflow, and the reason of the first matching switch.
func (s *Service) IsBlocked(ctx context.Context, tenantID, workflowID uuid.UUID) (bool, string, error) {
	global, err := s.repo.ActiveForScope(ctx, ScopeGlobal, uuid.Nil)
	if err != nil {
		return false, "", fmt.Errorf("killswitch: check global: %w", err)
	}
	if len(global) > 0 {
		return true, global[0].Reason, nil
	}

	tenant, err := s.repo.ActiveForScope(ctx, ScopeTenant, tenantID)
	if err != nil {
		return false, "", fmt.Errorf("killswitch: check tenant: %w", err)
	}
	if len(tenant) > 0 {
		return true, tenant[0].Reason, nil
	}

	wf, err := s.repo.ActiveForScope(ctx, ScopeWorkflow, workflowID)
	if err != nil {
		return false, "", fmt.Errorf("killswitch: check workflow: %w", err)
	}
	if len(wf) > 0 {
		return true, wf[0].Reason, nil
	}
	return false, "", nil
}

// IsVendorBlocked reports whether actions targeting a vendor are blocked.
// Global switches block vendors too.
func (s *Service) IsVendorBlocked(ctx context.Context, vendorID uuid.UUID) (bool, string, error) {
	global, err := s.repo.ActiveForScope(ctx, ScopeGlobal, uuid.Nil)
	if err != nil {
		return false, "", fmt.Errorf("killswitch: check global: %w", err)
	}
	if len(global) > 0 {
		return true, global[0].Reason, nil
	}
	vs, err := s.repo.ActiveForScope(ctx, ScopeVendor, vendorID)
	if err != nil {
		return false, "", fmt.Errorf("killswitch: check vendor: %w", err)
	}
	if len(vs) > 0 {
		return true, vs[0].Reason, nil
	}
	return false, "", nil
}
