package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/metrics"
	"resilience-platform/pkg/logger"
)

// Repository is the persistence contract for events.
//
// Create MUST fail with ErrDuplicateIdempotencyKey when the key already
// exists; that property is what makes ingestion idempotent.
type Repository interface {
	Create(ctx context.Context, e Event) (Event, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Event, bool, error)
	ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID) ([]Event, error)
}

// Directory resolves tenants and workflows for ingestion validation.
// Backed by the same store as everything else; kept narrow on purpose.
type Directory interface {
	GetTenant(ctx context.Context, id uuid.UUID) (Tenant, bool, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (Workflow, bool, error)
}

// KillSwitchGate answers whether processing is blocked for the given
// workflow/tenant combination (including vendor-agnostic global switches).
type KillSwitchGate interface {
	IsBlocked(ctx context.Context, tenantID, workflowID uuid.UUID) (bool, string, error)
}

// QuotaGate enforces the per-tenant daily event quota.
type QuotaGate interface {
	CheckTenantQuota(ctx context.Context, tenantID uuid.UUID, resource string) bool
	IncrementTenantQuota(ctx context.Context, tenantID uuid.UUID, resource string) int64
}

var (
	ErrInvalidEvent            = errors.New("event: invalid event")
	ErrUnsupportedSchema       = errors.New("event: unsupported schema version")
	ErrTenantNotFound          = errors.New("event: tenant not found")
	ErrTenantInactive          = errors.New("event: tenant is not active")
	ErrWorkflowNotFound        = errors.New("event: workflow not found")
	ErrDuplicateIdempotencyKey = errors.New("event: duplicate idempotency key")
	ErrKillSwitchActive        = errors.New("event: kill switch active")
	ErrQuotaExceeded           = errors.New("event: tenant event quota exceeded")
)

var supportedSchemaVersions = map[string]bool{"1.0.0": true}

// QuotaResourceEvents is the tenant quota bucket events count against.
const QuotaResourceEvents = "events"

// IngestRequest is the validated-at-the-edge shape of an incoming event.
type IngestRequest struct {
	TenantID       uuid.UUID
	WorkflowID     uuid.UUID
	EventType      string
	Payload        map[string]any
	IdempotencyKey string
	OccurredAt     time.Time
	SchemaVersion  string
}

// IngestionService validates, deduplicates and stores workflow events.
// It is the only write path for events.
type IngestionService struct {
	repo      Repository
	directory Directory
	kills     KillSwitchGate
	quota     QuotaGate

	clock func() time.Time
}

func NewIngestionService(repo Repository, dir Directory, kills KillSwitchGate, quota QuotaGate) *IngestionService {
	return &IngestionService{
		repo:      repo,
		directory: dir,
		kills:     kills,
		quota:     quota,
		clock:     time.Now,
	}
}

// Ingest validates and stores one event.
//
// Validation order mirrors the cost of each check: shape first, then
// directory lookups, then the kill-switch gate, then the quota, then the
// idempotency conflict surfaced by the store itself.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (Event, error) {
	log := logger.From(ctx)

	if err := s.validateShape(req); err != nil {
		return Event{}, err
	}

	tenant, ok, err := s.directory.GetTenant(ctx, req.TenantID)
	if err != nil {
		return Event{}, fmt.Errorf("event: tenant lookup: %w", err)
	}
	if !ok {
		return Event{}, ErrTenantNotFound
	}
	if !tenant.IsActive {
		return Event{}, ErrTenantInactive
	}

	if _, ok, err = s.directory.GetWorkflow(ctx, req.WorkflowID); err != nil {
		return Event{}, fmt.Errorf("event: workflow lookup: %w", err)
	} else if !ok {
		return Event{}, ErrWorkflowNotFound
	}

	if s.kills != nil {
		blocked, reason, err := s.kills.IsBlocked(ctx, req.TenantID, req.WorkflowID)
		if err != nil {
			return Event{}, fmt.Errorf("event: kill switch check: %w", err)
		}
		if blocked {
			log.Warn("event blocked by kill switch",
				"tenant_id", req.TenantID,
				"workflow_id", req.WorkflowID,
				"reason", reason,
			)
			return Event{}, ErrKillSwitchActive
		}
	}

	if s.quota != nil && !s.quota.CheckTenantQuota(ctx, req.TenantID, QuotaResourceEvents) {
		return Event{}, ErrQuotaExceeded
	}

	now := s.clock().UTC()
	e := Event{
		ID:             uuid.New(),
		TenantID:       req.TenantID,
		WorkflowID:     req.WorkflowID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		OccurredAt:     req.OccurredAt.UTC(),
		SchemaVersion:  req.SchemaVersion,
		CreatedAt:      now,
	}

	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return Event{}, err
	}

	if s.quota != nil {
		s.quota.IncrementTenantQuota(ctx, req.TenantID, QuotaResourceEvents)
	}

	metrics.EventIngested()
	log.Info("event ingested",
		"event_id", created.ID,
		"tenant_id", created.TenantID,
		"event_type", created.EventType,
	)
	return created, nil
}

func (s *IngestionService) validateShape(req IngestRequest) error {
	if req.TenantID == uuid.Nil || req.WorkflowID == uuid.Nil {
		return ErrInvalidEvent
	}
	if req.EventType == "" || req.IdempotencyKey == "" {
		return ErrInvalidEvent
	}
	if req.OccurredAt.IsZero() {
		return ErrInvalidEvent
	}
	if !supportedSchemaVersions[req.SchemaVersion] {
		return ErrUnsupportedSchema
	}
	return nil
}
