package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable workflow event as received from a tenant application.
//
// Invariants:
// - Events are created once at ingestion and never mutated or deleted.
// - IdempotencyKey is unique across all events; re-submission is a conflict.
type Event struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	WorkflowID     uuid.UUID      `json:"workflow_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key"`
	OccurredAt     time.Time      `json:"occurred_at"`
	SchemaVersion  string         `json:"schema_version"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Tenant is the minimal tenant projection the ingestion boundary needs.
type Tenant struct {
	ID       uuid.UUID
	Name     string
	IsActive bool
}

// Workflow is the minimal workflow projection the ingestion boundary needs.
type Workflow struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	IsActive bool
}

// Well-known event types emitted by tenant workflows. The detector matches on
// substrings, so the list here is informative rather than exhaustive.
const (
	TypeWorkflowFailed = "workflow.failed"
	TypeStepFailed     = "step.failed"
	TypeAPICallFailed  = "api_call.failed"
	TypePaymentFailed  = "payment.failed"
)
