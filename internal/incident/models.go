package incident

import (
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/rules"
)

// Status is the incident lifecycle position.
type Status string

const (
	StatusDetected  Status = "detected"
	StatusAnalyzing Status = "analyzing"
	StatusResolved  Status = "resolved"
	StatusEscalated Status = "escalated"
	StatusIgnored   Status = "ignored"
)

// Incident is an open grouping of correlated failure events sharing an
// error signature within a time window.
//
// Invariants:
// - CorrelatedEventIDs is append-only and only references events with the
//   incident's tenant.
// - Incidents are never physically deleted; Resolved and Ignored are
//   soft-terminal. Once an incident reaches either, new events with the same
//   signature start a fresh incident rather than reopening it.
type Incident struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
	WorkflowID *uuid.UUID `json:"workflow_id,omitempty"`

	ErrorSignature string         `json:"error_signature"`
	Status         Status         `json:"status"`
	Severity       rules.Severity `json:"severity"`

	CorrelatedEventIDs []uuid.UUID `json:"correlated_event_ids"`

	FirstOccurrenceAt time.Time      `json:"first_occurrence_at"`
	LastOccurrenceAt  time.Time      `json:"last_occurrence_at"`
	Metadata          map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the incident can still accrete events.
func (i Incident) Open() bool {
	return i.Status != StatusResolved && i.Status != StatusIgnored
}

// HasEvent reports whether the event is already correlated.
func (i Incident) HasEvent(eventID uuid.UUID) bool {
	for _, id := range i.CorrelatedEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}
