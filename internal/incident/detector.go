package incident

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"resilience-platform/internal/event"
	"resilience-platform/internal/metrics"
	"resilience-platform/internal/rules"
	"resilience-platform/internal/signature"
	"resilience-platform/pkg/logger"
)

// failureIndicators are the event_type substrings that mark an event as a
// failure worth correlating.
var failureIndicators = []string{"failed", "error", "timeout", "rejected", "exception"}

var failureStatuses = map[string]bool{"failed": true, "error": true, "rejected": true}

// ProcessResult describes what the detector did with a failure event.
type ProcessResult struct {
	Incident Incident

	// Created is true when this event opened a fresh incident rather than
	// correlating into an existing one.
	Created bool

	// ShouldEscalate is the correlator's escalation signal for the incident
	// after this event was absorbed. It is advisory; the lifecycle manager
	// owns the actual status transition.
	ShouldEscalate bool
}

// Detector watches ingested events and creates or extends incidents.
type Detector struct {
	repo       Repository
	sigs       *signature.Generator
	correlator *Correlator
	rules      *rules.Engine

	clock func() time.Time
}

func NewDetector(repo Repository, sigs *signature.Generator, correlator *Correlator, engine *rules.Engine) *Detector {
	return &Detector{
		repo:       repo,
		sigs:       sigs,
		correlator: correlator,
		rules:      engine,
		clock:      time.Now,
	}
}

// ProcessEvent inspects one event. Non-failure events produce no incident
// action (ok=false). Failure events are grouped by signature into an
// existing in-window incident or a fresh one.
func (d *Detector) ProcessEvent(ctx context.Context, e event.Event) (ProcessResult, bool, error) {
	if !d.DetectFailure(e) {
		return ProcessResult{}, false, nil
	}

	log := logger.From(ctx)
	sig := d.sigs.Generate(e.Payload)

	existing, found, err := d.correlator.FindRelatedIncident(ctx, sig, e.TenantID)
	if err != nil {
		return ProcessResult{}, false, err
	}

	var result ProcessResult
	if found {
		inc, err := d.correlator.AddEventToIncident(ctx, existing, e.ID)
		if err != nil {
			return ProcessResult{}, false, err
		}
		metrics.EventCorrelated()
		log.Info("event correlated to incident",
			"incident_id", inc.ID,
			"event_id", e.ID,
			"correlated_events", len(inc.CorrelatedEventIDs),
		)
		result.Incident = inc
	} else {
		inc, err := d.createIncident(ctx, e, sig)
		if err != nil {
			return ProcessResult{}, false, err
		}
		metrics.IncidentCreated()
		log.Info("incident created",
			"incident_id", inc.ID,
			"event_id", e.ID,
			"signature", sig,
		)
		result.Incident = inc
		result.Created = true
	}

	result.ShouldEscalate = d.correlator.ShouldEscalate(result.Incident)
	if result.ShouldEscalate {
		log.Warn("incident escalation signaled",
			"incident_id", result.Incident.ID,
			"correlated_events", len(result.Incident.CorrelatedEventIDs),
			"severity", result.Incident.Severity,
		)
	}
	return result, true, nil
}

// DetectFailure reports whether the event indicates a failure: a failure
// keyword in the event type, an error code or message in the payload, or a
// failing payload status.
func (d *Detector) DetectFailure(e event.Event) bool {
	eventType := strings.ToLower(e.EventType)
	for _, indicator := range failureIndicators {
		if strings.Contains(eventType, indicator) {
			return true
		}
	}

	if e.Payload == nil {
		return false
	}
	if v, ok := e.Payload["error_code"].(string); ok && v != "" {
		return true
	}
	if v, ok := e.Payload["error_message"].(string); ok && v != "" {
		return true
	}
	if v, ok := e.Payload["status"].(string); ok && failureStatuses[v] {
		return true
	}
	return false
}

func (d *Detector) createIncident(ctx context.Context, e event.Event, sig string) (Incident, error) {
	errorCode := "unknown"
	if v, ok := e.Payload["error_code"].(string); ok && v != "" {
		errorCode = v
	}

	var vendorID *uuid.UUID
	if v, ok := e.Payload["vendor_id"].(string); ok {
		if id, err := uuid.Parse(v); err == nil {
			vendorID = &id
		}
	}

	workflowID := e.WorkflowID
	now := d.clock().UTC()

	return d.repo.Create(ctx, Incident{
		ID:                 uuid.New(),
		TenantID:           e.TenantID,
		VendorID:           vendorID,
		WorkflowID:         &workflowID,
		ErrorSignature:     sig,
		Status:             StatusDetected,
		Severity:           d.rules.ErrorSeverity(errorCode),
		CorrelatedEventIDs: []uuid.UUID{e.ID},
		FirstOccurrenceAt:  e.OccurredAt,
		LastOccurrenceAt:   e.OccurredAt,
		Metadata: map[string]any{
			"error_code":          errorCode,
			"event_type":          e.EventType,
			"triggering_event_id": e.ID.String(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
}
