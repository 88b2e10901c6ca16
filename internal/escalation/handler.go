package escalation

import (
	"context"
	"fmt"
	"time"

	"resilience-platform/internal/incident"
	"resilience-platform/pkg/logger"
)

// Notification is what escalation sends to the outside world.
type Notification struct {
	IncidentID     string
	TenantID       string
	Severity       string
	Reason         string
	EventCount     int
	FirstOccurred  time.Time
	LastOccurred   time.Time
	ErrorSignature string
}

// Notifier delivers escalation notifications. Implementations must
// tolerate duplicate delivery; escalation paths retry.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Handler escalates incidents that crossed the correlation threshold or
// carry critical severity, and notifies the on-call channel.
//
// Escalation is advisory-on-failure: a notifier error is logged but the
// incident still transitions, so flaky delivery never blocks the
// lifecycle.
type Handler struct {
	manager  *incident.Manager
	notifier Notifier
}

func NewHandler(manager *incident.Manager, notifier Notifier) *Handler {
	return &Handler{manager: manager, notifier: notifier}
}

// Escalate transitions the incident and fires the notification.
func (h *Handler) Escalate(ctx context.Context, inc incident.Incident, reason string) (incident.Incident, error) {
	updated, err := h.manager.Escalate(ctx, inc.ID, reason)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("escalation: transition: %w", err)
	}
	if updated.Status != incident.StatusEscalated {
		// Transition was rejected (already terminal); nothing to notify.
		return updated, nil
	}

	if h.notifier != nil {
		n := Notification{
			IncidentID:     updated.ID.String(),
			TenantID:       updated.TenantID.String(),
			Severity:       string(updated.Severity),
			Reason:         reason,
			EventCount:     len(updated.CorrelatedEventIDs),
			FirstOccurred:  updated.FirstOccurrenceAt,
			LastOccurred:   updated.LastOccurrenceAt,
			ErrorSignature: updated.ErrorSignature,
		}
		if err := h.notifier.Notify(ctx, n); err != nil {
			logger.From(ctx).Error("escalation notification failed",
				"incident_id", updated.ID,
				"err", err,
			)
		}
	}
	return updated, nil
}

// LogNotifier writes notifications to the structured log. It is the
// shipped default until a real channel (pager, webhook) is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger.From(ctx).Warn("incident escalated",
		"incident_id", n.IncidentID,
		"tenant_id", n.TenantID,
		"severity", n.Severity,
		"reason", n.Reason,
		"event_count", n.EventCount,
		"signature", n.ErrorSignature,
	)
	return nil
}

// MemoryNotifier records notifications for tests.
type MemoryNotifier struct {
	Sent []Notification
	Err  error
}

func (m *MemoryNotifier) Notify(_ context.Context, n Notification) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, n)
	return nil
}
