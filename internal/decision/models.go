package decision

import (
	"time"

	"github.com/google/uuid"
)

// Type says what produced a decision.
type Type string

const (
	TypeRuleBased  Type = "rule_based"
	TypeAIAssisted Type = "ai_assisted"
	TypeManual     Type = "manual"
	TypeAutomated  Type = "automated"
)

func (t Type) Valid() bool {
	switch t {
	case TypeRuleBased, TypeAIAssisted, TypeManual, TypeAutomated:
		return true
	}
	return false
}

// Decision is one immutable entry in the decision audit log.
//
// ConfidenceScore is 0..1; rule-based decisions use 1.0 unless the rule
// itself carries a weaker confidence.
type Decision struct {
	ID              uuid.UUID      `json:"id"`
	IncidentID      uuid.UUID      `json:"incident_id"`
	Type            Type           `json:"decision_type"`
	RuleTriggered   string         `json:"rule_triggered,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	Reasoning       string         `json:"reasoning"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
