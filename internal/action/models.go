package action

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the actions the system can take for a decision.
type Type string

const (
	TypeRetry                Type = "retry"
	TypeCircuitBreakerOpen   Type = "circuit_breaker_open"
	TypeCircuitBreakerClose  Type = "circuit_breaker_close"
	TypeKillSwitchActivate   Type = "kill_switch_activate"
	TypeKillSwitchDeactivate Type = "kill_switch_deactivate"
	TypeEscalate             Type = "escalate"
	TypeNotify               Type = "notify"
	TypeRollback             Type = "rollback"
)

// Status is the action execution state. Status is the only field that
// mutates after creation, and only through the state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Action is a tracked execution attempt resulting from a decision.
// Every action references exactly one decision.
type Action struct {
	ID         uuid.UUID `json:"id"`
	DecisionID uuid.UUID `json:"decision_id"`

	Type   Type   `json:"action_type"`
	Status Status `json:"status"`

	// Parameters are the inputs the executor needs (e.g. backoff delay).
	Parameters map[string]any `json:"parameters,omitempty"`

	// Result holds executor output once the action completes.
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`

	IsReversible     bool       `json:"is_reversible"`
	ReversalActionID *uuid.UUID `json:"reversal_action_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
