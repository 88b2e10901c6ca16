package killswitch

import (
	"time"

	"github.com/google/uuid"
)

// Scope says what a switch blocks when active.
type Scope string

const (
	ScopeWorkflow Scope = "workflow"
	ScopeVendor   Scope = "vendor"
	ScopeTenant   Scope = "tenant"
	ScopeGlobal   Scope = "global"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeWorkflow, ScopeVendor, ScopeTenant, ScopeGlobal:
		return true
	}
	return false
}

// Switch is an operator-controlled block on automated processing.
// TargetID is nil for global switches and required for all other scopes.
type Switch struct {
	ID            uuid.UUID  `json:"id"`
	Scope         Scope      `json:"scope"`
	TargetID      *uuid.UUID `json:"target_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	Reason        string     `json:"reason"`
	ActivatedBy   string     `json:"activated_by"`
	ActivatedAt   time.Time  `json:"activated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
