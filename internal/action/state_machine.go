package action

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"resilience-platform/pkg/logger"
)

var ErrActionNotFound = errors.New("action: not found")

// Repository is the persistence contract for actions.
//
// UpdateStatus must be a single atomic read-modify-write; two callers must
// never both succeed at conflicting transitions on the same action.
type Repository interface {
	Create(ctx context.Context, a Action) (Action, error)
	Get(ctx context.Context, id uuid.UUID) (Action, bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, result map[string]any, errMsg string) (Action, bool, error)
}

// validTransitions is the strict action lifecycle table. Skipped is
// terminal; Completed and Failed admit only a post-hoc Skipped override.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusSkipped},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusSkipped},
	StatusCompleted:  {StatusSkipped},
	StatusFailed:     {StatusSkipped},
	StatusSkipped:    {},
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StateMachine validates and applies action status transitions.
//
// An invalid transition is rejected softly: the unchanged action is
// returned and applied=false. Callers must check applied to detect
// rejection; nothing raises.
type StateMachine struct {
	repo Repository
}

func NewStateMachine(repo Repository) *StateMachine {
	return &StateMachine{repo: repo}
}

// Transition moves the action to target if the table allows it.
// result and errMsg are only written on transitions that accept them
// (result on Completed, errMsg on Failed); both are ignored otherwise.
func (sm *StateMachine) Transition(ctx context.Context, actionID uuid.UUID, target Status, result map[string]any, errMsg string) (Action, bool, error) {
	a, ok, err := sm.repo.Get(ctx, actionID)
	if err != nil {
		return Action{}, false, err
	}
	if !ok {
		return Action{}, false, ErrActionNotFound
	}

	if !CanTransition(a.Status, target) {
		logger.From(ctx).Warn("invalid action transition rejected",
			"action_id", actionID,
			"from", a.Status,
			"to", target,
		)
		return a, false, nil
	}

	if target != StatusCompleted {
		result = nil
	}
	if target != StatusFailed {
		errMsg = ""
	}

	updated, applied, err := sm.repo.UpdateStatus(ctx, actionID, a.Status, target, result, errMsg)
	if err != nil {
		return Action{}, false, err
	}
	if !applied {
		// Lost a race; someone else transitioned first. Report the current
		// state without retrying.
		return updated, false, nil
	}

	logger.From(ctx).Info("action transitioned",
		"action_id", actionID,
		"from", a.Status,
		"to", target,
	)
	return updated, true, nil
}

// Start moves a pending action into execution.
func (sm *StateMachine) Start(ctx context.Context, actionID uuid.UUID) (Action, bool, error) {
	return sm.Transition(ctx, actionID, StatusInProgress, nil, "")
}

// Complete records a successful execution with its result.
func (sm *StateMachine) Complete(ctx context.Context, actionID uuid.UUID, result map[string]any) (Action, bool, error) {
	return sm.Transition(ctx, actionID, StatusCompleted, result, "")
}

// Fail records a failed execution with its error.
func (sm *StateMachine) Fail(ctx context.Context, actionID uuid.UUID, errMsg string) (Action, bool, error) {
	return sm.Transition(ctx, actionID, StatusFailed, nil, errMsg)
}

// Skip marks an action skipped from any state the table allows.
func (sm *StateMachine) Skip(ctx context.Context, actionID uuid.UUID) (Action, bool, error) {
	return sm.Transition(ctx, actionID, StatusSkipped, nil, "")
}
