package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedAction(t *testing.T, repo *MemoryRepo, status Status) Action {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	a, err := repo.Create(context.Background(), Action{
		ID:         uuid.New(),
		DecisionID: uuid.New(),
		Type:       TypeRetry,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed action: %v", err)
	}
	return a
}

func TestCanTransition_Table(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusSkipped},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusFailed},
		{StatusInProgress, StatusSkipped},
		{StatusCompleted, StatusSkipped},
		{StatusFailed, StatusSkipped},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusInProgress},
		{StatusFailed, StatusInProgress},
		{StatusSkipped, StatusPending},
		{StatusSkipped, StatusInProgress},
		{StatusInProgress, StatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	sm := NewStateMachine(repo)
	ctx := context.Background()

	a := seedAction(t, repo, StatusPending)

	a, applied, err := sm.Start(ctx, a.ID)
	if err != nil || !applied || a.Status != StatusInProgress {
		t.Fatalf("start: applied=%v status=%q err=%v", applied, a.Status, err)
	}

	a, applied, err = sm.Complete(ctx, a.ID, map[string]any{"retry_succeeded": true})
	if err != nil || !applied || a.Status != StatusCompleted {
		t.Fatalf("complete: applied=%v status=%q err=%v", applied, a.Status, err)
	}
	if a.Result["retry_succeeded"] != true {
		t.Fatalf("result not recorded: %v", a.Result)
	}
}

func TestTransition_InvalidIsSoftRejected(t *testing.T) {
	repo := NewMemoryRepo()
	sm := NewStateMachine(repo)

	a := seedAction(t, repo, StatusPending)

	got, applied, err := sm.Complete(context.Background(), a.ID, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if applied {
		t.Fatalf("pending -> completed must be rejected")
	}
	if got.Status != StatusPending {
		t.Fatalf("rejected transition must leave the action unchanged, got %q", got.Status)
	}
}

func TestTransition_ResultAndErrorGating(t *testing.T) {
	repo := NewMemoryRepo()
	sm := NewStateMachine(repo)
	ctx := context.Background()

	a := seedAction(t, repo, StatusInProgress)
	a, applied, err := sm.Transition(ctx, a.ID, StatusFailed, map[string]any{"should": "be dropped"}, "vendor rejected retry")
	if err != nil || !applied {
		t.Fatalf("fail: applied=%v err=%v", applied, err)
	}
	if a.ErrorMessage != "vendor rejected retry" {
		t.Fatalf("error message not recorded: %q", a.ErrorMessage)
	}
	if a.Result != nil {
		t.Fatalf("result must not be written on failure: %v", a.Result)
	}

	// Failed actions accept only the skip override; errMsg is never
	// overwritten by it.
	a, applied, err = sm.Skip(ctx, a.ID)
	if err != nil || !applied || a.Status != StatusSkipped {
		t.Fatalf("skip: applied=%v status=%q err=%v", applied, a.Status, err)
	}
	if a.ErrorMessage != "vendor rejected retry" {
		t.Fatalf("skip must preserve the failure message")
	}
}

func TestTransition_MissingAction(t *testing.T) {
	sm := NewStateMachine(NewMemoryRepo())

	_, _, err := sm.Start(context.Background(), uuid.New())
	if !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}
