package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory action store for tests and local runs.
// UpdateStatus applies the compare half of compare-and-set under the store
// lock, matching the conditional UPDATE of the Postgres implementation.
type MemoryRepo struct {
	mu      sync.Mutex
	actions map[uuid.UUID]Action
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{actions: map[uuid.UUID]Action{}}
}

func (r *MemoryRepo) Create(ctx context.Context, a Action) (Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	r.actions[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id uuid.UUID) (Action, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	return a, ok, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, result map[string]any, errMsg string) (Action, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok {
		return Action{}, false, ErrActionNotFound
	}
	if a.Status != from {
		return a, false, nil
	}

	a.Status = to
	if result != nil {
		a.Result = result
	}
	if errMsg != "" {
		a.ErrorMessage = errMsg
	}
	a.UpdatedAt = time.Now().UTC()
	r.actions[id] = a
	return a, true, nil
}
