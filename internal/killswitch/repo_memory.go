package killswitch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu       sync.RWMutex
	switches map[uuid.UUID]Switch
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{switches: make(map[uuid.UUID]Switch)}
}

func (r *MemoryRepo) Create(_ context.Context, sw Switch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.switches[sw.ID] = sw
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id uuid.UUID) (Switch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.switches[id]
	if !ok {
		return Switch{}, ErrSwitchNotFound
	}
	return sw, nil
}

func (r *MemoryRepo) ActiveForScope(_ context.Context, scope Scope, targetID uuid.UUID) ([]Switch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Switch
	for _, sw := range r.switches {
		if !sw.IsActive || sw.Scope != scope {
			continue
		}
		if scope != ScopeGlobal {
			if sw.TargetID == nil || *sw.TargetID != targetID {
				continue
			}
		}
		out = append(out, sw)
	}
	return out, nil
}

func (r *MemoryRepo) Deactivate(_ context.Context, id uuid.UUID, at time.Time) (Switch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sw, ok := r.switches[id]
	if !ok {
		return Switch{}, ErrSwitchNotFound
	}
	if !sw.IsActive {
		return sw, nil
	}
	sw.IsActive = false
	sw.DeactivatedAt = &at
	r.switches[id] = sw
	return sw, nil
}

func (r *MemoryRepo) ListActive(_ context.Context) ([]Switch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Switch
	for _, sw := range r.switches {
		if sw.IsActive {
			out = append(out, sw)
		}
	}
	return out, nil
}
