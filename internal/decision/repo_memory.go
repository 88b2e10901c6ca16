package decision

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Decision
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Append(_ context.Context, d Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, d)
	return nil
}

func (r *MemoryRepo) ListByIncident(_ context.Context, incidentID uuid.UUID) ([]Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Decision
	for _, d := range r.entries {
		if d.IncidentID == incidentID {
			out = append(out, d)
		}
	}
	return out, nil
}
