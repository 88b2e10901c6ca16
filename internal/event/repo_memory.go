package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory event store for tests and local runs.
// It enforces the idempotency-key uniqueness invariant the same way the
// Postgres implementation does (unique index).
type MemoryRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]Event
	byKey  map[string]uuid.UUID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		events: map[uuid.UUID]Event{},
		byKey:  map[string]uuid.UUID{},
	}
}

func (r *MemoryRepo) Create(ctx context.Context, e Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[e.IdempotencyKey]; exists {
		return Event{}, ErrDuplicateIdempotencyKey
	}
	r.events[e.ID] = e
	r.byKey[e.IdempotencyKey] = e.ID
	return e, nil
}

func (r *MemoryRepo) GetByIdempotencyKey(ctx context.Context, key string) (Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byKey[key]
	if !ok {
		return Event{}, false, nil
	}
	return r.events[id], true, nil
}

func (r *MemoryRepo) ListByWorkflow(ctx context.Context, tenantID, workflowID uuid.UUID) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.TenantID == tenantID && e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MemoryDirectory is a static tenant/workflow directory for tests.
type MemoryDirectory struct {
	mu        sync.Mutex
	tenants   map[uuid.UUID]Tenant
	workflows map[uuid.UUID]Workflow
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		tenants:   map[uuid.UUID]Tenant{},
		workflows: map[uuid.UUID]Workflow{},
	}
}

func (d *MemoryDirectory) PutTenant(t Tenant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants[t.ID] = t
}

func (d *MemoryDirectory) PutWorkflow(w Workflow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workflows[w.ID] = w
}

func (d *MemoryDirectory) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tenants[id]
	return t, ok, nil
}

func (d *MemoryDirectory) GetWorkflow(ctx context.Context, id uuid.UUID) (Workflow, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.workflows[id]
	return w, ok, nil
}
