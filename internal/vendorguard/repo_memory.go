package vendorguard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory vendor store for tests and local runs.
// All mutations take the store lock, so the compare-and-set semantics match
// the single-statement UPDATEs of the Postgres implementation.
type MemoryRepo struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]Vendor
	byName  map[string]uuid.UUID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		vendors: map[uuid.UUID]Vendor{},
		byName:  map[string]uuid.UUID{},
	}
}

var errVendorNotFound = errors.New("vendorguard: vendor not found")

func (r *MemoryRepo) Get(ctx context.Context, id uuid.UUID) (Vendor, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	return v, ok, nil
}

func (r *MemoryRepo) GetByName(ctx context.Context, name string) (Vendor, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[name]
	if !ok {
		return Vendor{}, false, nil
	}
	return r.vendors[id], true, nil
}

func (r *MemoryRepo) Create(ctx context.Context, v Vendor) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.BreakerState == "" {
		v.BreakerState = StateClosed
	}
	r.vendors[v.ID] = v
	r.byName[v.Name] = v.ID
	return v, nil
}

func (r *MemoryRepo) IncrementFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, errVendorNotFound
	}
	v.FailureCount++
	v.LastFailureAt = &at
	r.vendors[id] = v
	return v, nil
}

func (r *MemoryRepo) ResetFailureCount(ctx context.Context, id uuid.UUID, at time.Time) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, errVendorNotFound
	}
	v.FailureCount = 0
	v.LastSuccessAt = &at
	r.vendors[id] = v
	return v, nil
}

func (r *MemoryRepo) SetBreakerState(ctx context.Context, id uuid.UUID, from, to State) (Vendor, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, false, errVendorNotFound
	}
	if v.BreakerState != from {
		return v, false, nil
	}
	v.BreakerState = to
	r.vendors[id] = v
	return v, true, nil
}
