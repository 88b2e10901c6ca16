package incident

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory incident store for tests and local runs.
// AppendEvent and UpdateStatus hold the store lock for the whole
// read-modify-write, matching the single-statement atomicity of the
// Postgres implementation.
type MemoryRepo struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]Incident
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{incidents: map[uuid.UUID]Incident{}}
}

func (r *MemoryRepo) Create(ctx context.Context, inc Incident) (Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inc.ID == uuid.Nil {
		inc.ID = uuid.New()
	}
	r.incidents[inc.ID] = cloneIncident(inc)
	return inc, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id uuid.UUID) (Incident, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[id]
	if !ok {
		return Incident{}, false, nil
	}
	return cloneIncident(inc), true, nil
}

func (r *MemoryRepo) ActiveBySignature(ctx context.Context, tenantID uuid.UUID, signature string) ([]Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Incident
	for _, inc := range r.incidents {
		if inc.TenantID == tenantID && inc.ErrorSignature == signature && inc.Open() {
			out = append(out, cloneIncident(inc))
		}
	}
	return out, nil
}

func (r *MemoryRepo) AppendEvent(ctx context.Context, incidentID, eventID uuid.UUID, at time.Time) (Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[incidentID]
	if !ok {
		return Incident{}, ErrIncidentNotFound
	}
	if !inc.HasEvent(eventID) {
		inc.CorrelatedEventIDs = append(inc.CorrelatedEventIDs, eventID)
		inc.LastOccurrenceAt = at
		inc.UpdatedAt = at
	}
	r.incidents[incidentID] = inc
	return cloneIncident(inc), nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, metadataPatch map[string]any) (Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[id]
	if !ok {
		return Incident{}, ErrIncidentNotFound
	}
	inc.Status = status
	if len(metadataPatch) > 0 {
		if inc.Metadata == nil {
			inc.Metadata = map[string]any{}
		} else {
			merged := make(map[string]any, len(inc.Metadata)+len(metadataPatch))
			for k, v := range inc.Metadata {
				merged[k] = v
			}
			inc.Metadata = merged
		}
		for k, v := range metadataPatch {
			inc.Metadata[k] = v
		}
	}
	inc.UpdatedAt = time.Now().UTC()
	r.incidents[id] = inc
	return cloneIncident(inc), nil
}

func (r *MemoryRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, status Status) ([]Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Incident
	for _, inc := range r.incidents {
		if inc.TenantID == tenantID && inc.Status == status {
			out = append(out, cloneIncident(inc))
		}
	}
	return out, nil
}

func cloneIncident(inc Incident) Incident {
	out := inc
	out.CorrelatedEventIDs = append([]uuid.UUID(nil), inc.CorrelatedEventIDs...)
	if inc.Metadata != nil {
		out.Metadata = make(map[string]any, len(inc.Metadata))
		for k, v := range inc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
