package vendorguard

import (
	"time"

	"github.com/google/uuid"
)

// State is the circuit breaker position for a vendor.
//
// Transitions are monotonic within one evaluation:
//   Closed -> Open     (consecutive failures reach the threshold)
//   Open   -> HalfOpen (cooldown elapsed; next request is the probe)
//   HalfOpen -> Closed (probe succeeded)
//   HalfOpen -> Open   (probe failed)
// There is no direct Closed -> HalfOpen or Open -> Closed edge.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Vendor is an external dependency tenant workflows call out to.
// The breaker fields are mutated exclusively through the Breaker; everything
// else reads them.
type Vendor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	BreakerState  State      `json:"circuit_breaker_state"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}
