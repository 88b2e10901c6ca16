package rules

// Severity grades how bad an error class is. It drives both incident
// severity and the escalate-vs-notify branch when a retry is not allowed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// RecommendedAction is what the engine suggests doing about an error.
type RecommendedAction string

const (
	ActionRetry    RecommendedAction = "retry"
	ActionEscalate RecommendedAction = "escalate"
	ActionNotify   RecommendedAction = "notify"
)

// ErrorContext carries what the caller already knows about the failing
// operation when asking for an evaluation.
type ErrorContext struct {
	ErrorCode  string
	RetryCount int
}

// Evaluation is the engine's verdict for one error occurrence.
type Evaluation struct {
	ShouldRetry       bool              `json:"should_retry"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	BackoffSeconds    float64           `json:"backoff_seconds"`
	Severity          Severity          `json:"severity"`
	RuleTriggered     string            `json:"rule_triggered"`
	Reasoning         string            `json:"reasoning"`
}

// Backoff breaks a computed delay into its parts, mostly for observability.
type Backoff struct {
	BaseDelay  float64
	Jitter     float64
	TotalDelay float64
	RetryCount int
}
