package aiassist

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"resilience-platform/internal/incident"
)

// Classification is a model's read on an incident.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classifier categorizes incidents for decision support. Results feed
// ai_assisted decisions; they never act on their own.
type Classifier interface {
	Classify(ctx context.Context, inc incident.Incident) (Classification, error)
}

// Match is one similar historical incident.
type Match struct {
	Incident incident.Incident `json:"incident"`
	Score    float64           `json:"score"`
}

// SimilaritySearcher finds historical incidents resembling a signature
// within one tenant.
type SimilaritySearcher interface {
	FindSimilar(ctx context.Context, tenantID uuid.UUID, signature string, limit int) ([]Match, error)
}

// HeuristicClassifier buckets incidents by error-code keywords. It is the
// deterministic stand-in wired until a real model backend exists.
type HeuristicClassifier struct{}

var categoryKeywords = map[string][]string{
	"transient_infrastructure": {"timeout", "unavailable", "connection", "network"},
	"rate_limiting":            {"rate", "throttle", "quota", "limit"},
	"authentication":           {"auth", "token", "credential", "permission"},
	"payment_declined":         {"declined", "insufficient", "card"},
}

func (HeuristicClassifier) Classify(_ context.Context, inc incident.Incident) (Classification, error) {
	code, _ := inc.Metadata["error_code"].(string)
	lowered := strings.ToLower(code)

	for category, words := range categoryKeywords {
		for _, w := range words {
			if strings.Contains(lowered, w) {
				return Classification{
					Category:   category,
					Confidence: 0.7,
					Reasoning:  "error code matched keyword " + w,
				}, nil
			}
		}
	}
	return Classification{
		Category:   "unclassified",
		Confidence: 0.3,
		Reasoning:  "no keyword matched error code",
	}, nil
}

// SignatureSearcher scores resolved incidents by signature-prefix overlap.
// Signatures share a prefix when the underlying error pattern matches, so
// prefix length is a cheap similarity proxy.
type SignatureSearcher struct {
	Repo incident.Repository
}

func (s SignatureSearcher) FindSimilar(ctx context.Context, tenantID uuid.UUID, signature string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	resolved, err := s.Repo.ListByStatus(ctx, tenantID, incident.StatusResolved)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, inc := range resolved {
		score := prefixScore(signature, inc.ErrorSignature)
		if score > 0 {
			matches = append(matches, Match{Incident: inc, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func prefixScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	common := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			break
		}
		common++
	}
	return float64(common) / float64(len(a))
}
