package signature

import (
	"strings"
	"testing"
)

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator()
	payload := map[string]any{
		"error_code":    "timeout",
		"vendor":        "twilio",
		"error_message": "request a1b2c3d4-0000-1111-2222-333344445555 timed out",
	}

	first := g.Generate(payload)
	second := g.Generate(payload)
	if first != second {
		t.Fatalf("expected stable signature, got %q and %q", first, second)
	}
	if len(first) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(first))
	}
}

func TestGenerate_VariableContentDoesNotChangeSignature(t *testing.T) {
	g := NewGenerator()
	a := g.Generate(map[string]any{
		"error_code":    "timeout",
		"vendor":        "twilio",
		"error_message": "call 11111111-2222-3333-4444-555555555555 timed out at 2026-01-02T03:04:05Z",
	})
	b := g.Generate(map[string]any{
		"error_code":    "timeout",
		"vendor":        "twilio",
		"error_message": "call 99999999-8888-7777-6666-555544443333 timed out at 2026-06-07T08:09:10Z",
	})
	if a != b {
		t.Fatalf("expected UUIDs and timestamps to normalize away: %q vs %q", a, b)
	}
}

func TestGenerate_DifferentVendorsDiffer(t *testing.T) {
	g := NewGenerator()
	a := g.Generate(map[string]any{"error_code": "timeout", "vendor": "twilio", "error_message": "timed out"})
	b := g.Generate(map[string]any{"error_code": "timeout", "vendor": "stripe", "error_message": "timed out"})
	if a == b {
		t.Fatalf("expected vendor to partition signatures")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	g := NewGenerator()
	in := "Request ID 42a1f9e0-1b2c-4d5e-8f90-abc123def456 to 10.0.0.17 failed for $12.34 at 2026-03-04T05:06:07Z (ref 98765432)"

	once := g.Normalize(in)
	twice := g.Normalize(once)
	if once != twice {
		t.Fatalf("normalize not idempotent:\n once: %q\ntwice: %q", once, twice)
	}
	for _, leaked := range []string{"42a1f9e0", "10.0.0.17", "12.34", "05:06:07", "98765432"} {
		if strings.Contains(once, leaked) {
			t.Fatalf("variable content %q survived normalization: %q", leaked, once)
		}
	}
	if once != strings.ToLower(once) {
		t.Fatalf("expected lowercase output: %q", once)
	}
}

func TestExtractErrorPattern_FallbackChain(t *testing.T) {
	g := NewGenerator()

	if got := g.ExtractErrorPattern(map[string]any{"error_message": "boom"}); got != "boom" {
		t.Fatalf("expected error_message, got %q", got)
	}
	if got := g.ExtractErrorPattern(map[string]any{"message": "softer boom"}); got != "softer boom" {
		t.Fatalf("expected message fallback, got %q", got)
	}
	nested := map[string]any{"error_details": map[string]any{"message": "deep boom"}}
	if got := g.ExtractErrorPattern(nested); got != "deep boom" {
		t.Fatalf("expected nested message, got %q", got)
	}
	if got := g.ExtractErrorPattern(map[string]any{}); got != "unknown_pattern" {
		t.Fatalf("expected unknown_pattern, got %q", got)
	}
}
