package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Generator derives stable grouping keys from failure events.
//
// Contract:
// - Pure string work. No persistence, no failure modes: every input yields a key.
// - Two events with the same (error_code, vendor, normalized pattern) always
//   produce the same key; that is the grouping guarantee the correlator
//   builds on.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

var (
	reUUID      = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}:\d{2}`)
	reIDRef     = regexp.MustCompile(`(?i)\bid[:\s]*\d+\b`)
	reLongNum   = regexp.MustCompile(`\b\d{6,}\b`)
	reIPv4      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reAmount    = regexp.MustCompile(`\$?\d+\.\d+`)
)

// Generate builds the grouping key for an event payload.
// The key is the first 16 hex chars of a sha256 over
// "{error_code}|{vendor}|{normalized pattern}".
func (g *Generator) Generate(payload map[string]any) string {
	components := []string{
		payloadString(payload, "error_code", "unknown"),
		payloadString(payload, "vendor", ""),
		g.ExtractErrorPattern(payload),
	}

	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// Normalize strips volatile data out of an error message so that repeats of
// the same failure collapse to one pattern. Applying it twice is a no-op.
func (g *Generator) Normalize(message string) string {
	if message == "" {
		return ""
	}

	normalized := reUUID.ReplaceAllString(message, "UUID")
	normalized = reTimestamp.ReplaceAllString(normalized, "TIMESTAMP")
	normalized = reIDRef.ReplaceAllString(normalized, "ID")
	normalized = reLongNum.ReplaceAllString(normalized, "NUMERIC_ID")
	normalized = reIPv4.ReplaceAllString(normalized, "IP_ADDRESS")
	normalized = reAmount.ReplaceAllString(normalized, "AMOUNT")

	normalized = strings.Join(strings.Fields(normalized), " ")
	return strings.ToLower(normalized)
}

// ExtractErrorPattern pulls the normalized error message out of a payload,
// falling back to error_details.message, then to a fixed placeholder.
func (g *Generator) ExtractErrorPattern(payload map[string]any) string {
	msg := payloadString(payload, "error_message", "")
	if msg == "" {
		msg = payloadString(payload, "message", "")
	}
	if msg != "" {
		return g.Normalize(msg)
	}

	if details, ok := payload["error_details"].(map[string]any); ok {
		if detailMsg := payloadString(details, "message", ""); detailMsg != "" {
			return g.Normalize(detailMsg)
		}
	}

	return "unknown_pattern"
}

func payloadString(payload map[string]any, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	v, ok := payload[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}
