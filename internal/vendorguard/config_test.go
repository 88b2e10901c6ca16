package vendorguard

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverrides_MissingFileUsesDefaults(t *testing.T) {
	o, err := LoadOverrides(t.TempDir(), 10, 300*time.Second, 100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := o.FailureThreshold("anyone"); got != 10 {
		t.Fatalf("threshold default: got %d", got)
	}
	if got := o.OpenTimeout("anyone"); got != 300*time.Second {
		t.Fatalf("timeout default: got %v", got)
	}
	if got := o.RequestsPerMinute("anyone"); got != 100 {
		t.Fatalf("rpm default: got %d", got)
	}
}

func TestLoadOverrides_PerVendorValues(t *testing.T) {
	dir := t.TempDir()
	content := `
vendors:
  - name: twilio
    circuit_breaker:
      failure_threshold: 5
      timeout_seconds: 120
    rate_limit:
      requests_per_minute: 60
`
	if err := os.WriteFile(filepath.Join(dir, "vendor_config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	o, err := LoadOverrides(dir, 10, 300*time.Second, 100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := o.FailureThreshold("twilio"); got != 5 {
		t.Fatalf("twilio threshold: got %d", got)
	}
	if got := o.OpenTimeout("twilio"); got != 120*time.Second {
		t.Fatalf("twilio timeout: got %v", got)
	}
	if got := o.RequestsPerMinute("twilio"); got != 60 {
		t.Fatalf("twilio rpm: got %d", got)
	}

	// Unlisted vendors keep the defaults.
	if got := o.FailureThreshold("stripe"); got != 10 {
		t.Fatalf("stripe threshold: got %d", got)
	}
}

func TestLoadOverrides_RejectsNamelessEntry(t *testing.T) {
	dir := t.TempDir()
	content := `
vendors:
  - circuit_breaker:
      failure_threshold: 5
`
	if err := os.WriteFile(filepath.Join(dir, "vendor_config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadOverrides(dir, 10, time.Minute, 100); err == nil {
		t.Fatalf("expected error for entry without name")
	}
}
