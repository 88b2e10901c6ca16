package vendorguard

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// VendorConfig carries the per-vendor overrides for breaker and rate limits.
// Absent fields fall back to the global defaults from service config.
type VendorConfig struct {
	Name           string               `yaml:"name"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	TimeoutSeconds   int `yaml:"timeout_seconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Overrides is the immutable name-keyed view of vendor_config.yaml, loaded
// once at startup and injected wherever per-vendor tuning applies.
type Overrides struct {
	vendors map[string]VendorConfig

	defaultThreshold int
	defaultTimeout   time.Duration
	defaultRPM       int
}

type vendorConfigFile struct {
	Vendors []VendorConfig `yaml:"vendors"`
}

// LoadOverrides reads vendor_config.yaml from dir. A missing file means no
// overrides; every vendor then runs on the supplied defaults.
func LoadOverrides(dir string, defaultThreshold int, defaultTimeout time.Duration, defaultRPM int) (Overrides, error) {
	o := Overrides{
		vendors:          map[string]VendorConfig{},
		defaultThreshold: defaultThreshold,
		defaultTimeout:   defaultTimeout,
		defaultRPM:       defaultRPM,
	}

	path := filepath.Join(dir, "vendor_config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return Overrides{}, fmt.Errorf("vendorguard: read vendor_config.yaml: %w", err)
	}

	var file vendorConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Overrides{}, fmt.Errorf("vendorguard: parse vendor_config.yaml: %w", err)
	}
	for _, v := range file.Vendors {
		if v.Name == "" {
			return Overrides{}, fmt.Errorf("vendorguard: vendor_config.yaml entry missing name")
		}
		o.vendors[v.Name] = v
	}
	return o, nil
}

// FailureThreshold returns the consecutive-failure count that opens the
// breaker for the named vendor.
func (o Overrides) FailureThreshold(vendorName string) int {
	if v, ok := o.vendors[vendorName]; ok && v.CircuitBreaker.FailureThreshold > 0 {
		return v.CircuitBreaker.FailureThreshold
	}
	return o.defaultThreshold
}

// OpenTimeout returns the cooldown an open breaker waits before probing.
func (o Overrides) OpenTimeout(vendorName string) time.Duration {
	if v, ok := o.vendors[vendorName]; ok && v.CircuitBreaker.TimeoutSeconds > 0 {
		return time.Duration(v.CircuitBreaker.TimeoutSeconds) * time.Second
	}
	return o.defaultTimeout
}

// RequestsPerMinute returns the rate limit ceiling for the named vendor.
func (o Overrides) RequestsPerMinute(vendorName string) int {
	if v, ok := o.vendors[vendorName]; ok && v.RateLimit.RequestsPerMinute > 0 {
		return v.RateLimit.RequestsPerMinute
	}
	return o.defaultRPM
}
