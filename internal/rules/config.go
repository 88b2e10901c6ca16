package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrorCodeDef maps an error code to its severity and retry policy name.
type ErrorCodeDef struct {
	Severity    Severity `yaml:"severity"`
	RetryPolicy string   `yaml:"retry_policy"`
	Description string   `yaml:"description"`
}

// RetryPolicy controls whether and how an error class is retried.
type RetryPolicy struct {
	Retryable           bool    `yaml:"retryable"`
	MaxRetries          int     `yaml:"max_retries"`
	InitialDelaySeconds float64 `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     float64 `yaml:"max_delay_seconds"`
	BackoffMultiplier   float64 `yaml:"backoff_multiplier"`
}

// Tables are the immutable rule tables loaded once at startup.
// They are plain value maps; nothing mutates them after LoadTables returns.
type Tables struct {
	ErrorCodes    map[string]ErrorCodeDef
	RetryPolicies map[string]RetryPolicy
}

type errorCodesFile struct {
	ErrorCodes map[string]ErrorCodeDef `yaml:"error_codes"`
}

type retryPoliciesFile struct {
	RetryPolicies map[string]RetryPolicy `yaml:"retry_policies"`
}

// LoadTables reads error_codes.yaml and retry_policies.yaml from dir.
// Missing files yield empty tables (the engine then falls back to defaults
// for every code); malformed files are a startup error.
func LoadTables(dir string) (Tables, error) {
	t := Tables{
		ErrorCodes:    map[string]ErrorCodeDef{},
		RetryPolicies: map[string]RetryPolicy{},
	}

	var codes errorCodesFile
	if err := readYAML(filepath.Join(dir, "error_codes.yaml"), &codes); err != nil {
		return Tables{}, err
	}
	if codes.ErrorCodes != nil {
		t.ErrorCodes = codes.ErrorCodes
	}

	var policies retryPoliciesFile
	if err := readYAML(filepath.Join(dir, "retry_policies.yaml"), &policies); err != nil {
		return Tables{}, err
	}
	if policies.RetryPolicies != nil {
		t.RetryPolicies = policies.RetryPolicies
	}

	if err := t.validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

func (t Tables) validate() error {
	for code, def := range t.ErrorCodes {
		if def.Severity != "" && !def.Severity.Valid() {
			return fmt.Errorf("rules: error code %q has invalid severity %q", code, def.Severity)
		}
		if def.RetryPolicy != "" {
			if _, ok := t.RetryPolicies[def.RetryPolicy]; !ok && def.RetryPolicy != defaultPolicyName {
				return fmt.Errorf("rules: error code %q references unknown retry policy %q", code, def.RetryPolicy)
			}
		}
	}
	for name, p := range t.RetryPolicies {
		if p.MaxRetries < 0 {
			return fmt.Errorf("rules: retry policy %q has negative max_retries", name)
		}
		if p.InitialDelaySeconds < 0 || p.MaxDelaySeconds < 0 {
			return fmt.Errorf("rules: retry policy %q has negative delays", name)
		}
	}
	return nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rules: read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rules: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
