package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "resilience", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_SafetyDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if c.Safety.MaxRetriesPerWorkflow != 5 {
		t.Fatalf("expected workflow retry default 5, got %d", c.Safety.MaxRetriesPerWorkflow)
	}
	if c.Safety.MaxRetriesPerVendor != 100 {
		t.Fatalf("expected vendor retry default 100, got %d", c.Safety.MaxRetriesPerVendor)
	}
	if c.Safety.CircuitBreakerThreshold != 10 {
		t.Fatalf("expected breaker threshold default 10, got %d", c.Safety.CircuitBreakerThreshold)
	}
	if c.Safety.CircuitBreakerTimeout != 300*time.Second {
		t.Fatalf("expected breaker timeout default 300s, got %v", c.Safety.CircuitBreakerTimeout)
	}
	if c.Safety.OnCounterStoreError != StoreErrorAllow {
		t.Fatalf("expected fail-open default, got %q", c.Safety.OnCounterStoreError)
	}
	if c.Rules.Dir != "config/rules" {
		t.Fatalf("expected rules dir default, got %q", c.Rules.Dir)
	}
}

func TestValidate_RejectsUnknownStorePolicy(t *testing.T) {
	c := validConfig()
	c.Safety.OnCounterStoreError = "maybe"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown store policy")
	}
}
