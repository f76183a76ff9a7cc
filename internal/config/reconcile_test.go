package config

import (
	"testing"
	"time"
)

func TestDefaultReconcileConfigIsValid(t *testing.T) {
	cfg := DefaultReconcileConfig()
	if err := validateReconcileConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.GatewayTimeout() != 12*time.Second {
		t.Fatalf("unexpected gateway timeout %v", cfg.GatewayTimeout())
	}
	if cfg.OrderLockTTL() != 30*time.Second {
		t.Fatalf("unexpected lock ttl %v", cfg.OrderLockTTL())
	}
	if cfg.OrderLockRetryDelay() != 150*time.Millisecond {
		t.Fatalf("unexpected retry delay %v", cfg.OrderLockRetryDelay())
	}
	if cfg.MethodSyncLockTTL() != 120*time.Second {
		t.Fatalf("unexpected sync lock ttl %v", cfg.MethodSyncLockTTL())
	}
}

func TestValidateReconcileConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ReconcileConfig)
	}{
		{"zero timeout", func(c *ReconcileConfig) { c.GatewayTimeoutSeconds = 0 }},
		{"zero lock ttl", func(c *ReconcileConfig) { c.OrderLockTTLSeconds = 0 }},
		{"negative retries", func(c *ReconcileConfig) { c.OrderLockRetries = -1 }},
		{"zero body cap", func(c *ReconcileConfig) { c.MaxRequestBodyBytes = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultReconcileConfig()
			tc.mutate(&cfg)
			if err := validateReconcileConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestReconcileHolderServesStoredConfig(t *testing.T) {
	cfg := DefaultReconcileConfig()
	cfg.OrderLockRetries = 3
	holder := NewReconcileHolderFrom(cfg)

	if got := holder.Get().OrderLockRetries; got != 3 {
		t.Fatalf("expected stored config back, got retries %d", got)
	}
}
