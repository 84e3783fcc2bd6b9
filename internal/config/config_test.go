package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workflow.LockTTL != 10*time.Minute {
		t.Errorf("Expected default lock TTL 10m, got %v", cfg.Workflow.LockTTL)
	}
	if cfg.Workflow.ApprovalThreshold != 2 {
		t.Errorf("Expected default approval threshold 2, got %d", cfg.Workflow.ApprovalThreshold)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Sweep.Enabled {
		t.Error("Lock sweep should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOCK_TTL", "30s")
	t.Setenv("APPROVAL_THRESHOLD", "3")
	t.Setenv("LOCK_SWEEP_ENABLED", "true")
	t.Setenv("LOCK_SWEEP_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workflow.LockTTL != 30*time.Second {
		t.Errorf("Expected lock TTL 30s, got %v", cfg.Workflow.LockTTL)
	}
	if cfg.Workflow.ApprovalThreshold != 3 {
		t.Errorf("Expected approval threshold 3, got %d", cfg.Workflow.ApprovalThreshold)
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Interval != time.Minute {
		t.Errorf("Expected sweep enabled at 1m, got %+v", cfg.Sweep)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("APPROVAL_THRESHOLD", "0")
	if _, err := Load(); err == nil {
		t.Error("Expected error for zero approval threshold")
	}

	t.Setenv("APPROVAL_THRESHOLD", "2")
	t.Setenv("LOCK_TTL", "-5m")
	if _, err := Load(); err == nil {
		t.Error("Expected error for negative lock TTL")
	}

	t.Setenv("LOCK_TTL", "10m")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_PASSWORD", "")
	if _, err := Load(); err == nil {
		t.Error("Expected error for missing DB password in production")
	}
}
