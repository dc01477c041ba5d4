package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "127.0.0.1:8343" {
		t.Errorf("ListenAddress = %q, want 127.0.0.1:8343", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 1<<20)
	}
	if cfg.Policy.BundleFile != "bundle.yaml" || cfg.Policy.SignatureFile != "bundle.sig" {
		t.Errorf("bundle file names = %q, %q", cfg.Policy.BundleFile, cfg.Policy.SignatureFile)
	}
	if cfg.Policy.DebounceInterval != 500*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want 500ms", cfg.Policy.DebounceInterval)
	}
	if len(cfg.Evaluation.TieBreak) != 2 ||
		cfg.Evaluation.TieBreak[0] != "priority" || cfg.Evaluation.TieBreak[1] != "specificity" {
		t.Errorf("TieBreak = %v, want [priority specificity]", cfg.Evaluation.TieBreak)
	}
	if cfg.Incident.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Incident.MaxAttempts)
	}
	if cfg.Incident.InitialBackoff != time.Second || cfg.Incident.MaxBackoff != time.Minute {
		t.Errorf("backoff = %v/%v, want 1s/1m", cfg.Incident.InitialBackoff, cfg.Incident.MaxBackoff)
	}
	if cfg.Remediation.ExecutionTimeout != 30*time.Second {
		t.Errorf("ExecutionTimeout = %v, want 30s", cfg.Remediation.ExecutionTimeout)
	}
	if cfg.Remediation.IdempotencyStorePath != "data/idempotency.db" {
		t.Errorf("IdempotencyStorePath = %q", cfg.Remediation.IdempotencyStorePath)
	}
	if cfg.Remediation.TargetTimeout != 10*time.Second {
		t.Errorf("TargetTimeout = %v, want 10s", cfg.Remediation.TargetTimeout)
	}
	if cfg.Evidence.Backend != "sqlite" || cfg.Evidence.SQLitePath != "data/ledger.db" {
		t.Errorf("evidence backend = %q, path = %q", cfg.Evidence.Backend, cfg.Evidence.SQLitePath)
	}
	if cfg.Evidence.AuditSchedule != "0 3 * * *" {
		t.Errorf("AuditSchedule = %q", cfg.Evidence.AuditSchedule)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging = %q/%q, want info/json",
			cfg.Telemetry.Logging.Level, cfg.Telemetry.Logging.Format)
	}
	if cfg.Telemetry.Metrics.Namespace != "sentinel" {
		t.Errorf("Namespace = %q, want sentinel", cfg.Telemetry.Metrics.Namespace)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = "0.0.0.0:9000"
	cfg.Incident.MaxAttempts = 7
	cfg.Evidence.Backend = "memory"
	cfg.Telemetry.Logging.Level = "debug"

	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("ListenAddress overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Incident.MaxAttempts != 7 {
		t.Errorf("MaxAttempts overwritten: %d", cfg.Incident.MaxAttempts)
	}
	if cfg.Evidence.Backend != "memory" {
		t.Errorf("Backend overwritten: %q", cfg.Evidence.Backend)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Level overwritten: %q", cfg.Telemetry.Logging.Level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("DefaultConfig() disables metrics")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}
