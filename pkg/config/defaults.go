package config

import "time"

// ApplyDefaults fills in default values for any unset configuration fields.
// It is called by LoadConfig before validation.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8343"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	// Policy defaults
	if cfg.Policy.BundleFile == "" {
		cfg.Policy.BundleFile = "bundle.yaml"
	}
	if cfg.Policy.SignatureFile == "" {
		cfg.Policy.SignatureFile = "bundle.sig"
	}
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = 500 * time.Millisecond
	}

	// Evaluation defaults
	if len(cfg.Evaluation.TieBreak) == 0 {
		cfg.Evaluation.TieBreak = []string{"priority", "specificity"}
	}

	// Incident defaults
	if cfg.Incident.MaxAttempts == 0 {
		cfg.Incident.MaxAttempts = 3
	}
	if cfg.Incident.InitialBackoff == 0 {
		cfg.Incident.InitialBackoff = time.Second
	}
	if cfg.Incident.MaxBackoff == 0 {
		cfg.Incident.MaxBackoff = time.Minute
	}

	// Remediation defaults
	if cfg.Remediation.ExecutionTimeout == 0 {
		cfg.Remediation.ExecutionTimeout = 30 * time.Second
	}
	if cfg.Remediation.IdempotencyStorePath == "" {
		cfg.Remediation.IdempotencyStorePath = "data/idempotency.db"
	}
	if cfg.Remediation.TargetTimeout == 0 {
		cfg.Remediation.TargetTimeout = 10 * time.Second
	}

	// Evidence defaults
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = "sqlite"
	}
	if cfg.Evidence.SQLitePath == "" {
		cfg.Evidence.SQLitePath = "data/ledger.db"
	}
	if cfg.Evidence.AuditSchedule == "" {
		cfg.Evidence.AuditSchedule = "0 3 * * *"
	}
	if cfg.Evidence.WriteTimeout == 0 {
		cfg.Evidence.WriteTimeout = 5 * time.Second
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "sentinel"
	}
}

// DefaultConfig returns a configuration populated entirely with defaults.
// Metrics are enabled by default.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
