package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error encountered.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateEvaluation(&cfg.Evaluation); err != nil {
		return err
	}
	if err := validateIncident(&cfg.Incident); err != nil {
		return err
	}
	if err := validateRemediation(&cfg.Remediation); err != nil {
		return err
	}
	if err := validateEvidence(&cfg.Evidence); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", cfg.ListenAddress, err)
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", cfg.MaxBodyBytes)
	}
	return nil
}

func validateEvaluation(cfg *EvaluationConfig) error {
	seen := make(map[string]bool, len(cfg.TieBreak))
	for _, criterion := range cfg.TieBreak {
		switch criterion {
		case "priority", "specificity":
		default:
			return fmt.Errorf("evaluation.tie_break contains unknown criterion %q (want priority or specificity)", criterion)
		}
		if seen[criterion] {
			return fmt.Errorf("evaluation.tie_break lists %q twice", criterion)
		}
		seen[criterion] = true
	}
	return nil
}

func validateIncident(cfg *IncidentConfig) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("incident.max_attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff <= 0 {
		return fmt.Errorf("incident.initial_backoff must be positive")
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		return fmt.Errorf("incident.max_backoff (%s) must be >= incident.initial_backoff (%s)",
			cfg.MaxBackoff, cfg.InitialBackoff)
	}
	return nil
}

func validateRemediation(cfg *RemediationConfig) error {
	if cfg.ExecutionTimeout <= 0 {
		return fmt.Errorf("remediation.execution_timeout must be positive")
	}
	return nil
}

func validateEvidence(cfg *EvidenceConfig) error {
	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("evidence.backend %q is not supported (want sqlite or memory)", cfg.Backend)
	}
	if cfg.Backend == "sqlite" && cfg.SQLitePath == "" {
		return fmt.Errorf("evidence.sqlite_path is required for the sqlite backend")
	}
	if cfg.AuditSchedule != "" {
		if _, err := cron.ParseStandard(cfg.AuditSchedule); err != nil {
			return fmt.Errorf("evidence.audit_schedule %q is not a valid cron expression: %w",
				cfg.AuditSchedule, err)
		}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is not supported", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is not supported", cfg.Logging.Format)
	}
	return nil
}
