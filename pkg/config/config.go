package config

import "time"

// Config is the root configuration structure for Sentinel. It contains all
// configuration sections for the ingest server, policy bundles, evaluation,
// incident handling, remediation, evidence storage, and telemetry.
type Config struct {
	// Server contains HTTP ingest/admin server configuration including
	// listen address, timeouts, and shutdown behavior.
	Server ServerConfig `yaml:"server"`

	// Policy contains configuration for bundle verification and activation,
	// including the trusted signer set and the delivery directory.
	Policy PolicyConfig `yaml:"policy"`

	// Evaluation contains configuration for the risk evaluator, including
	// the rule tie-break order.
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Incident contains configuration for the incident state tracker,
	// including the retry budget and backoff schedule.
	Incident IncidentConfig `yaml:"incident"`

	// Remediation contains configuration for the remediation dispatcher,
	// including execution timeouts and the idempotency store location.
	Remediation RemediationConfig `yaml:"remediation"`

	// Evidence contains configuration for the evidence ledger including
	// backend selection and the self-audit schedule.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP ingest and admin server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8343").
	// Default: "127.0.0.1:8343"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of accepted event payloads.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// PolicyConfig contains configuration for policy bundle handling.
type PolicyConfig struct {
	// TrustedSignerKeys lists paths to PEM-encoded Ed25519 public keys.
	// A bundle is accepted if its signature verifies against any one of
	// them. At least one key is required to run the engine.
	TrustedSignerKeys []string `yaml:"trusted_signer_keys"`

	// DeliveryDir is the directory watched for (bundle.yaml, bundle.sig)
	// pairs dropped by the distribution channel. Empty disables watching;
	// bundles can still be activated through the admin API.
	DeliveryDir string `yaml:"delivery_dir"`

	// BundleFile and SignatureFile are the file names expected inside
	// DeliveryDir.
	// Defaults: "bundle.yaml", "bundle.sig"
	BundleFile    string `yaml:"bundle_file"`
	SignatureFile string `yaml:"signature_file"`

	// DebounceInterval collapses bursts of file system events into a single
	// reload attempt.
	// Default: 500ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// EvaluationConfig contains configuration for the risk evaluator.
type EvaluationConfig struct {
	// TieBreak is the ordered list of criteria applied when multiple rules
	// match an event. Supported values: "priority", "specificity".
	// If every criterion ties, the evaluation is rejected as ambiguous.
	// Default: ["priority", "specificity"]
	TieBreak []string `yaml:"tie_break"`
}

// IncidentConfig contains configuration for the incident state tracker.
type IncidentConfig struct {
	// MaxAttempts is the remediation attempt budget per incident. Once
	// exhausted the incident escalates.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry. Subsequent
	// retries double the delay up to MaxBackoff.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential backoff delay.
	// Default: 1m
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// RemediationConfig contains configuration for the remediation dispatcher.
type RemediationConfig struct {
	// ExecutionTimeout bounds a single handler execution. Exceeding it
	// yields a timeout outcome, which is retryable.
	// Default: 30s
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`

	// IdempotencyStorePath is the SQLite file backing the idempotency
	// store. Empty selects the in-memory store (attempt outcomes are then
	// lost on restart).
	// Default: "data/idempotency.db"
	IdempotencyStorePath string `yaml:"idempotency_store_path"`

	// DisabledActions lists action kinds that must not be dispatched even
	// if a rule selects them. Dispatching a disabled action fails as an
	// unknown action kind.
	DisabledActions []string `yaml:"disabled_actions"`

	// TargetURL is the webhook endpoint remediation commands are posted
	// to. Empty selects the log-only target, which records commands
	// without touching any system.
	TargetURL string `yaml:"target_url"`

	// TargetTimeout bounds a single webhook request.
	// Default: 10s
	TargetTimeout time.Duration `yaml:"target_timeout"`
}

// EvidenceConfig contains configuration for the evidence ledger.
type EvidenceConfig struct {
	// Backend selects the storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/ledger.db"
	SQLitePath string `yaml:"sqlite_path"`

	// AuditSchedule is a cron expression for periodic full-range chain
	// verification. Empty disables scheduled self-audit.
	// Default: "0 3 * * *" (daily at 3 AM)
	AuditSchedule string `yaml:"audit_schedule"`

	// WriteTimeout bounds a single ledger append.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TelemetryConfig contains configuration for logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "sentinel"
	Namespace string `yaml:"namespace"`
}
