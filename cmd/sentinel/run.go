package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"aegis-hq/sentinel/pkg/cli"
	"aegis-hq/sentinel/pkg/config"
	"aegis-hq/sentinel/pkg/controller"
	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/audit"
	"aegis-hq/sentinel/pkg/evidence/ledger"
	"aegis-hq/sentinel/pkg/evidence/storage"
	"aegis-hq/sentinel/pkg/incident"
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/policy/engine"
	"aegis-hq/sentinel/pkg/remediation"
	"aegis-hq/sentinel/pkg/server"
	"aegis-hq/sentinel/pkg/signal"
	"aegis-hq/sentinel/pkg/telemetry/logging"
	"aegis-hq/sentinel/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Sentinel engine",
	Long: `Start the Sentinel engine with the specified configuration.

The engine listens on the configured address, accepts risk events from
detection producers, evaluates them against the active policy bundle, and
drives remediation through the configured target.

Examples:
  # Start with default config
  sentinel run

  # Start with custom config
  sentinel run --config /etc/sentinel/config.yaml

  # Override listen address
  sentinel run --listen 0.0.0.0:8343

  # Validate config without starting the engine
  sentinel run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if _, err := logging.Setup(&cfg.Telemetry.Logging, os.Stdout); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Sentinel v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Policy bundle store and delivery watcher
	verifier, err := bundle.NewVerifierFromFiles(cfg.Policy.TrustedSignerKeys)
	if err != nil {
		return cli.NewConfigError("policy.trusted_signer_keys", err.Error())
	}
	store := bundle.NewStore(verifier)

	// Evidence ledger
	var backend evidence.Storage
	switch cfg.Evidence.Backend {
	case "sqlite":
		sqliteConfig := storage.DefaultSQLiteConfig()
		sqliteConfig.Path = cfg.Evidence.SQLitePath
		backend, err = storage.NewSQLiteStorage(sqliteConfig)
		if err != nil {
			return fmt.Errorf("failed to create SQLite evidence storage: %w", err)
		}
	case "memory":
		backend = storage.NewMemoryStorage()
	default:
		return cli.NewConfigError("evidence.backend",
			fmt.Sprintf("unsupported backend: %s", cfg.Evidence.Backend))
	}
	defer backend.Close()

	l, err := ledger.Open(ctx, backend)
	if err != nil {
		return fmt.Errorf("failed to open evidence ledger: %w", err)
	}
	fmt.Printf("✓ Evidence ledger opened (%s, %d records)\n", cfg.Evidence.Backend, l.Sequence())

	// Remediation dispatch
	var target remediation.TargetClient
	if cfg.Remediation.TargetURL != "" {
		target = remediation.NewWebhookTarget(cfg.Remediation.TargetURL, cfg.Remediation.TargetTimeout)
	} else {
		slog.Warn("no remediation target configured, commands go to the log only")
		target = remediation.LogTarget{}
	}
	registry := remediation.NewRegistry()
	remediation.RegisterBuiltins(registry, target, remediation.LogAlerter{})
	for _, kind := range cfg.Remediation.DisabledActions {
		if !registry.SetEnabled(bundle.ActionKind(kind), false) {
			slog.Warn("cannot disable unknown action kind", "kind", kind)
		}
	}

	var idemStore remediation.IdempotencyStore
	if cfg.Remediation.IdempotencyStorePath != "" {
		idemStore, err = remediation.NewSQLiteStore(cfg.Remediation.IdempotencyStorePath)
		if err != nil {
			return fmt.Errorf("failed to open idempotency store: %w", err)
		}
	} else {
		slog.Warn("using in-memory idempotency store, attempt outcomes are lost on restart")
		idemStore = remediation.NewMemoryStore()
	}
	defer idemStore.Close()

	dispatcher := remediation.NewDispatcher(registry, idemStore, &remediation.DispatcherConfig{
		ExecutionTimeout: cfg.Remediation.ExecutionTimeout,
	})

	// Incident tracking and evaluation
	tracker := incident.NewTracker(dispatcher, &incident.TrackerConfig{
		MaxAttempts:    cfg.Incident.MaxAttempts,
		InitialBackoff: cfg.Incident.InitialBackoff,
		MaxBackoff:     cfg.Incident.MaxBackoff,
	}, nil)

	criteria, err := engine.ParseCriteria(cfg.Evaluation.TieBreak)
	if err != nil {
		return cli.NewConfigError("evaluation.tie_break", err.Error())
	}
	evaluator := engine.NewEvaluator(criteria, tracker)

	// Telemetry
	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry := metrics.NewRegistry()
		m = metrics.New(&cfg.Telemetry.Metrics, promRegistry)
		metricsHandler = metrics.Handler(promRegistry)
	}

	ctrl := controller.New(signal.NewNormalizer(), store, evaluator, tracker, l, m,
		&controller.Config{EvidenceTimeout: cfg.Evidence.WriteTimeout})

	// Activate a pre-delivered bundle and keep watching for redeliveries.
	var watcher *bundle.DeliveryWatcher
	if cfg.Policy.DeliveryDir != "" {
		watcher, err = bundle.NewDeliveryWatcher(store, &bundle.DeliveryWatcherConfig{
			Dir:              cfg.Policy.DeliveryDir,
			BundleFile:       cfg.Policy.BundleFile,
			SignatureFile:    cfg.Policy.SignatureFile,
			DebounceInterval: cfg.Policy.DebounceInterval,
		})
		if err != nil {
			return cli.NewConfigError("policy.delivery_dir", err.Error())
		}
		if version, err := watcher.LoadOnce(); err != nil {
			slog.Warn("no bundle activated at startup", "error", err)
		} else {
			fmt.Printf("✓ Policy bundle %s activated\n", version)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("delivery watcher stopped", "error", err)
			}
		}()
	} else {
		slog.Warn("no delivery directory configured, bundle activation requires the admin API")
	}

	// Scheduled ledger self-audit
	if cfg.Evidence.AuditSchedule != "" {
		scheduler := audit.NewScheduler(l, cfg.Evidence.AuditSchedule)
		scheduler.OnCorruption = ctrl.OnCorruption
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewConfigError("evidence.audit_schedule", err.Error())
		}
		defer scheduler.Stop()
	}

	srv := server.NewServer(&cfg.Server, &server.Deps{
		Controller: ctrl,
		Tracker:    tracker,
		Ledger:     l,
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store,
		Watcher:    watcher,
		Metrics:    metricsHandler,
	})

	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Engine stopped")
	return nil
}
