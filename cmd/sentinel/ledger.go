package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"aegis-hq/sentinel/pkg/cli"
	"aegis-hq/sentinel/pkg/config"
	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/export"
	"aegis-hq/sentinel/pkg/evidence/ledger"
	"aegis-hq/sentinel/pkg/evidence/storage"
)

var ledgerFlags struct {
	correlationKey string
	kind           string
	fromSequence   uint64
	toSequence     uint64
	limit          int
	format         string
	output         string
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the evidence ledger",
	Long: `Verify and export the evidence ledger offline.

These commands open the ledger configured in the engine's config file
directly, without a running engine. Run them against a stopped engine or a
copy of the database.

Subcommands:
  verify - Recompute the hash chain and report the first corruption
  export - Export matching records as JSON or CSV

Examples:
  # Verify the whole chain
  sentinel ledger verify

  # Export one subject's trail
  sentinel ledger export --correlation-key vault-7 --format json

  # Export remediation attempts to a file
  sentinel ledger export --kind remediation-attempt --format csv --output attempts.csv`,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the evidence chain",
	Long: `Recompute every record hash and prev-hash link from the first
record to the tail. Reports the sequence number of the first corrupted
record, if any.`,
	RunE: verifyLedgerChain,
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export evidence records",
	Long:  `Export matching evidence records as JSON or CSV.`,
	RunE:  exportLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd, ledgerExportCmd)

	ledgerVerifyCmd.Flags().Uint64Var(&ledgerFlags.fromSequence, "from", 0, "first sequence to verify (0 = chain start)")
	ledgerVerifyCmd.Flags().Uint64Var(&ledgerFlags.toSequence, "to", 0, "last sequence to verify (0 = chain tail)")

	ledgerExportCmd.Flags().StringVar(&ledgerFlags.correlationKey, "correlation-key", "", "filter by correlation key")
	ledgerExportCmd.Flags().StringVar(&ledgerFlags.kind, "kind", "", "filter by record kind")
	ledgerExportCmd.Flags().IntVar(&ledgerFlags.limit, "limit", 0, "cap the number of records (0 = no cap)")
	ledgerExportCmd.Flags().StringVar(&ledgerFlags.format, "format", "json", "output format: json, csv")
	ledgerExportCmd.Flags().StringVarP(&ledgerFlags.output, "output", "o", "", "output file (default stdout)")
}

// openLedger opens the configured ledger backend read-side.
func openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if cfg.Evidence.Backend != "sqlite" {
		return nil, nil, cli.NewConfigError("evidence.backend",
			"offline ledger commands require the sqlite backend")
	}

	sqliteConfig := storage.DefaultSQLiteConfig()
	sqliteConfig.Path = cfg.Evidence.SQLitePath
	backend, err := storage.NewSQLiteStorage(sqliteConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open evidence storage: %w", err)
	}

	l, err := ledger.Open(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to open evidence ledger: %w", err)
	}
	return l, func() { backend.Close() }, nil
}

func verifyLedgerChain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	l, closeLedger, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	var verified uint64
	if ledgerFlags.fromSequence == 0 && ledgerFlags.toSequence == 0 {
		verified, err = l.VerifyAll(ctx)
	} else {
		from := ledgerFlags.fromSequence
		if from == 0 {
			from = 1
		}
		to := ledgerFlags.toSequence
		if to == 0 {
			to = l.Sequence()
		}
		verified, err = l.Verify(ctx, from, to)
	}
	if err != nil {
		return cli.NewCommandError("ledger verify", err)
	}
	fmt.Printf("✓ Chain intact, %d records verified\n", verified)
	return nil
}

func exportLedger(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	l, closeLedger, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	records, err := l.Query(ctx, &evidence.Query{
		CorrelationKey: ledgerFlags.correlationKey,
		Kind:           evidence.RecordKind(ledgerFlags.kind),
		Limit:          ledgerFlags.limit,
	})
	if err != nil {
		return cli.NewCommandError("ledger export", err)
	}

	var exporter evidence.Exporter
	switch ledgerFlags.format {
	case "json":
		exporter = export.NewJSONExporter(true)
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		return cli.NewConfigError("format",
			fmt.Sprintf("unsupported export format: %s", ledgerFlags.format))
	}

	var w io.Writer = os.Stdout
	if ledgerFlags.output != "" {
		f, err := os.Create(ledgerFlags.output)
		if err != nil {
			return cli.NewCommandError("ledger export", err)
		}
		defer f.Close()
		w = f
	}

	if err := exporter.Export(ctx, records, w); err != nil {
		return cli.NewCommandError("ledger export", err)
	}
	if ledgerFlags.output != "" {
		fmt.Printf("✓ Exported %d records to %s\n", len(records), ledgerFlags.output)
	}
	return nil
}
