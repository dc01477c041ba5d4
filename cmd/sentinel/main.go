// Sentinel is a policy enforcement and automated remediation engine.
//
// It ingests risk events from detection producers, evaluates them against a
// signed policy bundle, and drives remediation actions against operator-run
// targets, leaving a hash-chained evidence trail for every decision:
//   - Signed policy bundle verification and hot activation
//   - Severity-normalized risk event intake
//   - Deterministic rule matching with configurable tie-breaking
//   - Per-subject incident lifecycle with retry budgets and cooldowns
//   - Idempotent action dispatch against webhook targets
//   - Append-only, hash-chained evidence ledger with self-audit
//
// Usage:
//
//	# Start the engine with default configuration
//	sentinel run
//
//	# Start with custom configuration file
//	sentinel run --config /path/to/config.yaml
//
//	# Show version information
//	sentinel version
//
//	# Validate a policy bundle
//	sentinel bundle validate --file bundle.yaml
//
//	# Sign a policy bundle
//	sentinel bundle sign --file bundle.yaml --key signer.pem
//
//	# Verify the evidence chain
//	sentinel ledger verify
//
//	# Export evidence records
//	sentinel ledger export --format csv --output evidence.csv
package main

func main() {
	Execute()
}
