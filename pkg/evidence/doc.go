// Package evidence defines the append-only evidence ledger's record types,
// storage contract, and errors. Each record carries a SHA-256 hash binding
// it to its predecessor; subpackages implement the chained writer, the
// storage backends, exporters, and the scheduled self-audit.
package evidence
