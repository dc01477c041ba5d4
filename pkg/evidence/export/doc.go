// Package export provides JSON and CSV exporters for evidence records, used
// by the admin API and the ledger CLI.
package export
