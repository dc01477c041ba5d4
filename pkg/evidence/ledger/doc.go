// Package ledger implements the hash-chained append-only writer and the
// chain verifier over an evidence storage backend.
package ledger
