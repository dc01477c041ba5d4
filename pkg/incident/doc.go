// Package incident tracks the per-correlation-key lifecycle from first
// signal to operator acknowledgment. The tracker serializes work per key,
// drives remediation attempts through the dispatcher with exponential
// backoff, and answers suppression queries for the evaluator so a key under
// active remediation or inside its cooldown window never triggers a second
// action.
package incident
