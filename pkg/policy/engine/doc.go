// Package engine implements the risk evaluator: matching normalized events
// against the active policy bundle, breaking ties by configurable criteria
// (priority, scope specificity), and consulting incident state for cooldown
// suppression before a Decision is produced.
package engine
