// Package bundle implements the policy bundle store: signed YAML rule sets
// verified against a trusted Ed25519 signer set and activated by a single
// atomic pointer swap. Readers always observe a complete bundle; a rejected
// delivery leaves the previous bundle fully in force.
package bundle
