// Package audit schedules periodic full-chain verification of the evidence
// ledger and surfaces detected corruption to the controller.
package audit
