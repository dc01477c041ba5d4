// Package controller wires the event pipeline end to end: normalization,
// policy evaluation, incident resolution, and evidence recording. It also
// owns fail-safe mode, which halts action dispatch once the evidence ledger
// is known corrupted while events keep being accepted and recorded.
package controller
