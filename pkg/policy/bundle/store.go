package bundle

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Store owns the active policy bundle. Loading verifies the signature and
// structure of a candidate first and only then swaps a single pointer, so
// readers always see either the complete previous bundle or the complete new
// one, never a partial application. Readers never block on a reload.
type Store struct {
	verifier *Verifier
	active   atomic.Pointer[Snapshot]
	logger   *slog.Logger

	// OnActivate, if set, is called after each successful activation with
	// the new snapshot. Set before the first Load; the controller uses it
	// to append activation evidence.
	OnActivate func(snapshot *Snapshot)
}

// Snapshot is an immutable view of an activated bundle.
type Snapshot struct {
	// Bundle is the verified rule set. Callers must not mutate it.
	Bundle *Bundle

	// ActivatedAt is when this bundle became the active one.
	ActivatedAt time.Time
}

// NewStore creates a Store with no active bundle. Evaluation against an
// empty store fails with ErrNoActiveBundle until the first successful Load.
func NewStore(verifier *Verifier) *Store {
	return &Store{
		verifier: verifier,
		logger:   slog.Default().With("component", "policy.bundle"),
	}
}

// Load verifies and activates a bundle delivered as (payload, signature).
// On any failure the previously active bundle remains fully in force.
//
// Returns the new bundle's version id on success, ErrSignatureInvalid if no
// trusted signer verifies the payload, or a MalformedError if the payload
// fails parsing or structural validation.
func (s *Store) Load(payload, signature []byte) (string, error) {
	if err := s.verifier.Verify(payload, signature); err != nil {
		s.logger.Warn("rejected bundle with invalid signature", "payload_bytes", len(payload))
		return "", err
	}

	b, err := Parse(payload)
	if err != nil {
		s.logger.Warn("rejected malformed bundle", "error", err)
		return "", err
	}

	snapshot := &Snapshot{Bundle: b, ActivatedAt: time.Now().UTC()}
	prev := s.active.Swap(snapshot)

	prevVersion := "none"
	if prev != nil {
		prevVersion = prev.Bundle.Version
	}
	s.logger.Info("activated policy bundle",
		"version", b.Version,
		"signer", b.Signer,
		"rules", len(b.Rules),
		"previous_version", prevVersion,
	)
	if s.OnActivate != nil {
		s.OnActivate(snapshot)
	}
	return b.Version, nil
}

// Active returns the current bundle snapshot. The snapshot is immutable and
// stays valid even if a newer bundle is activated concurrently.
func (s *Store) Active() (*Snapshot, error) {
	snapshot := s.active.Load()
	if snapshot == nil {
		return nil, ErrNoActiveBundle
	}
	return snapshot, nil
}
