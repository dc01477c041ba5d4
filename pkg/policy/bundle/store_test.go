package bundle

import (
	"errors"
	"path/filepath"
	"testing"
)

// newTestStore generates a signer keypair in a temp dir and returns a store
// trusting it plus a sign function for test payloads.
func newTestStore(t *testing.T) (*Store, func(payload []byte) []byte) {
	t.Helper()
	dir := t.TempDir()
	privPath := filepath.Join(dir, "signer.key")
	pubPath := filepath.Join(dir, "signer.pub")

	if err := GenerateKeys(privPath, pubPath); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	verifier, err := NewVerifierFromFiles([]string{pubPath})
	if err != nil {
		t.Fatalf("NewVerifierFromFiles() error = %v", err)
	}

	sign := func(payload []byte) []byte {
		sig, err := Sign(payload, privPath)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		return sig
	}
	return NewStore(verifier), sign
}

// TestStore_LoadAndActive tests the basic load/activate/read cycle.
func TestStore_LoadAndActive(t *testing.T) {
	store, sign := newTestStore(t)

	if _, err := store.Active(); !errors.Is(err, ErrNoActiveBundle) {
		t.Fatalf("Active() before load: error = %v, want ErrNoActiveBundle", err)
	}

	payload := []byte(validBundleYAML)
	version, err := store.Load(payload, sign(payload))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if version != "2026.03.01" {
		t.Errorf("version = %q", version)
	}

	snapshot, err := store.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if snapshot.Bundle.Version != version {
		t.Errorf("active version = %q, want %q", snapshot.Bundle.Version, version)
	}
}

// TestStore_TamperedPayloadRejected flips single bytes of a signed payload
// and verifies every mutation is rejected with the previous bundle intact.
func TestStore_TamperedPayloadRejected(t *testing.T) {
	store, sign := newTestStore(t)

	payload := []byte(validBundleYAML)
	sig := sign(payload)
	if _, err := store.Load(payload, sig); err != nil {
		t.Fatalf("initial Load() error = %v", err)
	}

	// Mutate a spread of byte positions after signing.
	for offset := 0; offset < len(payload); offset += 37 {
		tampered := make([]byte, len(payload))
		copy(tampered, payload)
		tampered[offset] ^= 0x01

		_, err := store.Load(tampered, sig)
		if !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("Load(tampered@%d) error = %v, want ErrSignatureInvalid", offset, err)
		}

		snapshot, err := store.Active()
		if err != nil {
			t.Fatalf("Active() after rejection: error = %v", err)
		}
		if snapshot.Bundle.Version != "2026.03.01" {
			t.Fatalf("active bundle changed after rejected load: %q", snapshot.Bundle.Version)
		}
	}
}

// TestStore_MalformedSignedBundleRejected tests that a correctly signed but
// structurally invalid bundle is rejected without replacing the active one.
func TestStore_MalformedSignedBundleRejected(t *testing.T) {
	store, sign := newTestStore(t)

	good := []byte(validBundleYAML)
	if _, err := store.Load(good, sign(good)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bad := []byte("version: v2\nrules: []\n")
	_, err := store.Load(bad, sign(bad))
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("Load(malformed) error = %v, want *MalformedError", err)
	}

	snapshot, _ := store.Active()
	if snapshot.Bundle.Version != "2026.03.01" {
		t.Fatalf("active bundle changed after malformed load: %q", snapshot.Bundle.Version)
	}
}

// TestStore_UntrustedSignerRejected tests that a signature from outside the
// trusted set never activates, even if it is a valid Ed25519 signature.
func TestStore_UntrustedSignerRejected(t *testing.T) {
	store, _ := newTestStore(t)

	dir := t.TempDir()
	roguePriv := filepath.Join(dir, "rogue.key")
	roguePub := filepath.Join(dir, "rogue.pub")
	if err := GenerateKeys(roguePriv, roguePub); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}

	payload := []byte(validBundleYAML)
	rogueSig, err := Sign(payload, roguePriv)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := store.Load(payload, rogueSig); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("Load(rogue-signed) error = %v, want ErrSignatureInvalid", err)
	}
}

// TestStore_SnapshotSurvivesSwap tests that a held snapshot stays readable
// after a newer bundle is activated.
func TestStore_SnapshotSurvivesSwap(t *testing.T) {
	store, sign := newTestStore(t)

	first := []byte(validBundleYAML)
	if _, err := store.Load(first, sign(first)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	held, _ := store.Active()

	second := []byte(`
version: "2026.03.02"
signer: risk-council
rules:
  - id: only-rule
    kind: aa-anomaly
    severity_threshold: 4
    scope: "*"
    action: pause
    priority: 1
    cooldown: 5m
`)
	if _, err := store.Load(second, sign(second)); err != nil {
		t.Fatalf("Load(second) error = %v", err)
	}

	if held.Bundle.Version != "2026.03.01" || len(held.Bundle.Rules) != 3 {
		t.Error("held snapshot mutated by reload")
	}
	current, _ := store.Active()
	if current.Bundle.Version != "2026.03.02" {
		t.Errorf("current version = %q, want 2026.03.02", current.Bundle.Version)
	}
}

// TestDecodeSignature_RoundTrip tests the detached signature encoding.
func TestDecodeSignature_RoundTrip(t *testing.T) {
	_, sign := newTestStore(t)
	sig := sign([]byte("payload"))

	decoded, err := DecodeSignature(EncodeSignature(sig))
	if err != nil {
		t.Fatalf("DecodeSignature() error = %v", err)
	}
	if string(decoded) != string(sig) {
		t.Error("signature round-trip mismatch")
	}

	if _, err := DecodeSignature([]byte("not-hex!")); err == nil {
		t.Error("expected error for invalid encoding")
	}
}
