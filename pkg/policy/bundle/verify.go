package bundle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"
)

// Verifier checks bundle payloads against a trusted signer set. A payload is
// accepted if its signature verifies under any one of the keys.
type Verifier struct {
	keys []ed25519.PublicKey
}

// NewVerifier creates a Verifier from the given public keys. At least one
// key is required.
func NewVerifier(keys []ed25519.PublicKey) (*Verifier, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("trusted signer set is empty")
	}
	for i, key := range keys {
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("trusted key %d has invalid size %d", i, len(key))
		}
	}
	return &Verifier{keys: keys}, nil
}

// NewVerifierFromFiles loads PEM-encoded Ed25519 public keys from the given
// paths and creates a Verifier.
func NewVerifierFromFiles(paths []string) (*Verifier, error) {
	keys := make([]ed25519.PublicKey, 0, len(paths))
	for _, path := range paths {
		key, err := LoadPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("trusted signer key %q: %w", path, err)
		}
		keys = append(keys, key)
	}
	return NewVerifier(keys)
}

// Verify checks the signature over payload against the trusted signer set.
// Returns ErrSignatureInvalid if no key verifies or the signature is
// malformed; a signature is never soft-accepted.
func (v *Verifier) Verify(payload, signature []byte) error {
	if len(signature) != ed25519.SignatureSize {
		return ErrSignatureInvalid
	}
	for _, key := range v.keys {
		if ed25519.Verify(key, payload, signature) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

// DecodeSignature parses a detached signature file: a single hex-encoded
// line, surrounding whitespace ignored.
func DecodeSignature(data []byte) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return sig, nil
}

// EncodeSignature renders a signature in the detached hex format produced
// by Sign and consumed by DecodeSignature.
func EncodeSignature(sig []byte) []byte {
	return []byte(hex.EncodeToString(sig) + "\n")
}

// Sign signs a bundle payload with a PEM-encoded private key. Used by the
// CLI's bundle sign command and by tests; the engine itself only verifies.
func Sign(payload []byte, privateKeyPath string) ([]byte, error) {
	keyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if block.Type != privateKeyType {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", privateKeyType, block.Type)
	}

	privateKey := ed25519.PrivateKey(block.Bytes)
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size")
	}

	return ed25519.Sign(privateKey, payload), nil
}

// LoadPublicKey reads a PEM-encoded Ed25519 public key from disk.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if block.Type != publicKeyType {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", publicKeyType, block.Type)
	}

	key := ed25519.PublicKey(block.Bytes)
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size")
	}
	return key, nil
}

// GenerateKeys creates an Ed25519 keypair and writes both halves as PEM
// files. Used by the CLI's keys generate command.
func GenerateKeys(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	if err := writePEM(privateKeyPath, privateKeyType, privateKey); err != nil {
		return err
	}
	return writePEM(publicKeyPath, publicKeyType, publicKey)
}

func writePEM(path, blockType string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", strings.ToLower(blockType), err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: data}); err != nil {
		return fmt.Errorf("failed to write %s: %w", strings.ToLower(blockType), err)
	}
	return nil
}
