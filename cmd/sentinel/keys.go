package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aegis-hq/sentinel/pkg/cli"
	"aegis-hq/sentinel/pkg/policy/bundle"
)

var keysFlags struct {
	privateKey string
	publicKey  string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage bundle signing keys",
	Long: `Generate Ed25519 keypairs for policy bundle signing.

The private key signs bundles at the distribution side; the public key goes
into the engine's trusted signer set (policy.trusted_signer_keys).

Examples:
  # Generate a keypair
  sentinel keys generate

  # Custom output paths
  sentinel keys generate --private /etc/sentinel/signer.pem --public signer.pub`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new signing keypair",
	Long: `Generate a new Ed25519 keypair for bundle signing.

The generated keys are saved to PEM files with restrictive permissions:
  - Public key:  0644 (readable by all)
  - Private key: 0600 (readable only by owner)`,
	RunE: generateKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.privateKey, "private", "signer.pem", "private key output path")
	keysGenerateCmd.Flags().StringVar(&keysFlags.publicKey, "public", "signer.pub", "public key output path")
}

func generateKeys(cmd *cobra.Command, args []string) error {
	if err := bundle.GenerateKeys(keysFlags.privateKey, keysFlags.publicKey); err != nil {
		return cli.NewCommandError("keys generate", err)
	}
	fmt.Printf("✓ Private key written to %s\n", keysFlags.privateKey)
	fmt.Printf("✓ Public key written to %s\n", keysFlags.publicKey)
	return nil
}
