package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/attest"
	"github.com/boycivenga/netgate/internal/errors"
)

func newKeygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "keygen",
		Short:        "Generate an ed25519 signing key pair",
		SilenceUsage: true,
		Long: `Keygen writes a PEM-encoded ed25519 key pair for attestation
signing and verification. The private key belongs in the build
system's secret store; the public key is the trusted key every
verifier is configured with.`,
		Example: `  # Generate signer.pem (private) and signer.pub (public)
  netgate keygen

  # Custom paths
  netgate keygen --private ci-signer.pem --public ci-signer.pub`,
		RunE: runKeygen,
	}

	cmd.Flags().String("private", "signer.pem", "private key output path")
	cmd.Flags().String("public", "signer.pub", "public key output path")

	return cmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	publicPath, _ := cmd.Flags().GetString("public")
	privatePath, _ := cmd.Flags().GetString("private")

	if err := attest.GenerateKeyPair(publicPath, privatePath); err != nil {
		return errors.New(errors.ErrorTypeFileSystem, errors.StageVerify, "failed to generate key pair").
			WithCause(err.Error())
	}

	fmt.Printf("wrote %s (private) and %s (public)\n", privatePath, publicPath)
	return nil
}
