package commands

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/attest"
	"github.com/boycivenga/netgate/internal/errors"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "verify",
		Short:        "Verify artifact attestations",
		SilenceUsage: true,
		Long: `Verify checks the signed attestation sidecar of every artifact the
glob matches: subject digest, ed25519 signature, and builder identity.

In production mode verification is fail-closed: any failed artifact
fails the batch, zero matches is an error, and the bypass flag is
rejected outright. In development mode a bypass converts failures into
verified-with-bypass results that stay visible in the output.`,
		Example: `  # Verify every tfvars artifact in the configured output directory
  netgate verify

  # Verify an explicit glob against a specific trusted key
  netgate verify --glob 'artifacts/tfvars/*.tfvars.json' --public-key cosign.pub

  # Development bypass for local iteration (never allowed in production)
  netgate verify --environment development --bypass

  # Machine-readable batch result
  netgate verify -o json`,
		RunE: runVerify,
	}

	cmd.Flags().String("glob", "", "artifact glob pattern (default: <render.output_dir>/*.tfvars.json)")
	cmd.Flags().String("environment", "", "verification mode: production or development (default from config)")
	cmd.Flags().Bool("bypass", false, "allow bypass of failed verification (development only)")
	cmd.Flags().String("public-key", "", "trusted public key PEM file (default from config)")
	cmd.Flags().String("builder-id", "", "trusted builder identity (default from config)")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := newLogger()

	envName, _ := cmd.Flags().GetString("environment")
	if envName == "" {
		envName = cfg.Attest.Environment
	}
	env, err := attest.ParseEnvironment(envName)
	if err != nil {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageVerify, err.Error()).
			WithSolutions("Use --environment production or --environment development")
	}

	keyPath, _ := cmd.Flags().GetString("public-key")
	if keyPath == "" {
		keyPath = cfg.Attest.PublicKey
	}
	if keyPath == "" {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageVerify, "no trusted public key configured").
			WithSolutions(
				"Pass --public-key or set attest.public_key in the config file",
				"Generate a key pair with: netgate keygen",
			)
	}
	publicKey, err := attest.LoadPublicKey(keyPath)
	if err != nil {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageVerify,
			fmt.Sprintf("failed to load public key %s", keyPath)).
			WithCause(err.Error())
	}

	builderID, _ := cmd.Flags().GetString("builder-id")
	if builderID == "" {
		builderID = cfg.Attest.BuilderID
	}

	pattern, _ := cmd.Flags().GetString("glob")
	if pattern == "" {
		pattern = filepath.Join(cfg.Render.OutputDir, "*.tfvars.json")
	}

	bypass, _ := cmd.Flags().GetBool("bypass")
	verifier := attest.NewVerifier(env, bypass, publicKey, builderID, log)

	batch, verifyErr := verifier.VerifyGlob(pattern)
	if batch != nil {
		printBatch(cmd, batch)
	}
	if verifyErr != nil {
		return mapVerifyError(verifyErr)
	}

	return nil
}

func printBatch(cmd *cobra.Command, batch *attest.BatchResult) {
	format, _ := cmd.Root().PersistentFlags().GetString("output")
	if format == "json" {
		encoded, err := json.MarshalIndent(batch, "", "  ")
		if err == nil {
			fmt.Println(string(encoded))
		}
		return
	}

	for _, res := range batch.Results {
		line := fmt.Sprintf("%-10s %s", res.State, res.Artifact)
		if res.Bypassed {
			line += " (bypassed)"
		}
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		fmt.Println(line)
	}
	fmt.Printf("verified: %d  failed: %d\n", batch.VerifiedCount, batch.FailedCount)
}

// mapVerifyError classifies verifier sentinels so each failure mode
// keeps its stable exit code.
func mapVerifyError(err error) error {
	switch {
	case stderrors.Is(err, attest.ErrBypassNotAllowed):
		return errors.New(errors.ErrorTypeConfiguration, errors.StageVerify,
			"bypass is not permitted in production").
			WithCause(err.Error()).
			WithSolutions(
				"Remove the --bypass flag",
				"Use --environment development for local iteration",
			)
	case stderrors.Is(err, attest.ErrNoArtifactsFound):
		return errors.New(errors.ErrorTypeVerification, errors.StageVerify,
			"no artifacts matched the pattern").
			WithCause(err.Error()).
			WithSolutions(
				"Run netgate render first",
				"Check the --glob pattern against the artifact directory",
			)
	default:
		return errors.New(errors.ErrorTypeVerification, errors.StageVerify,
			"artifact verification failed").
			WithCause(err.Error()).
			WithSolutions(
				"Re-render the artifacts and re-attest them",
				"Check that the public key and builder id match the signing pipeline",
			)
	}
}
