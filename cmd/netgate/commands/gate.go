package commands

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/attest"
	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/gate"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/output"
	"github.com/boycivenga/netgate/internal/policy"
	"github.com/boycivenga/netgate/internal/render"
)

func newGateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gate",
		Short:        "Run the full render, verify, evaluate pipeline",
		SilenceUsage: true,
		Long: `Gate sequences the pipeline end to end under a single run id:
render the intent, attest and verify the artifacts, then evaluate the
plan document against policy. A stage input whose provenance does not
trace back to this run is rejected.

The gate stops at the decision. Exit codes tell the orchestrator what
happened: 0 allow, 2 allow with approval required, 3 policy denial,
4 verification failure.`,
		Example: `  # Full run with signing in a development setup
  netgate gate --intent intent.json --plan plan-with-metadata.json \
    --environment development --private-key signer.pem --public-key signer.pub

  # Production gate: artifacts were attested by the build system
  netgate gate --plan plan-with-metadata.json \
    --pr 412 --approver alice

  # Render and verify only, no plan to evaluate yet
  netgate gate --intent intent.json`,
		RunE: runGate,
	}

	cmd.Flags().String("intent", "", "intent file or directory (default from config)")
	cmd.Flags().String("output-dir", "", "directory for tfvars artifacts (default from config)")
	cmd.Flags().String("plan", "", "plan+metadata document to evaluate")
	cmd.Flags().String("run-id", "", "render run id (default: GITHUB_RUN_ID or generated)")
	cmd.Flags().String("pr", "", "approving pull request number")
	cmd.Flags().String("approver", "", "approving reviewer")
	cmd.Flags().String("environment", "", "verification mode: production or development (default from config)")
	cmd.Flags().Bool("bypass", false, "allow bypass of failed verification (development only)")
	cmd.Flags().String("public-key", "", "trusted public key PEM file (default from config)")
	cmd.Flags().String("private-key", "", "sign rendered artifacts with this key (default from config)")
	cmd.Flags().String("builder-id", "", "builder identity for signing and verification (default from config)")

	return cmd
}

func runGate(cmd *cobra.Command, args []string) error {
	log := newLogger()

	in, _ := cmd.Flags().GetString("intent")
	if in == "" {
		in = cfg.Render.IntentDir
	}
	outDir, _ := cmd.Flags().GetString("output-dir")
	if outDir == "" {
		outDir = cfg.Render.OutputDir
	}

	envName, _ := cmd.Flags().GetString("environment")
	if envName == "" {
		envName = cfg.Attest.Environment
	}
	env, err := attest.ParseEnvironment(envName)
	if err != nil {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageGate, err.Error()).
			WithSolutions("Use --environment production or --environment development")
	}

	keyPath, _ := cmd.Flags().GetString("public-key")
	if keyPath == "" {
		keyPath = cfg.Attest.PublicKey
	}
	if keyPath == "" {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageGate, "no trusted public key configured").
			WithSolutions(
				"Pass --public-key or set attest.public_key in the config file",
				"Generate a key pair with: netgate keygen",
			)
	}
	publicKey, err := attest.LoadPublicKey(keyPath)
	if err != nil {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageGate,
			fmt.Sprintf("failed to load public key %s", keyPath)).
			WithCause(err.Error())
	}

	builderID, _ := cmd.Flags().GetString("builder-id")
	if builderID == "" {
		builderID = cfg.Attest.BuilderID
	}

	var signer *attest.Signer
	privPath, _ := cmd.Flags().GetString("private-key")
	if privPath == "" {
		privPath = cfg.Attest.PrivateKey
	}
	if privPath != "" {
		priv, err := attest.LoadPrivateKey(privPath)
		if err != nil {
			return errors.New(errors.ErrorTypeConfiguration, errors.StageGate,
				fmt.Sprintf("failed to load private key %s", privPath)).
				WithCause(err.Error())
		}
		signer = attest.NewSigner(priv, "netgate", builderID)
	}

	set, err := intent.Load(in, log)
	if err != nil {
		return err
	}

	bypass, _ := cmd.Flags().GetBool("bypass")
	verifier := attest.NewVerifier(env, bypass, publicKey, builderID, log)
	renderer := render.New(log, cfg.Render.Workers)

	runID, _ := cmd.Flags().GetString("run-id")
	planFile, _ := cmd.Flags().GetString("plan")
	prNumber, _ := cmd.Flags().GetString("pr")
	approver, _ := cmd.Flags().GetString("approver")

	g := gate.New(renderer, signer, verifier, policy.NewEngine(), log)
	outcome, runErr := g.Run(cmd.Context(), set, gate.Options{
		OutputDir: outDir,
		RunID:     runID,
		PRNumber:  prNumber,
		Approver:  approver,
		PlanFile:  planFile,
	})

	printOutcome(cmd, outcome)

	if runErr != nil {
		return mapGateError(runErr, outcome)
	}

	if outcome.Decision != nil {
		if !outcome.Decision.Allow {
			return errors.New(errors.ErrorTypePolicy, errors.StageGate,
				fmt.Sprintf("policy denied the plan (%d violation(s))", len(outcome.Decision.Violations)))
		}
		if outcome.Decision.ApprovalRequired {
			// The plan is valid but carries destructive changes; the
			// orchestrator must collect a human approval before apply.
			os.Exit(errors.ExitChangesPresent)
		}
	}

	return nil
}

func printOutcome(cmd *cobra.Command, outcome *gate.Outcome) {
	if outcome == nil {
		return
	}

	format, _ := cmd.Root().PersistentFlags().GetString("output")
	if format == "json" {
		encoded, err := json.MarshalIndent(outcome, "", "  ")
		if err == nil {
			fmt.Println(string(encoded))
		}
		return
	}

	fmt.Printf("run id: %s\n", outcome.RunID)
	if outcome.Render != nil {
		fmt.Printf("rendered: %d artifact(s)\n", len(outcome.Render.Written))
		for _, siteErr := range outcome.Render.Errors {
			fmt.Printf("  failed %s: %s\n", siteErr.Site, siteErr.Message)
		}
	}
	if outcome.Verify != nil {
		fmt.Printf("verified: %d  failed: %d\n", outcome.Verify.VerifiedCount, outcome.Verify.FailedCount)
	}
	if outcome.Decision != nil {
		noColor, _ := cmd.Root().PersistentFlags().GetBool("no-color")
		output.NewDecisionReporter(os.Stdout, noColor).Report(outcome.Decision)
	}
}

// mapGateError classifies a pipeline failure by the stage it came
// from, preserving stage-specific exit codes.
func mapGateError(err error, outcome *gate.Outcome) error {
	if outcome != nil && outcome.Render != nil && !outcome.Render.OK() {
		return errors.New(errors.ErrorTypeInput, errors.StageGate,
			fmt.Sprintf("%d site(s) failed validation", len(outcome.Render.Errors))).
			WithCause(err.Error()).
			WithSolutions("Fix the reported sites in NetBox and re-export")
	}
	if stderrors.Is(err, attest.ErrBypassNotAllowed) {
		return errors.New(errors.ErrorTypeConfiguration, errors.StageGate,
			"bypass is not permitted in production").
			WithCause(err.Error())
	}
	if stderrors.Is(err, attest.ErrNoArtifactsFound) ||
		stderrors.Is(err, attest.ErrVerificationFailed) ||
		stderrors.Is(err, gate.ErrRunMismatch) {
		return errors.New(errors.ErrorTypeVerification, errors.StageGate,
			"artifact verification failed").
			WithCause(err.Error()).
			WithSolutions("Re-render the artifacts under a fresh run id and re-attest them")
	}
	return err
}
