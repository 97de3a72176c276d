package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/output"
	"github.com/boycivenga/netgate/internal/policy"
)

func newEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "evaluate <plan-document>",
		Short:        "Evaluate a plan document against deployment policy",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		Long: `Evaluate runs the policy rules over a plan document (the Terraform
resource changes plus artifact and provenance metadata) and reports an
allow or deny decision.

Evaluation is pure: the same document always yields the same decision,
and a deny enumerates every violated rule rather than stopping at the
first. Destructive changes mark the decision approval-required
independently of allow or deny.`,
		Example: `  # Evaluate a plan document
  netgate evaluate plan-with-metadata.json

  # Machine-readable decision for the CI gate
  netgate evaluate plan-with-metadata.json -o json

  # Markdown diff summary for the pull request comment
  netgate evaluate plan-with-metadata.json -o markdown`,
		RunE: runEvaluate,
	}

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	doc, err := policy.LoadDocument(args[0])
	if err != nil {
		return errors.New(errors.ErrorTypeInput, errors.StageEvaluate,
			fmt.Sprintf("failed to load plan document %s", args[0])).
			WithCause(err.Error()).
			WithSolutions("Check that the file is a JSON plan+metadata document")
	}

	decision := policy.NewEngine().Evaluate(doc)

	format, _ := cmd.Root().PersistentFlags().GetString("output")
	noColor, _ := cmd.Root().PersistentFlags().GetBool("no-color")

	switch format {
	case "json":
		encoded, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
	case "markdown":
		fmt.Print(output.PlanDiff(doc, doc.Metadata.Artifact.Site))
	default:
		output.NewDecisionReporter(os.Stdout, noColor).Report(decision)
	}

	if !decision.Allow {
		return errors.New(errors.ErrorTypePolicy, errors.StageEvaluate,
			fmt.Sprintf("policy denied the plan (%d violation(s))", len(decision.Violations))).
			WithSolutions(
				"Verify the artifact attestation before evaluating",
				"Attach pull request approval metadata to the document",
			)
	}

	return nil
}
