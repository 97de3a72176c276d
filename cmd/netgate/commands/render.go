package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/render"
)

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "render",
		Short:        "Render intent into per-site tfvars artifacts",
		SilenceUsage: true,
		Long: `Render validates the intent set and writes one deterministic
site-<slug>.tfvars.json artifact per site. Identical intent always
produces byte-identical artifacts regardless of input ordering, so
artifact digests are stable and attestable.

A malformed site is isolated: its artifact is skipped and reported
while every valid site still renders. The command exits non-zero if
any site failed.`,
		Example: `  # Render from the configured intent directory
  netgate render

  # Render a consolidated intent file to a specific directory
  netgate render --intent intent.json --output-dir artifacts/tfvars

  # Render with more site-level parallelism
  netgate render --workers 8`,
		RunE: runRender,
	}

	cmd.Flags().String("intent", "", "intent file or directory (default from config)")
	cmd.Flags().String("output-dir", "", "directory for tfvars artifacts (default from config)")
	cmd.Flags().Int("workers", 0, "concurrent site renders (default from config)")

	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	log := newLogger()

	in, _ := cmd.Flags().GetString("intent")
	if in == "" {
		in = cfg.Render.IntentDir
	}
	outDir, _ := cmd.Flags().GetString("output-dir")
	if outDir == "" {
		outDir = cfg.Render.OutputDir
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = cfg.Render.Workers
	}

	set, err := intent.Load(in, log)
	if err != nil {
		return err
	}

	renderer := render.New(log, workers)
	result, err := renderer.RenderTo(cmd.Context(), set, outDir)
	if err != nil {
		return err
	}

	for _, path := range result.Written {
		fmt.Printf("wrote %s\n", path)
	}

	if !result.OK() {
		for _, siteErr := range result.Errors {
			fmt.Printf("failed %s: %s\n", siteErr.Site, siteErr.Message)
		}
		return errors.New(errors.ErrorTypeInput, errors.StageRender,
			fmt.Sprintf("%d site(s) failed validation", len(result.Errors))).
			WithSolutions(
				"Fix the reported sites in NetBox and re-export",
				"Valid sites were still rendered and are safe to use",
			)
	}

	fmt.Printf("Rendered %d site(s) to %s\n", len(result.Written), outDir)
	return nil
}
