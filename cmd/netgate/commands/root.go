// Package commands wires the netgate CLI: export, render, verify,
// evaluate, and gate subcommands over the pipeline packages.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/logger"
	"github.com/boycivenga/netgate/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "netgate",
	Short: "Attested network configuration pipeline",
	Long: `netgate moves network intent from NetBox to Terraform-ready
artifacts under a verifiable chain of custody.

The pipeline has four stages, each available as its own subcommand and
sequenced end-to-end by the gate:

  export    pull sites, prefixes, VLANs, and tags out of NetBox
  render    turn the intent into deterministic per-site tfvars JSON
  verify    check artifact attestations before anything gets planned
  evaluate  decide allow/deny for a plan document against policy

Every tfvars artifact carries a signed attestation; verification is
fail-closed in production. The gate stops at the decision: applying the
plan is the orchestrator's job, never netgate's.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			runVersion(cmd, []string{})
			return nil
		}
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps errors to stable exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errors.DisplayError(err)
		os.Exit(errors.GetExitCode(err))
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.netgate/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json, markdown)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("version", false, "show version information")

	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("output.no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newGateCommand())
	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return fmt.Errorf("failed to expand config paths: %w", err)
	}

	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}

	return cfg.Validate()
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

func newLogger() logger.Logger {
	return logger.New(cfg.Logging.Level)
}
