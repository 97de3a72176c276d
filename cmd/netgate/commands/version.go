package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// SetVersionInfo updates the version variables with build-time values.
func SetVersionInfo(version, commit, buildTime string) {
	if version != "" {
		Version = version
	}
	if commit != "" {
		Commit = commit
	}
	if buildTime != "" {
		BuildTime = buildTime
	}
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run:   runVersion,
	}

	cmd.Flags().Bool("short", false, "show only version number")

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) {
	short, _ := cmd.Flags().GetBool("short")
	if short {
		fmt.Println(Version)
		return
	}

	fmt.Printf("netgate %s\n", Version)
	fmt.Printf("  commit:     %s\n", Commit)
	fmt.Printf("  built:      %s\n", BuildTime)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
