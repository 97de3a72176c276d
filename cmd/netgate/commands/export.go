package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boycivenga/netgate/internal/netbox"
	"github.com/boycivenga/netgate/internal/output"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "export",
		Short:        "Export network intent from NetBox",
		SilenceUsage: true,
		Long: `Export pulls sites, prefixes, VLANs, and tags from the NetBox API
and writes them as per-resource JSON files (with YAML mirrors for
review) into the intent directory. Sparse VLAN references are resolved
during export so the render stage sees a complete intent set.`,
		Example: `  # Export using NETBOX_URL and NETBOX_API_TOKEN from the environment
  netgate export

  # Export to a specific directory
  netgate export --output-dir artifacts/intent-export

  # Also write per-site markdown summaries for the pull request
  netgate export --summaries artifacts/summary`,
		RunE: runExport,
	}

	cmd.Flags().String("url", "", "NetBox API base URL (overrides config)")
	cmd.Flags().String("token", "", "NetBox API token (overrides config)")
	cmd.Flags().String("output-dir", "", "directory for intent files (default from config)")
	cmd.Flags().String("summaries", "", "also write per-site markdown summaries into this directory")
	cmd.Flags().Bool("insecure", false, "skip TLS certificate verification (rejected in CI)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger()

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = cfg.NetBox.URL
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = cfg.NetBox.Token
	}
	insecure, _ := cmd.Flags().GetBool("insecure")
	insecure = insecure || cfg.NetBox.AllowInsecure

	dir, _ := cmd.Flags().GetString("output-dir")
	if dir == "" {
		dir = cfg.Render.IntentDir
	}

	client, err := netbox.NewClient(url, token, insecure, log)
	if err != nil {
		return err
	}

	exporter := netbox.NewExporter(client, log)
	set, err := exporter.Export(cmd.Context(), dir)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d sites, %d prefixes, %d VLANs, %d tags to %s\n",
		len(set.Sites), len(set.Prefixes), len(set.VLANs), len(set.Tags), dir)

	if summaryDir, _ := cmd.Flags().GetString("summaries"); summaryDir != "" {
		written, err := output.WriteSiteSummaries(set, summaryDir)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d site summaries to %s\n", len(written), summaryDir)
	}

	return nil
}
