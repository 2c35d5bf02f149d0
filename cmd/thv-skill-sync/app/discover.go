package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	skillapp "github.com/stacklok/toolhive-skill-sync/internal/app"
)

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run a discovery workflow and print its result",
		Long: `Run a discovery workflow over the given search queries, or over the
discovery.queries of the configuration when no --query is given.

Examples:
  thv-skill-sync discover --config config.yaml
  thv-skill-sync discover --config config.yaml --query "filename:SKILL.md" --query "claude skills"`,
		RunE: runDiscover,
	}
	addConfigFlag(cmd)
	cmd.Flags().StringArray("query", nil, "Search query, may be repeated")
	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	queries, err := cmd.Flags().GetStringArray("query")
	if err != nil {
		return fmt.Errorf("failed to get query flag: %w", err)
	}
	if len(queries) == 0 {
		queries = cfg.Discovery.Queries
	}
	if len(queries) == 0 {
		return fmt.Errorf("no discovery queries given or configured")
	}

	components, cleanup, err := skillapp.BuildComponents(ctx, skillapp.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := components.Workflows.Discover(ctx, queries)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
