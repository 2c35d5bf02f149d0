package app

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	skillapp "github.com/stacklok/toolhive-skill-sync/internal/app"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <repository-id>",
		Short: "Trigger the sync of a single repository",
		Long: `Start the single-repository sync workflow. Only one sync per repository
runs at a time; triggering a repository that is already syncing returns the
running workflow.`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}
	addConfigFlag(cmd)
	cmd.Flags().Bool("wait", false, "Wait for the sync to finish and print its outcome")
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid repository id %q: %w", args[0], err)
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return fmt.Errorf("failed to get wait flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	components, cleanup, err := skillapp.BuildComponents(ctx, skillapp.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	if !wait {
		runID, err := components.Service.TriggerSync(ctx, id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), runID)
		return err
	}

	if _, err := components.Service.GetRepository(ctx, id); err != nil {
		return err
	}
	outcome, err := components.Workflows.SyncRepository(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
