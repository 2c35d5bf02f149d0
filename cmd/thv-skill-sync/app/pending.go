package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-skill-sync/internal/app/storage"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

func newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List repositories waiting for a sync",
		Long:  `Print the ids of active repositories, least recently synced first, one per line.`,
		RunE:  runPending,
	}
	addConfigFlag(cmd)
	cmd.Flags().Int("limit", 0, "Maximum number of ids to print (0 = all)")
	return cmd
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	var opts []service.Option
	if limit > 0 {
		opts = append(opts, service.WithLimit(limit))
	}
	ids, err := service.New(store.NewPostgres(pool)).ListPendingRepositoryIDs(ctx, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}
