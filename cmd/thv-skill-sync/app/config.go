package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, or "+config.EnvPrefix+"_CONFIG)")
}

// loadConfig reads the configuration from --config, falling back to the
// THV_SKILL_SYNC_CONFIG environment variable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlag("config", cmd.Flags().Lookup("config")); err != nil {
		return nil, fmt.Errorf("failed to bind config flag: %w", err)
	}

	path := v.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("configuration file is required (--config or %s_CONFIG)", config.EnvPrefix)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("Loaded configuration", "path", path)
	return cfg, nil
}
