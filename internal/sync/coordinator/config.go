package coordinator

import (
	"log/slog"
	"time"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
	"github.com/stacklok/toolhive-skill-sync/internal/discovery"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

// getDiscoveryInterval parses a registry's configured interval
func getDiscoveryInterval(interval string) time.Duration {
	if interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			return d
		}
		slog.Warn("Invalid discovery interval, using default",
			"interval", interval,
			"default", store.DefaultDiscoveryInterval)
	}

	return store.DefaultDiscoveryInterval
}

// RegistriesFromConfig converts configured discovery registries into store rows.
func RegistriesFromConfig(cfgs []config.DiscoveryRegistryConfig) ([]store.DiscoveryRegistry, error) {
	out := make([]store.DiscoveryRegistry, 0, len(cfgs))
	for _, cfg := range cfgs {
		token, err := cfg.GetToken()
		if err != nil {
			return nil, err
		}
		platform := cfg.Platform
		if platform == "" {
			platform = discovery.PlatformGitHub
		}
		out = append(out, store.DiscoveryRegistry{
			Name:     cfg.Name,
			Platform: platform,
			Token:    token,
			Queries:  cfg.Queries,
			Interval: getDiscoveryInterval(cfg.Interval),
		})
	}
	return out, nil
}
