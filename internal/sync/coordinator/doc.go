// Package coordinator schedules discovery registries.
//
// A discovery registry is a named set of search queries with its own
// interval, declared in configuration and persisted through the store so
// that the schedule survives restarts. The coordinator:
//
//   - Upserts the configured registries on startup
//   - Polls for registries whose next_run_at has passed, on a jittered ticker
//   - Launches one registry-scoped discovery per due registry
//   - Records last_run_at, next_run_at and last_status after every run
//
// # Usage Example
//
//	registries, err := coordinator.RegistriesFromConfig(cfg.Discovery.Registries)
//	if err != nil {
//	    return err
//	}
//	c := coordinator.New(st, launcher, coordinator.WithRegistries(registries...))
//
//	go c.Start(ctx)
//	// ... run worker ...
//	c.Stop()
//
// # Error Handling
//
// A failed launch is logged and recorded as "error: <message>" in the
// registry's last status. The registry is still rescheduled one interval
// later and the coordinator keeps running.
package coordinator
