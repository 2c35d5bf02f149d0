// Package telemetry provides OpenTelemetry instrumentation for the skill sync service.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DiscoveryMetricsMeterName is the name used for the discovery metrics meter
	DiscoveryMetricsMeterName = "github.com/stacklok/toolhive-skill-sync/discovery"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/toolhive-skill-sync/sync"
)

// DiscoveryMetrics holds the OpenTelemetry instruments for discovery runs
type DiscoveryMetrics struct {
	repositories metric.Int64Counter
}

// NewDiscoveryMetrics creates a new DiscoveryMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDiscoveryMetrics(provider metric.MeterProvider) (*DiscoveryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DiscoveryMetricsMeterName)

	repositories, err := meter.Int64Counter(
		"thv_skill_sync_discovered_repositories_total",
		metric.WithDescription("Repositories seen by discovery, by result"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, err
	}

	return &DiscoveryMetrics{
		repositories: repositories,
	}, nil
}

// RecordDiscovery records the inserted, updated and skipped counts of one run
func (m *DiscoveryMetrics) RecordDiscovery(ctx context.Context, registryName string, inserted, updated, skipped int) {
	if m == nil || m.repositories == nil {
		return
	}

	for result, count := range map[string]int{"inserted": inserted, "updated": updated, "skipped": skipped} {
		if count == 0 {
			continue
		}
		m.repositories.Add(ctx, int64(count), metric.WithAttributes(
			attribute.String("registry", registryName),
			attribute.String("result", result),
		))
	}
}

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration   metric.Float64Histogram
	blacklisted    metric.Int64Counter
	blacklistFreed metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"thv_skill_sync_sync_duration_seconds",
		metric.WithDescription("Duration of repository sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	blacklisted, err := meter.Int64Counter(
		"thv_skill_sync_blacklisted_total",
		metric.WithDescription("Repositories moved to the blacklist, by reason"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, err
	}

	blacklistFreed, err := meter.Int64Counter(
		"thv_skill_sync_blacklist_expired_total",
		metric.WithDescription("Blacklist entries removed by expiry cleanup"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:   syncDuration,
		blacklisted:    blacklisted,
		blacklistFreed: blacklistFreed,
	}, nil
}

// RecordSyncDuration records the duration of one repository sync labelled by its outcome
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.syncDuration == nil {
		return
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordBlacklisted counts a repository blacklist transition
func (m *SyncMetrics) RecordBlacklisted(ctx context.Context, reason string) {
	if m == nil || m.blacklisted == nil {
		return
	}

	m.blacklisted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBlacklistExpired counts entries deleted by blacklist cleanup
func (m *SyncMetrics) RecordBlacklistExpired(ctx context.Context, count int) {
	if m == nil || m.blacklistFreed == nil || count == 0 {
		return
	}

	m.blacklistFreed.Add(ctx, int64(count))
}
