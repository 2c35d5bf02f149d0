// Package telemetry wires OpenTelemetry tracing and metrics for the sync
// worker. Both signals are exported over OTLP/HTTP to one collector.
package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultServiceName identifies the worker when the config names no service.
	DefaultServiceName = "thv-skill-sync"

	// DefaultEndpoint is the local collector's OTLP/HTTP port.
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the root span ratio kept when tracing sets none.
	DefaultSampling = 0.05

	// DefaultMetricsInterval is the export period when metrics set none.
	DefaultMetricsInterval = 60 * time.Second

	minMetricsInterval = time.Second
	unknownVersion     = "unknown"
)

// Config is the telemetry section of the worker configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as host:port. The exporters add the
	// /v1/traces and /v1/metrics paths.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends telemetry over plain HTTP.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Attributes are added to the resource of every span and metric.
	Attributes map[string]string `yaml:"attributes,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root spans kept, between 0 and 1.
	// Child spans follow their parent's decision.
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is the export period as a Go duration, at least one second.
	Interval string `yaml:"interval,omitempty"`

	// Prometheus also serves the metrics for scraping on /metrics of the admin API.
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// GetSampling returns the configured ratio or DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

func (c *TracingConfig) enabled() bool {
	return c != nil && c.Enabled
}

// GetInterval returns the export period or DefaultMetricsInterval.
// Call Validate first; an unparsable interval also yields the default.
func (c *MetricsConfig) GetInterval() time.Duration {
	if c == nil || c.Interval == "" {
		return DefaultMetricsInterval
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return DefaultMetricsInterval
	}
	return d
}

func (c *MetricsConfig) enabled() bool {
	return c != nil && c.Enabled
}

func (c *MetricsConfig) prometheus() bool {
	return c.enabled() && c.Prometheus
}

// withDefaults returns a copy with every unset field filled. version is
// used when the config names no service version.
func (c *Config) withDefaults(version string) Config {
	out := *c
	if out.ServiceName == "" {
		out.ServiceName = DefaultServiceName
	}
	if out.ServiceVersion == "" {
		out.ServiceVersion = version
	}
	if out.ServiceVersion == "" {
		out.ServiceVersion = unknownVersion
	}
	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}
	return out
}

// Validate checks an enabled configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must be host:port without a scheme, got %q", c.Endpoint))
	}
	for name := range c.Headers {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("headers: header name must not be empty"))
			break
		}
	}
	for key := range c.Attributes {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, errors.New("attributes: attribute key must not be empty"))
			break
		}
	}
	if c.Tracing != nil && c.Tracing.Sampling != nil {
		if s := *c.Tracing.Sampling; s < 0 || s > 1 {
			errs = append(errs, fmt.Errorf("tracing: sampling must be between 0 and 1, got %g", s))
		}
	}
	if c.Metrics != nil && c.Metrics.Interval != "" {
		d, err := time.ParseDuration(c.Metrics.Interval)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("metrics: invalid interval %q: %w", c.Metrics.Interval, err))
		case d < minMetricsInterval:
			errs = append(errs, fmt.Errorf("metrics: interval must be at least %s, got %s", minMetricsInterval, d))
		}
	}
	return errors.Join(errs...)
}
