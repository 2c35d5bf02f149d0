// Package config provides configuration loading and management for the skill sync worker.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-skill-sync/internal/filtering"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
)

const (
	// DefaultTemporalHostPort is the Temporal frontend address used when none is configured
	DefaultTemporalHostPort = "localhost:7233"

	// DefaultTemporalNamespace is the Temporal namespace used when none is configured
	DefaultTemporalNamespace = "default"

	// DefaultTaskQueue is the task queue workflows and activities are registered on
	DefaultTaskQueue = "skill-sync"

	// DefaultChunkSize is the number of repositories synced concurrently by a scheduled sync
	DefaultChunkSize = 5

	// DefaultBlacklistRetention is how long a blacklist entry lives (30 days)
	DefaultBlacklistRetention = 30 * 24 * time.Hour

	// DefaultScheduleInterval is the interval between scheduled bulk syncs
	DefaultScheduleInterval = time.Hour

	// DefaultRegion is the object store region used when none is configured
	DefaultRegion = "us-east-1"
)

const (
	// EnvPrefix is the prefix of environment variables read through viper
	EnvPrefix = "THV_SKILL_SYNC"

	// EnvDatabasePassword holds the database password when no passwordFile is set
	EnvDatabasePassword = "THV_SKILL_SYNC_DATABASE_PASSWORD"

	// EnvGitHubToken holds the GitHub token when no tokenFile is set
	EnvGitHubToken = "THV_SKILL_SYNC_GITHUB_TOKEN"

	// EnvObjectStoreSecretKey holds the object store secret key when no secretAccessKeyFile is set
	EnvObjectStoreSecretKey = "THV_SKILL_SYNC_OBJECT_STORE_SECRET_ACCESS_KEY"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Database holds the PostgreSQL connection settings
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// ObjectStore holds the S3-compatible bucket settings
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`

	// GitHub holds the code host API settings
	GitHub GitHubConfig `yaml:"github,omitempty"`

	// Temporal holds the workflow runtime settings
	Temporal TemporalConfig `yaml:"temporal,omitempty"`

	// Sync holds the bulk sync settings
	Sync SyncConfig `yaml:"sync,omitempty"`

	// Discovery holds the repository discovery settings
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`

	// Telemetry holds the OpenTelemetry settings
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	// API holds the admin API settings
	API APIConfig `yaml:"api,omitempty"`
}

// APIConfig defines admin API access. Without a token the API is open.
type APIConfig struct {
	// AuthToken is an inline bearer token. Prefer AuthTokenFile
	AuthToken string `yaml:"authToken,omitempty"`

	// AuthTokenFile is the path to a file containing the bearer token
	AuthTokenFile string `yaml:"authTokenFile,omitempty"`

	// PublicPaths are reachable without a token, in addition to the probes
	PublicPaths []string `yaml:"publicPaths,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// MigrationUser is the user that applies schema migrations, defaults to User
	MigrationUser string `yaml:"migrationUser,omitempty"`

	// DynamicAuth replaces the static password with short-lived tokens
	DynamicAuth *DynamicAuthConfig `yaml:"dynamicAuth,omitempty"`
}

// DynamicAuthConfig selects a dynamic database authentication method
type DynamicAuthConfig struct {
	// AWSRDSIAM authenticates with AWS RDS IAM tokens
	AWSRDSIAM *DynamicAuthAWSRDSIAM `yaml:"awsRdsIam,omitempty"`
}

// DynamicAuthAWSRDSIAM configures AWS RDS IAM authentication
type DynamicAuthAWSRDSIAM struct {
	// Region is the AWS region of the database, or "detect" to read it from IMDS
	Region string `yaml:"region"`
}

// ObjectStoreConfig defines where packaged artifacts and snapshots are stored
type ObjectStoreConfig struct {
	// Bucket is the bucket name
	Bucket string `yaml:"bucket"`

	// Region is the bucket region, defaults to us-east-1
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for MinIO or other compatible stores
	Endpoint string `yaml:"endpoint,omitempty"`

	// PublicBaseURL is prepended to object keys to build download URLs
	PublicBaseURL string `yaml:"publicBaseURL,omitempty"`

	// UsePathStyle addresses the bucket in the URL path instead of the host
	UsePathStyle bool `yaml:"usePathStyle,omitempty"`

	// MultipartThreshold is the object size in bytes above which uploads are split into parts
	MultipartThreshold int64 `yaml:"multipartThreshold,omitempty"`

	// AccessKeyID is a static access key. When empty the default AWS credential chain is used
	AccessKeyID string `yaml:"accessKeyId,omitempty"`

	// SecretAccessKeyFile is the path to a file containing the secret access key
	SecretAccessKeyFile string `yaml:"secretAccessKeyFile,omitempty"`
}

// GitHubConfig defines the code host API settings
type GitHubConfig struct {
	// APIBaseURL overrides https://api.github.com
	APIBaseURL string `yaml:"apiBaseURL,omitempty"`

	// Token is an inline API token. Prefer TokenFile
	Token string `yaml:"token,omitempty"`

	// TokenFile is the path to a file containing the API token
	TokenFile string `yaml:"tokenFile,omitempty"`
}

// TemporalConfig defines the workflow runtime connection
type TemporalConfig struct {
	HostPort  string `yaml:"hostPort,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	TaskQueue string `yaml:"taskQueue,omitempty"`
}

// SyncConfig defines the scheduled bulk sync
type SyncConfig struct {
	// ChunkSize is the number of repositories synced concurrently, defaults to 5
	ChunkSize int `yaml:"chunkSize,omitempty"`

	// BlacklistRetention is how long a blacklist entry lives (e.g., "720h")
	BlacklistRetention string `yaml:"blacklistRetention,omitempty"`

	// ScheduleInterval is the interval between scheduled bulk syncs (e.g., "1h")
	ScheduleInterval string `yaml:"scheduleInterval,omitempty"`

	// PendingLimit caps the repositories picked up by one scheduled sync. Zero means no cap
	PendingLimit int `yaml:"pendingLimit,omitempty"`
}

// DiscoveryConfig defines repository discovery
type DiscoveryConfig struct {
	// Concurrency is the number of search queries run in parallel
	Concurrency int `yaml:"concurrency,omitempty"`

	// Queries are the search queries used by an unscoped discovery run
	Queries []string `yaml:"queries,omitempty"`

	// Filter keeps or drops discovered repositories by "owner/name"
	Filter *FilterConfig `yaml:"filter,omitempty"`

	// Registries are named query sets with their own schedule
	Registries []DiscoveryRegistryConfig `yaml:"registries,omitempty"`
}

// FilterConfig defines glob patterns matched against "owner/name".
// Exclude takes precedence over include.
type FilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// DiscoveryRegistryConfig defines one scheduled discovery registry
type DiscoveryRegistryConfig struct {
	Name      string   `yaml:"name"`
	Platform  string   `yaml:"platform,omitempty"`
	Token     string   `yaml:"token,omitempty"`
	TokenFile string   `yaml:"tokenFile,omitempty"`
	Queries   []string `yaml:"queries"`
	// Interval is the time between runs (e.g., "24h")
	Interval string `yaml:"interval,omitempty"`
}

// readSecretFile reads a secret from path and trims surrounding whitespace
func readSecretFile(path string) (string, error) {
	// Use filepath.Clean to prevent path traversal attacks
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from THV_SKILL_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		password, err := readSecretFile(d.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return password, nil
	}

	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", EnvDatabasePassword,
	)
}

// GetConnectionString builds a PostgreSQL connection string for User.
// With dynamic auth configured the string carries no password; a
// BeforeConnect hook supplies one per connection.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.DynamicAuth != nil {
		return d.BuildConnectionStringWithAuth(d.User, ""), nil
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}
	return d.BuildConnectionStringWithAuth(d.User, password), nil
}

// GetMigrationUser returns MigrationUser, falling back to User
func (d *DatabaseConfig) GetMigrationUser() string {
	if d.MigrationUser == "" {
		return d.User
	}
	return d.MigrationUser
}

// BuildConnectionStringWithAuth builds a connection string for user. The
// password is URL-escaped and omitted entirely when empty.
func (d *DatabaseConfig) BuildConnectionStringWithAuth(user, password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	userInfo := url.QueryEscape(user)
	if password != "" {
		userInfo += ":" + url.QueryEscape(password)
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)
}

// GetConnMaxLifetime parses ConnMaxLifetime, returning zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	lifetime, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0, fmt.Errorf("invalid connection max lifetime: %w", err)
	}
	return lifetime, nil
}

// GetRegion returns the region, using DefaultRegion if not specified
func (o *ObjectStoreConfig) GetRegion() string {
	if o.Region == "" {
		return DefaultRegion
	}
	return o.Region
}

// GetSecretAccessKey returns the static secret key from SecretAccessKeyFile
// or the environment. It returns an empty string when neither is set.
func (o *ObjectStoreConfig) GetSecretAccessKey() (string, error) {
	if o.SecretAccessKeyFile != "" {
		key, err := readSecretFile(o.SecretAccessKeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to read secret access key from file %s: %w", o.SecretAccessKeyFile, err)
		}
		return key, nil
	}
	return os.Getenv(EnvObjectStoreSecretKey), nil
}

// GetToken returns the API token from TokenFile, the environment or Token,
// in that order. An empty token means unauthenticated requests.
func (g *GitHubConfig) GetToken() (string, error) {
	if g.TokenFile != "" {
		token, err := readSecretFile(g.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read GitHub token from file %s: %w", g.TokenFile, err)
		}
		return token, nil
	}
	if envToken := os.Getenv(EnvGitHubToken); envToken != "" {
		return envToken, nil
	}
	return g.Token, nil
}

// GetAuthToken returns the admin API token from AuthTokenFile or AuthToken.
func (a *APIConfig) GetAuthToken() (string, error) {
	if a.AuthTokenFile != "" {
		token, err := readSecretFile(a.AuthTokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read API token from file %s: %w", a.AuthTokenFile, err)
		}
		return token, nil
	}
	return a.AuthToken, nil
}

// GetHostPort returns the Temporal frontend address
func (t *TemporalConfig) GetHostPort() string {
	if t.HostPort == "" {
		return DefaultTemporalHostPort
	}
	return t.HostPort
}

// GetNamespace returns the Temporal namespace
func (t *TemporalConfig) GetNamespace() string {
	if t.Namespace == "" {
		return DefaultTemporalNamespace
	}
	return t.Namespace
}

// GetTaskQueue returns the Temporal task queue
func (t *TemporalConfig) GetTaskQueue() string {
	if t.TaskQueue == "" {
		return DefaultTaskQueue
	}
	return t.TaskQueue
}

// GetChunkSize returns the chunk size, using DefaultChunkSize if not specified
func (s *SyncConfig) GetChunkSize() int {
	if s.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return s.ChunkSize
}

// GetBlacklistRetention returns the blacklist retention window.
// Validation guarantees the configured value parses.
func (s *SyncConfig) GetBlacklistRetention() time.Duration {
	return durationOrDefault(s.BlacklistRetention, DefaultBlacklistRetention)
}

// GetScheduleInterval returns the interval between scheduled bulk syncs
func (s *SyncConfig) GetScheduleInterval() time.Duration {
	return durationOrDefault(s.ScheduleInterval, DefaultScheduleInterval)
}

// GetToken returns the registry token from TokenFile or Token.
func (r *DiscoveryRegistryConfig) GetToken() (string, error) {
	if r.TokenFile != "" {
		token, err := readSecretFile(r.TokenFile)
		if err != nil {
			return "", fmt.Errorf("registry %s: failed to read token from file %s: %w", r.Name, r.TokenFile, err)
		}
		return token, nil
	}
	return r.Token, nil
}

func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Database != nil {
		if _, err := c.Database.GetConnMaxLifetime(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
		if c.Database.DynamicAuth != nil && c.Database.DynamicAuth.AWSRDSIAM != nil &&
			c.Database.DynamicAuth.AWSRDSIAM.Region == "" {
			errs = append(errs, fmt.Errorf("database.dynamicAuth.awsRdsIam.region is required"))
		}
	}

	if c.ObjectStore.Bucket == "" {
		errs = append(errs, fmt.Errorf("objectStore.bucket is required"))
	}
	if c.ObjectStore.MultipartThreshold < 0 {
		errs = append(errs, fmt.Errorf("objectStore.multipartThreshold must not be negative"))
	}

	if c.Sync.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("sync.chunkSize must not be negative"))
	}
	if c.Sync.PendingLimit < 0 {
		errs = append(errs, fmt.Errorf("sync.pendingLimit must not be negative"))
	}
	if err := validateDuration(c.Sync.BlacklistRetention, "sync.blacklistRetention"); err != nil {
		errs = append(errs, err)
	}
	if err := validateDuration(c.Sync.ScheduleInterval, "sync.scheduleInterval"); err != nil {
		errs = append(errs, err)
	}

	if c.API.AuthToken != "" && c.API.AuthTokenFile != "" {
		errs = append(errs, fmt.Errorf("api.authToken and api.authTokenFile are mutually exclusive"))
	}

	if c.Discovery.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("discovery.concurrency must not be negative"))
	}
	if f := c.Discovery.Filter; f != nil {
		if err := filtering.ValidatePatterns(f.Include); err != nil {
			errs = append(errs, fmt.Errorf("discovery.filter.include: %w", err))
		}
		if err := filtering.ValidatePatterns(f.Exclude); err != nil {
			errs = append(errs, fmt.Errorf("discovery.filter.exclude: %w", err))
		}
	}
	errs = append(errs, c.validateRegistries()...)

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Config) validateRegistries() []error {
	var errs []error
	names := make(map[string]bool)
	for i, reg := range c.Discovery.Registries {
		prefix := fmt.Sprintf("discovery.registries[%d]", i)
		if reg.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
			continue
		}
		prefix = fmt.Sprintf("%s (%s)", prefix, reg.Name)

		if names[reg.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate registry name", prefix))
		}
		names[reg.Name] = true

		if len(reg.Queries) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one query is required", prefix))
		}
		if reg.Platform != "" && reg.Platform != "github" {
			errs = append(errs, fmt.Errorf("%s: unsupported platform %q", prefix, reg.Platform))
		}
		if reg.Token != "" && reg.TokenFile != "" {
			errs = append(errs, fmt.Errorf("%s: token and tokenFile are mutually exclusive", prefix))
		}
		if err := validateDuration(reg.Interval, prefix+": interval"); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateDuration(value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: duration must be positive, got %s", field, value)
	}
	return nil
}
