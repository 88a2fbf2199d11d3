// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrRegionRequired is returned when AWS_REGION is not set.
	ErrRegionRequired = errors.New("config: AWS_REGION is required")
	// ErrBucketRequired is returned when S3_BUCKET is not set.
	ErrBucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrCognitoClientRequired is returned when COGNITO_CLIENT_ID is not set.
	ErrCognitoClientRequired = errors.New("config: COGNITO_CLIENT_ID is required")
	// ErrAdminSecretRequired is returned when ADMIN_SECRET_KEY is not set.
	ErrAdminSecretRequired = errors.New("config: ADMIN_SECRET_KEY is required")
	// ErrDeletePasswordRequired is returned when ADMIN_DELETE_PASSWORD is not set.
	ErrDeletePasswordRequired = errors.New("config: ADMIN_DELETE_PASSWORD is required")
	// ErrUnknownMetadataStore is returned for a METADATA_STORE other than dynamodb or memory.
	ErrUnknownMetadataStore = errors.New("config: METADATA_STORE must be dynamodb or memory")
)

// requiredVars maps each required variable to the error reported when it is missing.
var requiredVars = []struct {
	name string
	err  error
}{
	{"AWS_REGION", ErrRegionRequired},
	{"S3_BUCKET", ErrBucketRequired},
	{"COGNITO_CLIENT_ID", ErrCognitoClientRequired},
	{"ADMIN_SECRET_KEY", ErrAdminSecretRequired},
	{"ADMIN_DELETE_PASSWORD", ErrDeletePasswordRequired},
}

// Metadata store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	CookieSecure   bool     `env:"COOKIE_SECURE, default=true" json:"cookie_secure"`
	MaxUploadMB    int64    `env:"MAX_UPLOAD_MB, default=5120" json:"max_upload_mb"`
	AssetBaseURL   string   `env:"ASSET_BASE_URL" json:"asset_base_url,omitempty"`

	// AWS settings
	AWSRegion          string `env:"AWS_REGION, required" json:"aws_region"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Object storage settings
	S3Bucket   string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Endpoint string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`

	// Metadata store settings
	MetadataStore    string `env:"METADATA_STORE, default=dynamodb" json:"metadata_store"`
	DynamoDBTable    string `env:"DYNAMODB_TABLE, default=wanzami-movies" json:"dynamodb_table"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT" json:"dynamodb_endpoint,omitempty"`

	// Identity settings
	CognitoClientID     string `env:"COGNITO_CLIENT_ID, required" json:"cognito_client_id"`
	CognitoClientSecret string `env:"COGNITO_CLIENT_SECRET" json:"-"` // Masked in JSON
	CognitoUserPoolID   string `env:"COGNITO_USER_POOL_ID" json:"cognito_user_pool_id,omitempty"`

	// Admin settings
	AdminSecretKey      string `env:"ADMIN_SECRET_KEY, required" json:"-"`      // Masked in JSON
	AdminDeletePassword string `env:"ADMIN_DELETE_PASSWORD, required" json:"-"` // Masked in JSON

	// Upload settings
	StagingDir        string        `env:"STAGING_DIR, default=/tmp/wanzami-staging" json:"staging_dir"`
	UploadConcurrency int           `env:"UPLOAD_CONCURRENCY, default=1" json:"upload_concurrency"`
	UploadGrantTTL    time.Duration `env:"UPLOAD_GRANT_TTL, default=10m" json:"upload_grant_ttl"`
	UploadTimeout     time.Duration `env:"UPLOAD_TIMEOUT, default=30m" json:"upload_timeout"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL, default=30s" json:"reconcile_interval"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// SessionVerificationEnabled returns true if ID tokens can be verified locally.
func (c *Config) SessionVerificationEnabled() bool {
	return c.CognitoUserPoolID != ""
}

// MaxUploadBytes returns the request body limit for admin uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		for _, v := range requiredVars {
			if strings.Contains(err.Error(), v.name) {
				return nil, v.err
			}
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	switch {
	case c.AWSRegion == "":
		return ErrRegionRequired
	case c.S3Bucket == "":
		return ErrBucketRequired
	case c.CognitoClientID == "":
		return ErrCognitoClientRequired
	case c.AdminSecretKey == "":
		return ErrAdminSecretRequired
	case c.AdminDeletePassword == "":
		return ErrDeletePasswordRequired
	}
	switch strings.ToLower(c.MetadataStore) {
	case StoreDynamoDB, StoreMemory:
	default:
		return ErrUnknownMetadataStore
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AWSRegion: %s, S3Bucket: %s, MetadataStore: %s, DynamoDBTable: %s, CognitoClientID: %s, CognitoUserPoolID: %s, StagingDir: %s, UploadConcurrency: %d, UploadGrantTTL: %s, ReconcileInterval: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AWSRegion,
		c.S3Bucket,
		c.MetadataStore,
		c.DynamoDBTable,
		c.CognitoClientID,
		c.CognitoUserPoolID,
		c.StagingDir,
		c.UploadConcurrency,
		c.UploadGrantTTL,
		c.ReconcileInterval,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
