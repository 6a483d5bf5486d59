// Package config loads and validates the petition platform configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the PTN_ prefix (e.g., PTN_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments.
//
// Behavioural knobs such as the signature throttle limit and the index page mode
// live here as explicit struct fields rather than ambient globals so tests can
// construct a Config literal and inject limits directly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Signatures SignaturesConfig `mapstructure:"signatures"`
	Index      IndexConfig      `mapstructure:"index"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Mail       MailConfig       `mapstructure:"mail"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used in confirmation links and
// slug URLs. When server.public_url is set it is returned as-is; otherwise it
// falls back to server.base_url. The distinction matters in reverse-proxied
// deployments where the internal listen address differs from the address
// visitors see in their browser.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// GetAddress returns the host:port listen address
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN builds the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode)
}

// StorageConfig holds storage backend configuration for uploaded media
// (currently only the social-card images attached to petitions/templates).
type StorageConfig struct {
	DefaultBackend string             `mapstructure:"default_backend"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	Local          LocalStorageConfig `mapstructure:"local"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is an optional S3-compatible endpoint URL (MinIO, DigitalOcean Spaces, ...)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`

	// Static credentials; leave empty to use the AWS default credential chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// SignaturesConfig holds the signature throttle parameters.
//
// A new signature is rejected when more than Throttle signatures with the
// same hashed originating address already exist for the petition within the
// trailing Window. Matches the original deployment defaults (5 per 24h).
type SignaturesConfig struct {
	Throttle int           `mapstructure:"throttle"`
	Window   time.Duration `mapstructure:"window"`
}

// IndexConfig controls what the site root serves or redirects to.
//
// Mode is one of: "home", "all_petitions", "orga_profile", "user_profile",
// "login_register". The orga_profile/user_profile modes require Organization/
// User to name the profile to redirect to.
type IndexConfig struct {
	Mode         string `mapstructure:"mode"`
	Organization string `mapstructure:"organization"`
	User         string `mapstructure:"user"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// RateLimitingConfig holds HTTP rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// MailConfig holds the platform-wide outbound mail settings. Petitions and
// templates can override these with their own SMTP settings
// (use_custom_email_settings) which take precedence per entity.
type MailConfig struct {
	// Enabled globally toggles outbound confirmation/newsletter mail.
	Enabled bool       `mapstructure:"enabled"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds outbound mail server configuration
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	// Port is the SMTP server port (587 for STARTTLS, 465 for SMTPS, 25 for plain)
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// From is the default sender address for confirmation emails
	From string `mapstructure:"from"`
	// UseTLS enables implicit TLS (port 465)
	UseTLS bool `mapstructure:"use_tls"`
	// UseSTARTTLS upgrades a plain connection with STARTTLS (port 587)
	UseSTARTTLS bool `mapstructure:"use_starttls"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested
// structs during Unmarshal. viper.BindEnv only errors when called with zero
// keys; since every key here is a non-empty hardcoded string, any error
// indicates a programming bug and is surfaced to the caller.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",

		// Storage
		"storage.default_backend",
		"storage.s3.endpoint",
		"storage.s3.region",
		"storage.s3.bucket",
		"storage.s3.access_key_id",
		"storage.s3.secret_access_key",
		"storage.local.base_path",

		// Signatures
		"signatures.throttle",
		"signatures.window",

		// Index page
		"index.mode",
		"index.organization",
		"index.user",

		// Security
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.enabled",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Mail
		"mail.enabled",
		"mail.smtp.host",
		"mail.smtp.port",
		"mail.smtp.username",
		"mail.smtp.password",
		"mail.smtp.from",
		"mail.smtp.use_tls",
		"mail.smtp.use_starttls",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/petition-platform")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("PTN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Storage.S3.AccessKeyID = expandEnv(cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = expandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Mail.SMTP.Password = expandEnv(cfg.Mail.SMTP.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "petitions")
	v.SetDefault("database.user", "petitions")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Storage defaults
	v.SetDefault("storage.default_backend", "local")
	v.SetDefault("storage.local.base_path", "./media")

	// Signature throttle defaults: 5 signatures per hashed address per day
	v.SetDefault("signatures.throttle", 5)
	v.SetDefault("signatures.window", "24h")

	// Index page defaults
	v.SetDefault("index.mode", "home")

	// Security defaults
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 200)
	v.SetDefault("security.rate_limiting.burst", 50)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Mail defaults
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.use_starttls", true)
}

// expandEnv expands ${VAR} references so secrets can be injected indirectly
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}"))
	}
	return s
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}

	switch c.Storage.DefaultBackend {
	case "local":
		if c.Storage.Local.BasePath == "" {
			return fmt.Errorf("storage.local.base_path is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if c.Storage.S3.Region == "" && c.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.region or storage.s3.endpoint is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.default_backend %q (must be local or s3)", c.Storage.DefaultBackend)
	}

	if c.Signatures.Throttle < 0 {
		return fmt.Errorf("signatures.throttle must not be negative, got %d", c.Signatures.Throttle)
	}
	if c.Signatures.Window <= 0 {
		return fmt.Errorf("signatures.window must be positive, got %v", c.Signatures.Window)
	}

	switch c.Index.Mode {
	case "home", "all_petitions", "login_register":
	case "orga_profile":
		if c.Index.Organization == "" {
			return fmt.Errorf("index.organization is required when index.mode is orga_profile")
		}
	case "user_profile":
		if c.Index.User == "" {
			return fmt.Errorf("index.user is required when index.mode is user_profile")
		}
	default:
		return fmt.Errorf("unknown index.mode %q", c.Index.Mode)
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" || c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.cert_file and security.tls.key_file are required when TLS is enabled")
		}
	}

	if c.Mail.Enabled && c.Mail.SMTP.Host == "" {
		return fmt.Errorf("mail.smtp.host is required when mail.enabled is true")
	}

	return nil
}
