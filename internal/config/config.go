package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsdh/datahub-samples/internal/secrets"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Reader    ReaderConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Schedule  ScheduleConfig
}

type AppConfig struct {
	Name        string
	Environment string `validate:"required"`
}

// StorageConfig describes where the sample data lives.
// AbfssURI is read directly; WasbsURI is the source mounted at MountPoint.
type StorageConfig struct {
	// Mode is "azure" for blob storage or "local" for a directory standing in for it
	Mode             string `validate:"oneof=azure local"`
	AbfssURI         string
	WasbsURI         string
	AccountName      string
	MountPoint       string `validate:"required,startswith=/mnt/"`
	SampleFile       string `validate:"required"`
	ConnectionString string
	LocalBasePath    string
	ShowRows         int `validate:"gte=1"`
	// SecretScope and SecretKey locate the storage account key used for mounting
	SecretScope string `validate:"required"`
	SecretKey   string `validate:"required"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"; sqlite uses Path and is meant for local runs
	Driver          string `validate:"oneof=postgres sqlite"`
	Path            string `validate:"required_if=Driver sqlite"`
	Host            string `validate:"required_if=Driver postgres"`
	Port            int    `validate:"gte=1,lte=65535"`
	Name            string `validate:"required_if=Driver postgres"`
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// ReaderConfig holds options for the read-only JDBC style table load
type ReaderConfig struct {
	// Driver is a JDBC driver class; empty selects the default for the URL
	Driver          string
	Table           string `validate:"required"`
	PartitionColumn string
	LowerBound      int64
	UpperBound      int64
	NumPartitions   int `validate:"gte=0"`
	// QueryTimeout is in seconds
	QueryTimeout int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string `validate:"oneof=environment vault auto"`
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
	// Scopes maps a secret scope name to the Key Vault backing it
	Scopes map[string]string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	// WhitelistPaths is a list of paths that bypass rate limiting (e.g., /health)
	WhitelistPaths []string
}

// ScheduleConfig controls the scheduled walkthrough job
type ScheduleConfig struct {
	// Cron uses the 6-field format with seconds, or descriptors like "@hourly"
	Cron  string
	Steps []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(d.Host), d.Port, dsnValue(d.User), dsnValue(d.Password), dsnValue(d.Name), dsnValue(d.SSLMode),
	)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// dsnValue quotes a libpq keyword/value when it is empty or holds
// whitespace, a quote or a backslash
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}
	return "'" + dsnEscaper.Replace(v) + "'"
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (r *ReaderConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(r.QueryTimeout) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ProviderConfig converts the secrets section into a secrets provider configuration
func (c *Config) ProviderConfig() *secrets.ProviderConfig {
	scopes := make(map[string]string, len(c.Secrets.Scopes))
	for scope, vault := range c.Secrets.Scopes {
		scopes[strings.ToLower(scope)] = vault
	}
	// Only the storage secret scope falls back to the default vault
	return &secrets.ProviderConfig{
		Source:       secrets.SecretSource(c.Secrets.Source),
		VaultName:    c.Secrets.KeyVaultName,
		DefaultScope: c.Storage.SecretScope,
		Scopes:       scopes,
		Environment:  c.App.Environment,
		CacheEnabled: c.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(c.Secrets.CacheTTL) * time.Second,
	}
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []interface{}{&c.App, &c.Storage, &c.Database, &c.Reader, &c.Secrets} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Cluster configuration names used by the Databricks workspace
	if cfg.Storage.AbfssURI == "" {
		cfg.Storage.AbfssURI = v.GetString("ABFSS_URI")
	}
	if cfg.Storage.WasbsURI == "" {
		cfg.Storage.WasbsURI = v.GetString("WASBS_URI")
	}
	if cfg.Storage.AccountName == "" {
		cfg.Storage.AccountName = v.GetString("AZ_STORAGE_NAME")
	}

	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
// Database credentials may come from the DATABASE-* secrets of the storage scope;
// explicit environment variables always win.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, *secrets.Provider, error) {
	cfg, err := Load()
	if err != nil {
		return nil, nil, err
	}

	provider, err := secrets.NewProvider(cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	scope := cfg.Storage.SecretScope
	if host, err := provider.GetScopedOrEnv(ctx, scope, "database-host", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if user, err := provider.GetScopedOrEnv(ctx, scope, "database-user", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := provider.GetScopedOrEnv(ctx, scope, "database-password", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("secret_source", string(provider.Source())),
		zap.String("storage_mode", cfg.Storage.Mode),
		zap.String("database_host", cfg.Database.Host),
	)
	return cfg, provider, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "FSDH Samples")
	v.SetDefault("app.environment", "development")

	// Storage defaults
	v.SetDefault("storage.mode", "azure")
	v.SetDefault("storage.mountPoint", "/mnt/fsdh")
	v.SetDefault("storage.sampleFile", "fsdh-sample.csv")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.showRows", 5)
	v.SetDefault("storage.secretScope", "datahub")
	v.SetDefault("storage.secretKey", "storage-key")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "./fsdh-sample.db")
	v.SetDefault("database.host", "my_host")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "my_database")
	v.SetDefault("database.user", "my_user")
	v.SetDefault("database.password", "my_password")
	v.SetDefault("database.sslMode", "require")
	v.SetDefault("database.maxOpenConns", 5)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 300)

	// Reader defaults
	v.SetDefault("reader.table", "celestial_bodies")
	v.SetDefault("reader.numPartitions", 0)
	v.SetDefault("reader.queryTimeout", 60)

	// Secrets defaults
	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300) // 5 minutes

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db"})

	v.SetDefault("schedule.cron", "@hourly")
	v.SetDefault("schedule.steps", []string{"storage", "mount", "db", "read"})
}
