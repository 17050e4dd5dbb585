package config_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fsdh/datahub-samples/internal/config"
	"github.com/fsdh/datahub-samples/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)

	assert.Equal(t, "azure", cfg.Storage.Mode)
	assert.Equal(t, "/mnt/fsdh", cfg.Storage.MountPoint)
	assert.Equal(t, "fsdh-sample.csv", cfg.Storage.SampleFile)
	assert.Equal(t, 5, cfg.Storage.ShowRows)
	assert.Equal(t, "datahub", cfg.Storage.SecretScope)
	assert.Equal(t, "storage-key", cfg.Storage.SecretKey)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "my_host", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "my_database", cfg.Database.Name)
	assert.Equal(t, "my_user", cfg.Database.User)
	assert.Equal(t, "my_password", cfg.Database.Password)

	assert.Equal(t, "celestial_bodies", cfg.Reader.Table)
	assert.Equal(t, 60*time.Second, cfg.Reader.QueryTimeoutDuration())

	assert.Equal(t, "auto", cfg.Secrets.Source)
	assert.Equal(t, "@hourly", cfg.Schedule.Cron)
	assert.Equal(t, []string{"storage", "mount", "db", "read"}, cfg.Schedule.Steps)
	assert.Equal(t, []string{"/health", "/health/db"}, cfg.RateLimit.WhitelistPaths)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_MODE", "local")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("ABFSS_URI", "abfss://datahub@fsdhstorage.dfs.core.windows.net/")
	t.Setenv("WASBS_URI", "wasbs://datahub@fsdhstorage.blob.core.windows.net/")
	t.Setenv("AZ_STORAGE_NAME", "fsdhstorage")
	t.Setenv("AZURE_KEY_VAULT_NAME", "fsdh-kv")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net/", cfg.Storage.AbfssURI)
	assert.Equal(t, "wasbs://datahub@fsdhstorage.blob.core.windows.net/", cfg.Storage.WasbsURI)
	assert.Equal(t, "fsdhstorage", cfg.Storage.AccountName)
	assert.Equal(t, "fsdh-kv", cfg.Secrets.KeyVaultName)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "my_host", Port: 5432, User: "my_user", Password: "my_password",
		Name: "my_database", SSLMode: "require", ConnMaxLifetime: 300,
	}

	assert.Equal(t,
		"host=my_host port=5432 user=my_user password=my_password dbname=my_database sslmode=require",
		cfg.ConnectionString())
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetimeDuration())
}

func TestDatabaseConfig_ConnectionStringQuoting(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{"space", "two words", `password='two words'`},
		{"single quote", "it's", `password='it\'s'`},
		{"backslash", `a\b`, `password='a\\b'`},
		{"empty", "", `password=''`},
		{"equals sign kept bare", "a=b", `password=a=b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DatabaseConfig{
				Host: "my_host", Port: 5432, User: "my_user", Password: tt.password,
				Name: "my_database", SSLMode: "require",
			}
			dsn := cfg.ConnectionString()
			assert.Contains(t, dsn, " "+tt.want+" dbname=my_database")
			assert.True(t, strings.HasPrefix(dsn, "host=my_host port=5432 user=my_user "))
		})
	}
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *config.Config {
		cfg, err := config.Load()
		require.NoError(t, err)
		cfg.Storage.AccountName = "fsdhstorage"
		return cfg
	}

	t.Run("defaults with account are valid", func(t *testing.T) {
		assert.NoError(t, base(t).Validate())
	})

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown storage mode", func(c *config.Config) { c.Storage.Mode = "s3" }},
		{"mount point outside /mnt", func(c *config.Config) { c.Storage.MountPoint = "/data/fsdh" }},
		{"show rows below one", func(c *config.Config) { c.Storage.ShowRows = 0 }},
		{"unknown database driver", func(c *config.Config) { c.Database.Driver = "oracle" }},
		{"postgres without host", func(c *config.Config) { c.Database.Host = "" }},
		{"sqlite without path", func(c *config.Config) {
			c.Database.Driver = "sqlite"
			c.Database.Path = ""
		}},
		{"port out of range", func(c *config.Config) { c.Database.Port = 70000 }},
		{"missing reader table", func(c *config.Config) { c.Reader.Table = "" }},
		{"unknown secret source", func(c *config.Config) { c.Secrets.Source = "file" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("local mode needs no account", func(t *testing.T) {
		cfg := base(t)
		cfg.Storage.Mode = "local"
		cfg.Storage.AccountName = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("azure mode needs no account until mounting", func(t *testing.T) {
		cfg := base(t)
		cfg.Storage.Mode = "azure"
		cfg.Storage.AccountName = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("sqlite needs no host", func(t *testing.T) {
		cfg := base(t)
		cfg.Database.Driver = "sqlite"
		cfg.Database.Host = ""
		cfg.Database.Name = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestProviderConfig_StorageScopeFallsBackToVault(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.App.Environment = "production"
	cfg.Secrets.KeyVaultName = "fsdh-kv"
	cfg.Secrets.Scopes = map[string]string{"Other": "other-kv"}

	pc := cfg.ProviderConfig()
	assert.Equal(t, secrets.SourceAuto, pc.Source)
	assert.Equal(t, "fsdh-kv", pc.VaultName)
	assert.Equal(t, map[string]string{"other": "other-kv"}, pc.Scopes)
	assert.Equal(t, "datahub", pc.DefaultScope)

	p, err := secrets.NewProvider(pc, zap.NewNop())
	require.NoError(t, err)
	_, err = p.GetScoped(context.Background(), "unmapped", "storage-key")
	assert.ErrorIs(t, err, secrets.ErrUnknownScope)
	assert.Equal(t, "production", pc.Environment)
	assert.Equal(t, 5*time.Minute, pc.CacheTTL)
}

func TestLoadWithSecrets_EnvironmentSecrets(t *testing.T) {
	t.Setenv("STORAGE_MODE", "local")
	t.Setenv("SECRET_DATAHUB_DATABASE_HOST", "db.internal")
	t.Setenv("SECRET_DATAHUB_DATABASE_PASSWORD", "from-scope")
	t.Setenv("DATABASE_USER", "env_user")
	t.Setenv("DATABASE_SSLMODE", "disable")

	cfg, provider, err := config.LoadWithSecrets(context.Background(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, secrets.SourceEnvironment, provider.Source())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "env_user", cfg.Database.User)
	assert.Equal(t, "from-scope", cfg.Database.Password)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoadWithSecrets_DatabaseOnly(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg, _, err := config.LoadWithSecrets(context.Background(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "azure", cfg.Storage.Mode)
	assert.Empty(t, cfg.Storage.AccountName)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadWithSecrets_InvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_MODE", "s3")

	_, _, err := config.LoadWithSecrets(context.Background(), zap.NewNop())
	assert.Error(t, err)
}
