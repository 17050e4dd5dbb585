package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	// SourceEnvironment loads secrets from environment variables
	SourceEnvironment SecretSource = "environment"
	// SourceVault loads secrets from Azure Key Vault
	SourceVault SecretSource = "vault"
	// SourceAuto automatically determines source based on environment
	// Uses vault in staging/production, environment in development
	SourceAuto SecretSource = "auto"
)

var (
	// ErrSecretNotFound is returned when a secret has no value in the configured source
	ErrSecretNotFound = errors.New("secret not found")

	// ErrUnknownScope is returned when a secret scope has no backing vault
	ErrUnknownScope = errors.New("unknown secret scope")
)

// Getter fetches a single secret by name. VaultClient implements it.
type Getter interface {
	GetSecret(ctx context.Context, secretName string) (string, error)
}

// GetterFactory creates the Getter backing a vault
type GetterFactory func(vaultName string) (Getter, error)

// Provider abstracts secret retrieval from different sources.
// Secrets are addressed by scope and key; in vault mode every scope maps to a Key Vault.
type Provider struct {
	source      SecretSource
	scopes      map[string]string
	newGetter   GetterFactory
	logger      *zap.Logger
	environment string

	mu      sync.Mutex
	getters map[string]Getter
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source SecretSource
	// VaultName backs DefaultScope when Scopes has no entry for it.
	// Other unmapped scopes are unknown.
	VaultName    string
	DefaultScope string
	Scopes       map[string]string
	Environment  string // "development", "staging", "production"
	CacheEnabled bool
	CacheTTL     time.Duration
	// NewGetter overrides how vault clients are created
	NewGetter GetterFactory
}

// NewProvider creates a new secrets provider
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := cfg.Source
	if source == "" {
		source = SourceAuto
	}

	// Resolve "auto" source based on environment
	if source == SourceAuto {
		switch cfg.Environment {
		case "development", "local", "":
			source = SourceEnvironment
		default:
			source = SourceVault
		}
		logger.Info("Auto-detected secret source",
			zap.String("source", string(source)),
			zap.String("environment", cfg.Environment),
		)
	}

	if source != SourceEnvironment && source != SourceVault {
		return nil, fmt.Errorf("unknown secret source: %s", source)
	}

	scopes := make(map[string]string, len(cfg.Scopes))
	for scope, vault := range cfg.Scopes {
		scopes[strings.ToLower(scope)] = vault
	}

	newGetter := cfg.NewGetter
	if newGetter == nil {
		newGetter = func(vaultName string) (Getter, error) {
			return NewVaultClient(&VaultConfig{
				VaultName:    vaultName,
				CacheEnabled: cfg.CacheEnabled,
				CacheTTL:     cfg.CacheTTL,
			}, logger)
		}
	}

	provider := &Provider{
		source:      source,
		scopes:      scopes,
		newGetter:   newGetter,
		logger:      logger,
		environment: cfg.Environment,
		getters:     make(map[string]Getter),
	}

	if source == SourceVault {
		defaultScope := strings.ToLower(cfg.DefaultScope)
		if _, ok := provider.scopes[defaultScope]; !ok && cfg.VaultName != "" && defaultScope != "" {
			provider.scopes[defaultScope] = cfg.VaultName
		}
		if len(provider.scopes) == 0 {
			return nil, fmt.Errorf("vault name required when using vault secret source")
		}
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.Int("scopes", len(scopes)),
	)

	return provider, nil
}

// EnvName returns the environment variable holding a scoped secret,
// e.g. scope "datahub" key "storage-key" is SECRET_DATAHUB_STORAGE_KEY
func EnvName(scope, key string) string {
	name := "SECRET_" + scope + "_" + key
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
	return strings.ToUpper(name)
}

// GetScoped retrieves the secret stored under key in the given scope
func (p *Provider) GetScoped(ctx context.Context, scope, key string) (string, error) {
	switch p.source {
	case SourceEnvironment:
		envName := EnvName(scope, key)
		value := os.Getenv(envName)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s': %w", envName, ErrSecretNotFound)
		}
		return value, nil

	case SourceVault:
		getter, err := p.getter(scope)
		if err != nil {
			return "", err
		}
		value, err := getter.GetSecret(ctx, key)
		if err != nil {
			return "", err
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown secret source: %s", p.source)
	}
}

// GetScopedOrEnv returns the environment variable envName when set,
// otherwise the scoped secret
func (p *Provider) GetScopedOrEnv(ctx context.Context, scope, key, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("Using environment variable override",
			zap.String("env_name", envName),
		)
		return envValue, nil
	}
	return p.GetScoped(ctx, scope, key)
}

// GetScopedWithDefault retrieves a scoped secret, returning defaultValue if not found
func (p *Provider) GetScopedWithDefault(ctx context.Context, scope, key, defaultValue string) string {
	value, err := p.GetScoped(ctx, scope, key)
	if err != nil {
		p.logger.Debug("Using default value for secret",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.String("source", string(p.source)),
		)
		return defaultValue
	}
	return value
}

func (p *Provider) getter(scope string) (Getter, error) {
	scope = strings.ToLower(scope)
	vaultName, ok := p.scopes[scope]
	if !ok || vaultName == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.getters[vaultName]; ok {
		return g, nil
	}
	g, err := p.newGetter(vaultName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault client for scope %s: %w", scope, err)
	}
	p.getters[vaultName] = g
	return g, nil
}

// Source returns the current secret source
func (p *Provider) Source() SecretSource {
	return p.source
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
