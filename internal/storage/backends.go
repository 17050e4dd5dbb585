package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/fsdh/datahub-samples/internal/config"
	"go.uber.org/zap"
)

// BackendFactory creates the Storage serving a location.
// extraConfigs carries mount options such as account keys.
type BackendFactory interface {
	Backend(ctx context.Context, loc Location, extraConfigs map[string]string) (Storage, error)
}

// AzureFactory creates Azure Blob Storage backends. Credentials are picked in
// order: account key extra config, SAS extra config, connection string,
// then the token credential (DefaultAzureCredential when unset).
type AzureFactory struct {
	ConnectionString string
	Credential       azcore.TokenCredential
	Logger           *zap.Logger

	once    sync.Once
	credErr error
}

// Backend implements BackendFactory
func (f *AzureFactory) Backend(ctx context.Context, loc Location, extraConfigs map[string]string) (Storage, error) {
	if !loc.IsAzure() {
		return nil, fmt.Errorf("%w: %s: file locations are not served in azure mode", ErrInvalidURI, loc)
	}

	if key := extraConfigs[AccountKeyConfig(loc.Account)]; key != "" {
		f.Logger.Debug("Using account key for blob storage", zap.String("account", loc.Account))
		return NewAzureBlobStorageWithSharedKey(loc, key, f.Logger)
	}
	if sas := extraConfigs[SASConfig(loc.Container, loc.Account)]; sas != "" {
		f.Logger.Debug("Using SAS token for blob storage", zap.String("account", loc.Account))
		return NewAzureBlobStorageWithSAS(loc, sas, f.Logger)
	}
	if f.ConnectionString != "" {
		return NewAzureBlobStorageFromConnectionString(f.ConnectionString, loc.Container, f.Logger)
	}

	f.once.Do(func() {
		if f.Credential != nil {
			return
		}
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			f.credErr = fmt.Errorf("failed to create Azure credential: %w", err)
			return
		}
		f.Credential = cred
	})
	if f.credErr != nil {
		return nil, f.credErr
	}
	return NewAzureBlobStorageWithCredential(loc, f.Credential, f.Logger)
}

// LocalFactory serves Azure locations from directories under BasePath,
// laid out as <BasePath>/<account>/<container>. File locations are rooted
// at BasePath too, so file:///a.csv is <BasePath>/a.csv.
type LocalFactory struct {
	BasePath string
}

// Backend implements BackendFactory
func (f *LocalFactory) Backend(ctx context.Context, loc Location, extraConfigs map[string]string) (Storage, error) {
	if !loc.IsAzure() {
		return NewLocalStorage(f.BasePath)
	}
	if !accountPattern.MatchString(loc.Account) || !containerPattern.MatchString(loc.Container) {
		return nil, fmt.Errorf("%w: %s: invalid account or container", ErrInvalidURI, loc)
	}
	return NewLocalStorage(filepath.Join(f.BasePath, loc.Account, loc.Container))
}

// NewBackendFactory creates a factory based on configuration.
// For local mode, files are stored on the local filesystem.
// For azure mode, files are stored in Azure Blob Storage.
func NewBackendFactory(cfg *config.StorageConfig, logger *zap.Logger) (BackendFactory, error) {
	switch cfg.Mode {
	case "local":
		return &LocalFactory{BasePath: cfg.LocalBasePath}, nil
	case "azure", "cloud", "":
		return &AzureFactory{ConnectionString: cfg.ConnectionString, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}
