package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/zap"
)

// AzureBlobStorage implements Storage interface for a single Azure Blob Storage container
type AzureBlobStorage struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewAzureBlobStorage wraps an existing blob client
func NewAzureBlobStorage(client *azblob.Client, containerName string, logger *zap.Logger) *AzureBlobStorage {
	return &AzureBlobStorage{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}
}

// NewAzureBlobStorageFromConnectionString creates a container storage from a connection string
func NewAzureBlobStorageFromConnectionString(connectionString, containerName string, logger *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureBlobStorage(client, containerName, logger), nil
}

// NewAzureBlobStorageWithSharedKey creates a container storage authenticated with an account key
func NewAzureBlobStorageWithSharedKey(loc Location, accountKey string, logger *zap.Logger) (*AzureBlobStorage, error) {
	cred, err := azblob.NewSharedKeyCredential(loc.Account, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage account key: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(loc.BlobServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureBlobStorage(client, loc.Container, logger), nil
}

// NewAzureBlobStorageWithSAS creates a container storage authenticated with a SAS token
func NewAzureBlobStorageWithSAS(loc Location, sasToken string, logger *zap.Logger) (*AzureBlobStorage, error) {
	serviceURL := loc.BlobServiceURL() + "?" + strings.TrimPrefix(sasToken, "?")
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureBlobStorage(client, loc.Container, logger), nil
}

// NewAzureBlobStorageWithCredential creates a container storage authenticated with a token credential
func NewAzureBlobStorageWithCredential(loc Location, cred azcore.TokenCredential, logger *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClient(loc.BlobServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return NewAzureBlobStorage(client, loc.Container, logger), nil
}

// Container returns the container name
func (s *AzureBlobStorage) Container() string {
	return s.containerName
}

// List lists blobs and virtual directories directly under dir
func (s *AzureBlobStorage) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := cleanRelative(dir)
	if prefix != "" {
		prefix += "/"
	}

	containerClient := s.client.ServiceClient().NewContainerClient(s.containerName)
	pager := containerClient.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: &prefix,
	})

	var files []FileInfo
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, fmt.Errorf("%w: container %s", ErrNotFound, s.containerName)
			}
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		if resp.Segment == nil {
			continue
		}
		for _, p := range resp.Segment.BlobPrefixes {
			if p.Name == nil {
				continue
			}
			files = append(files, FileInfo{
				Path:  *p.Name,
				Name:  path.Base(*p.Name) + "/",
				IsDir: true,
			})
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			fi := FileInfo{
				Path: *item.Name,
				Name: path.Base(*item.Name),
			}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					fi.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					fi.ModTime = *props.LastModified
				}
			}
			files = append(files, fi)
		}
	}

	if len(files) == 0 && prefix != "" {
		// dir may name a single blob rather than a virtual directory
		props, err := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(cleanRelative(dir)).GetProperties(ctx, nil)
		if err != nil {
			if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
			}
			return nil, fmt.Errorf("failed to stat blob: %w", err)
		}
		fi := FileInfo{Path: cleanRelative(dir), Name: path.Base(dir)}
		if props.ContentLength != nil {
			fi.Size = *props.ContentLength
		}
		if props.LastModified != nil {
			fi.ModTime = *props.LastModified
		}
		files = append(files, fi)
	}

	s.logger.Debug("Listed Azure Blob Storage path",
		zap.String("container", s.containerName),
		zap.String("prefix", prefix),
		zap.Int("entries", len(files)),
	)

	sortFiles(files)
	return files, nil
}

// Open downloads a blob as a stream
func (s *AzureBlobStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, cleanRelative(name), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}

	return resp.Body, nil
}

// Upload uploads data to the named blob
func (s *AzureBlobStorage) Upload(ctx context.Context, name string, contentType string, data io.Reader) (int64, error) {
	blobName := cleanRelative(name)
	uploadOptions := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	reader := &countingReader{r: data}

	_, err := s.client.UploadStream(ctx, s.containerName, blobName, reader, uploadOptions)
	if err != nil {
		return 0, fmt.Errorf("failed to upload blob: %w", err)
	}

	s.logger.Info("File uploaded to Azure Blob Storage",
		zap.String("blobName", blobName),
		zap.String("container", s.containerName),
		zap.String("contentType", contentType),
		zap.Int64("size", reader.count),
	)

	return reader.count, nil
}

// countingReader wraps an io.Reader and counts the number of bytes read
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}

// Delete deletes a blob
func (s *AzureBlobStorage) Delete(ctx context.Context, name string) error {
	blobName := cleanRelative(name)
	_, err := s.client.DeleteBlob(ctx, s.containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			s.logger.Debug("Blob already deleted or not found",
				zap.String("blobName", blobName),
				zap.String("container", s.containerName),
			)
			return nil
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	s.logger.Info("File deleted from Azure Blob Storage",
		zap.String("blobName", blobName),
		zap.String("container", s.containerName),
	)

	return nil
}
