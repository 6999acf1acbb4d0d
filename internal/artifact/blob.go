package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"shelflife/internal/models"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"
)

// BlobConfig holds Azure Blob Storage connection parameters.
type BlobConfig struct {
	ConnectionString string `yaml:"connection_string"`
	ContainerName    string `yaml:"container_name"`
}

// BlobStore keeps artifacts in an Azure Blob Storage container.
type BlobStore struct {
	client    *azblob.Client
	container string
	logger    *zap.Logger
}

// NewBlobStore creates the client and makes sure the container exists.
func NewBlobStore(ctx context.Context, cfg BlobConfig, logger *zap.Logger) (*BlobStore, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("blob connection string is required")
	}
	if cfg.ContainerName == "" {
		cfg.ContainerName = "artifacts"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, cfg.ContainerName, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("failed to create container %s: %w", cfg.ContainerName, err)
		}
	}

	logger.Info("Blob artifact store ready", zap.String("container", cfg.ContainerName))

	return &BlobStore{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger,
	}, nil
}

func (s *BlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, key)
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.client.UploadStream(ctx, s.container, key, bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}

	s.logger.Debug("Artifact uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}
