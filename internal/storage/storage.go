package storage

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

// Storage interface defines the contract for data storage
type Storage interface {
	StoreDataset(ctx context.Context, dataset *models.Dataset) error
	UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error
	GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration.
// fs is only used by the csv backend.
func NewStorage(cfg config.StorageConfig, fs afero.Fs) (Storage, error) {
	switch cfg.Type {
	case "csv":
		return NewCSVStorage(cfg, fs), nil
	case "dynamodb":
		return NewDynamoDBStorage(cfg)
	case "mongodb":
		return NewMongoDBStorage(cfg)
	case "postgresql":
		return NewPostgreSQLStorage(cfg)
	default:
		return nil, errors.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// rowKey identifies a row in keyed backends. Commenters repeat across
// posts, so every key carries the post number.
func rowKey(postN int, id string) string {
	return strconv.Itoa(postN) + "/" + id
}
