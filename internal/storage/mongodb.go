package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

const mongoConnectTimeout = 10 * time.Second

// MongoDBStorage implements Storage interface using MongoDB
type MongoDBStorage struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBStorage connects to MongoDB and verifies the connection
func NewMongoDBStorage(cfg config.StorageConfig) (*MongoDBStorage, error) {
	if cfg.MongoDBURI == "" {
		return nil, errors.New("MONGODB_URI is required for mongodb storage")
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	return &MongoDBStorage{
		client: client,
		db:     client.Database(cfg.MongoDatabase),
	}, nil
}

// upsertAll replaces documents by _id so reruns overwrite earlier exports
func (m *MongoDBStorage) upsertAll(ctx context.Context, collection string, ids []string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": ids[i]}).
			SetReplacement(doc).
			SetUpsert(true)
	}

	_, err := m.db.Collection(collection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	return errors.Wrapf(err, "failed to store %s", collection)
}

// StoreDataset upserts posts, comments and commenters into their collections
func (m *MongoDBStorage) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	ids := make([]string, 0, len(dataset.Posts))
	docs := make([]interface{}, 0, len(dataset.Posts))
	for _, post := range dataset.Posts {
		ids = append(ids, rowKey(post.N, post.PostID))
		docs = append(docs, post)
	}
	if err := m.upsertAll(ctx, "posts", ids, docs); err != nil {
		return err
	}

	ids, docs = ids[:0], docs[:0]
	for _, comment := range dataset.Comments {
		ids = append(ids, rowKey(comment.PostN, comment.ID))
		docs = append(docs, comment)
	}
	if err := m.upsertAll(ctx, "comments", ids, docs); err != nil {
		return err
	}

	ids, docs = ids[:0], docs[:0]
	for _, commenter := range dataset.Commenters {
		ids = append(ids, rowKey(commenter.PostN, commenter.ID))
		docs = append(docs, commenter)
	}
	return m.upsertAll(ctx, "commenters", ids, docs)
}

// UpdateIngestionStatus updates the ingestion status
func (m *MongoDBStorage) UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error {
	_, err := m.db.Collection("ingestion_status").ReplaceOne(ctx,
		bson.M{"_id": "ingestion_status"},
		status,
		options.Replace().SetUpsert(true),
	)
	return errors.Wrap(err, "failed to update ingestion status")
}

// GetIngestionStatus retrieves the current ingestion status
func (m *MongoDBStorage) GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error) {
	var status models.IngestionStatus
	err := m.db.Collection("ingestion_status").FindOne(ctx, bson.M{"_id": "ingestion_status"}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.IngestionStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ingestion status")
	}
	return &status, nil
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
