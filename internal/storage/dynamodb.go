package storage

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/pkg/errors"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB.
// Every table is keyed by a string "key" attribute.
type DynamoDBStorage struct {
	client    *dynamodb.DynamoDB
	tableName string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}

	storage := &DynamoDBStorage{
		client:    dynamodb.New(sess),
		tableName: cfg.TableName,
	}

	for _, table := range storage.tables() {
		if err := storage.ensureTable(table); err != nil {
			return nil, errors.Wrapf(err, "failed to ensure table %s exists", table)
		}
	}

	return storage, nil
}

func (d *DynamoDBStorage) postsTable() string      { return d.tableName + "_posts" }
func (d *DynamoDBStorage) commentsTable() string   { return d.tableName + "_comments" }
func (d *DynamoDBStorage) commentersTable() string { return d.tableName + "_commenters" }
func (d *DynamoDBStorage) statusTable() string     { return d.tableName + "_status" }

func (d *DynamoDBStorage) tables() []string {
	return []string{d.postsTable(), d.commentsTable(), d.commentersTable(), d.statusTable()}
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(name string) error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err == nil {
		return nil
	}

	_, err = d.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create table")
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
}

func (d *DynamoDBStorage) putItem(ctx context.Context, table, key string, v interface{}) error {
	item, err := dynamodbattribute.MarshalMap(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal item %s", key)
	}
	item["key"] = &dynamodb.AttributeValue{S: aws.String(key)}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	return errors.Wrapf(err, "failed to store item %s in %s", key, table)
}

// StoreDataset puts every post, comment and commenter as an item.
// Commenters are keyed per post so repeated authors are kept per post.
func (d *DynamoDBStorage) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	for _, post := range dataset.Posts {
		if err := d.putItem(ctx, d.postsTable(), rowKey(post.N, post.PostID), post); err != nil {
			return err
		}
	}
	for _, comment := range dataset.Comments {
		if err := d.putItem(ctx, d.commentsTable(), rowKey(comment.PostN, comment.ID), comment); err != nil {
			return err
		}
	}
	for _, commenter := range dataset.Commenters {
		if err := d.putItem(ctx, d.commentersTable(), rowKey(commenter.PostN, commenter.ID), commenter); err != nil {
			return err
		}
	}
	return nil
}

// UpdateIngestionStatus updates the ingestion status
func (d *DynamoDBStorage) UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error {
	return d.putItem(ctx, d.statusTable(), "ingestion_status", status)
}

// GetIngestionStatus retrieves the current ingestion status
func (d *DynamoDBStorage) GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.statusTable()),
		Key: map[string]*dynamodb.AttributeValue{
			"key": {S: aws.String("ingestion_status")},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ingestion status")
	}

	if result.Item == nil {
		return &models.IngestionStatus{Status: models.StatusNeverRun}, nil
	}

	var status models.IngestionStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal ingestion status")
	}
	return &status, nil
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
