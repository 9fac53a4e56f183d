package config

import (
	"os"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	Storage   StorageConfig
	Ingestion IngestionConfig
	Log       LogConfig
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type          string // "csv", "dynamodb", "mongodb", "postgresql"
	OutputDir     string // For CSV output
	Region        string // For AWS DynamoDB
	TableName     string
	Endpoint      string // Custom endpoint for local testing
	MongoDBURI    string
	MongoDatabase string
	PostgresURI   string
}

// IngestionConfig holds ingestion-related configuration
type IngestionConfig struct {
	SourceFolder string
	SkipPosts    []string
	ImageBaseURL string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "console" or "json"
}

// DefaultSkipPosts are exports that are not auction posts
var DefaultSkipPosts = []string{
	"2024-02-20_11-46-48_UTC",
	"2024-02-23_10-10-00_UTC",
	"2024-02-12_11-53-41_UTC_profile_pic",
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Type:          getEnv("STORAGE_TYPE", "csv"),
			OutputDir:     getEnv("OUTPUT_DIR", "."),
			Region:        getEnv("AWS_REGION", "us-west-2"),
			TableName:     getEnv("TABLE_NAME", "auction_posts"),
			Endpoint:      getEnv("DYNAMODB_ENDPOINT", ""), // For local DynamoDB
			MongoDBURI:    getEnv("MONGODB_URI", ""),
			MongoDatabase: getEnv("MONGODB_DATABASE", "auction_posts"),
			PostgresURI:   getEnv("POSTGRES_URI", ""),
		},
		Ingestion: IngestionConfig{
			SourceFolder: getEnv("SOURCE_FOLDER", "kse_meeting_auction"),
			SkipPosts:    getEnvList("SKIP_POSTS", DefaultSkipPosts),
			ImageBaseURL: getEnv("IMAGE_BASE_URL", "https://raw.githubusercontent.com/marchellodev/ai_kse_auctions_data/main"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated variable. An explicitly empty
// variable is not distinguishable from an unset one and yields the default.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
