package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/ingestion"
	"github.com/marchellodev/post-export/internal/logging"
	"github.com/marchellodev/post-export/internal/models"
	"github.com/marchellodev/post-export/internal/storage"
)

type exportCmd struct{}

type statusCmd struct{}

type args struct {
	Export       *exportCmd `arg:"subcommand:export" help:"convert the export folder into tables (default)"`
	Status       *statusCmd `arg:"subcommand:status" help:"print the status of the last run"`
	Folder       string     `arg:"--folder" help:"folder with the exported posts [env: SOURCE_FOLDER]"`
	Skip         []string   `arg:"--skip" help:"post names to leave out [env: SKIP_POSTS]"`
	ImageBaseURL string     `arg:"--image-base-url" help:"base of the image links [env: IMAGE_BASE_URL]"`
	OutputDir    string     `arg:"--output-dir" help:"where the CSV tables go [env: OUTPUT_DIR]"`
	Storage      string     `arg:"--storage" help:"csv, postgresql, mongodb or dynamodb [env: STORAGE_TYPE]"`
	LogLevel     string     `arg:"--log-level" help:"debug, info, warn or error [env: LOG_LEVEL]"`
}

func (args) Description() string {
	return "Converts a folder of exported posts and comments into posts, comments and commenters tables."
}

// apply overrides the environment configuration with the flags that were set
func (a args) apply(cfg *config.Config) {
	if a.Folder != "" {
		cfg.Ingestion.SourceFolder = a.Folder
	}
	if a.Skip != nil {
		cfg.Ingestion.SkipPosts = a.Skip
	}
	if a.ImageBaseURL != "" {
		cfg.Ingestion.ImageBaseURL = a.ImageBaseURL
	}
	if a.OutputDir != "" {
		cfg.Storage.OutputDir = a.OutputDir
	}
	if a.Storage != "" {
		cfg.Storage.Type = a.Storage
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	a.apply(cfg)

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	fs := afero.NewOsFs()

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage, fs)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// Abort the run on SIGINT/SIGTERM before anything is written
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Status != nil {
		err = printStatus(ctx, store)
	} else {
		err = export(ctx, cfg, fs, store, logger)
	}
	if err != nil {
		if ingestion.IsNotExist(err) {
			logger.Error("Missing export file or folder", zap.String("folder", cfg.Ingestion.SourceFolder))
		}
		logger.Error("Run failed", zap.Error(err))
		store.Close()
		logger.Sync()
		os.Exit(1)
	}
}

func export(ctx context.Context, cfg *config.Config, fs afero.Fs, store storage.Storage, logger *zap.Logger) error {
	logger.Info("Starting export",
		zap.String("folder", cfg.Ingestion.SourceFolder),
		zap.String("storage", cfg.Storage.Type),
		zap.Strings("skip", cfg.Ingestion.SkipPosts),
	)

	ingestor := ingestion.NewService(cfg.Ingestion, fs, store, logger)
	if _, err := ingestor.IngestData(ctx); err != nil {
		return err
	}

	if csvStore, ok := store.(*storage.CSVStorage); ok {
		files := csvStore.Files()
		for i := range files {
			files[i] = "`" + files[i] + "`"
		}
		fmt.Printf("Done! Check %s\n", strings.Join(files, ", "))
		return nil
	}
	fmt.Printf("Done! Stored posts, comments and commenters in %s\n", cfg.Storage.Type)
	return nil
}

func printStatus(ctx context.Context, store storage.Storage) error {
	status, err := store.GetIngestionStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("status:       %s\n", status.Status)
	if status.Status == models.StatusNeverRun {
		return nil
	}
	fmt.Printf("source:       %s\n", status.Source)
	fmt.Printf("last attempt: %s\n", status.LastAttempt.Format(storage.TimeLayout))
	if !status.LastSuccessfulRun.IsZero() {
		fmt.Printf("last success: %s\n", status.LastSuccessfulRun.Format(storage.TimeLayout))
	}
	fmt.Printf("posts:        %d\n", status.PostsWritten)
	fmt.Printf("comments:     %d\n", status.CommentsWritten)
	fmt.Printf("commenters:   %d\n", status.CommentersWritten)
	if status.ErrorMessage != "" {
		fmt.Printf("error:        %s\n", status.ErrorMessage)
	}
	return nil
}
