package ingestion

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
	"github.com/marchellodev/post-export/internal/storage"
)

const captionExt = ".txt"

// Service turns a folder of post exports into posts, comments and
// commenters tables
type Service struct {
	config  config.IngestionConfig
	fs      afero.Fs
	storage storage.Storage
	logger  *zap.Logger
	skip    map[string]struct{}
	now     func() time.Time
}

// NewService creates a new ingestion service reading from fs
func NewService(cfg config.IngestionConfig, fs afero.Fs, store storage.Storage, logger *zap.Logger) *Service {
	skip := make(map[string]struct{}, len(cfg.SkipPosts))
	for _, name := range cfg.SkipPosts {
		skip[name] = struct{}{}
	}

	return &Service{
		config:  cfg,
		fs:      fs,
		storage: store,
		logger:  logger,
		skip:    skip,
		now:     time.Now,
	}
}

// IngestData builds the dataset and stores it, recording the run status.
// Nothing is stored if any post fails to parse.
func (s *Service) IngestData(ctx context.Context) (*models.Dataset, error) {
	status := models.IngestionStatus{
		LastAttempt: s.now().UTC(),
		Status:      models.StatusRunning,
		Source:      s.config.SourceFolder,
	}
	if prev, err := s.storage.GetIngestionStatus(ctx); err == nil {
		status.LastSuccessfulRun = prev.LastSuccessfulRun
	}
	if err := s.storage.UpdateIngestionStatus(ctx, status); err != nil {
		return nil, errors.Wrap(err, "failed to update ingestion status")
	}

	dataset, err := s.BuildDataset(ctx)
	if err == nil {
		err = errors.Wrap(s.storage.StoreDataset(ctx, dataset), "failed to store dataset")
	}

	if err != nil {
		status.Status = models.StatusFailure
		status.ErrorMessage = err.Error()
		if serr := s.storage.UpdateIngestionStatus(context.Background(), status); serr != nil {
			s.logger.Warn("Failed to record ingestion failure", zap.Error(serr))
		}
		return nil, err
	}

	status.Status = models.StatusSuccess
	status.LastSuccessfulRun = s.now().UTC()
	status.PostsWritten = len(dataset.Posts)
	status.CommentsWritten = len(dataset.Comments)
	status.CommentersWritten = len(dataset.Commenters)
	if err := s.storage.UpdateIngestionStatus(ctx, status); err != nil {
		return nil, errors.Wrap(err, "failed to update ingestion status")
	}

	s.logger.Info("Ingestion finished",
		zap.Int("posts", status.PostsWritten),
		zap.Int("comments", status.CommentsWritten),
		zap.Int("commenters", status.CommentersWritten),
	)
	return dataset, nil
}

// BuildDataset parses every listed post in turn and returns the three
// tables ordered by post number.
func (s *Service) BuildDataset(ctx context.Context) (*models.Dataset, error) {
	files, err := s.listPosts()
	if err != nil {
		return nil, err
	}

	dataset := &models.Dataset{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		post, err := s.parsePost(file)
		if err != nil {
			return nil, err
		}

		comments, commenters, err := s.parseComments(file, post.N)
		if err != nil {
			return nil, err
		}

		s.logger.Debug("Parsed post",
			zap.String("file", file),
			zap.Int("n", post.N),
			zap.Int("comments", len(comments)),
			zap.Int("commenters", len(commenters)),
		)

		dataset.Posts = append(dataset.Posts, *post)
		dataset.Comments = append(dataset.Comments, comments...)
		dataset.Commenters = append(dataset.Commenters, commenters...)
	}

	sortDataset(dataset)
	return dataset, nil
}

// listPosts returns the base name of every caption file in the source
// folder, minus the skip list
func (s *Service) listPosts() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.config.SourceFolder)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", s.config.SourceFolder)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), captionExt) {
			continue
		}

		file := strings.SplitN(entry.Name(), ".", 2)[0]
		if _, ok := s.skip[file]; ok {
			s.logger.Debug("Skipping post", zap.String("file", file))
			continue
		}
		files = append(files, file)
	}

	return files, nil
}

func sortDataset(dataset *models.Dataset) {
	sort.SliceStable(dataset.Posts, func(i, j int) bool {
		return dataset.Posts[i].N < dataset.Posts[j].N
	})
	sort.SliceStable(dataset.Comments, func(i, j int) bool {
		return dataset.Comments[i].PostN < dataset.Comments[j].PostN
	})
	sort.SliceStable(dataset.Commenters, func(i, j int) bool {
		return dataset.Commenters[i].PostN < dataset.Commenters[j].PostN
	})
}

// IsNotExist reports whether err was caused by a missing file or folder
func IsNotExist(err error) bool {
	return os.IsNotExist(errors.Cause(err))
}
