package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

// Output file names, relative to the output directory
const (
	PostsFile      = "result_posts.csv"
	CommentsFile   = "result_comments.csv"
	CommentersFile = "result_commenters.csv"
	StatusFile     = "result_status.json"
)

// TimeLayout is the textual form of every date column
const TimeLayout = time.RFC3339

type postRow struct {
	N               int     `csv:"n"`
	Date            string  `csv:"date"`
	Image           string  `csv:"image"`
	Text            string  `csv:"text"`
	PostID          string  `csv:"post_id"`
	ImageHeight     int     `csv:"post_image_height"`
	ImageWidth      int     `csv:"post_image_width"`
	ImageDate       string  `csv:"post_image_date"`
	A11yCaption     string  `csv:"post_a11y_caption"`
	CommentCount    int     `csv:"post_comments"`
	LocationID      *string `csv:"post_location_id"`
	LocationName    *string `csv:"post_location_name"`
	LocationAddress *string `csv:"post_location"`
	CaptionIsEdited *bool   `csv:"post_text_edited"`
}

type commentRow struct {
	PostN      int     `csv:"post_n"`
	ID         string  `csv:"id"`
	OwnerID    string  `csv:"owner_id"`
	AnswerTo   *string `csv:"answer_to"`
	Text       string  `csv:"text"`
	LikesCount int     `csv:"likes_count"`
	CreatedAt  string  `csv:"created_at"`
}

type commenterRow struct {
	ID         string `csv:"id"`
	Username   string `csv:"username"`
	IsVerified bool   `csv:"is_verified"`
	ProfilePic string `csv:"profile_pic"`
}

// CSVStorage writes the dataset as three CSV tables into a directory
type CSVStorage struct {
	fs  afero.Fs
	dir string
}

// NewCSVStorage creates a new CSV storage instance
func NewCSVStorage(cfg config.StorageConfig, fs afero.Fs) *CSVStorage {
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	return &CSVStorage{fs: fs, dir: dir}
}

// Files returns the paths of the three tables in write order
func (c *CSVStorage) Files() []string {
	return []string{
		filepath.Join(c.dir, PostsFile),
		filepath.Join(c.dir, CommentsFile),
		filepath.Join(c.dir, CommentersFile),
	}
}

// StoreDataset writes all three tables. Each table goes to a temporary
// file first; the final names only appear once every table was written.
func (c *CSVStorage) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", c.dir)
	}

	tables := []interface{}{
		postRows(dataset.Posts),
		commentRows(dataset.Comments),
		commenterRows(dataset.Commenters),
	}
	files := c.Files()

	var written []string
	for i, rows := range tables {
		if err := ctx.Err(); err != nil {
			c.removeAll(written)
			return err
		}
		tmp := files[i] + ".tmp"
		if err := c.writeTable(tmp, rows); err != nil {
			c.removeAll(append(written, tmp))
			return err
		}
		written = append(written, tmp)
	}

	for i, tmp := range written {
		if err := c.fs.Rename(tmp, files[i]); err != nil {
			return errors.Wrapf(err, "failed to move %s into place", files[i])
		}
	}
	return nil
}

func (c *CSVStorage) writeTable(name string, rows interface{}) error {
	f, err := c.fs.Create(name)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", name)
	}
	defer f.Close()

	if err := gocsv.Marshal(rows, f); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", name)
}

func (c *CSVStorage) removeAll(names []string) {
	for _, name := range names {
		_ = c.fs.Remove(name)
	}
}

// UpdateIngestionStatus stores the status as JSON next to the tables
func (c *CSVStorage) UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", c.dir)
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal ingestion status")
	}
	return errors.Wrap(afero.WriteFile(c.fs, filepath.Join(c.dir, StatusFile), data, 0o644), "failed to write ingestion status")
}

// GetIngestionStatus retrieves the current ingestion status
func (c *CSVStorage) GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error) {
	data, err := afero.ReadFile(c.fs, filepath.Join(c.dir, StatusFile))
	if os.IsNotExist(err) {
		return &models.IngestionStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ingestion status")
	}

	var status models.IngestionStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal ingestion status")
	}
	return &status, nil
}

// Close is a no-op, files are closed after each write
func (c *CSVStorage) Close() error {
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func postRows(posts []models.Post) []*postRow {
	rows := make([]*postRow, len(posts))
	for i, p := range posts {
		rows[i] = &postRow{
			N:               p.N,
			Date:            formatTime(p.Date),
			Image:           p.Image,
			Text:            p.Text,
			PostID:          p.PostID,
			ImageHeight:     p.ImageHeight,
			ImageWidth:      p.ImageWidth,
			ImageDate:       formatTime(p.ImageDate),
			A11yCaption:     p.A11yCaption,
			CommentCount:    p.CommentCount,
			LocationID:      p.LocationID,
			LocationName:    p.LocationName,
			LocationAddress: p.LocationAddress,
			CaptionIsEdited: p.CaptionIsEdited,
		}
	}
	return rows
}

func commentRows(comments []models.Comment) []*commentRow {
	rows := make([]*commentRow, len(comments))
	for i, c := range comments {
		rows[i] = &commentRow{
			PostN:      c.PostN,
			ID:         c.ID,
			OwnerID:    c.OwnerID,
			AnswerTo:   c.AnswerTo,
			Text:       c.Text,
			LikesCount: c.LikesCount,
			CreatedAt:  formatTime(c.CreatedAt),
		}
	}
	return rows
}

func commenterRows(commenters []models.Commenter) []*commenterRow {
	rows := make([]*commenterRow, len(commenters))
	for i, c := range commenters {
		rows[i] = &commenterRow{
			ID:         c.ID,
			Username:   c.Username,
			IsVerified: c.IsVerified,
			ProfilePic: c.ProfilePic,
		}
	}
	return rows
}
