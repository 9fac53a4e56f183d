package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// postgres driver
	_ "github.com/lib/pq"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS posts (
	n INTEGER PRIMARY KEY,
	date TIMESTAMPTZ NOT NULL,
	image TEXT NOT NULL,
	text TEXT NOT NULL,
	post_id TEXT NOT NULL,
	post_image_height INTEGER NOT NULL,
	post_image_width INTEGER NOT NULL,
	post_image_date TIMESTAMPTZ NOT NULL,
	post_a11y_caption TEXT NOT NULL,
	post_comments INTEGER NOT NULL,
	post_location_id TEXT,
	post_location_name TEXT,
	post_location TEXT,
	post_text_edited BOOLEAN
);

CREATE TABLE IF NOT EXISTS comments (
	post_n INTEGER NOT NULL REFERENCES posts (n),
	id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	answer_to TEXT,
	text TEXT NOT NULL,
	likes_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (post_n, id)
);

CREATE TABLE IF NOT EXISTS commenters (
	post_n INTEGER NOT NULL REFERENCES posts (n),
	id TEXT NOT NULL,
	username TEXT NOT NULL,
	is_verified BOOLEAN NOT NULL,
	profile_pic TEXT NOT NULL,
	PRIMARY KEY (post_n, id)
);

CREATE TABLE IF NOT EXISTS ingestion_status (
	id TEXT PRIMARY KEY,
	last_successful_run TIMESTAMPTZ,
	last_attempt TIMESTAMPTZ,
	status TEXT NOT NULL,
	error_message TEXT,
	source TEXT,
	posts_written INTEGER NOT NULL DEFAULT 0,
	comments_written INTEGER NOT NULL DEFAULT 0,
	commenters_written INTEGER NOT NULL DEFAULT 0
);
`

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage opens the database and creates the tables if needed
func NewPostgreSQLStorage(cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	if cfg.PostgresURI == "" {
		return nil, errors.New("POSTGRES_URI is required for postgresql storage")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PostgreSQL")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping PostgreSQL")
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &PostgreSQLStorage{db: db}, nil
}

// StoreDataset upserts every row in one transaction
func (p *PostgreSQLStorage) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, post := range dataset.Posts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO posts (n, date, image, text, post_id, post_image_height, post_image_width,
				post_image_date, post_a11y_caption, post_comments, post_location_id,
				post_location_name, post_location, post_text_edited)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (n) DO UPDATE SET
				date = excluded.date,
				image = excluded.image,
				text = excluded.text,
				post_id = excluded.post_id,
				post_image_height = excluded.post_image_height,
				post_image_width = excluded.post_image_width,
				post_image_date = excluded.post_image_date,
				post_a11y_caption = excluded.post_a11y_caption,
				post_comments = excluded.post_comments,
				post_location_id = excluded.post_location_id,
				post_location_name = excluded.post_location_name,
				post_location = excluded.post_location,
				post_text_edited = excluded.post_text_edited`,
			post.N, post.Date, post.Image, post.Text, post.PostID, post.ImageHeight, post.ImageWidth,
			post.ImageDate, post.A11yCaption, post.CommentCount, post.LocationID,
			post.LocationName, post.LocationAddress, post.CaptionIsEdited,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to store post %d", post.N)
		}
	}

	for _, comment := range dataset.Comments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comments (post_n, id, owner_id, answer_to, text, likes_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (post_n, id) DO UPDATE SET
				owner_id = excluded.owner_id,
				answer_to = excluded.answer_to,
				text = excluded.text,
				likes_count = excluded.likes_count,
				created_at = excluded.created_at`,
			comment.PostN, comment.ID, comment.OwnerID, comment.AnswerTo, comment.Text,
			comment.LikesCount, comment.CreatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to store comment %s", comment.ID)
		}
	}

	for _, commenter := range dataset.Commenters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commenters (post_n, id, username, is_verified, profile_pic)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (post_n, id) DO UPDATE SET
				username = excluded.username,
				is_verified = excluded.is_verified,
				profile_pic = excluded.profile_pic`,
			commenter.PostN, commenter.ID, commenter.Username, commenter.IsVerified, commenter.ProfilePic,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to store commenter %s", commenter.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit dataset")
}

// UpdateIngestionStatus updates the ingestion status
func (p *PostgreSQLStorage) UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ingestion_status (id, last_successful_run, last_attempt, status, error_message,
			source, posts_written, comments_written, commenters_written)
		VALUES ('ingestion_status', $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			last_successful_run = excluded.last_successful_run,
			last_attempt = excluded.last_attempt,
			status = excluded.status,
			error_message = excluded.error_message,
			source = excluded.source,
			posts_written = excluded.posts_written,
			comments_written = excluded.comments_written,
			commenters_written = excluded.commenters_written`,
		status.LastSuccessfulRun, status.LastAttempt, status.Status, status.ErrorMessage,
		status.Source, status.PostsWritten, status.CommentsWritten, status.CommentersWritten,
	)
	return errors.Wrap(err, "failed to update ingestion status")
}

// GetIngestionStatus retrieves the current ingestion status
func (p *PostgreSQLStorage) GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error) {
	var status models.IngestionStatus
	var errorMessage, source sql.NullString
	var lastSuccess, lastAttempt sql.NullTime

	err := p.db.QueryRowContext(ctx, `
		SELECT last_successful_run, last_attempt, status, error_message, source,
			posts_written, comments_written, commenters_written
		FROM ingestion_status WHERE id = 'ingestion_status'`,
	).Scan(&lastSuccess, &lastAttempt, &status.Status, &errorMessage, &source,
		&status.PostsWritten, &status.CommentsWritten, &status.CommentersWritten)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.IngestionStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ingestion status")
	}

	status.LastSuccessfulRun = lastSuccess.Time
	status.LastAttempt = lastAttempt.Time
	status.ErrorMessage = errorMessage.String
	status.Source = source.String
	return &status, nil
}

// Close closes the database
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}
