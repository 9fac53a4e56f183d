package models

import "time"

// PostMeta is the per-post metadata document exported next to each caption.
type PostMeta struct {
	Node PostNode `json:"node"`
}

// PostNode holds the fields of the exported media node we care about
type PostNode struct {
	ID                   string    `json:"id"`
	Dimensions           Dimension `json:"dimensions"`
	TakenAtTimestamp     int64     `json:"taken_at_timestamp"`
	AccessibilityCaption string    `json:"accessibility_caption"`
	EdgeMediaToComment   EdgeCount `json:"edge_media_to_comment"`
	Location             *Location `json:"location"`
	CaptionIsEdited      *bool     `json:"caption_is_edited"`
}

// EdgeCount is the {"count": N} wrapper used for engagement edges
type EdgeCount struct {
	Count int `json:"count"`
}

// Dimension is the pixel size of the post image
type Dimension struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Location is the optional place attached to a post. Any of its fields
// may be null in the export.
type Location struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	AddressJSON *string `json:"address_json"`
}

// RawComment is one entry of a <file>_comments.json export. Replies share
// the same shape and are nested one level deep under Answers.
type RawComment struct {
	ID         string       `json:"id"`
	Owner      RawOwner     `json:"owner"`
	Text       string       `json:"text"`
	LikesCount int          `json:"likes_count"`
	CreatedAt  int64        `json:"created_at"`
	Answers    []RawComment `json:"answers"`
}

// RawOwner is the author of a comment or reply
type RawOwner struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	IsVerified    bool   `json:"is_verified"`
	ProfilePicURL string `json:"profile_pic_url"`
}

// Post is one row of the posts table
type Post struct {
	N               int       `json:"n" bson:"n"`
	Date            time.Time `json:"date" bson:"date"`
	Image           string    `json:"image" bson:"image"`
	Text            string    `json:"text" bson:"text"`
	PostID          string    `json:"post_id" bson:"post_id"`
	ImageHeight     int       `json:"post_image_height" bson:"post_image_height"`
	ImageWidth      int       `json:"post_image_width" bson:"post_image_width"`
	ImageDate       time.Time `json:"post_image_date" bson:"post_image_date"`
	A11yCaption     string    `json:"post_a11y_caption" bson:"post_a11y_caption"`
	CommentCount    int       `json:"post_comments" bson:"post_comments"`
	LocationID      *string   `json:"post_location_id" bson:"post_location_id"`
	LocationName    *string   `json:"post_location_name" bson:"post_location_name"`
	LocationAddress *string   `json:"post_location" bson:"post_location"`
	CaptionIsEdited *bool     `json:"post_text_edited" bson:"post_text_edited"`
}

// Comment is one row of the comments table: a top-level comment or a reply
type Comment struct {
	PostN      int       `json:"post_n" bson:"post_n"`
	ID         string    `json:"id" bson:"id"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"`
	AnswerTo   *string   `json:"answer_to" bson:"answer_to"`
	Text       string    `json:"text" bson:"text"`
	LikesCount int       `json:"likes_count" bson:"likes_count"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Commenter is one row of the commenters table. PostN is the post whose
// comment pass produced it; ids are unique per post only.
type Commenter struct {
	PostN      int    `json:"-" bson:"post_n"`
	ID         string `json:"id" bson:"id"`
	Username   string `json:"username" bson:"username"`
	IsVerified bool   `json:"is_verified" bson:"is_verified"`
	ProfilePic string `json:"profile_pic" bson:"profile_pic"`
}

// Dataset is the result of a single pass over the source folder
type Dataset struct {
	Posts      []Post
	Comments   []Comment
	Commenters []Commenter
}

// IngestionStatus tracks the status of ingestion runs
type IngestionStatus struct {
	LastSuccessfulRun time.Time `json:"last_successful_run" bson:"last_successful_run"`
	LastAttempt       time.Time `json:"last_attempt" bson:"last_attempt"`
	Status            string    `json:"status" bson:"status"` // "success", "failure", "running"
	ErrorMessage      string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Source            string    `json:"source" bson:"source"`
	PostsWritten      int       `json:"posts_written" bson:"posts_written"`
	CommentsWritten   int       `json:"comments_written" bson:"comments_written"`
	CommentersWritten int       `json:"commenters_written" bson:"commenters_written"`
}

// Status values
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusNeverRun = "never_run"
)
