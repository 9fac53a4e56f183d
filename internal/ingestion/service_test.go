package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marchellodev/post-export/internal/config"
	"github.com/marchellodev/post-export/internal/models"
)

// MockStorage is a mock implementation of the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	args := m.Called(ctx, dataset)
	return args.Error(0)
}

func (m *MockStorage) UpdateIngestionStatus(ctx context.Context, status models.IngestionStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockStorage) GetIngestionStatus(ctx context.Context) (*models.IngestionStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(*models.IngestionStatus), args.Error(1)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

const testFolder = "kse_meeting_auction"

const singleComment = `[{"id":"c1","owner":{"id":"u1","username":"alice","is_verified":false,"profile_pic_url":"x"},
	"text":"hi","likes_count":2,"created_at":1704100100,"answers":[]}]`

func postMeta(id string) string {
	return `{"node":{"id":"` + id + `","dimensions":{"height":100,"width":100},"taken_at_timestamp":1704100000,
		"accessibility_caption":"a photo","edge_media_to_comment":{"count":1}}}`
}

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(testFolder, name), []byte(content), 0o644))
}

// writePost lays out the three files of one exported post
func writePost(t *testing.T, fs afero.Fs, file, caption, meta, comments string) {
	t.Helper()
	writeFile(t, fs, file+".txt", caption)
	writeFile(t, fs, file+".json", meta)
	writeFile(t, fs, file+"_comments.json", comments)
}

func newTestService(fs afero.Fs, store *MockStorage, skip ...string) *Service {
	cfg := config.IngestionConfig{
		SourceFolder: testFolder,
		SkipPosts:    skip,
		ImageBaseURL: "https://example.com/data/",
	}
	return NewService(cfg, fs, store, zap.NewNop())
}

func TestService_BuildDataset_SinglePost(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ Hello", postMeta("abc"), singleComment)

	service := newTestService(fs, new(MockStorage))
	dataset, err := service.BuildDataset(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Posts, 1)
	post := dataset.Posts[0]
	assert.Equal(t, 1, post.N)
	assert.Equal(t, "abc", post.PostID)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), post.Date)
	assert.Equal(t, "https://example.com/data/kse_meeting_auction/2024-01-01_10-00-00_UTC.jpg", post.Image)
	assert.Equal(t, "1️⃣ Hello", post.Text)
	assert.Equal(t, 100, post.ImageHeight)
	assert.Equal(t, 100, post.ImageWidth)
	assert.Equal(t, time.Unix(1704100000, 0).UTC(), post.ImageDate)
	assert.Equal(t, "a photo", post.A11yCaption)
	assert.Equal(t, 1, post.CommentCount)
	assert.Nil(t, post.LocationID)
	assert.Nil(t, post.LocationName)
	assert.Nil(t, post.LocationAddress)
	assert.Nil(t, post.CaptionIsEdited)

	require.Len(t, dataset.Comments, 1)
	comment := dataset.Comments[0]
	assert.Equal(t, 1, comment.PostN)
	assert.Equal(t, "c1", comment.ID)
	assert.Equal(t, "u1", comment.OwnerID)
	assert.Nil(t, comment.AnswerTo)
	assert.Equal(t, 2, comment.LikesCount)
	assert.Equal(t, time.Unix(1704100100, 0).UTC(), comment.CreatedAt)

	require.Len(t, dataset.Commenters, 1)
	assert.Equal(t, models.Commenter{PostN: 1, ID: "u1", Username: "alice", ProfilePic: "x"}, dataset.Commenters[0])
}

func TestService_BuildDataset_LocationAndEditedFlag(t *testing.T) {
	fs := afero.NewMemMapFs()
	meta := `{"node":{"id":"p","dimensions":{"height":1,"width":2},"taken_at_timestamp":0,
		"edge_media_to_comment":{"count":0},
		"location":{"id":"42","name":"Kyiv","address_json":"{\"city_name\":\"Kyiv\"}"},
		"caption_is_edited":true}}`
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "5️⃣ Lot", meta, `[]`)

	dataset, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Posts, 1)
	post := dataset.Posts[0]
	require.NotNil(t, post.LocationID)
	assert.Equal(t, "42", *post.LocationID)
	assert.Equal(t, "Kyiv", *post.LocationName)
	assert.Equal(t, `{"city_name":"Kyiv"}`, *post.LocationAddress)
	require.NotNil(t, post.CaptionIsEdited)
	assert.True(t, *post.CaptionIsEdited)
	assert.Empty(t, dataset.Comments)
	assert.Empty(t, dataset.Commenters)
}

func TestService_BuildDataset_OrdersByOrdinal(t *testing.T) {
	fs := afero.NewMemMapFs()
	// file name order differs from ordinal order
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "🔟 Last", postMeta("ten"),
		`[{"id":"c10","owner":{"id":"u1"},"answers":[]}]`)
	writePost(t, fs, "2024-01-02_10-00-00_UTC", "3️⃣ Middle", postMeta("three"),
		`[{"id":"c3","owner":{"id":"u1"},"answers":[]}]`)
	writePost(t, fs, "2024-01-03_10-00-00_UTC", "1️⃣ First", postMeta("one"),
		`[{"id":"c1","owner":{"id":"u2"},"answers":[]}]`)

	dataset, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	require.NoError(t, err)

	var ns []int
	for _, post := range dataset.Posts {
		ns = append(ns, post.N)
	}
	assert.Equal(t, []int{1, 3, 10}, ns)

	var commentPosts []int
	for _, comment := range dataset.Comments {
		commentPosts = append(commentPosts, comment.PostN)
	}
	assert.Equal(t, []int{1, 3, 10}, commentPosts)

	// u1 commented on two posts and appears once per post
	require.Len(t, dataset.Commenters, 3)
	assert.Equal(t, "u2", dataset.Commenters[0].ID)
	assert.Equal(t, "u1", dataset.Commenters[1].ID)
	assert.Equal(t, "u1", dataset.Commenters[2].ID)
	assert.Equal(t, 10, dataset.Commenters[2].PostN)
}

func TestService_BuildDataset_AllTopLevelCommentsAndReplies(t *testing.T) {
	fs := afero.NewMemMapFs()
	comments := `[
		{"id":"c1","owner":{"id":"u1","username":"alice"},"text":"first","created_at":1,
			"answers":[
				{"id":"r1","owner":{"id":"u2","username":"bob"},"text":"reply","likes_count":3,"created_at":2,"answers":[]},
				{"id":"r2","owner":{"id":"u1","username":"alice"},"text":"again","created_at":3,"answers":[]}
			]},
		{"id":"c2","owner":{"id":"u3","username":"carol","is_verified":true},"text":"second","created_at":4,
			"answers":[
				{"id":"r3","owner":{"id":"u2","username":"bob"},"text":"hey","created_at":5,"answers":[]}
			]}
	]`
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "7️⃣ Lot", postMeta("p"), comments)

	dataset, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Comments, 5)
	want := []struct {
		id       string
		owner    string
		answerTo string
	}{
		{"c1", "u1", ""},
		{"r1", "u2", "c1"},
		{"r2", "u1", "c1"},
		{"c2", "u3", ""},
		{"r3", "u2", "c2"},
	}
	for i, w := range want {
		comment := dataset.Comments[i]
		assert.Equal(t, 7, comment.PostN)
		assert.Equal(t, w.id, comment.ID)
		assert.Equal(t, w.owner, comment.OwnerID)
		if w.answerTo == "" {
			assert.Nil(t, comment.AnswerTo, w.id)
		} else {
			require.NotNil(t, comment.AnswerTo, w.id)
			assert.Equal(t, w.answerTo, *comment.AnswerTo)
		}
	}
	assert.Equal(t, 3, dataset.Comments[1].LikesCount)

	require.Len(t, dataset.Commenters, 3)
	assert.Equal(t, "u1", dataset.Commenters[0].ID)
	assert.Equal(t, "u2", dataset.Commenters[1].ID)
	assert.Equal(t, "u3", dataset.Commenters[2].ID)
	assert.True(t, dataset.Commenters[2].IsVerified)
}

func TestService_listPosts_SkipsAndFilters(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ a", postMeta("a"), `[]`)
	writePost(t, fs, "2024-02-20_11-46-48_UTC", "2️⃣ b", postMeta("b"), `[]`)
	writeFile(t, fs, "2024-01-01_10-00-00_UTC.jpg", "binary")
	require.NoError(t, fs.MkdirAll(filepath.Join(testFolder, "nested.txt"), 0o755))

	service := newTestService(fs, new(MockStorage), "2024-02-20_11-46-48_UTC")
	files, err := service.listPosts()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01_10-00-00_UTC"}, files)

	dataset, err := service.BuildDataset(context.Background())
	require.NoError(t, err)
	require.Len(t, dataset.Posts, 1)
	assert.Equal(t, "a", dataset.Posts[0].PostID)
}

func TestService_BuildDataset_MissingFolder(t *testing.T) {
	service := newTestService(afero.NewMemMapFs(), new(MockStorage))

	dataset, err := service.BuildDataset(context.Background())
	assert.Error(t, err)
	assert.Nil(t, dataset)
	assert.True(t, IsNotExist(err))
}

func TestService_BuildDataset_MissingCommentsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "2024-01-01_10-00-00_UTC.txt", "1️⃣ a")
	writeFile(t, fs, "2024-01-01_10-00-00_UTC.json", postMeta("a"))

	_, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	assert.Error(t, err)
	assert.True(t, IsNotExist(err))
	assert.Contains(t, err.Error(), "_comments.json")
}

func TestService_BuildDataset_InvalidJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ a", "invalid json", `[]`)

	_, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestService_BuildDataset_InvalidOrdinal(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "Hello there", postMeta("a"), `[]`)

	_, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidOrdinal))
}

func TestService_BuildDataset_BadFileName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "notes", "1️⃣ a", postMeta("a"), `[]`)

	_, err := newTestService(fs, new(MockStorage)).BuildDataset(context.Background())
	assert.True(t, errors.Is(err, ErrNotEnoughSegments))
}

func TestService_BuildDataset_Canceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ a", postMeta("a"), `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(fs, new(MockStorage)).BuildDataset(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_IngestData(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ Hello", postMeta("abc"), singleComment)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mockStorage := new(MockStorage)
	mockStorage.On("GetIngestionStatus", mock.Anything).Return(&models.IngestionStatus{Status: models.StatusNeverRun}, nil)
	mockStorage.On("UpdateIngestionStatus", mock.Anything, mock.MatchedBy(func(s models.IngestionStatus) bool {
		return s.Status == models.StatusRunning && s.Source == testFolder
	})).Return(nil).Once()
	mockStorage.On("StoreDataset", mock.Anything, mock.AnythingOfType("*models.Dataset")).Return(nil)
	mockStorage.On("UpdateIngestionStatus", mock.Anything, models.IngestionStatus{
		LastSuccessfulRun: now,
		LastAttempt:       now,
		Status:            models.StatusSuccess,
		Source:            testFolder,
		PostsWritten:      1,
		CommentsWritten:   1,
		CommentersWritten: 1,
	}).Return(nil).Once()

	service := newTestService(fs, mockStorage)
	service.now = func() time.Time { return now }

	dataset, err := service.IngestData(context.Background())
	require.NoError(t, err)
	assert.Len(t, dataset.Posts, 1)
	mockStorage.AssertExpectations(t)
}

func TestService_IngestData_ParseErrorStoresNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ ok", postMeta("a"), `[]`)
	writePost(t, fs, "2024-01-02_10-00-00_UTC", "no marker", postMeta("b"), `[]`)

	mockStorage := new(MockStorage)
	mockStorage.On("GetIngestionStatus", mock.Anything).Return(&models.IngestionStatus{Status: models.StatusNeverRun}, nil)
	mockStorage.On("UpdateIngestionStatus", mock.Anything, mock.MatchedBy(func(s models.IngestionStatus) bool {
		return s.Status == models.StatusRunning
	})).Return(nil).Once()
	mockStorage.On("UpdateIngestionStatus", mock.Anything, mock.MatchedBy(func(s models.IngestionStatus) bool {
		return s.Status == models.StatusFailure && s.ErrorMessage != ""
	})).Return(nil).Once()

	dataset, err := newTestService(fs, mockStorage).IngestData(context.Background())
	assert.Error(t, err)
	assert.Nil(t, dataset)
	mockStorage.AssertExpectations(t)
	mockStorage.AssertNotCalled(t, "StoreDataset", mock.Anything, mock.Anything)
}

func TestService_IngestData_StorageError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePost(t, fs, "2024-01-01_10-00-00_UTC", "1️⃣ ok", postMeta("a"), `[]`)

	mockStorage := new(MockStorage)
	mockStorage.On("GetIngestionStatus", mock.Anything).Return(&models.IngestionStatus{Status: models.StatusNeverRun}, nil)
	mockStorage.On("UpdateIngestionStatus", mock.Anything, mock.Anything).Return(nil)
	mockStorage.On("StoreDataset", mock.Anything, mock.AnythingOfType("*models.Dataset")).Return(assert.AnError)

	_, err := newTestService(fs, mockStorage).IngestData(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store dataset")
	mockStorage.AssertExpectations(t)
}
