package ingestion

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/marchellodev/post-export/internal/models"
)

var (
	// ErrInvalidOrdinal is returned when a caption has no usable number marker
	ErrInvalidOrdinal = errors.New("caption has no ordinal marker")
	// ErrNotEnoughSegments is returned for names without date, time and zone
	ErrNotEnoughSegments = errors.New("file name has fewer than three underscore separated segments")
)

const (
	// keycapTen is the single glyph used for 10; it carries no digit
	keycapTen = "\U0001F51F"

	markerWindow = 6
	dateLayout   = "2006-01-02 15:04:05 MST"
	imageExt     = ".jpg"
)

// ParsePostDate parses the publish date out of an export name such as
// 2024-01-01_10-00-00_UTC or 2024-01-01_10-00-00_UTC_1.
func ParsePostDate(file string) (time.Time, error) {
	parts := strings.Split(file, "_")
	if len(parts) < 3 {
		return time.Time{}, errors.Wrap(ErrNotEnoughSegments, file)
	}

	value := strings.Join([]string{
		parts[0],
		strings.ReplaceAll(parts[1], "-", ":"),
		parts[2],
	}, " ")

	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing date of %s", file)
	}
	return date.UTC(), nil
}

// ParseOrdinal extracts the post number from the marker that opens a
// caption, e.g. "3️⃣ ..." is 3 and "🔟 ..." is 10. Only the first few
// runes are inspected, up to the first space.
func ParseOrdinal(caption string) (int, error) {
	runes := []rune(strings.TrimPrefix(caption, "\uFEFF"))
	if len(runes) > markerWindow {
		runes = runes[:markerWindow]
	}
	token := strings.SplitN(string(runes), " ", 2)[0]

	if strings.Contains(token, keycapTen) {
		return 10, nil
	}

	// NFKC folds fullwidth, circled and superscript digits to ASCII
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, norm.NFKC.String(token))
	if digits == "" {
		return 0, errors.Wrapf(ErrInvalidOrdinal, "marker %q", token)
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidOrdinal, "marker %q: %v", token, err)
	}
	return n, nil
}

// ImageURL builds the remote image reference for a post. It is never checked.
func ImageURL(base, folder, file string) string {
	return strings.TrimRight(base, "/") + "/" + folder + "/" + file + imageExt
}

// parsePost reads <file>.txt and <file>.json and builds the post row
func (s *Service) parsePost(file string) (*models.Post, error) {
	caption, err := afero.ReadFile(s.fs, filepath.Join(s.config.SourceFolder, file+".txt"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read caption of %s", file)
	}

	var meta models.PostMeta
	if err := s.readJSON(file+".json", &meta); err != nil {
		return nil, err
	}

	date, err := ParsePostDate(file)
	if err != nil {
		return nil, err
	}

	text := string(caption)
	n, err := ParseOrdinal(text)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", file)
	}

	node := meta.Node
	post := &models.Post{
		N:               n,
		Date:            date,
		Image:           ImageURL(s.config.ImageBaseURL, filepath.Base(s.config.SourceFolder), file),
		Text:            text,
		PostID:          node.ID,
		ImageHeight:     node.Dimensions.Height,
		ImageWidth:      node.Dimensions.Width,
		ImageDate:       unixTime(node.TakenAtTimestamp),
		A11yCaption:     node.AccessibilityCaption,
		CommentCount:    node.EdgeMediaToComment.Count,
		CaptionIsEdited: node.CaptionIsEdited,
	}
	if loc := node.Location; loc != nil {
		post.LocationID = loc.ID
		post.LocationName = loc.Name
		post.LocationAddress = loc.AddressJSON
	}

	return post, nil
}

func (s *Service) readJSON(name string, v interface{}) error {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.config.SourceFolder, name))
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %s", name)
	}
	return nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
