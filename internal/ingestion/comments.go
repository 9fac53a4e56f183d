package ingestion

import (
	"github.com/marchellodev/post-export/internal/models"
)

// commentSet collects the flattened comments of one post together with the
// authors seen while flattening. Authors are unique within one set only.
type commentSet struct {
	postN      int
	comments   []models.Comment
	commenters []models.Commenter
	seen       map[string]struct{}
}

func newCommentSet(postN int) *commentSet {
	return &commentSet{
		postN: postN,
		seen:  make(map[string]struct{}),
	}
}

func (c *commentSet) add(raw models.RawComment, answerTo *string) {
	c.comments = append(c.comments, models.Comment{
		PostN:      c.postN,
		ID:         raw.ID,
		OwnerID:    raw.Owner.ID,
		AnswerTo:   answerTo,
		Text:       raw.Text,
		LikesCount: raw.LikesCount,
		CreatedAt:  unixTime(raw.CreatedAt),
	})

	if _, ok := c.seen[raw.Owner.ID]; ok {
		return
	}
	c.seen[raw.Owner.ID] = struct{}{}
	c.commenters = append(c.commenters, models.Commenter{
		PostN:      c.postN,
		ID:         raw.Owner.ID,
		Username:   raw.Owner.Username,
		IsVerified: raw.Owner.IsVerified,
		ProfilePic: raw.Owner.ProfilePicURL,
	})
}

// FlattenComments turns a post's comment trees into rows. Top-level
// comments have no AnswerTo; replies point at their enclosing comment.
func FlattenComments(postN int, raw []models.RawComment) ([]models.Comment, []models.Commenter) {
	set := newCommentSet(postN)
	for _, comment := range raw {
		set.add(comment, nil)

		parentID := comment.ID
		for _, answer := range comment.Answers {
			set.add(answer, &parentID)
		}
	}
	return set.comments, set.commenters
}

// parseComments reads <file>_comments.json and flattens it for post n
func (s *Service) parseComments(file string, n int) ([]models.Comment, []models.Commenter, error) {
	var raw []models.RawComment
	if err := s.readJSON(file+"_comments.json", &raw); err != nil {
		return nil, nil, err
	}

	comments, commenters := FlattenComments(n, raw)
	return comments, commenters, nil
}
