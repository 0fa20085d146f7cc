package debate

import (
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// DefaultCommentAuthor names comments submitted without an author.
const DefaultCommentAuthor = "You"

// MaxCommentLength bounds a single comment, in runes.
const MaxCommentLength = 2000

// Comment is audience feedback left after a debate concluded. Comments live
// beside the log and never become turns, so the closing turn stays last.
type Comment struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AddComment records an audience comment on a concluded session. author
// defaults to DefaultCommentAuthor and must not be a participant's name.
func (s *Session) AddComment(author, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, types.NewError(types.ErrInvalidRequest, "comment is empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxCommentLength {
		return Comment{}, types.Errorf(types.ErrInvalidRequest, "comment is %d characters, limit is %d", n, MaxCommentLength)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultCommentAuthor
	}
	if _, ok := s.registry.Lookup(author); ok {
		return Comment{}, types.Errorf(types.ErrDuplicateIdentity, "%q is a participant and cannot comment", author)
	}

	c := Comment{Author: author, Content: content, Timestamp: s.now()}

	s.mu.Lock()
	if !s.status.Concluded() {
		s.mu.Unlock()
		return Comment{}, types.NewError(types.ErrSessionNotComplete, "comments open once the debate is concluded")
	}
	s.comments = append(s.comments, c)
	s.mu.Unlock()

	s.logger.Info("audience comment added", zap.String("author", author), zap.Int("length", len(content)))
	return c, nil
}

// Comments returns a copy of the audience comments in submission order.
func (s *Session) Comments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.comments) == 0 {
		return nil
	}
	return append([]Comment(nil), s.comments...)
}
