package debate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

func TestSession_AddComment(t *testing.T) {
	s := newTestSession(t, 3)

	_, err := s.AddComment("", "Too early")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionNotComplete))

	require.NoError(t, s.Run(context.Background(), &scriptedGenerator{}))
	_, err = s.AddComment("", "Still not concluded")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionNotComplete))

	_, err = s.Finalize()
	require.NoError(t, err)
	before := s.Turns()

	c, err := s.AddComment("  ", "  Jack had the better closing.  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultCommentAuthor, c.Author)
	assert.Equal(t, "Jack had the better closing.", c.Content)

	_, err = s.AddComment("Ada", "Agreed.")
	require.NoError(t, err)

	assert.Equal(t, before, s.Turns(), "comments never enter the log")
	last := before[len(before)-1]
	assert.True(t, s.guarantor.Qualifies(last, s.registry))

	comments := s.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, "Ada", comments[1].Author)

	comments[0].Content = "mutated"
	assert.Equal(t, "Jack had the better closing.", s.Comments()[0].Content)
	assert.Len(t, s.State().Comments, 2)
}

func TestSession_AddCommentValidation(t *testing.T) {
	s := newTestSession(t, 3)
	require.NoError(t, s.Run(context.Background(), &scriptedGenerator{}))
	_, err := s.Finalize()
	require.NoError(t, err)

	tests := []struct {
		name    string
		author  string
		content string
		code    types.ErrorCode
	}{
		{"blank content", "You", " \n\t", types.ErrInvalidRequest},
		{"too long", "You", strings.Repeat("x", MaxCommentLength+1), types.ErrInvalidRequest},
		{"participant name", "Host", "I won.", types.ErrDuplicateIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddComment(tt.author, tt.content)
			assert.True(t, types.IsErrorCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, s.Comments())
}
