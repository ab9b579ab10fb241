package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "short query verbatim",
			query: "What time is it in Tokyo?",
			want:  "What time is it in Tokyo?",
		},
		{
			name:  "exactly thirty runes verbatim",
			query: strings.Repeat("a", 30),
			want:  strings.Repeat("a", 30),
		},
		{
			name:  "long query truncated with ellipsis",
			query: strings.Repeat("a", 31),
			want:  strings.Repeat("a", 30) + "…",
		},
		{
			name:  "truncation counts runes not bytes",
			query: strings.Repeat("я", 40),
			want:  strings.Repeat("я", 30) + "…",
		},
		{
			name:  "empty query stays empty",
			query: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromQuery(tt.query))
		})
	}
}

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	require.NotEmpty(t, conv.ID)
	assert.Equal(t, DefaultTitle, conv.Title)
	assert.Empty(t, conv.Messages)
	assert.False(t, conv.CreatedAt.IsZero())
	assert.True(t, conv.UpdatedAt.Equal(conv.CreatedAt))

	other := NewConversation()
	assert.NotEqual(t, conv.ID, other.ID)
}

func TestConversationClone(t *testing.T) {
	conv := NewConversation()
	conv.Messages = append(conv.Messages, NewMessage(RoleUser, "hello"))
	conv.SearchResults = []SearchResult{{Title: "a", URL: "https://a"}}

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.SearchResults[0].Title = "changed"

	assert.Equal(t, "hello", conv.Messages[0].Content)
	assert.Equal(t, "a", conv.SearchResults[0].Title)
}
