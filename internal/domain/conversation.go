package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultTitle is assigned until the first query names the conversation.
	DefaultTitle = "New Conversation"

	// TitleMaxRunes is the cutoff for titles derived from the first query.
	TitleMaxRunes = 30
)

// Conversation is a titled, ordered thread of messages plus the results of
// the most recent query. Messages are append-only; both result sets are
// replaced wholesale on every query.
type Conversation struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Messages       []Message       `json:"messages"`
	SearchResults  []SearchResult  `json:"searchResults,omitempty"`
	YouTubeResults []YouTubeResult `json:"youtubeResults,omitempty"`
	CreatedAt      time.Time       `json:"timestamp"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Message is immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// YouTubeResult is a single video search hit.
type YouTubeResult struct {
	Title        string `json:"title"`
	VideoID      string `json:"videoId"`
	Thumbnail    string `json:"thumbnail"`
	ChannelTitle string `json:"channelTitle"`
	Description  string `json:"description"`
}

// NewConversation builds an empty conversation with a fresh id.
func NewConversation() Conversation {
	now := time.Now()
	return Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMessage builds a message with a fresh id and the current timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// TitleFromQuery derives a conversation title from its first query: the query
// verbatim when it fits, otherwise the first TitleMaxRunes runes plus an
// ellipsis.
func TitleFromQuery(query string) string {
	runes := []rune(query)
	if len(runes) <= TitleMaxRunes {
		return query
	}
	return string(runes[:TitleMaxRunes]) + "…"
}

// Clone returns a deep copy safe to hand outside the manager's lock.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	if c.SearchResults != nil {
		out.SearchResults = append([]SearchResult(nil), c.SearchResults...)
	}
	if c.YouTubeResults != nil {
		out.YouTubeResults = append([]YouTubeResult(nil), c.YouTubeResults...)
	}
	return out
}
