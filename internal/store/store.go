// Package store provides the persistence capability behind the conversation
// manager: one interface, one local and one remote implementation.
package store

import (
	"context"
	"time"

	"github.com/elderquery/elderquery/internal/domain"
)

// Store persists conversations and API keys for a single owner. The caller
// passes the owner's user id on every call; implementations hold no session
// state. The local implementation ignores the id entirely.
type Store interface {
	// LoadAll returns every conversation with nested messages and results,
	// most-recently-updated first.
	LoadAll(ctx context.Context, userID string) ([]domain.Conversation, error)

	// UpsertConversation creates or updates a conversation's id, title and
	// timestamps. Messages and results are untouched.
	UpsertConversation(ctx context.Context, userID string, conv domain.Conversation) error

	// InsertMessage appends a message to an existing conversation.
	InsertMessage(ctx context.Context, userID, conversationID string, msg domain.Message) error

	// ReplaceSearchResults discards the conversation's stored web results and
	// writes the given batch.
	ReplaceSearchResults(ctx context.Context, userID, conversationID string, results []domain.SearchResult) error

	// ReplaceYouTubeResults discards the conversation's stored video results
	// and writes the given batch.
	ReplaceYouTubeResults(ctx context.Context, userID, conversationID string, results []domain.YouTubeResult) error

	// TouchConversation bumps the conversation's updated timestamp.
	TouchConversation(ctx context.Context, userID, conversationID string, at time.Time) error

	// DeleteConversation removes a conversation and, through the store's own
	// cascade, its messages and results.
	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// Clear removes every conversation belonging to the owner.
	Clear(ctx context.Context, userID string) error

	// GetAPIKeys returns the owner's provider credentials. Absent keys are
	// empty strings, never an error.
	GetAPIKeys(ctx context.Context, userID string) (domain.APIKeys, error)

	// SetAPIKey stores one provider credential.
	SetAPIKey(ctx context.Context, userID, provider, key string) error

	// ClearAPIKey removes one provider credential.
	ClearAPIKey(ctx context.Context, userID, provider string) error
}
