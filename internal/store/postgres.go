package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elderquery/elderquery/internal/domain"
)

// PostgresStore implements Store as discrete row operations scoped by the
// user id passed on every call.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadAll(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	index := map[string]int{}
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Messages = []domain.Message{}
		index[c.ID] = len(convs)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	if len(convs) == 0 {
		return []domain.Conversation{}, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}

	if err := s.loadMessages(ctx, ids, index, convs); err != nil {
		return nil, err
	}
	if err := s.loadSearchResults(ctx, ids, index, convs); err != nil {
		return nil, err
	}
	if err := s.loadYouTubeResults(ctx, ids, index, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *PostgresStore) loadMessages(ctx context.Context, ids []string, index map[string]int, convs []domain.Conversation) error {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, id, role, content, created_at
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID string
		var m domain.Message
		if err := rows.Scan(&convID, &m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if i, ok := index[convID]; ok {
			convs[i].Messages = append(convs[i].Messages, m)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) loadSearchResults(ctx context.Context, ids []string, index map[string]int, convs []domain.Conversation) error {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, title, url, content, COALESCE(score, 0)
		FROM search_results
		WHERE conversation_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("query search results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID string
		var r domain.SearchResult
		if err := rows.Scan(&convID, &r.Title, &r.URL, &r.Content, &r.Score); err != nil {
			return fmt.Errorf("scan search result: %w", err)
		}
		if i, ok := index[convID]; ok {
			convs[i].SearchResults = append(convs[i].SearchResults, r)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) loadYouTubeResults(ctx context.Context, ids []string, index map[string]int, convs []domain.Conversation) error {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, title, video_id, thumbnail, channel_title, description
		FROM youtube_results
		WHERE conversation_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("query youtube results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID string
		var r domain.YouTubeResult
		if err := rows.Scan(&convID, &r.Title, &r.VideoID, &r.Thumbnail, &r.ChannelTitle, &r.Description); err != nil {
			return fmt.Errorf("scan youtube result: %w", err)
		}
		if i, ok := index[convID]; ok {
			convs[i].YouTubeResults = append(convs[i].YouTubeResults, r)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) UpsertConversation(ctx context.Context, userID string, conv domain.Conversation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = EXCLUDED.updated_at`,
		conv.ID, conv.Title, userID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, userID, conversationID string, msg domain.Message) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM conversations WHERE id = $2 AND user_id = $6)`,
		msg.ID, conversationID, msg.Role, msg.Content, msg.CreatedAt, userID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) ReplaceSearchResults(ctx context.Context, userID, conversationID string, results []domain.SearchResult) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ownedConversation(ctx, tx, userID, conversationID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM search_results WHERE conversation_id = $1`, conversationID); err != nil {
			return fmt.Errorf("delete search results: %w", err)
		}
		for _, r := range results {
			_, err := tx.Exec(ctx, `
				INSERT INTO search_results (conversation_id, title, url, content, score)
				VALUES ($1, $2, $3, $4, $5)`,
				conversationID, r.Title, r.URL, r.Content, r.Score)
			if err != nil {
				return fmt.Errorf("insert search result: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceYouTubeResults(ctx context.Context, userID, conversationID string, results []domain.YouTubeResult) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := ownedConversation(ctx, tx, userID, conversationID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM youtube_results WHERE conversation_id = $1`, conversationID); err != nil {
			return fmt.Errorf("delete youtube results: %w", err)
		}
		for _, r := range results {
			_, err := tx.Exec(ctx, `
				INSERT INTO youtube_results (conversation_id, title, video_id, thumbnail, channel_title, description)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				conversationID, r.Title, r.VideoID, r.Thumbnail, r.ChannelTitle, r.Description)
			if err != nil {
				return fmt.Errorf("insert youtube result: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) TouchConversation(ctx context.Context, userID, conversationID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2 AND user_id = $3`,
		at, conversationID, userID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	// Messages and results go with the row via ON DELETE CASCADE.
	_, err := s.pool.Exec(ctx, `
		DELETE FROM conversations WHERE id = $1 AND user_id = $2`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeys(ctx context.Context, userID string) (domain.APIKeys, error) {
	var tavily, openai *string
	err := s.pool.QueryRow(ctx, `
		SELECT tavily_key, openai_key FROM api_keys WHERE user_id = $1`, userID).
		Scan(&tavily, &openai)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APIKeys{}, nil
	}
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("get api keys: %w", err)
	}

	var keys domain.APIKeys
	if tavily != nil {
		keys.Tavily = *tavily
	}
	if openai != nil {
		keys.OpenAI = *openai
	}
	return keys, nil
}

func (s *PostgresStore) SetAPIKey(ctx context.Context, userID, provider, key string) error {
	column, err := keyColumn(provider)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO api_keys (user_id, %[1]s, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			%[1]s = EXCLUDED.%[1]s,
			updated_at = now()`, column),
		userID, key)
	if err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearAPIKey(ctx context.Context, userID, provider string) error {
	column, err := keyColumn(provider)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE api_keys SET %s = NULL, updated_at = now() WHERE user_id = $1`, column),
		userID)
	if err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func ownedConversation(ctx context.Context, tx pgx.Tx, userID, conversationID string) error {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return domain.ErrConversationNotFound
	}
	return nil
}

// keyColumn maps a provider name to its api_keys column. Column names are
// fixed strings, never user input.
func keyColumn(provider string) (string, error) {
	switch provider {
	case domain.ProviderTavily:
		return "tavily_key", nil
	case domain.ProviderOpenAI:
		return "openai_key", nil
	}
	return "", domain.ErrUnknownProvider
}
