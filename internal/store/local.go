package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/elderquery/elderquery/internal/domain"
)

const (
	conversationsBucket = "conversations"
	apiKeysBucket       = "api_keys"

	// The whole conversation list lives under one key, mirroring the
	// browser-local record this store replaces.
	conversationsKey = "elderQueryConversations"

	tavilyKeyName = "tavily_api_key"
	openaiKeyName = "openai_api_key"
)

// LocalStore keeps the full conversation list as a single JSON blob in an
// embedded bbolt database. Every row-style operation is a read-modify-write
// of the whole blob. The userID argument is ignored; the store belongs to
// whoever runs the process.
type LocalStore struct {
	db *bolt.DB
}

func NewLocal(path string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(conversationsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(apiKeysBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init local store: %w", err)
	}

	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) LoadAll(ctx context.Context, _ string) ([]domain.Conversation, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(conversationsBucket)).Get([]byte(conversationsKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read conversations: %w", err)
	}
	if len(raw) == 0 {
		return []domain.Conversation{}, nil
	}

	var convs []domain.Conversation
	if err := json.Unmarshal(raw, &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	sortByUpdated(convs)
	return convs, nil
}

func (s *LocalStore) UpsertConversation(ctx context.Context, _ string, conv domain.Conversation) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		for i := range convs {
			if convs[i].ID == conv.ID {
				convs[i].Title = conv.Title
				convs[i].UpdatedAt = conv.UpdatedAt
				return convs, nil
			}
		}
		meta := conv
		meta.Messages = []domain.Message{}
		meta.SearchResults = nil
		meta.YouTubeResults = nil
		return append(convs, meta), nil
	})
}

func (s *LocalStore) InsertMessage(ctx context.Context, _ string, conversationID string, msg domain.Message) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		c, err := find(convs, conversationID)
		if err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, msg)
		c.UpdatedAt = msg.CreatedAt
		return convs, nil
	})
}

func (s *LocalStore) ReplaceSearchResults(ctx context.Context, _ string, conversationID string, results []domain.SearchResult) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		c, err := find(convs, conversationID)
		if err != nil {
			return nil, err
		}
		c.SearchResults = results
		return convs, nil
	})
}

func (s *LocalStore) ReplaceYouTubeResults(ctx context.Context, _ string, conversationID string, results []domain.YouTubeResult) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		c, err := find(convs, conversationID)
		if err != nil {
			return nil, err
		}
		c.YouTubeResults = results
		return convs, nil
	})
}

func (s *LocalStore) TouchConversation(ctx context.Context, _ string, conversationID string, at time.Time) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		c, err := find(convs, conversationID)
		if err != nil {
			return nil, err
		}
		c.UpdatedAt = at
		return convs, nil
	})
}

func (s *LocalStore) DeleteConversation(ctx context.Context, _ string, conversationID string) error {
	return s.modify(func(convs []domain.Conversation) ([]domain.Conversation, error) {
		out := convs[:0]
		for _, c := range convs {
			if c.ID != conversationID {
				out = append(out, c)
			}
		}
		return out, nil
	})
}

func (s *LocalStore) Clear(ctx context.Context, _ string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(conversationsBucket)).Delete([]byte(conversationsKey))
	})
	if err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return nil
}

func (s *LocalStore) GetAPIKeys(ctx context.Context, _ string) (domain.APIKeys, error) {
	var keys domain.APIKeys
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(apiKeysBucket))
		keys.Tavily = string(b.Get([]byte(tavilyKeyName)))
		keys.OpenAI = string(b.Get([]byte(openaiKeyName)))
		return nil
	})
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("read api keys: %w", err)
	}
	return keys, nil
}

func (s *LocalStore) SetAPIKey(ctx context.Context, _ string, provider, key string) error {
	name, err := keyName(provider)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(apiKeysBucket)).Put([]byte(name), []byte(key))
	})
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

func (s *LocalStore) ClearAPIKey(ctx context.Context, _ string, provider string) error {
	name, err := keyName(provider)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(apiKeysBucket)).Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}

// modify runs one read-modify-write cycle over the serialized list.
func (s *LocalStore) modify(fn func([]domain.Conversation) ([]domain.Conversation, error)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(conversationsBucket))

		var convs []domain.Conversation
		if v := b.Get([]byte(conversationsKey)); v != nil {
			if err := json.Unmarshal(v, &convs); err != nil {
				return fmt.Errorf("decode conversations: %w", err)
			}
		}

		convs, err := fn(convs)
		if err != nil {
			return err
		}

		enc, err := json.Marshal(convs)
		if err != nil {
			return fmt.Errorf("encode conversations: %w", err)
		}
		return b.Put([]byte(conversationsKey), enc)
	})
}

func find(convs []domain.Conversation, id string) (*domain.Conversation, error) {
	for i := range convs {
		if convs[i].ID == id {
			return &convs[i], nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func keyName(provider string) (string, error) {
	switch provider {
	case domain.ProviderTavily:
		return tavilyKeyName, nil
	case domain.ProviderOpenAI:
		return openaiKeyName, nil
	}
	return "", domain.ErrUnknownProvider
}

func sortByUpdated(convs []domain.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}
