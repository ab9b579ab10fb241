package service

import (
	"context"
	"fmt"

	"github.com/elderquery/elderquery/internal/domain"
)

// Pipeline turns a query into an answer plus web and video results. Each
// operation may fail independently; the conversation manager decides which
// failures abort and which degrade.
type Pipeline interface {
	GenerateAnswer(ctx context.Context, query string, history []domain.Message) (string, error)
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
	SearchYouTube(ctx context.Context, query string) ([]domain.YouTubeResult, error)
}

// QueryPipeline is the production pipeline: OpenAI for answers, Tavily for
// both searches, credentials resolved through the active store on every call.
type QueryPipeline struct {
	llm    *OpenAIClient
	tavily *TavilyClient
	keys   *APIKeyService
}

func NewQueryPipeline(llm *OpenAIClient, tavily *TavilyClient, keys *APIKeyService) *QueryPipeline {
	return &QueryPipeline{llm: llm, tavily: tavily, keys: keys}
}

func (p *QueryPipeline) GenerateAnswer(ctx context.Context, query string, history []domain.Message) (string, error) {
	key, err := p.key(ctx, domain.ProviderOpenAI)
	if err != nil {
		return "", err
	}
	return p.llm.Complete(ctx, key, query, history)
}

func (p *QueryPipeline) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	key, err := p.key(ctx, domain.ProviderTavily)
	if err != nil {
		return nil, err
	}
	return p.tavily.Search(ctx, key, query)
}

func (p *QueryPipeline) SearchYouTube(ctx context.Context, query string) ([]domain.YouTubeResult, error) {
	key, err := p.key(ctx, domain.ProviderTavily)
	if err != nil {
		return nil, err
	}
	return p.tavily.SearchYouTube(ctx, key, query)
}

func (p *QueryPipeline) key(ctx context.Context, provider string) (string, error) {
	keys, err := p.keys.Keys(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s key: %w", provider, err)
	}
	key := keys.Get(provider)
	if key == "" {
		return "", domain.ErrMissingAPIKey
	}
	return key, nil
}
