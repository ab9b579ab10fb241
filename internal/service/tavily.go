package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/domain"
)

// TavilyClient performs web and video search through the Tavily API. Video
// search is a second Tavily query pinned to youtube.com, transformed into
// video results.
type TavilyClient struct {
	baseURL    string
	httpClient *http.Client
	pageClient *http.Client
}

func NewTavilyClient() *TavilyClient {
	return &TavilyClient{
		baseURL:    "https://api.tavily.com",
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		pageClient: &http.Client{Timeout: config.PageFetchTimeout},
	}
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains"`
	ExcludeDomains []string `json:"exclude_domains"`
	MaxResults     int      `json:"max_results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, apiKey, query string) ([]domain.SearchResult, error) {
	resp, err := c.search(ctx, apiKey, tavilyRequest{
		Query:          query,
		SearchDepth:    "basic",
		IncludeDomains: []string{},
		ExcludeDomains: []string{},
		MaxResults:     config.MaxSearchResults,
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, domain.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

func (c *TavilyClient) SearchYouTube(ctx context.Context, apiKey, query string) ([]domain.YouTubeResult, error) {
	resp, err := c.search(ctx, apiKey, tavilyRequest{
		Query:          query + " youtube video",
		SearchDepth:    "advanced",
		IncludeDomains: []string{"youtube.com"},
		ExcludeDomains: []string{},
		MaxResults:     config.MaxYouTubeResults,
	})
	if err != nil {
		return nil, err
	}

	results := make([]domain.YouTubeResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if !strings.Contains(r.URL, "youtube.com/watch?v=") {
			continue
		}
		videoID := videoIDFromURL(r.URL)
		results = append(results, domain.YouTubeResult{
			Title:        r.Title,
			VideoID:      videoID,
			Thumbnail:    fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID),
			ChannelTitle: c.channelTitle(ctx, r.URL),
			Description:  truncate(r.Content, config.MaxDescriptionLen) + "...",
		})
	}
	return results, nil
}

func (c *TavilyClient) search(ctx context.Context, apiKey string, body tavilyRequest) (*tavilyResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &parsed, nil
}

// channelTitle scrapes the channel name from the watch page's metadata.
// Best-effort: any failure yields an empty title.
func (c *TavilyClient) channelTitle(ctx context.Context, watchURL string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", watchURL, nil)
	if err != nil {
		return ""
	}

	resp, err := c.pageClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	if name, ok := doc.Find(`span[itemprop="author"] link[itemprop="name"]`).Attr("content"); ok {
		return name
	}
	if name, ok := doc.Find(`link[itemprop="name"]`).Attr("content"); ok {
		return name
	}
	return ""
}

func videoIDFromURL(url string) string {
	_, after, found := strings.Cut(url, "v=")
	if !found {
		return ""
	}
	id, _, _ := strings.Cut(after, "&")
	return id
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
