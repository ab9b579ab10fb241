package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTavily(handler http.Handler) (*TavilyClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewTavilyClient()
	client.baseURL = server.URL
	return client, server
}

func TestTavilySearch(t *testing.T) {
	ctx := context.Background()

	var got tavilyRequest
	client, server := newTestTavily(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Query: got.Query,
			Results: []tavilyResult{
				{Title: "Tokyo time", URL: "https://example.com/tokyo", Content: "It is 9pm", Score: 0.91},
			},
		})
	}))
	defer server.Close()

	results, err := client.Search(ctx, "tvly-test", "time in Tokyo")
	require.NoError(t, err)

	assert.Equal(t, "time in Tokyo", got.Query)
	assert.Equal(t, "basic", got.SearchDepth)
	assert.Equal(t, 5, got.MaxResults)
	assert.Empty(t, got.IncludeDomains)

	require.Len(t, results, 1)
	assert.Equal(t, "Tokyo time", results[0].Title)
	assert.Equal(t, "https://example.com/tokyo", results[0].URL)
	assert.Equal(t, 0.91, results[0].Score)
}

func TestTavilySearchError(t *testing.T) {
	ctx := context.Background()

	client, server := newTestTavily(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := client.Search(ctx, "bad-key", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestTavilySearchYouTube(t *testing.T) {
	ctx := context.Background()

	const channelPage = `<html><body>` +
		`<span itemprop="author"><link itemprop="name" content="Walking Tours"></span>` +
		`</body></html>`

	var got tavilyRequest
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Results: []tavilyResult{
				{
					Title:   "Tokyo walk",
					URL:     server.URL + "/youtube.com/watch?v=abc123&t=5",
					Content: strings.Repeat("x", 200),
					Score:   0.8,
				},
				{
					// Channel pages and shorts are filtered out.
					Title: "Some channel",
					URL:   server.URL + "/youtube.com/@somechannel",
				},
			},
		})
	})
	mux.HandleFunc("/youtube.com/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(channelPage))
	})
	client, server := newTestTavily(mux)
	defer server.Close()
	client.pageClient = server.Client()

	results, err := client.SearchYouTube(ctx, "tvly-test", "tokyo walk")
	require.NoError(t, err)

	assert.Equal(t, "tokyo walk youtube video", got.Query)
	assert.Equal(t, "advanced", got.SearchDepth)
	assert.Equal(t, 3, got.MaxResults)
	assert.Equal(t, []string{"youtube.com"}, got.IncludeDomains)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "Tokyo walk", r.Title)
	assert.Equal(t, "abc123", r.VideoID)
	assert.Equal(t, "https://img.youtube.com/vi/abc123/hqdefault.jpg", r.Thumbnail)
	assert.Equal(t, "Walking Tours", r.ChannelTitle)
	assert.Equal(t, strings.Repeat("x", 150)+"...", r.Description)
}

func TestTavilySearchYouTubeChannelFetchFails(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Results: []tavilyResult{
				{Title: "Tokyo walk", URL: server.URL + "/youtube.com/watch?v=abc123", Content: "short"},
			},
		})
	})
	mux.HandleFunc("/youtube.com/watch", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client, server := newTestTavily(mux)
	defer server.Close()
	client.pageClient = server.Client()

	results, err := client.SearchYouTube(ctx, "tvly-test", "tokyo walk")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].ChannelTitle)
	assert.Equal(t, "short...", results[0].Description)
}

func TestVideoIDFromURL(t *testing.T) {
	assert.Equal(t, "abc123", videoIDFromURL("https://www.youtube.com/watch?v=abc123"))
	assert.Equal(t, "abc123", videoIDFromURL("https://www.youtube.com/watch?v=abc123&t=10s"))
	assert.Empty(t, videoIDFromURL("https://www.youtube.com/@somechannel"))
}
