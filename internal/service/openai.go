package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/domain"
)

// systemPrompt keeps answers usable for the app's audience.
const systemPrompt = `You are a helpful assistant for elderly users. Your purpose is to:
1. Understand their query clearly
2. Break down complex questions into simpler parts
3. Provide clear, concise answers with larger font suggestions
4. Always consider that your users may have hearing or vision impairments
5. Use simple language and avoid technical terms
Always respond in a warm, patient tone.`

// OpenAIClient generates answers through the OpenAI chat completions API.
// The credential is supplied per call; the client itself is stateless.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete answers the query. history is the conversation so far, ending with
// the query itself; when empty, the query alone is sent.
func (c *OpenAIClient) Complete(ctx context.Context, apiKey, query string, history []domain.Message) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	if len(history) == 0 {
		msgs = append(msgs, chatMessage{Role: domain.RoleUser, Content: query})
	}

	payload, err := json.Marshal(chatRequest{
		Model:       config.DefaultModel,
		Messages:    msgs,
		Temperature: config.AnswerTemperature,
		MaxTokens:   config.MaxAnswerTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("rate limited by OpenAI (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return chatResp.Choices[0].Message.Content, nil
}
