package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultChatBase    = "https://api.openai.com/v1"
	defaultChatModel   = "gpt-4o-mini"
	defaultChatTimeout = 30 * time.Second
)

// ChatConfig configures the OpenAI-compatible text client.
type ChatConfig struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini when empty.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// ChatClient implements ChatProvider and Completer against an
// OpenAI-compatible chat completions API. Safe for concurrent use.
type ChatClient struct {
	cfg    ChatConfig
	client *http.Client
}

// NewChatClient returns a client backed by the OpenAI (or compatible) chat
// API.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChatTimeout
	}
	return &ChatClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message oaiMessage `json:"message"`
}

// Chat sends the full prior transcript plus the system prompt and returns
// the model's next turn. The transcript role "model" is mapped to the wire
// role "assistant".
func (c *ChatClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	msgs := make([]oaiMessage, 0, len(history)+1)
	msgs = append(msgs, oaiMessage{Role: "system", Content: system})
	for _, m := range history {
		role := m.Role
		if role == "model" {
			role = "assistant"
		}
		msgs = append(msgs, oaiMessage{Role: role, Content: m.Content})
	}
	return c.complete(ctx, msgs, 1024)
}

// Complete performs a one-shot call: system prompt plus a single user
// message, no conversational context.
func (c *ChatClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	msgs := []oaiMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
	return c.complete(ctx, msgs, 1024)
}

func (c *ChatClient) complete(ctx context.Context, msgs []oaiMessage, maxTokens int) (string, error) {
	body := oaiRequest{
		Model:     c.cfg.Model,
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("genai: marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("genai: create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("genai: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("%w: API error (%s): %s", ErrUnavailable, oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
