package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultImageBase    = "https://api.openai.com/v1"
	defaultImageModel   = "gpt-image-1"
	defaultImageTimeout = 120 * time.Second
	defaultImageSize    = "1024x1024"
)

// ImageConfig configures the OpenAI-compatible image client.
type ImageConfig struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to
	// https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the image model to use. Defaults to gpt-image-1 when empty.
	Model string

	// Size is the requested image size. Defaults to 1024x1024 when empty.
	Size string

	// Timeout is the HTTP request timeout. Image rendering is slow; defaults
	// to 120 s.
	Timeout time.Duration
}

// ImageClient implements ImageProvider against an OpenAI-compatible image
// generation API returning base64 payloads. Safe for concurrent use.
type ImageClient struct {
	cfg    ImageConfig
	client *http.Client
}

// NewImageClient returns an image client with defaults applied.
func NewImageClient(cfg ImageConfig) *ImageClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultImageBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultImageModel
	}
	if cfg.Size == "" {
		cfg.Size = defaultImageSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultImageTimeout
	}
	return &ImageClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type imgRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imgResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateImage renders one image for the prompt and returns the decoded
// PNG bytes.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	body := imgRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		N:      1,
		Size:   c.cfg.Size,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("genai: marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/images/generations",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, "", fmt.Errorf("genai: create image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var imgResp imgResponse
	if err := json.Unmarshal(respBody, &imgResp); err != nil {
		return nil, "", fmt.Errorf("genai: decode image response: %w", err)
	}

	if imgResp.Error != nil {
		return nil, "", fmt.Errorf("%w: API error (%s): %s", ErrUnavailable, imgResp.Error.Type, imgResp.Error.Message)
	}

	if len(imgResp.Data) == 0 || imgResp.Data[0].B64JSON == "" {
		return nil, "", fmt.Errorf("%w: no image in response (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	raw, err := base64.StdEncoding.DecodeString(imgResp.Data[0].B64JSON)
	if err != nil {
		return nil, "", fmt.Errorf("genai: decode image payload: %w", err)
	}

	return raw, "image/png", nil
}
