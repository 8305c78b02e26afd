package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultMusicTimeout  = 5 * time.Minute
	defaultMusicDuration = 30
	defaultMusicRate     = 32000
)

// MusicConfig configures the music inference client.
type MusicConfig struct {
	// BaseURL is the root of the music inference endpoint (e.g. a MusicGen
	// serving container). Required.
	BaseURL string

	// APIKey is an optional bearer token for the endpoint.
	APIKey string

	// DurationSeconds is the requested clip length. Defaults to 30.
	DurationSeconds int

	// Timeout is the HTTP request timeout. Music synthesis on CPU is very
	// slow; defaults to 5 minutes.
	Timeout time.Duration
}

// MusicClient implements MusicProvider against an HTTP inference endpoint
// that synthesises a mono PCM clip for a text prompt. Safe for concurrent
// use after construction; construction itself is cheap, the remote model
// load happens server-side on the first call.
type MusicClient struct {
	cfg    MusicConfig
	client *http.Client
}

// NewMusicClient returns a music client with defaults applied.
func NewMusicClient(cfg MusicConfig) *MusicClient {
	if cfg.DurationSeconds == 0 {
		cfg.DurationSeconds = defaultMusicDuration
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultMusicTimeout
	}
	return &MusicClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type musicRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
}

type musicResponse struct {
	// PCM is the base64-encoded little-endian 16-bit mono sample stream.
	PCM        string `json:"pcm"`
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

// GenerateMusic synthesises a clip and returns its mono 16-bit samples.
func (c *MusicClient) GenerateMusic(ctx context.Context, prompt string) ([]int16, int, error) {
	if c.cfg.BaseURL == "" {
		return nil, 0, fmt.Errorf("%w: music endpoint not configured", ErrUnavailable)
	}

	body := musicRequest{Prompt: prompt, DurationSeconds: c.cfg.DurationSeconds}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("genai: marshal music request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/generate",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("genai: create music request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var musicResp musicResponse
	if err := json.Unmarshal(respBody, &musicResp); err != nil {
		return nil, 0, fmt.Errorf("genai: decode music response: %w", err)
	}

	if musicResp.Error != "" {
		return nil, 0, fmt.Errorf("%w: API error: %s", ErrUnavailable, musicResp.Error)
	}
	if musicResp.PCM == "" {
		return nil, 0, fmt.Errorf("%w: no audio in response (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	raw, err := base64.StdEncoding.DecodeString(musicResp.PCM)
	if err != nil {
		return nil, 0, fmt.Errorf("genai: decode audio payload: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, 0, fmt.Errorf("genai: odd PCM payload length %d", len(raw))
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	rate := musicResp.SampleRate
	if rate == 0 {
		rate = defaultMusicRate
	}
	return samples, rate, nil
}
