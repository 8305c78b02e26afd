package genai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harulog/haru/internal/haru/genai"
)

func TestChatMapsModelRoleToAssistant(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "다음 질문입니다."}},
			},
		})
	}))
	defer ts.Close()

	c := genai.NewChatClient(genai.ChatConfig{APIKey: "test", BaseURL: ts.URL})

	reply, err := c.Chat(context.Background(), "system prompt", []genai.Message{
		{Role: "model", Content: "안녕하세요"},
		{Role: "user", Content: "좋은 하루였어요"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "다음 질문입니다." {
		t.Errorf("reply: got %q", reply)
	}

	wantRoles := []string{"system", "assistant", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("got %d wire messages, want %d", len(gotBody.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if gotBody.Messages[i].Role != want {
			t.Errorf("message %d role: got %q, want %q", i, gotBody.Messages[i].Role, want)
		}
	}
}

func TestChatSurfacesAPIErrorAsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer ts.Close()

	c := genai.NewChatClient(genai.ChatConfig{APIKey: "test", BaseURL: ts.URL})
	_, err := c.Complete(context.Background(), "sys", "prompt")
	if !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestChatUnreachableEndpoint(t *testing.T) {
	c := genai.NewChatClient(genai.ChatConfig{APIKey: "test", BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), "sys", "prompt")
	if !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateImageDecodesPayload(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(payload)},
			},
		})
	}))
	defer ts.Close()

	c := genai.NewImageClient(genai.ImageConfig{APIKey: "test", BaseURL: ts.URL})
	data, mime, err := c.GenerateImage(context.Background(), "a quiet park at dusk")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime: got %q", mime)
	}
	if string(data) != string(payload) {
		t.Errorf("payload mismatch: got %v", data)
	}
}

func TestGenerateImageEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer ts.Close()

	c := genai.NewImageClient(genai.ImageConfig{APIKey: "test", BaseURL: ts.URL})
	_, _, err := c.GenerateImage(context.Background(), "prompt")
	if !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateMusicDecodesPCM(t *testing.T) {
	// Two little-endian samples: 1 and -2.
	pcm := []byte{0x01, 0x00, 0xFE, 0xFF}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pcm":         base64.StdEncoding.EncodeToString(pcm),
			"sample_rate": 16000,
		})
	}))
	defer ts.Close()

	c := genai.NewMusicClient(genai.MusicConfig{BaseURL: ts.URL})
	samples, rate, err := c.GenerateMusic(context.Background(), "calm ambient")
	if err != nil {
		t.Fatalf("GenerateMusic: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate: got %d", rate)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != -2 {
		t.Errorf("samples: got %v, want [1 -2]", samples)
	}
}

func TestGenerateMusicWithoutEndpoint(t *testing.T) {
	c := genai.NewMusicClient(genai.MusicConfig{})
	_, _, err := c.GenerateMusic(context.Background(), "calm ambient")
	if !errors.Is(err, genai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
