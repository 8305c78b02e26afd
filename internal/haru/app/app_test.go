package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harulog/haru/internal/haru/genai"
)

func TestNewLocalOnly(t *testing.T) {
	dir := t.TempDir()
	haru, err := New(&Config{
		HTTPAddr:     "127.0.0.1:0",
		DataDir:      dir,
		DatabasePath: "-",
		Chat:         genai.ChatConfig{APIKey: "test-key"},
		Image:        genai.ImageConfig{APIKey: "test-key"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer haru.Stop()

	if haru.remote != nil {
		t.Fatal("DatabasePath \"-\" must disable the remote tier")
	}
	for _, sub := range []string{"diaries", "images", "music"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Fatalf("data subdirectory %s not created: %v", sub, err)
		}
	}
}

func TestNewOpensRemote(t *testing.T) {
	dir := t.TempDir()
	haru, err := New(&Config{
		HTTPAddr: "127.0.0.1:0",
		DataDir:  dir,
		Chat:     genai.ChatConfig{APIKey: "test-key"},
		Image:    genai.ImageConfig{APIKey: "test-key"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer haru.Stop()

	if haru.remote == nil {
		t.Fatal("default config should open the bundled SQL tier")
	}
	if _, err := os.Stat(filepath.Join(dir, "haru.db")); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestNewRejectsBrokenPromptOverride(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(broken, []byte("end_keywords: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(&Config{
		HTTPAddr:     "127.0.0.1:0",
		DataDir:      t.TempDir(),
		DatabasePath: "-",
		PromptsPath:  broken,
	})
	if err == nil {
		t.Fatal("invalid prompt override accepted")
	}
}
