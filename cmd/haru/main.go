package main

import (
	"fmt"
	"os"
	"time"

	"github.com/harulog/haru/common/environment"
	"github.com/harulog/haru/common/version"
	"github.com/harulog/haru/internal/haru/app"
	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/identity"
)

func main() {
	fmt.Printf("Haru Diary Service\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	haru, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Haru: %v\n", err)
		os.Exit(1)
	}
	defer haru.Stop()

	if err := haru.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Haru: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() (*app.Config, error) {
	apiKey, err := environment.RequiredString("HARU_OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return &app.Config{
		HTTPAddr:     environment.StringOr("HARU_HTTP_ADDR", ":8000"),
		DataDir:      environment.StringOr("HARU_DATA_DIR", "./data"),
		DatabasePath: environment.StringOr("HARU_DATABASE_PATH", ""),
		Chat: genai.ChatConfig{
			APIKey:  apiKey,
			BaseURL: environment.StringOr("HARU_OPENAI_BASE_URL", ""),
			Model:   environment.StringOr("HARU_CHAT_MODEL", ""),
			Timeout: environment.DurationOr("HARU_CHAT_TIMEOUT", 0),
		},
		Image: genai.ImageConfig{
			APIKey:  apiKey,
			BaseURL: environment.StringOr("HARU_OPENAI_BASE_URL", ""),
			Model:   environment.StringOr("HARU_IMAGE_MODEL", ""),
			Timeout: environment.DurationOr("HARU_IMAGE_TIMEOUT", 0),
		},
		MusicBaseURL: environment.StringOr("HARU_MUSIC_BASE_URL", ""),
		MusicAPIKey:  environment.StringOr("HARU_MUSIC_API_KEY", ""),
		WarmMusic:    environment.BoolOr("HARU_WARM_MUSIC", false),
		Clerk: identity.ClerkConfig{
			BaseURL:   environment.StringOr("HARU_CLERK_BASE_URL", ""),
			SecretKey: environment.StringOr("HARU_CLERK_SECRET_KEY", ""),
			Timeout:   environment.DurationOr("HARU_CLERK_TIMEOUT", 10*time.Second),
		},
		PublishableKey: environment.StringOr("HARU_CLERK_PUBLISHABLE_KEY", ""),
		PromptsPath:    environment.StringOr("HARU_PROMPTS_PATH", ""),
		StaticDir:      environment.StringOr("HARU_STATIC_DIR", ""),
	}, nil
}
