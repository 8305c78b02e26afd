// Package app assembles the diary service: storage tiers, generation
// clients, domain services, and the HTTP server. Everything is constructed
// here once and passed down explicitly; no package holds global state.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harulog/haru/common/retry"
	"github.com/harulog/haru/internal/haru/api"
	"github.com/harulog/haru/internal/haru/conversation"
	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/identity"
	"github.com/harulog/haru/internal/haru/media"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/quota"
	"github.com/harulog/haru/internal/haru/stats"
	"github.com/harulog/haru/internal/haru/store"
	"github.com/harulog/haru/internal/haru/synthesis"
)

// Config holds application configuration.
type Config struct {
	// HTTPAddr is the TCP address the API server binds, e.g. ":8000".
	HTTPAddr string

	// DataDir is the root of all on-disk state. Diary JSON files land in
	// DataDir/diaries, generated media in DataDir/images and DataDir/music,
	// and the SQL tier in DataDir/haru.db unless DatabasePath overrides it.
	DataDir string

	// DatabasePath overrides the SQL tier location. Set to "-" to run
	// local-files-only with no remote tier at all.
	DatabasePath string

	// Chat drives the interview and the one-shot summariser.
	Chat genai.ChatConfig

	// Image renders diary illustrations.
	Image genai.ImageConfig

	// MusicBaseURL is the music inference endpoint. Empty disables BGM
	// generation (requests get the placeholder message).
	MusicBaseURL string
	MusicAPIKey  string

	// WarmMusic pre-initialises the music client at startup instead of on
	// the first BGM request.
	WarmMusic bool

	// Clerk resolves bearer tokens to users.
	Clerk identity.ClerkConfig

	// PublishableKey is exposed to browsers via GET /api/config.
	PublishableKey string

	// PromptsPath optionally overrides fields of the embedded prompt pack.
	PromptsPath string

	// StaticDir, when non-empty, is served at / for the bundled frontend.
	StaticDir string
}

// App is the assembled diary service.
type App struct {
	config *Config
	store  *store.Tiered
	remote store.Remote
	media  *media.Generator
	server *api.Server
}

// New wires the application. The remote store tier is optional at runtime:
// when the database cannot be opened or pinged the app starts local-only
// and logs the degradation.
func New(config *Config) (*App, error) {
	pack, err := prompts.Load(config.PromptsPath)
	if err != nil {
		return nil, err
	}

	local, err := store.NewLocal(filepath.Join(config.DataDir, "diaries"))
	if err != nil {
		return nil, fmt.Errorf("init local store: %w", err)
	}

	remote := openRemote(config)
	tiered := store.NewTiered(local, remote)

	chat := genai.NewChatClient(config.Chat)
	image := genai.NewImageClient(config.Image)

	var musicFactory func() genai.MusicProvider
	if config.MusicBaseURL != "" {
		cfg := genai.MusicConfig{BaseURL: config.MusicBaseURL, APIKey: config.MusicAPIKey}
		musicFactory = func() genai.MusicProvider {
			slog.Info("initialising music client", "endpoint", cfg.BaseURL)
			return genai.NewMusicClient(cfg)
		}
	}

	gen, err := media.New(tiered, image, musicFactory, pack,
		filepath.Join(config.DataDir, "images"),
		filepath.Join(config.DataDir, "music"))
	if err != nil {
		return nil, err
	}

	server := api.New(config.HTTPAddr, api.Deps{
		Verifier:       identity.NewClerkVerifier(config.Clerk),
		Store:          tiered,
		Conversations:  conversation.New(tiered, quota.New(tiered), chat, pack),
		Synthesizer:    synthesis.New(tiered, chat, pack),
		Media:          gen,
		Stats:          stats.New(tiered),
		Pack:           pack,
		PublishableKey: config.PublishableKey,
		StaticDir:      config.StaticDir,
	})

	return &App{
		config: config,
		store:  tiered,
		remote: remote,
		media:  gen,
		server: server,
	}, nil
}

// openRemote opens the SQL tier and verifies it answers. Startup is the one
// place a retry is allowed; request-path store calls never retry. Any
// failure degrades to local-only persistence.
func openRemote(config *Config) store.Remote {
	if config.DatabasePath == "-" {
		slog.Info("remote store disabled by configuration, running local-only")
		return nil
	}
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataDir, "haru.db")
	}

	remote, err := store.NewSQLRemote(dbPath)
	if err != nil {
		slog.Warn("remote store unavailable, running local-only", "path", dbPath, "err", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := retry.Do(ctx, retry.DefaultConfig, func() error {
		return remote.Ping(ctx)
	}); err != nil {
		slog.Warn("remote store not answering, running local-only", "path", dbPath, "err", err)
		remote.Close()
		return nil
	}

	slog.Info("remote store ready", "path", dbPath)
	return remote
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.server.Start(ctx); err != nil {
		return err
	}

	if a.config.WarmMusic {
		go a.media.Warm()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	slog.Info("shutting down", "signal", s.String())
	return nil
}

// Stop shuts down the HTTP server and closes the remote store.
func (a *App) Stop() {
	slog.Info("stopping api server")
	a.server.Stop()
	if a.remote != nil {
		slog.Info("closing remote store")
		a.remote.Close()
	}
}
