// Package media generates and attaches the per-diary artifacts: candidate
// images (a growing gallery with one selected representative) and a single
// background-music track.
//
// Generation failures are normal operation here — the providers are remote
// and slow — so every failure surfaces as genai.ErrUnavailable for the API
// layer to translate into a placeholder message, never as a 5xx.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/record"
)

// ErrNoPrompt is returned when image generation is requested before the
// session has been summarised (no image prompt exists yet).
var ErrNoPrompt = errors.New("media: no image prompt available")

// Store is the slice of the record store the generator needs.
type Store interface {
	Get(ctx context.Context, owner, id string) (*record.Record, error)
	Save(ctx context.Context, rec *record.Record) error
}

// Generator renders and stores media artifacts.
//
// The music provider is expensive to stand up, so it is built lazily by the
// supplied factory, exactly once per process even under concurrent first
// use.
type Generator struct {
	store     Store
	image     genai.ImageProvider
	pack      *prompts.Pack
	imagesDir string
	musicDir  string

	musicFactory func() genai.MusicProvider
	musicOnce    sync.Once
	music        genai.MusicProvider
}

// New wires a generator. musicFactory may return nil to disable BGM
// generation entirely.
func New(store Store, image genai.ImageProvider, musicFactory func() genai.MusicProvider,
	pack *prompts.Pack, imagesDir, musicDir string) (*Generator, error) {
	for _, dir := range []string{imagesDir, musicDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("media: create dir %s: %w", dir, err)
		}
	}
	return &Generator{
		store:        store,
		image:        image,
		pack:         pack,
		imagesDir:    imagesDir,
		musicDir:     musicDir,
		musicFactory: musicFactory,
	}, nil
}

// Warm initialises the music provider ahead of the first request. Intended
// for startup; safe to skip.
func (g *Generator) Warm() {
	g.musicProvider()
}

func (g *Generator) musicProvider() genai.MusicProvider {
	g.musicOnce.Do(func() {
		if g.musicFactory != nil {
			g.music = g.musicFactory()
		}
	})
	return g.music
}

// GenerateImage renders one image for the prompt in the requested style and
// writes it to a session- and timestamp-qualified file. Returns the saved
// path.
func (g *Generator) GenerateImage(ctx context.Context, prompt, sessionID, style string) (string, error) {
	suffix := g.pack.StyleSuffix(style)
	full := fmt.Sprintf("Generate an artistic image: %s, %s. Create a single beautiful image without any text.", prompt, suffix)

	data, mimeType, err := g.image.GenerateImage(ctx, full)
	if err != nil {
		return "", err
	}

	ext := "png"
	switch {
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		ext = "jpg"
	case strings.Contains(mimeType, "webp"):
		ext = "webp"
	}

	path := filepath.Join(g.imagesDir, fmt.Sprintf("%s_%s.%s", sessionID, time.Now().Format("150405"), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write image: %w", err)
	}
	slog.Info("media: image saved", "session", sessionID, "path", path)
	return path, nil
}

// AttachImage generates an image from the record's stored prompt, appends
// it to the gallery, auto-selects it, and persists the record. The record
// must already have an image prompt (i.e. the session was summarised).
func (g *Generator) AttachImage(ctx context.Context, owner, sessionID, style string) (*record.Record, string, error) {
	rec, err := g.store.Get(ctx, owner, sessionID)
	if err != nil {
		return nil, "", err
	}
	if rec.ImagePrompt == "" {
		return nil, "", ErrNoPrompt
	}
	if style == "" {
		style = rec.Style
	}

	path, err := g.GenerateImage(ctx, rec.ImagePrompt, sessionID, style)
	if err != nil {
		return nil, "", err
	}

	rec.AddImage(path)
	if err := g.store.Save(ctx, rec); err != nil {
		return nil, "", fmt.Errorf("media: save record after image: %w", err)
	}
	return rec, path, nil
}

// SelectImage makes the image at index the record's representative one and
// persists the change. An out-of-range index returns
// record.ErrIndexOutOfRange without mutating anything.
func (g *Generator) SelectImage(ctx context.Context, owner, sessionID string, index int) (*record.Record, error) {
	rec, err := g.store.Get(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if err := rec.SelectImage(index); err != nil {
		return nil, err
	}
	if err := g.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("media: save record after select: %w", err)
	}
	return rec, nil
}

// GenerateBGM synthesises a music clip for the prompt and writes it as a
// mono 16-bit WAV file. Returns the saved path.
func (g *Generator) GenerateBGM(ctx context.Context, sessionID string, emotionTags []string, customPrompt string) (string, error) {
	provider := g.musicProvider()
	if provider == nil {
		return "", fmt.Errorf("%w: music generation disabled", genai.ErrUnavailable)
	}

	prompt := g.pack.BGMPrompt(emotionTags, customPrompt)
	slog.Info("media: generating bgm", "session", sessionID, "prompt", prompt)

	samples, rate, err := provider.GenerateMusic(ctx, prompt)
	if err != nil {
		return "", err
	}

	path := filepath.Join(g.musicDir, fmt.Sprintf("%s_bgm_%s.wav", sessionID, time.Now().Format("150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("media: create wav file: %w", err)
	}
	if err := writeWAV(f, samples, rate); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("media: write wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("media: close wav file: %w", err)
	}

	slog.Info("media: bgm saved", "session", sessionID, "path", path)
	return path, nil
}

// AttachBGM generates a track from the record's tags and stored BGM prompt,
// overwrites the record's single BGM path, and persists it. Unlike images
// there is no gallery: regeneration replaces the previous track reference.
func (g *Generator) AttachBGM(ctx context.Context, owner, sessionID string) (*record.Record, string, error) {
	rec, err := g.store.Get(ctx, owner, sessionID)
	if err != nil {
		return nil, "", err
	}

	path, err := g.GenerateBGM(ctx, sessionID, rec.EmotionTags, rec.BGMPrompt)
	if err != nil {
		return nil, "", err
	}

	rec.BGMPath = path
	if err := g.store.Save(ctx, rec); err != nil {
		return nil, "", fmt.Errorf("media: save record after bgm: %w", err)
	}
	return rec, path, nil
}
