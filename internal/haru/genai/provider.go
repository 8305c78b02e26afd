// Package genai holds the clients for the external generation
// collaborators: conversational text, one-shot completion, image bytes, and
// music samples. Each collaborator is consumed through a narrow interface so
// the services above can be tested with fakes.
//
// Generation failures are expected and transient. Providers return
// ErrUnavailable (wrapped) for transport-level trouble; callers surface a
// placeholder message instead of an HTTP error and never retry.
package genai

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a generation collaborator cannot be
// reached or refuses the call. The user's persisted state is left as-is;
// callers degrade to a placeholder response.
var ErrUnavailable = errors.New("genai: generation collaborator unavailable")

// Message is one turn of chat context sent to the text collaborator. Role is
// "user" or "model"; the collaborator keeps no server-side memory, so the
// caller resends the entire transcript on every call.
type Message struct {
	Role    string
	Content string
}

// ChatProvider produces the next conversational turn given the full prior
// transcript. Implementations must be safe for concurrent use.
type ChatProvider interface {
	Chat(ctx context.Context, system string, history []Message) (string, error)
}

// Completer performs a single one-shot completion with no conversational
// context. Used by the summary synthesizer.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ImageProvider renders an image for a prompt and returns the raw encoded
// bytes plus their MIME type.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// MusicProvider synthesises a mono audio clip for a prompt. Samples are
// 16-bit PCM at the returned rate. Implementations may be expensive to
// initialise; callers guard first use with a once so concurrent first calls
// initialise a single instance.
type MusicProvider interface {
	GenerateMusic(ctx context.Context, prompt string) (samples []int16, sampleRate int, err error)
}
