// Package record defines the diary record data model shared by the store,
// conversation, synthesis, and media layers.
//
// A record is one journaling session: the interview transcript, the
// synthesised summary with emotion tags, and the generated media artifacts.
// A record whose summary is set is "complete"; only complete records appear
// in listings and count toward the daily quota.
package record

import (
	"errors"
	"time"
)

// Turn roles within a conversation. The wire values match what the chat
// provider expects, so transcripts can be resent verbatim as context.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// DefaultStyle is the image style applied when a record does not name one.
const DefaultStyle = "watercolor"

// ErrIndexOutOfRange is returned by SelectImage for an index that does not
// point into ImagePaths.
var ErrIndexOutOfRange = errors.New("record: image index out of range")

// Turn is a single message in the interview transcript. Insertion order is
// conversation order; turns are append-only.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is one journaling session's persisted state.
type Record struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`

	Conversation []Turn `json:"conversation"`

	// Summary is nil until session-end synthesis or a user edit. A non-nil
	// summary marks the record complete.
	Summary     *string  `json:"summary"`
	EmotionTags []string `json:"emotion_tags"`
	ImagePrompt string   `json:"image_prompt,omitempty"`
	BGMPrompt   string   `json:"bgm_prompt,omitempty"`

	// ImagePaths grows by one per successful image generation and is never
	// truncated. SelectedImageIndex always points into it when non-empty.
	ImagePaths         []string `json:"image_paths"`
	SelectedImageIndex int      `json:"selected_image_index"`

	// BGMPath is the single background-music artifact; regeneration
	// overwrites it (no gallery, unlike images).
	BGMPath string `json:"bgm_path,omitempty"`

	Style string `json:"style"`
}

// New creates an empty record owned by owner. createdAt zero means now.
func New(id, owner string, createdAt time.Time) *Record {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Record{
		ID:           id,
		OwnerID:      owner,
		CreatedAt:    createdAt,
		Conversation: []Turn{},
		EmotionTags:  []string{},
		ImagePaths:   []string{},
		Style:        DefaultStyle,
	}
}

// Complete reports whether the record has a synthesised summary.
func (r *Record) Complete() bool {
	return r.Summary != nil && *r.Summary != ""
}

// Append adds a turn to the transcript. at zero means now.
func (r *Record) Append(role, content string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	r.Conversation = append(r.Conversation, Turn{Role: role, Content: content, Timestamp: at})
}

// SetSummary replaces the summary, emotion tags, and generation prompts
// wholesale. Empty prompt arguments keep the existing values so a degraded
// synthesis does not wipe earlier results.
func (r *Record) SetSummary(summary string, tags []string, imagePrompt, bgmPrompt string) {
	r.Summary = &summary
	if tags == nil {
		tags = []string{}
	}
	r.EmotionTags = tags
	if imagePrompt != "" {
		r.ImagePrompt = imagePrompt
	}
	if bgmPrompt != "" {
		r.BGMPrompt = bgmPrompt
	}
}

// AddImage appends a generated image path and auto-selects it: the newest
// image becomes the representative one.
func (r *Record) AddImage(path string) {
	r.ImagePaths = append(r.ImagePaths, path)
	r.SelectedImageIndex = len(r.ImagePaths) - 1
}

// SelectImage makes the image at index the representative one. An index
// outside [0, len(ImagePaths)) returns ErrIndexOutOfRange and leaves the
// record unmodified. Re-selecting the current index is a no-op success.
func (r *Record) SelectImage(index int) error {
	if index < 0 || index >= len(r.ImagePaths) {
		return ErrIndexOutOfRange
	}
	r.SelectedImageIndex = index
	return nil
}

// SelectedImage returns the representative image path, or "" when the
// record has no images.
func (r *Record) SelectedImage() string {
	if len(r.ImagePaths) == 0 {
		return ""
	}
	if r.SelectedImageIndex < 0 || r.SelectedImageIndex >= len(r.ImagePaths) {
		return r.ImagePaths[0]
	}
	return r.ImagePaths[r.SelectedImageIndex]
}

// ListItem is the reduced view of a complete record used by listings.
type ListItem struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Summary     string    `json:"summary"`
	EmotionTags []string  `json:"emotion_tags"`
	HasImage    bool      `json:"has_image"`
	HasBGM      bool      `json:"has_bgm"`
}

// Item reduces the record to its listing view.
func (r *Record) Item() ListItem {
	summary := ""
	if r.Summary != nil {
		summary = *r.Summary
	}
	tags := r.EmotionTags
	if tags == nil {
		tags = []string{}
	}
	return ListItem{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		Summary:     summary,
		EmotionTags: tags,
		HasImage:    len(r.ImagePaths) > 0,
		HasBGM:      r.BGMPath != "",
	}
}
