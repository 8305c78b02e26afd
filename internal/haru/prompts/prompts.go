// Package prompts loads the prompt pack: the system prompts, the image style
// suffix table, the emotion → music prompt table, end-of-session keyword
// lists, and user-facing placeholder messages.
//
// The built-in pack is embedded; an operator-supplied YAML file can override
// individual fields. Keeping this data out of code lets the product copy be
// tuned without a rebuild.
package prompts

import (
	"fmt"
	"os"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Pack holds every tunable prompt and phrase table used by the service.
type Pack struct {
	InterviewerSystemPrompt string `yaml:"interviewer_system_prompt"`
	SummarySystemPrompt     string `yaml:"summary_system_prompt"`
	SessionOpener           string `yaml:"session_opener"`

	EndKeywords       []string `yaml:"end_keywords"`
	CompletionPhrases []string `yaml:"completion_phrases"`

	ImageStyles       map[string]string `yaml:"image_styles"`
	DefaultImageStyle string            `yaml:"default_image_style"`

	MoodPrompts      map[string]string `yaml:"mood_prompts"`
	DefaultBGMPrompt string            `yaml:"default_bgm_prompt"`

	ChatFailureMessage   string `yaml:"chat_failure_message"`
	ImageFailureMessage  string `yaml:"image_failure_message"`
	BGMFailureMessage    string `yaml:"bgm_failure_message"`
	QuotaExceededMessage string `yaml:"quota_exceeded_message"`
}

// Default returns the embedded prompt pack.
func Default() (*Pack, error) {
	return parse(defaultsYAML)
}

// Load returns the embedded pack with the fields set in the YAML file at
// path layered on top. An empty path returns the defaults unchanged.
func Load(path string) (*Pack, error) {
	pack, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return pack, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompts: read override %s: %w", path, err)
	}
	// Unmarshalling into the populated struct leaves unset fields at their
	// embedded values; maps and slices are replaced wholesale when present.
	if err := yaml.Unmarshal(data, pack); err != nil {
		return nil, fmt.Errorf("prompts: parse override %s: %w", path, err)
	}
	if err := pack.validate(); err != nil {
		return nil, fmt.Errorf("prompts: override %s: %w", path, err)
	}
	return pack, nil
}

func parse(data []byte) (*Pack, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("prompts: parse pack: %w", err)
	}
	if err := pack.validate(); err != nil {
		return nil, err
	}
	return &pack, nil
}

// validate checks structural correctness without interpreting the content.
func (p *Pack) validate() error {
	if strings.TrimSpace(p.InterviewerSystemPrompt) == "" {
		return fmt.Errorf("prompts: interviewer_system_prompt must not be empty")
	}
	if strings.TrimSpace(p.SummarySystemPrompt) == "" {
		return fmt.Errorf("prompts: summary_system_prompt must not be empty")
	}
	if strings.TrimSpace(p.SessionOpener) == "" {
		return fmt.Errorf("prompts: session_opener must not be empty")
	}
	if len(p.EndKeywords) == 0 {
		return fmt.Errorf("prompts: end_keywords must not be empty")
	}
	if len(p.CompletionPhrases) == 0 {
		return fmt.Errorf("prompts: completion_phrases must not be empty")
	}
	if len(p.ImageStyles) == 0 {
		return fmt.Errorf("prompts: image_styles must not be empty")
	}
	if _, ok := p.ImageStyles[p.DefaultImageStyle]; !ok {
		return fmt.Errorf("prompts: default_image_style %q missing from image_styles", p.DefaultImageStyle)
	}
	if len(p.MoodPrompts) == 0 {
		return fmt.Errorf("prompts: mood_prompts must not be empty")
	}
	if strings.TrimSpace(p.DefaultBGMPrompt) == "" {
		return fmt.Errorf("prompts: default_bgm_prompt must not be empty")
	}
	return nil
}

// StyleSuffix resolves a requested image style to its prompt suffix,
// falling back to the default style for unrecognised names.
func (p *Pack) StyleSuffix(style string) string {
	if s, ok := p.ImageStyles[style]; ok {
		return s
	}
	return p.ImageStyles[p.DefaultImageStyle]
}

// IsEndRequest reports whether the user's message contains an explicit
// termination keyword. Plain substring match: brittle, cheap, and exactly
// what users type.
func (p *Pack) IsEndRequest(userText string) bool {
	for _, kw := range p.EndKeywords {
		if strings.Contains(userText, kw) {
			return true
		}
	}
	return false
}

// SuggestsCompletion reports whether a model reply contains one of the
// wrap-up phrases the interviewer prompt instructs it to use.
func (p *Pack) SuggestsCompletion(reply string) bool {
	for _, phrase := range p.CompletionPhrases {
		if strings.Contains(reply, phrase) {
			return true
		}
	}
	return false
}

// BGMPrompt builds the music prompt for a track: the caller-supplied custom
// prompt verbatim when present, otherwise up to two mood-table matches
// joined, otherwise the default ambient prompt.
func (p *Pack) BGMPrompt(emotionTags []string, customPrompt string) string {
	if customPrompt != "" {
		return customPrompt
	}
	var parts []string
	for _, tag := range emotionTags {
		if mood, ok := p.MoodPrompts[tag]; ok {
			parts = append(parts, mood)
			// Two styles max keeps the generated track coherent.
			if len(parts) == 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return p.DefaultBGMPrompt
	}
	return strings.Join(parts, ", ")
}
