// Package synthesis turns a finished interview transcript into diary
// content: a summary, emotion tags, and prompts for the image and music
// generators.
//
// The collaborator is asked for a structured JSON reply. Models fence and
// misformat JSON often enough that the parse path is defensive: fences are
// stripped, the payload is checked against a schema, and a reply that still
// does not parse degrades to a plain-text summary instead of failing the
// session end. Partial synthesis beats none.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/record"
)

// ErrEmptyTranscript is returned by Summarize for a session with no turns.
var ErrEmptyTranscript = errors.New("synthesis: transcript is empty")

//go:embed result_schema.json
var resultSchemaJSON string

// resultSchema type-checks the structured reply. Compilation of the
// embedded document cannot fail; a panic here is a build defect.
var resultSchema = jsonschema.MustCompileString("result_schema.json", resultSchemaJSON)

// Result is the structured output of one synthesis call.
type Result struct {
	Summary     string   `json:"summary"`
	EmotionTags []string `json:"emotion_tags"`
	ImagePrompt string   `json:"image_prompt"`
	BGMPrompt   string   `json:"bgm_prompt"`
}

// Store is the slice of the record store the synthesizer needs.
type Store interface {
	Get(ctx context.Context, owner, id string) (*record.Record, error)
	Save(ctx context.Context, rec *record.Record) error
}

// Synthesizer produces and persists summaries and tags.
type Synthesizer struct {
	store    Store
	complete genai.Completer
	pack     *prompts.Pack
}

// New wires a synthesizer from its collaborators.
func New(store Store, complete genai.Completer, pack *prompts.Pack) *Synthesizer {
	return &Synthesizer{store: store, complete: complete, pack: pack}
}

// Summarize formats the session's full transcript into a single one-shot
// prompt, persists the synthesised summary onto the record, and returns it.
// The record becomes complete as a side effect.
func (s *Synthesizer) Summarize(ctx context.Context, owner, sessionID string) (*Result, error) {
	rec, err := s.store.Get(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if len(rec.Conversation) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	for _, turn := range rec.Conversation {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf("다음 대화 내용을 분석하고 요약해주세요:\n\n%s\nJSON 형식으로 응답하세요.", sb.String())

	raw, err := s.complete.Complete(ctx, s.pack.SummarySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	res, ok := parseStructured(raw)
	if !ok || res.Summary == "" {
		// Keep whatever the model said as the summary text so the user's
		// session still ends with something readable.
		slog.Warn("synthesis: unstructured summary reply, degrading", "session", sessionID)
		res = &Result{Summary: strings.TrimSpace(raw), EmotionTags: []string{}}
	}

	rec.SetSummary(res.Summary, res.EmotionTags, res.ImagePrompt, res.BGMPrompt)
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("synthesis: save summary: %w", err)
	}
	return res, nil
}

// ReTag regenerates emotion tags and media prompts for an edited summary
// text. It is a pure one-shot call: no transcript is read or written.
func (s *Synthesizer) ReTag(ctx context.Context, summaryText string) (*Result, error) {
	prompt := fmt.Sprintf(`다음 일기 요약을 분석하고 감정 태그와 이미지/BGM 프롬프트를 생성해주세요:

요약: %s

JSON 형식으로 응답하세요:
{
    "emotion_tags": ["감정1", "감정2"],
    "image_prompt": "시각적 묘사...",
    "bgm_prompt": "음악적 묘사..."
}`, summaryText)

	raw, err := s.complete.Complete(ctx, s.pack.SummarySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	res, ok := parseStructured(raw)
	if !ok {
		slog.Warn("synthesis: unstructured re-tag reply, degrading")
		return &Result{EmotionTags: []string{}}, nil
	}
	return res, nil
}

// UpdateSummary replaces the record's summary with the user-edited text and
// refreshes tags and prompts from it. Regenerated prompts that come back
// empty keep their previous values.
func (s *Synthesizer) UpdateSummary(ctx context.Context, owner, sessionID, summaryText string) (*record.Record, error) {
	rec, err := s.store.Get(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := s.ReTag(ctx, summaryText)
	if err != nil {
		return nil, err
	}

	rec.SetSummary(summaryText, res.EmotionTags, res.ImagePrompt, res.BGMPrompt)
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("synthesis: save edited summary: %w", err)
	}
	return rec, nil
}

// parseStructured strips optional code fences, decodes the JSON payload,
// and checks it against the result schema. ok is false when any step fails.
func parseStructured(raw string) (*Result, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, false
	}
	if err := resultSchema.Validate(decoded); err != nil {
		return nil, false
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, false
	}
	if res.EmotionTags == nil {
		res.EmotionTags = []string{}
	}
	return &res, true
}
