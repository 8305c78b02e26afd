// Package conversation runs the AI-led journaling interview: starting a
// session, exchanging turns, and spotting the end of the conversation.
//
// The persisted transcript is the only source of truth. The chat
// collaborator keeps no server-side state, so every call resends the whole
// transcript; a process restart (or a second instance) resumes a session
// from storage alone.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/record"
)

// Store is the slice of the record store the manager needs.
type Store interface {
	Create(ctx context.Context, owner, id string, createdAt time.Time) (*record.Record, error)
	Get(ctx context.Context, owner, id string) (*record.Record, error)
	Save(ctx context.Context, rec *record.Record) error
}

// Gate reserves a session-start slot against the daily quota.
type Gate interface {
	Reserve(ctx context.Context, owner string, date time.Time) (release func(), err error)
}

// Manager orchestrates interview sessions.
type Manager struct {
	store Store
	gate  Gate
	chat  genai.ChatProvider
	pack  *prompts.Pack
}

// New wires a manager from its collaborators.
func New(store Store, gate Gate, chat genai.ChatProvider, pack *prompts.Pack) *Manager {
	return &Manager{store: store, gate: gate, chat: chat, pack: pack}
}

// Start creates a session for the owner (quota permitting) and returns its
// identifier together with the interviewer's greeting. date zero means
// today; a non-zero date back-dates the entry to that calendar day.
//
// When the chat collaborator fails, the freshly created (empty) record is
// kept: the user can retry chatting into the same session.
func (m *Manager) Start(ctx context.Context, owner string, date time.Time) (string, string, error) {
	day := date
	if day.IsZero() {
		day = time.Now()
	}

	release, err := m.gate.Reserve(ctx, owner, day)
	if err != nil {
		return "", "", err
	}
	defer release()

	id := record.NewID(date)
	rec, err := m.store.Create(ctx, owner, id, date)
	if err != nil {
		return "", "", fmt.Errorf("conversation: create session: %w", err)
	}

	greeting, err := m.chat.Chat(ctx, m.pack.InterviewerSystemPrompt, []genai.Message{
		{Role: record.RoleUser, Content: m.pack.SessionOpener},
	})
	if err != nil {
		return id, "", err
	}

	rec.Append(record.RoleModel, greeting, date)
	if err := m.store.Save(ctx, rec); err != nil {
		return id, "", fmt.Errorf("conversation: save greeting: %w", err)
	}

	return id, greeting, nil
}

// Send appends the user's message to the session transcript, asks the chat
// collaborator for the next turn with the entire transcript as context, and
// reports whether the session looks finished.
//
// The user turn is persisted before the collaborator call and is NOT rolled
// back when that call fails: the caller gets the error and the turn stays
// in the transcript for the retry.
func (m *Manager) Send(ctx context.Context, owner, sessionID, text string) (string, bool, error) {
	rec, err := m.store.Get(ctx, owner, sessionID)
	if err != nil {
		return "", false, err
	}

	userEnding := m.pack.IsEndRequest(text)

	rec.Append(record.RoleUser, text, time.Time{})
	if err := m.store.Save(ctx, rec); err != nil {
		return "", false, fmt.Errorf("conversation: save user turn: %w", err)
	}

	history := make([]genai.Message, 0, len(rec.Conversation))
	for _, turn := range rec.Conversation {
		history = append(history, genai.Message{Role: turn.Role, Content: turn.Content})
	}

	reply, err := m.chat.Chat(ctx, m.pack.InterviewerSystemPrompt, history)
	if err != nil {
		return "", false, err
	}

	rec.Append(record.RoleModel, reply, time.Time{})
	if err := m.store.Save(ctx, rec); err != nil {
		return "", false, fmt.Errorf("conversation: save reply: %w", err)
	}

	complete := userEnding || m.pack.SuggestsCompletion(reply)
	return reply, complete, nil
}
