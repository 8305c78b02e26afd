package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harulog/haru/common/trace"
	"github.com/harulog/haru/internal/haru/genai"
	"github.com/harulog/haru/internal/haru/media"
	"github.com/harulog/haru/internal/haru/quota"
	"github.com/harulog/haru/internal/haru/record"
	"github.com/harulog/haru/internal/haru/stats"
	"github.com/harulog/haru/internal/haru/store"
	"github.com/harulog/haru/internal/haru/synthesis"
)

// sessionResponse is the reply for session starts and chat turns.
type sessionResponse struct {
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	IsComplete bool   `json:"is_complete"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	// An empty body means "start a session for today".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var date time.Time
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	user := userFrom(r.Context())
	id, greeting, err := s.deps.Conversations.Start(r.Context(), user.ID, date)
	switch {
	case errors.Is(err, quota.ErrQuotaExceeded):
		day := date
		if day.IsZero() {
			day = time.Now()
		}
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf(s.deps.Pack.QuotaExceededMessage, day.Format("2006-01-02")))
		return
	case errors.Is(err, genai.ErrUnavailable):
		// The empty session was kept; the user retries by chatting into it.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     false,
			"session_id":  id,
			"message":     s.deps.Pack.ChatFailureMessage,
			"is_complete": false,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Message: greeting})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	user := userFrom(r.Context())
	reply, complete, err := s.deps.Conversations.Send(r.Context(), user.ID, req.SessionID, req.Message)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, genai.ErrUnavailable):
		// The user's turn is already persisted; only the reply is missing.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     false,
			"session_id":  req.SessionID,
			"message":     s.deps.Pack.ChatFailureMessage,
			"is_complete": false,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:  req.SessionID,
		Message:    reply,
		IsComplete: complete,
	})
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	user := userFrom(r.Context())
	result, err := s.deps.Synthesizer.Summarize(r.Context(), user.ID, req.SessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, synthesis.ErrEmptyTranscript):
		writeError(w, http.StatusBadRequest, "session has no conversation to summarise")
		return
	case errors.Is(err, genai.ErrUnavailable):
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    false,
			"session_id": req.SessionID,
			"message":    s.deps.Pack.ChatFailureMessage,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	rec, err := s.deps.Store.Get(r.Context(), user.ID, req.SessionID)
	if err != nil {
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"summary":    result.Summary,
		"diary":      rec,
	})
}

func (s *Server) handleSummaryUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Summary   string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		writeError(w, http.StatusBadRequest, "summary must not be empty")
		return
	}

	user := userFrom(r.Context())
	rec, err := s.deps.Synthesizer.UpdateSummary(r.Context(), user.ID, req.SessionID, req.Summary)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case errors.Is(err, genai.ErrUnavailable):
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": s.deps.Pack.ChatFailureMessage,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	summary := ""
	if rec.Summary != nil {
		summary = *rec.Summary
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"summary":      summary,
		"emotion_tags": rec.EmotionTags,
		"image_prompt": rec.ImagePrompt,
		"bgm_prompt":   rec.BGMPrompt,
	})
}

func (s *Server) handleImageGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Style     string `json:"style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	user := userFrom(r.Context())
	rec, path, err := s.deps.Media.AttachImage(r.Context(), user.ID, req.SessionID, req.Style)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case errors.Is(err, media.ErrNoPrompt):
		writeError(w, http.StatusBadRequest, "diary has no image prompt yet; end the session first")
		return
	case errors.Is(err, genai.ErrUnavailable):
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": s.deps.Pack.ImageFailureMessage,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"image_path":           path,
		"image_paths":          rec.ImagePaths,
		"selected_image_index": rec.SelectedImageIndex,
	})
}

func (s *Server) handleImageSelect(w http.ResponseWriter, r *http.Request) {
	diaryID := r.PathValue("diaryID")
	index, err := strconv.Atoi(r.PathValue("imageIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "image index must be an integer")
		return
	}

	user := userFrom(r.Context())
	rec, err := s.deps.Media.SelectImage(r.Context(), user.ID, diaryID, index)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case errors.Is(err, record.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, "image index out of range")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"selected_image_index": rec.SelectedImageIndex,
	})
}

func (s *Server) handleBGMGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	user := userFrom(r.Context())
	_, path, err := s.deps.Media.AttachBGM(r.Context(), user.ID, req.SessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case errors.Is(err, genai.ErrUnavailable):
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": s.deps.Pack.BGMFailureMessage,
		})
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"bgm_path": path,
	})
}

func (s *Server) handleDiaryList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	recs, err := s.deps.Store.List(r.Context(), user.ID)
	if err != nil {
		s.writeUnhandled(w, r, err)
		return
	}

	keyword := strings.ToLower(r.URL.Query().Get("keyword"))
	tag := r.URL.Query().Get("tag")

	items := make([]record.ListItem, 0, len(recs))
	for _, rec := range recs {
		item := rec.Item()
		if keyword != "" && !strings.Contains(strings.ToLower(item.Summary), keyword) {
			continue
		}
		if tag != "" && !containsTag(item.EmotionTags, tag) {
			continue
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"diaries": items,
		"count":   len(items),
	})
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func (s *Server) handleDiaryGet(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	rec, err := s.deps.Store.Get(r.Context(), user.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDiaryImage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	rec, err := s.deps.Store.Get(r.Context(), user.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}

	path := rec.SelectedImage()
	if raw := r.URL.Query().Get("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		if index < 0 || index >= len(rec.ImagePaths) {
			writeError(w, http.StatusNotFound, "no image at that index")
			return
		}
		path = rec.ImagePaths[index]
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "diary has no image")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleDiaryBGM(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	rec, err := s.deps.Store.Get(r.Context(), user.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}
	if rec.BGMPath == "" {
		writeError(w, http.StatusNotFound, "diary has no background music")
		return
	}
	http.ServeFile(w, r, rec.BGMPath)
}

func (s *Server) handleDiaryDelete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	err := s.deps.Store.Delete(r.Context(), user.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "diary not found")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStatsEmotions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	report, err := s.deps.Stats.Emotions(r.Context(), user.ID, statsPeriod(r))
	switch {
	case errors.Is(err, stats.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "period must be week or month")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatsBestMedia(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	report, err := s.deps.Stats.BestMedia(r.Context(), user.ID, statsPeriod(r))
	switch {
	case errors.Is(err, stats.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "period must be week or month")
		return
	case err != nil:
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatsAllTags(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	tags, err := s.deps.Stats.AllTags(r.Context(), user.ID)
	if err != nil {
		s.writeUnhandled(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func statsPeriod(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return stats.PeriodWeek
}

// --- helpers ---

func (s *Server) writeUnhandled(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("api: unhandled error",
		"path", r.URL.Path,
		"trace_id", trace.FromContext(r.Context()),
		"err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
