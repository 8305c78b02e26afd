// Package api exposes the diary service over HTTP.
//
// Every /api route except /api/health and /api/config requires a bearer
// credential, resolved to an owner by the identity collaborator. The token
// is read from the Authorization header, with a ?token= query fallback for
// browser media tags that cannot set headers.
//
// Error policy: not-found → 404, bad input and quota → 400, missing or bad
// credentials → 401, and uncaught panics → 500 with a generic body. AI
// generation failures are expected and transient; they come back as HTTP
// 200 with success:false and a user-facing placeholder message.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/harulog/haru/common/trace"
	"github.com/harulog/haru/internal/haru/conversation"
	"github.com/harulog/haru/internal/haru/identity"
	"github.com/harulog/haru/internal/haru/media"
	"github.com/harulog/haru/internal/haru/prompts"
	"github.com/harulog/haru/internal/haru/stats"
	"github.com/harulog/haru/internal/haru/store"
	"github.com/harulog/haru/internal/haru/synthesis"
)

// Deps bundles the collaborators the server delegates to.
type Deps struct {
	Verifier      identity.Verifier
	Store         *store.Tiered
	Conversations *conversation.Manager
	Synthesizer   *synthesis.Synthesizer
	Media         *media.Generator
	Stats         *stats.Aggregator
	Pack          *prompts.Pack

	// PublishableKey is handed to browsers via GET /api/config so the
	// frontend can initialise its identity widget. Never the secret key.
	PublishableKey string

	// StaticDir, when non-empty, is served at / for the bundled frontend.
	StaticDir string
}

// Server is the diary HTTP server.
type Server struct {
	addr   string
	deps   Deps
	server *http.Server
}

// New creates a Server listening on addr once started.
func New(addr string, deps Deps) *Server {
	s := &Server{addr: addr, deps: deps}

	// innerMux: owner-scoped routes, all behind auth.
	innerMux := http.NewServeMux()
	innerMux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	innerMux.HandleFunc("POST /api/chat", s.handleChat)
	innerMux.HandleFunc("POST /api/session/end", s.handleSessionEnd)
	innerMux.HandleFunc("POST /api/summary/update", s.handleSummaryUpdate)
	innerMux.HandleFunc("POST /api/image/generate", s.handleImageGenerate)
	innerMux.HandleFunc("POST /api/image/select/{diaryID}/{imageIndex}", s.handleImageSelect)
	innerMux.HandleFunc("POST /api/bgm/generate", s.handleBGMGenerate)
	innerMux.HandleFunc("GET /api/diaries", s.handleDiaryList)
	innerMux.HandleFunc("GET /api/diaries/{id}", s.handleDiaryGet)
	innerMux.HandleFunc("GET /api/diaries/{id}/image", s.handleDiaryImage)
	innerMux.HandleFunc("GET /api/diaries/{id}/bgm", s.handleDiaryBGM)
	innerMux.HandleFunc("DELETE /api/diaries/{id}", s.handleDiaryDelete)
	innerMux.HandleFunc("GET /api/stats/emotions", s.handleStatsEmotions)
	innerMux.HandleFunc("GET /api/stats/best-media", s.handleStatsBestMedia)
	innerMux.HandleFunc("GET /api/stats/all-tags", s.handleStatsAllTags)

	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /api/health", s.handleHealth)
	outerMux.HandleFunc("GET /api/config", s.handleConfig)
	outerMux.Handle("/api/", s.authMiddleware(innerMux))
	if deps.StaticDir != "" {
		outerMux.Handle("/", http.FileServer(http.Dir(deps.StaticDir)))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.recoverMiddleware(s.traceMiddleware(outerMux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // media generation holds the request open
	}
	return s
}

// Start binds the listener and serves in the background. It returns once
// the listener is bound; ctx cancellation shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", s.addr, err)
	}
	slog.Info("api server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("api server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.server.Shutdown(context.Background())
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

// Handler exposes the full middleware-wrapped handler for httptest use.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// --- middleware ---

type userKey struct{}

// userFrom returns the authenticated caller placed in ctx by the auth
// middleware. Handlers behind that middleware can rely on it being set.
func userFrom(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userKey{}).(*identity.User)
	return u
}

// authMiddleware resolves the bearer credential to a user and stores it in
// the request context. The profile row is pushed to the remote store
// best-effort so listings elsewhere can join on it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		user, err := s.deps.Verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		if user.Email != "" {
			if err := s.deps.Store.SyncUser(r.Context(), store.UserRecord{
				ID:          user.ID,
				Email:       user.Email,
				DisplayName: user.DisplayName,
				AvatarURL:   user.AvatarURL,
				LastLogin:   time.Now(),
			}); err != nil {
				slog.Warn("api: user sync failed", "user", user.ID, "err", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

// bearerToken extracts the credential: Authorization header first, then the
// ?token= query parameter (audio/img tags cannot set headers).
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return r.URL.Query().Get("token")
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := trace.WithTraceID(r.Context(), trace.GenerateID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverMiddleware converts any panic below into a generic 500. The full
// stack goes to the log, never to the client.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("api: panic in handler",
					"path", r.URL.Path,
					"trace_id", trace.FromContext(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// --- liveness & config ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"clerk_publishable_key": s.deps.PublishableKey,
	})
}
