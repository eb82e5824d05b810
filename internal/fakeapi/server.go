package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/feedstore/internal/social"
)

// SessionCookie carries the login token.
const SessionCookie = "feed_session"

// Server serves the feed endpoints over Storage.
type Server struct {
	storage  *Storage
	sessions Sessions
	logger   *slog.Logger
	latency  time.Duration
	now      func() time.Time
	newID    func() string
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	handler  http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLatency delays every API response by d, to make loading states visible.
func WithLatency(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithClock sets the source of post timestamps.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDs sets the generator for new post ids.
func WithIDs(gen func() string) ServerOption {
	return func(s *Server) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithRegistry exposes extra collectors on /metrics. The server registers
// its own request counter there too.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// NewServer builds the HTTP handler tree.
func NewServer(storage *Storage, sessions Sessions, opts ...ServerOption) (*Server, error) {
	s := &Server{
		storage:  storage,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fakeapi",
		Name:      "requests_total",
		Help:      "API requests by route pattern and status code.",
	}, []string{"route", "code"})
	if err := s.registry.Register(s.requests); err != nil {
		return nil, fmt.Errorf("register fakeapi metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fakeApi/posts", s.handleListPosts)
	mux.HandleFunc("POST /fakeApi/posts", s.handleCreatePost)
	mux.HandleFunc("POST /fakeApi/posts/{id}", s.handleEditPost)
	mux.HandleFunc("GET /fakeApi/users", s.handleListUsers)
	mux.HandleFunc("POST /fakeApi/login", s.handleLogin)
	mux.HandleFunc("POST /fakeApi/logout", s.handleLogout)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.handler = s.withMiddleware(mux)
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// ready, if non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	s.logger.Info("fake api listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 && r.URL.Path != "/metrics" {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.storage.ListPosts(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req social.NewPost
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := s.storage.HasUser(r.Context(), req.AuthorID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown user %q", req.AuthorID))
		return
	}

	post := social.Post{
		ID:        s.newID(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  req.AuthorID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.storage.InsertPost(r.Context(), post); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	var req social.PostUpdate
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = r.PathValue("id")
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	post, err := s.storage.UpdatePost(r.Context(), req)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("post %q not found", req.ID))
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.storage.ListUsers(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req social.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	ok, err := s.storage.HasUser(r.Context(), req.Username)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("unknown user %q", req.Username))
		return
	}

	token, err := s.sessions.Create(r.Context(), req.Username)
	if err != nil {
		s.internalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := s.sessions.Revoke(r.Context(), cookie.Value); err != nil {
			s.internalError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("missing JSON body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
