// Package server exposes the HTTP surface: the AI generation pipeline,
// project confirmation, and the health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/projectory/projectory-server/internal/ai"
	"github.com/projectory/projectory-server/internal/monitor"
	"github.com/projectory/projectory-server/internal/projectstore"
)

type Options struct {
	Logger *slog.Logger
	Addr   string

	AI       *ai.Service
	Projects *projectstore.Store
	Monitor  *monitor.Service
}

type Server struct {
	log  *slog.Logger
	addr string

	ai       *ai.Service
	projects *projectstore.Store
	monitor  *monitor.Service

	ln  net.Listener
	srv *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.AI == nil {
		return nil, errors.New("missing AI service")
	}
	if opts.Projects == nil {
		return nil, errors.New("missing project store")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		addr = ":8080"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return &Server{
		log:      logger,
		addr:     addr,
		ai:       opts.AI,
		projects: opts.Projects,
		monitor:  opts.Monitor,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/ai", func(r chi.Router) {
		r.Post("/project/generate", s.handleGenerate)
		r.Post("/project/generate-async", s.handleGenerateAsync)
		r.Get("/project/generate-status/{jobID}", s.handleGetJob)

		r.Get("/artifacts", s.handleListArtifacts)
		r.Get("/artifacts/latest", s.handleLatestArtifact)
		r.Get("/artifacts/{artifactID}", s.handleGetArtifact)
		r.Get("/artifacts/{artifactID}/revisions", s.handleListRevisions)
		r.Post("/artifacts/{artifactID}/revise", s.handleRevise)
		r.Post("/artifacts/{artifactID}/approve", s.handleApprove)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/confirm", s.handleConfirmProject)
		r.Get("/", s.handleListProjects)
		r.Get("/{projectID}", s.handleGetProject)
	})

	r.Get("/healthz", s.handleHealthz)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "error", err)
		}
	}()

	s.log.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.srv = nil
	s.ln = nil
	return nil
}

// Addr returns the bound listen address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message},
	})
}

// decodeBody rejects unknown fields so typos surface as 400s instead of
// silently dropped options.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
