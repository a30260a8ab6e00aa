// Package server exposes query analysis over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mickamy/xprobe/internal/analyzer"
	"github.com/mickamy/xprobe/internal/render/html"
	"github.com/mickamy/xprobe/internal/runner"
)

// AnalyzeRequest is the body accepted by POST /analyze.
type AnalyzeRequest struct {
	Query string `json:"query"`
}

// ErrorResponse is written for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves analyses against a single connection. Requests are serialized
// because the connection must not be shared by concurrent probes.
type Handler struct {
	conn    runner.Conn
	options analyzer.Options
	logger  *slog.Logger

	mu sync.Mutex
}

// NewHandler wires a handler to conn.
func NewHandler(conn runner.Conn, opts analyzer.Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{conn: conn, options: opts, logger: logger}
}

// RegisterRoutes mounts the handler endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Post("/analyze", h.Analyze)
}

// Router returns a chi router with request logging and panic recovery.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"dialect": h.conn.Dialect(),
	})
}

// Analyze runs one analysis. ?format=html renders the report instead of returning JSON.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	h.mu.Lock()
	report, err := analyzer.Analyze(r.Context(), h.conn, req.Query, h.options)
	h.mu.Unlock()
	if err != nil {
		h.logger.WarnContext(r.Context(), "analysis failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		switch {
		case errors.Is(err, analyzer.ErrQueryFailed):
			writeError(w, http.StatusUnprocessableEntity, err)
		case r.Context().Err() != nil:
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Render(w, report, html.Options{IncludeStyles: true}); err != nil {
			h.logger.ErrorContext(r.Context(), "render html", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (h *Handler) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server listening", "addr", addr, "dialect", h.conn.Dialect())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	h.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}
