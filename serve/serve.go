// Package serve exposes the translation engine over HTTP and MCP. The HTTP
// surface is a stateless one-shot API: each request parses, translates and
// renders a document. Untrusted input can be sanitised before translation.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/engine"
)

// Service wires the engine configuration to transport handlers.
type Service struct {
	factory   capability.Factory
	cfg       engine.Config
	logger    *slog.Logger
	detect    func(string) string
	sanitizer *bluemonday.Policy
	timeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithDetect sets the language detector used for the detect endpoint and for
// requests without a source language.
func WithDetect(fn func(string) string) Option { return func(s *Service) { s.detect = fn } }

// WithTimeout bounds each translation request. Default: 2m.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// NewService creates a Service translating with factory under cfg.
func NewService(factory capability.Factory, cfg engine.Config, opts ...Option) *Service {
	s := &Service{
		factory:   factory,
		cfg:       cfg,
		logger:    slog.Default(),
		sanitizer: bluemonday.UGCPolicy(),
		timeout:   2 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router returns a chi router with the service mounted and the standard
// middleware stack applied.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the service endpoints on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/v1/translate", s.handleTranslate)
	r.Post("/v1/detect", s.handleDetect)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

type translateRequest struct {
	HTML   string `json:"html"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
	// Sanitize strips scripts and event handlers before translation. Meant
	// for documents from untrusted origins.
	Sanitize bool `json:"sanitize,omitempty"`
}

type translateResponse struct {
	HTML   string `json:"html"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
}

func (s *Service) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.HTML) == "" || req.Target == "" {
		httpError(w, http.StatusBadRequest, "html and target are required")
		return
	}

	src := req.HTML
	if req.Sanitize {
		src = s.sanitizer.Sanitize(src)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	out, err := engine.TranslateHTML(ctx, src, s.factory, s.cfg, req.Target, req.Source)
	if err != nil {
		s.logger.Error("serve: translate failed", "target", req.Target, "error", err)
		httpError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{HTML: out, Target: req.Target, Source: req.Source})
}

type detectRequest struct {
	Text string `json:"text"`
}

func (s *Service) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.detect == nil {
		httpError(w, http.StatusNotImplemented, "language detection not configured")
		return
	}
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	lang := s.detect(req.Text)
	writeJSON(w, http.StatusOK, map[string]string{"language": lang})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case capability.IsCancellation(err):
		return http.StatusRequestTimeout
	case errors.Is(err, capability.ErrUnavailable), errors.Is(err, capability.ErrUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
