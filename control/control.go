// Package control is the local operator surface: a small HTTP API and the
// matching MCP tools for inspecting status, changing settings and driving
// a compose-box translation from outside the page.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatglot/chatglot/compose"
	"github.com/chatglot/chatglot/reading"
	"github.com/chatglot/chatglot/settings"
	"github.com/chatglot/chatglot/shield"
	"github.com/chatglot/chatglot/translate"
)

// Service exposes the running session over HTTP and MCP.
type Service struct {
	Settings *settings.Store
	Orch     *reading.Orchestrator
	Engine   translate.Engine
	Injector *compose.Injector
	Logger   *slog.Logger

	startedAt time.Time
}

// New creates a Service.
func New(store *settings.Store, orch *reading.Orchestrator, engine translate.Engine, inj *compose.Injector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Settings:  store,
		Orch:      orch,
		Engine:    engine,
		Injector:  inj,
		Logger:    logger,
		startedAt: time.Now(),
	}
}

// Router builds the HTTP surface.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Post("/compose", s.handleCompose)
	})
	return r
}

// StatusReply is the /v1/status shape.
type StatusReply struct {
	Uptime     string `json:"uptime"`
	Known      int    `json:"known_regions"`
	Translated int    `json:"translated_regions"`
}

func (s *Service) status(context.Context) StatusReply {
	known, translated := s.Orch.Stats()
	return StatusReply{
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Known:      known,
		Translated: translated,
	}
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Service) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Service) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.Settings.Put(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.Logger.Info("control: settings updated",
		"reading_mode", cfg.ReadingMode,
		"reading_target", cfg.ReadingTargetLang,
		"writing_enabled", cfg.WritingEnabled)
	writeJSON(w, http.StatusOK, cfg)
}

// ComposeRequest asks for text to be translated and injected into the
// compose box.
type ComposeRequest struct {
	Text string `json:"text"`
}

// ComposeReply reports what was injected.
type ComposeReply struct {
	Injected   bool   `json:"injected"`
	Text       string `json:"text,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

func (s *Service) composeText(ctx context.Context, text string) (*ComposeReply, error) {
	if text == "" {
		return nil, fmt.Errorf("control: empty text")
	}
	cfg, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.Engine.Translate(ctx, translate.Request{
		Text:          text,
		TargetLang:    cfg.WritingTargetLang,
		CheckIfNeeded: true,
	})
	if err != nil {
		return nil, err
	}

	out := text
	if res.Skipped {
		s.Logger.Debug("control: compose translation skipped", "reason", res.SkipReason)
	} else {
		out = res.Text
	}
	if err := s.Injector.Inject(ctx, out); err != nil {
		return nil, err
	}
	return &ComposeReply{Injected: true, Text: out, SkipReason: res.SkipReason}, nil
}

func (s *Service) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("control: empty text"))
		return
	}
	reply, err := s.composeText(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
