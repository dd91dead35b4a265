// Package server exposes a small read-mostly HTTP surface for operators:
// health, Prometheus metrics and venture inspection.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/pkg/api"
)

// Config wires the router to the orchestrator.
type Config struct {
	Orchestrator api.Orchestrator
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	Logger  zerolog.Logger
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRouter builds the ops router.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h := &handlers{orch: cfg.Orchestrator}
	r.Route("/ventures", func(r chi.Router) {
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Get("/history", h.history)
			r.Post("/reset", h.reset)
		})
	})
	return r
}

type handlers struct {
	orch api.Orchestrator
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	var opts api.VentureListOptions
	if s := r.URL.Query().Get("state"); s != "" {
		state, err := api.ParseState(s)
		if err != nil {
			writeError(w, err)
			return
		}
		opts.State = state
	}
	ventures, err := h.orch.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if ventures == nil {
		ventures = []*api.Venture{}
	}
	writeJSON(w, http.StatusOK, ventures)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.orch.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	events, err := h.orch.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []api.VentureEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	v, err := h.orch.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, api.ErrVentureNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, api.ErrInvalidState):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, api.ErrVentureBusy), errors.Is(err, api.ErrNotFailed), errors.Is(err, api.ErrLeaseLost):
		status, code = http.StatusConflict, "conflict"
	}
	writeJSON(w, status, apiErrorBody{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
