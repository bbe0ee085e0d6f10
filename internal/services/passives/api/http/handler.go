// Package http serves the passives JSON API.
//
// Every error body carries a machine-readable code and a human message
// localized from the Accept-Language header. Gameplay refusals map to
// 422 so clients can distinguish them from malformed requests.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/keystone"
	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
	errori18n "github.com/louisbranch/hollowspire.game/internal/platform/errors/i18n"
	"github.com/louisbranch/hollowspire.game/internal/platform/i18n/catalog"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/grant"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/observability"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/sessions"
)

// Config wires the API surface. Graph and Sessions are required.
type Config struct {
	Graph       *graph.Graph
	Keystones   *keystone.Registry
	Sessions    *sessions.Manager
	ResetGrants grant.Config
	Metrics     *observability.Metrics
	Log         *slog.Logger
}

// Handler routes passives API requests.
type Handler struct {
	graph       *graph.Graph
	keystones   *keystone.Registry
	sessions    *sessions.Manager
	resetGrants grant.Config
	metrics     *observability.Metrics
	log         *slog.Logger
}

// NewHandler builds the chi router for the passives service.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Graph == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "api handler requires a graph")
	}
	if cfg.Sessions == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "api handler requires a session manager")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		graph:       cfg.Graph,
		keystones:   cfg.Keystones,
		sessions:    cfg.Sessions,
		resetGrants: cfg.ResetGrants,
		metrics:     cfg.Metrics,
		log:         log,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.writeError(w, req, apperrors.New(apperrors.CodeNotFound, "no such route"))
	})

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/graph", h.handleGraphSummary)
		r.Get("/graph/nodes", h.handleGraphNodes)
		r.Get("/graph/nodes/{nodeID}", h.handleGraphNode)
		r.Get("/keystones", h.handleKeystones)

		r.Route("/characters/{characterID}", func(r chi.Router) {
			r.Get("/tree", h.handleTree)
			r.Post("/tree/allocations", h.handleAllocate)
			r.Delete("/tree/allocations/{nodeID}", h.handleRefund)
			r.Post("/tree:reset", h.handleReset)
			r.Put("/context", h.handleCharacterContext)
			r.Post("/stats:calculate", h.handleCalculateStats)
			r.Get("/tree/events", h.handleEvents)
			r.Get("/tree/watch", h.handleWatch)
		})
	})

	return r, nil
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("response encode failed", "error", err)
	}
}

// writeError renders the coded body for err. The message comes from the
// error catalog matched against Accept-Language; unknown codes fall back
// to the code itself so the body is never empty.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	locale := catalog.Default().Match(r.Header.Get("Accept-Language"))
	message := errori18n.GetCatalog(locale).Format(string(code), apperrors.MetadataOf(err))
	h.writeJSON(w, status, errorBody{Code: string(code), Message: message})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}
