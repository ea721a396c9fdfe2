// Package api provides the management HTTP API for the webhook gateway.
//
// Every route except project creation is authenticated with a project API
// key carried as a bearer token; handlers only ever see resources owned by
// the authenticated project.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/scope"
)

// Handler is the root HTTP handler for the management API.
type Handler struct {
	gw     *hookline.Gateway
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a management API handler over the gateway.
func NewHandler(gw *hookline.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		gw:     gw,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Projects. Creation is the unauthenticated bootstrap; everything else
	// operates on the project behind the API key.
	h.mux.HandleFunc("POST /projects", h.createProject)
	h.mux.HandleFunc("GET /project", h.authed(h.getProject))
	h.mux.HandleFunc("PUT /project", h.authed(h.updateProject))
	h.mux.HandleFunc("POST /project/rotate-key", h.authed(h.rotateAPIKey))

	// Endpoints
	h.mux.HandleFunc("POST /endpoints", h.authed(h.createEndpoint))
	h.mux.HandleFunc("GET /endpoints", h.authed(h.listEndpoints))
	h.mux.HandleFunc("GET /endpoints/{id}", h.authed(h.getEndpoint))
	h.mux.HandleFunc("PUT /endpoints/{id}", h.authed(h.updateEndpoint))
	h.mux.HandleFunc("DELETE /endpoints/{id}", h.authed(h.deleteEndpoint))
	h.mux.HandleFunc("PATCH /endpoints/{id}/enable", h.authed(h.enableEndpoint))
	h.mux.HandleFunc("PATCH /endpoints/{id}/disable", h.authed(h.disableEndpoint))
	h.mux.HandleFunc("POST /endpoints/{id}/rotate-secret", h.authed(h.rotateSecret))

	// Routing rules
	h.mux.HandleFunc("POST /endpoints/{id}/rules", h.authed(h.createRule))
	h.mux.HandleFunc("GET /endpoints/{id}/rules", h.authed(h.listRules))
	h.mux.HandleFunc("GET /rules/{id}", h.authed(h.getRule))
	h.mux.HandleFunc("PUT /rules/{id}", h.authed(h.updateRule))
	h.mux.HandleFunc("DELETE /rules/{id}", h.authed(h.deleteRule))
	h.mux.HandleFunc("PATCH /rules/{id}/enable", h.authed(h.enableRule))
	h.mux.HandleFunc("PATCH /rules/{id}/disable", h.authed(h.disableRule))

	// Transformations
	h.mux.HandleFunc("POST /endpoints/{id}/transformations", h.authed(h.createTransformation))
	h.mux.HandleFunc("GET /endpoints/{id}/transformations", h.authed(h.listTransformations))
	h.mux.HandleFunc("GET /transformations/{id}", h.authed(h.getTransformation))
	h.mux.HandleFunc("PUT /transformations/{id}", h.authed(h.updateTransformation))
	h.mux.HandleFunc("DELETE /transformations/{id}", h.authed(h.deleteTransformation))
	h.mux.HandleFunc("PATCH /transformations/{id}/enable", h.authed(h.enableTransformation))
	h.mux.HandleFunc("PATCH /transformations/{id}/disable", h.authed(h.disableTransformation))

	// Events, attempt history, replay
	h.mux.HandleFunc("GET /events", h.authed(h.listEvents))
	h.mux.HandleFunc("GET /events/{id}", h.authed(h.getEvent))
	h.mux.HandleFunc("GET /events/{id}/deliveries", h.authed(h.listEventDeliveries))
	h.mux.HandleFunc("GET /events/{id}/attempts", h.authed(h.listEventAttempts))
	h.mux.HandleFunc("POST /events/{id}/replay", h.authed(h.replayEvent))
	h.mux.HandleFunc("POST /events/{id}/replay-as-new", h.authed(h.replayEventAsNew))
	h.mux.HandleFunc("POST /events/replay", h.authed(h.bulkReplayEvents))

	// DLQ
	h.mux.HandleFunc("GET /dlq", h.authed(h.listDLQ))
	h.mux.HandleFunc("GET /dlq/{id}", h.authed(h.getDLQ))
	h.mux.HandleFunc("POST /dlq/{id}/replay", h.authed(h.replayDLQ))
	h.mux.HandleFunc("POST /dlq/replay", h.authed(h.replayBulkDLQ))
	h.mux.HandleFunc("DELETE /dlq", h.authed(h.purgeDLQ))

	// Stats
	h.mux.HandleFunc("GET /stats", h.authed(h.getStats))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.panicRecovery(h.logging(h.mux)).ServeHTTP(w, r)
}

// authed authenticates the project API key and stores the project in the
// request scope.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		p, err := h.gw.Projects().Authenticate(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next(w, r.WithContext(scope.WithProject(r.Context(), p)))
	}
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultVal
		}
		n = n*10 + int(c-'0')
	}
	return n
}
