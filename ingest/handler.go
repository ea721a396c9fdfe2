// Package ingest provides the public HTTP surface that external webhook
// senders post to. It is deliberately thin: resolve the endpoint, hand the
// request to the gateway, and map gateway errors onto HTTP status codes.
package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/endpoint"
)

// maxBodyBytes bounds inbound request bodies (1 MiB).
const maxBodyBytes = 1 << 20

// Handler is the HTTP handler for webhook ingestion.
type Handler struct {
	gw     *hookline.Gateway
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates an ingestion handler over the gateway.
func NewHandler(gw *hookline.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		gw:     gw,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /webhook/{url_path}", h.receiveByPath)
	h.mux.HandleFunc("GET /webhook/{url_path}/info", h.infoByPath)
	h.mux.HandleFunc("POST /w/{short_url}", h.receiveByShort)
	h.mux.HandleFunc("GET /w/{short_url}/info", h.infoByShort)

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.panicRecovery(h.logging(h.mux)).ServeHTTP(w, r)
}

func (h *Handler) receiveByPath(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, func(req hookline.IngestRequest) (eventID string, err error) {
		evt, err := h.gw.IngestByURLPath(r.Context(), r.PathValue("url_path"), req)
		if err != nil {
			return "", err
		}
		return evt.ID.String(), nil
	})
}

func (h *Handler) receiveByShort(w http.ResponseWriter, r *http.Request) {
	h.receive(w, r, func(req hookline.IngestRequest) (eventID string, err error) {
		evt, err := h.gw.IngestByShortURL(r.Context(), r.PathValue("short_url"), req)
		if err != nil {
			return "", err
		}
		return evt.ID.String(), nil
	})
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request, ingest func(hookline.IngestRequest) (string, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	eventID, err := ingest(hookline.IngestRequest{
		Body:      body,
		Headers:   r.Header,
		SourceIP:  sourceIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"event_id": eventID,
		"status":   "received",
	})
}

// writeIngestError maps gateway sentinels onto the ingestion status contract:
// 404 unknown address, 410 inactive endpoint or project, 401 failed
// verification, 400 malformed body, 500 persistence failure.
func (h *Handler) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hookline.ErrEndpointNotFound):
		writeError(w, http.StatusNotFound, "unknown webhook address")
	case errors.Is(err, hookline.ErrEndpointDisabled), errors.Is(err, hookline.ErrProjectDisabled):
		writeError(w, http.StatusGone, "webhook address is inactive")
	case errors.Is(err, hookline.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, "verification failed")
	case errors.Is(err, hookline.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, "malformed payload")
	default:
		h.logger.ErrorContext(r.Context(), "ingestion failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) infoByPath(w http.ResponseWriter, r *http.Request) {
	ep, err := h.gw.Endpoints().ResolveURLPath(r.Context(), r.PathValue("url_path"))
	h.writeInfo(w, r, ep, err)
}

func (h *Handler) infoByShort(w http.ResponseWriter, r *http.Request) {
	ep, err := h.gw.Endpoints().ResolveShortURL(r.Context(), r.PathValue("short_url"))
	h.writeInfo(w, r, ep, err)
}

// infoResponse is the non-secret endpoint metadata exposed to senders.
// auth_secret must never appear here.
type infoResponse struct {
	Name            string   `json:"name"`
	ProjectName     string   `json:"project_name"`
	URLPath         string   `json:"url_path"`
	ShortURL        string   `json:"short_url"`
	AuthMethod      string   `json:"auth_method"`
	DestinationURLs []string `json:"destination_urls"`
	Enabled         bool     `json:"enabled"`
}

func (h *Handler) writeInfo(w http.ResponseWriter, r *http.Request, ep *endpoint.Endpoint, err error) {
	if err != nil {
		if errors.Is(err, hookline.ErrEndpointNotFound) {
			writeError(w, http.StatusNotFound, "unknown webhook address")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	proj, err := h.gw.Projects().Get(r.Context(), ep.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Name:            ep.Name,
		ProjectName:     proj.Name,
		URLPath:         ep.URLPath,
		ShortURL:        ep.ShortURL,
		AuthMethod:      string(ep.AuthMethod),
		DestinationURLs: ep.DestinationURLs,
		Enabled:         ep.Enabled,
	})
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.Info("ingest request",
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
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sourceIP extracts the sender address, honoring X-Forwarded-For when a
// proxy sits in front.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
