package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/scope"
)

type endpointRequest struct {
	Name            string            `json:"name"`
	Slug            string            `json:"slug,omitempty"`
	URLPath         string            `json:"url_path"`
	DestinationURLs []string          `json:"destination_urls"`
	AuthMethod      string            `json:"auth_method,omitempty"`
	AuthSecret      string            `json:"auth_secret,omitempty"`
	RetryConfig     json.RawMessage   `json:"retry_config,omitempty"`
	Headers         map[string]string `json:"headers_config,omitempty"`
	RequestTimeout  int               `json:"request_timeout,omitempty"`
	RateLimit       int               `json:"rate_limit,omitempty"`
}

func (req endpointRequest) toInput(projID id.ID) endpoint.Input {
	return endpoint.Input{
		ProjectID:       projID,
		Name:            req.Name,
		Slug:            req.Slug,
		URLPath:         req.URLPath,
		DestinationURLs: req.DestinationURLs,
		AuthMethod:      req.AuthMethod,
		AuthSecret:      req.AuthSecret,
		RetryConfig:     req.RetryConfig,
		Headers:         req.Headers,
		RequestTimeout:  req.RequestTimeout,
		RateLimit:       req.RateLimit,
	}
}

// errBadID marks an unparseable path ID, surfaced as a 400.
var errBadID = errors.New("api: invalid id")

// scopedEndpoint loads an endpoint and hides it when it belongs to another
// project.
func (h *Handler) scopedEndpoint(r *http.Request) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(r.PathValue("id"))
	if err != nil {
		return nil, errBadID
	}
	ep, err := h.gw.Endpoints().Get(r.Context(), epID)
	if err != nil {
		return nil, err
	}
	if ep.ProjectID.String() != scope.Project(r.Context()).ID.String() {
		return nil, hookline.ErrEndpointNotFound
	}
	return ep, nil
}

func (h *Handler) createEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ep, err := h.gw.Endpoints().Create(r.Context(), req.toInput(scope.Project(r.Context()).ID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	opts := endpoint.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	eps, err := h.gw.Endpoints().List(r.Context(), scope.Project(r.Context()).ID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, eps)
}

func (h *Handler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

func (h *Handler) updateEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	var req endpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.gw.Endpoints().Update(r.Context(), ep.ID, req.toInput(ep.ProjectID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	if err := h.gw.Endpoints().Delete(r.Context(), ep.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEndpointEnabled(w, r, true)
}

func (h *Handler) disableEndpoint(w http.ResponseWriter, r *http.Request) {
	h.setEndpointEnabled(w, r, false)
}

func (h *Handler) setEndpointEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	if err := h.gw.Endpoints().SetEnabled(r.Context(), ep.ID, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	secret, err := h.gw.Endpoints().RotateSecret(r.Context(), ep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (h *Handler) writeEndpointError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "invalid endpoint ID")
	case errors.Is(err, hookline.ErrEndpointNotFound):
		writeError(w, http.StatusNotFound, "endpoint not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
