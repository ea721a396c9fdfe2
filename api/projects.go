package api

import (
	"net/http"

	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/scope"
)

type createProjectRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// createProjectResponse carries the freshly generated credentials. This is
// the only time the API key is returned in full.
type createProjectResponse struct {
	*project.Project
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.gw.Projects().Create(r.Context(), project.Input{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createProjectResponse{
		Project:       p,
		APIKey:        p.APIKey,
		WebhookSecret: p.WebhookSecret,
	})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scope.Project(r.Context()))
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.gw.Projects().Update(r.Context(), scope.Project(r.Context()).ID, project.Input{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) rotateAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.gw.Projects().RotateAPIKey(r.Context(), scope.Project(r.Context()).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}
