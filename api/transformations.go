package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/scope"
	"github.com/hookline/hookline/transform"
)

type transformationRequest struct {
	Name       string                `json:"name"`
	Type       string                `json:"type"`
	Rules      json.RawMessage       `json:"transformation_rules"`
	Conditions []condition.Condition `json:"conditions,omitempty"`
	Priority   int                   `json:"priority"`
}

func (req transformationRequest) toInput(epID id.ID) transform.Input {
	return transform.Input{
		EndpointID: epID,
		Name:       req.Name,
		Type:       req.Type,
		Rules:      req.Rules,
		Conditions: req.Conditions,
		Priority:   req.Priority,
	}
}

// scopedTransformation loads a transformation and hides it when its endpoint
// belongs to another project.
func (h *Handler) scopedTransformation(r *http.Request) (*transform.Transformation, error) {
	tfID, err := id.ParseTransformationID(r.PathValue("id"))
	if err != nil {
		return nil, errBadID
	}
	tf, err := h.gw.Transformations().Get(r.Context(), tfID)
	if err != nil {
		return nil, err
	}
	ep, err := h.gw.Endpoints().Get(r.Context(), tf.EndpointID)
	if err != nil {
		return nil, err
	}
	if ep.ProjectID.String() != scope.Project(r.Context()).ID.String() {
		return nil, hookline.ErrTransformationNotFound
	}
	return tf, nil
}

func (h *Handler) createTransformation(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	var req transformationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tf, err := h.gw.Transformations().Create(r.Context(), req.toInput(ep.ID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, tf)
}

func (h *Handler) listTransformations(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	tfs, err := h.gw.Transformations().List(r.Context(), ep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tfs)
}

func (h *Handler) getTransformation(w http.ResponseWriter, r *http.Request) {
	tf, err := h.scopedTransformation(r)
	if err != nil {
		h.writeTransformationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tf)
}

func (h *Handler) updateTransformation(w http.ResponseWriter, r *http.Request) {
	tf, err := h.scopedTransformation(r)
	if err != nil {
		h.writeTransformationError(w, err)
		return
	}

	var req transformationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.gw.Transformations().Update(r.Context(), tf.ID, req.toInput(tf.EndpointID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTransformation(w http.ResponseWriter, r *http.Request) {
	tf, err := h.scopedTransformation(r)
	if err != nil {
		h.writeTransformationError(w, err)
		return
	}

	if err := h.gw.Transformations().Delete(r.Context(), tf.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableTransformation(w http.ResponseWriter, r *http.Request) {
	h.setTransformationEnabled(w, r, true)
}

func (h *Handler) disableTransformation(w http.ResponseWriter, r *http.Request) {
	h.setTransformationEnabled(w, r, false)
}

func (h *Handler) setTransformationEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	tf, err := h.scopedTransformation(r)
	if err != nil {
		h.writeTransformationError(w, err)
		return
	}

	if err := h.gw.Transformations().SetEnabled(r.Context(), tf.ID, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeTransformationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "invalid transformation ID")
	case errors.Is(err, hookline.ErrTransformationNotFound):
		writeError(w, http.StatusNotFound, "transformation not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
