package api

import (
	"errors"
	"net/http"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/scope"
)

type ruleRequest struct {
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Action       string                `json:"action"`
	Priority     int                   `json:"priority"`
	Conditions   []condition.Condition `json:"conditions,omitempty"`
	Destinations []routing.Destination `json:"destinations,omitempty"`
}

func (req ruleRequest) toInput(epID id.ID) routing.Input {
	return routing.Input{
		EndpointID:   epID,
		Name:         req.Name,
		Description:  req.Description,
		Action:       req.Action,
		Priority:     req.Priority,
		Conditions:   req.Conditions,
		Destinations: req.Destinations,
	}
}

// scopedRule loads a rule and hides it when its endpoint belongs to another
// project.
func (h *Handler) scopedRule(r *http.Request) (*routing.Rule, error) {
	ruleID, err := id.ParseRuleID(r.PathValue("id"))
	if err != nil {
		return nil, errBadID
	}
	rule, err := h.gw.Rules().Get(r.Context(), ruleID)
	if err != nil {
		return nil, err
	}
	ep, err := h.gw.Endpoints().Get(r.Context(), rule.EndpointID)
	if err != nil {
		return nil, err
	}
	if ep.ProjectID.String() != scope.Project(r.Context()).ID.String() {
		return nil, hookline.ErrRuleNotFound
	}
	return rule, nil
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.gw.Rules().Create(r.Context(), req.toInput(ep.ID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	ep, err := h.scopedEndpoint(r)
	if err != nil {
		h.writeEndpointError(w, err)
		return
	}

	rules, err := h.gw.Rules().List(r.Context(), ep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.scopedRule(r)
	if err != nil {
		h.writeRuleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.scopedRule(r)
	if err != nil {
		h.writeRuleError(w, err)
		return
	}

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.gw.Rules().Update(r.Context(), rule.ID, req.toInput(rule.EndpointID))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.scopedRule(r)
	if err != nil {
		h.writeRuleError(w, err)
		return
	}

	if err := h.gw.Rules().Delete(r.Context(), rule.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, true)
}

func (h *Handler) disableRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleEnabled(w, r, false)
}

func (h *Handler) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	rule, err := h.scopedRule(r)
	if err != nil {
		h.writeRuleError(w, err)
		return
	}

	if err := h.gw.Rules().SetEnabled(r.Context(), rule.ID, enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "invalid rule ID")
	case errors.Is(err, hookline.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
