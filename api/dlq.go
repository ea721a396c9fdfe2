package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/scope"
)

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
		ProjectID: scope.Project(r.Context()).ID,
	}
	if epID, err := id.ParseEndpointID(queryParam(r, "endpoint_id")); err == nil {
		opts.EndpointID = &epID
	}
	if from, err := time.Parse(time.RFC3339, queryParam(r, "from")); err == nil {
		opts.From = &from
	}
	if to, err := time.Parse(time.RFC3339, queryParam(r, "to")); err == nil {
		opts.To = &to
	}

	entries, err := h.gw.DLQ().List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// scopedDLQ loads a DLQ entry and hides it when it belongs to another project.
func (h *Handler) scopedDLQ(r *http.Request) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		return nil, errBadID
	}
	entry, err := h.gw.DLQ().Get(r.Context(), dlqID)
	if err != nil {
		return nil, err
	}
	if entry.ProjectID.String() != scope.Project(r.Context()).ID.String() {
		return nil, hookline.ErrDLQNotFound
	}
	return entry, nil
}

func (h *Handler) getDLQ(w http.ResponseWriter, r *http.Request) {
	entry, err := h.scopedDLQ(r)
	if err != nil {
		h.writeDLQError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) replayDLQ(w http.ResponseWriter, r *http.Request) {
	entry, err := h.scopedDLQ(r)
	if err != nil {
		h.writeDLQError(w, err)
		return
	}

	if err := h.gw.DLQ().Replay(r.Context(), entry.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type dlqWindowRequest struct {
	From string `json:"from"` // RFC3339
	To   string `json:"to"`   // RFC3339
}

func (h *Handler) replayBulkDLQ(w http.ResponseWriter, r *http.Request) {
	var req dlqWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
		return
	}

	count, err := h.gw.DLQ().ReplayBulk(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"replayed": count})
}

func (h *Handler) purgeDLQ(w http.ResponseWriter, r *http.Request) {
	before := time.Now().UTC()
	if v := queryParam(r, "before"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'before' time format (use RFC3339)")
			return
		}
		before = parsed
	}

	count, err := h.gw.DLQ().Purge(r.Context(), before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": count})
}

func (h *Handler) writeDLQError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
	case errors.Is(err, hookline.ErrDLQNotFound):
		writeError(w, http.StatusNotFound, "DLQ entry not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
