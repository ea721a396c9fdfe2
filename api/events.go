package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/scope"
)

// scopedEvent loads an event and hides it when it belongs to another project.
func (h *Handler) scopedEvent(r *http.Request) (*event.Event, error) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		return nil, errBadID
	}
	evt, err := h.gw.Event(r.Context(), evtID)
	if err != nil {
		return nil, err
	}
	if evt.ProjectID.String() != scope.Project(r.Context()).ID.String() {
		return nil, hookline.ErrEventNotFound
	}
	return evt, nil
}

func eventListOpts(r *http.Request) event.ListOpts {
	opts := event.ListOpts{
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
		Status:    event.Status(queryParam(r, "status")),
		EventType: queryParam(r, "event_type"),
	}
	if epID, err := id.ParseEndpointID(queryParam(r, "endpoint_id")); err == nil {
		opts.EndpointID = epID
	}
	if from, err := time.Parse(time.RFC3339, queryParam(r, "from")); err == nil {
		opts.From = &from
	}
	if to, err := time.Parse(time.RFC3339, queryParam(r, "to")); err == nil {
		opts.To = &to
	}
	return opts
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.gw.Events(r.Context(), scope.Project(r.Context()).ID, eventListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evt, err := h.scopedEvent(r)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evt)
}

func (h *Handler) listEventDeliveries(w http.ResponseWriter, r *http.Request) {
	evt, err := h.scopedEvent(r)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	deliveries, err := h.gw.Deliveries(r.Context(), evt.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}

func (h *Handler) listEventAttempts(w http.ResponseWriter, r *http.Request) {
	evt, err := h.scopedEvent(r)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	attempts, err := h.gw.Attempts(r.Context(), evt.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) replayEvent(w http.ResponseWriter, r *http.Request) {
	evt, err := h.scopedEvent(r)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	replayed, err := h.gw.Replay(r.Context(), evt.ID)
	if err != nil {
		h.writeReplayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, replayed)
}

func (h *Handler) replayEventAsNew(w http.ResponseWriter, r *http.Request) {
	evt, err := h.scopedEvent(r)
	if err != nil {
		h.writeEventError(w, err)
		return
	}

	fresh, err := h.gw.ReplayAsNew(r.Context(), evt.ID)
	if err != nil {
		h.writeReplayError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fresh)
}

func (h *Handler) bulkReplayEvents(w http.ResponseWriter, r *http.Request) {
	count, err := h.gw.BulkReplay(r.Context(), scope.Project(r.Context()).ID, eventListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"replayed": count})
}

func (h *Handler) writeEventError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "invalid event ID")
	case errors.Is(err, hookline.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeReplayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hookline.ErrEventInFlight):
		writeError(w, http.StatusConflict, "event is still processing")
	case errors.Is(err, hookline.ErrEndpointDisabled):
		writeError(w, http.StatusGone, "endpoint is disabled")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
