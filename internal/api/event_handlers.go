package api

import (
	"net/http"

	"github.com/ignite/affiliate-ledger/internal/auth"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
)

// RecordView handles POST /api/events/views. A signed-in viewer is
// attached when the client did not name one.
func (h *Handlers) RecordView(w http.ResponseWriter, r *http.Request) {
	var v domain.ViewEvent
	if !httputil.Decode(w, r, &v) {
		return
	}
	if actor := auth.ActorFromContext(r.Context()); v.ViewerID == "" && !actor.Anonymous() {
		v.ViewerID = actor.ID
	}
	stored, err := h.recorder.RecordView(r.Context(), v)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, stored)
}

// RecordClick handles POST /api/events/clicks.
func (h *Handlers) RecordClick(w http.ResponseWriter, r *http.Request) {
	var c domain.ClickEvent
	if !httputil.Decode(w, r, &c) {
		return
	}
	if actor := auth.ActorFromContext(r.Context()); c.ViewerID == "" && !actor.Anonymous() {
		c.ViewerID = actor.ID
	}
	stored, err := h.recorder.RecordClick(r.Context(), c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, stored)
}

// RecordConversion handles POST /api/events/conversions. Attribution runs
// asynchronously; the response only confirms the event was recorded.
func (h *Handlers) RecordConversion(w http.ResponseWriter, r *http.Request) {
	var c domain.ConversionEvent
	if !httputil.Decode(w, r, &c) {
		return
	}
	stored, err := h.recorder.RecordConversion(r.Context(), c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	httputil.Created(w, stored)
}
