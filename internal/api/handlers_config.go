package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// getConfig handles GET /config/{knob_id}: the knob's persisted blob plus
// config_sha (spec §6's digest-guard extension).
func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	knobID := chi.URLParam(r, "knobID")
	blob, ok, err := h.knobCfg.Get(knobID)
	if err != nil {
		writeError(w, models.ErrInternal(err.Error()))
		return
	}
	if !ok {
		writeError(w, models.ErrNotFound("no config for "+knobID))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Config-SHA", h.knobCfg.Digest())
	_, _ = w.Write(blob)
}

// putConfig handles PUT /config/{knob_id}: replaces the knob's blob
// wholesale, passed through to the external config store untouched.
func (h *Handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	knobID := chi.URLParam(r, "knobID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, models.ErrBadRequest("read body: "+err.Error()))
		return
	}
	if err := h.knobCfg.Set(knobID, body); err != nil {
		writeError(w, models.ErrInternal(err.Error()))
		return
	}
	w.Header().Set("X-Config-SHA", h.knobCfg.Digest())
	w.WriteHeader(http.StatusNoContent)
}
