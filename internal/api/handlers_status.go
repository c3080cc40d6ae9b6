package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// getStatus handles GET /status: overall daemon health (spec §6).
func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Status{
		Service:        "uhc",
		Version:        h.version,
		UptimeSecs:     int64(time.Since(h.startedAt).Seconds()),
		BusSubscribers: h.bus.SubscriberCount(),
	})
}

// sourceStatus handles GET /{source}/status: one backend's connection health.
func (h *Handlers) sourceStatus(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.Valid() {
		writeError(w, models.ErrNotFound("unknown source "+string(source)))
		return
	}
	statuses := h.adapters.Statuses()
	st, ok := statuses[string(source)]
	if !ok {
		st = adapter.Status{}
	}
	writeJSON(w, http.StatusOK, models.AdapterStatus{
		Source:    source,
		Connected: st.Connected,
		Host:      st.Host,
		Port:      st.Port,
		LastError: st.LastError,
	})
}
