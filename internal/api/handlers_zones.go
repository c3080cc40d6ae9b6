package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// listZones handles GET /zones: every zone across every backend, with the
// zones_sha digest clients use to skip a re-render when nothing changed
// (spec §4.7).
func (h *Handlers) listZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Zones     []models.Zone `json:"zones"`
		ZonesSHA  string        `json:"zones_sha"`
	}{
		Zones:    h.zones.ListZones(),
		ZonesSHA: h.zones.ZonesDigest(),
	})
}

// sourceZones handles GET /{source}/zones: zones from one backend only.
func (h *Handlers) sourceZones(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.Valid() {
		writeError(w, models.ErrNotFound("unknown source "+string(source)))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Zones []models.Zone `json:"zones"`
	}{Zones: h.zones.ListZonesBySource(source)})
}

// sourceZone handles GET /{source}/zone/{zoneID}: one zone by its
// backend-native id.
func (h *Handlers) sourceZone(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.Valid() {
		writeError(w, models.ErrNotFound("unknown source "+string(source)))
		return
	}
	nativeID := chi.URLParam(r, "zoneID")
	zone, ok := h.zones.GetZone(models.ZoneID(source, nativeID))
	if !ok {
		writeError(w, models.ErrNotFound("no zone "+nativeID+" for "+string(source)))
		return
	}
	writeJSON(w, http.StatusOK, zone)
}
