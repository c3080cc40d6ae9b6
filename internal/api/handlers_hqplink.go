package api

import (
	"net/http"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// hqpListLinks handles GET /hqp/zones/link: every zone currently routed
// through a DSP-player instance.
func (h *Handlers) hqpListLinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Links map[string]models.DSPLink `json:"links"`
	}{Links: h.hqp.Links()})
}

type linkRequest struct {
	ZoneID   string `json:"zone_id"`
	Instance string `json:"instance"`
}

// hqpLinkZone handles POST /hqp/zones/link: {zone_id, instance}.
func (h *Handlers) hqpLinkZone(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	if req.ZoneID == "" || req.Instance == "" {
		writeError(w, models.ErrBadRequest("zone_id and instance are required"))
		return
	}
	if err := h.hqp.Link(req.ZoneID, req.Instance); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unlinkRequest struct {
	ZoneID string `json:"zone_id"`
}

// hqpUnlinkZone handles POST /hqp/zones/unlink: {zone_id}.
func (h *Handlers) hqpUnlinkZone(w http.ResponseWriter, r *http.Request) {
	var req unlinkRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	if req.ZoneID == "" {
		writeError(w, models.ErrBadRequest("zone_id is required"))
		return
	}
	if err := h.hqp.Unlink(req.ZoneID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
