package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// nativeIDFromRequest accepts either a bare backend-native id or a fully
// qualified unified zone_id ("source:native") in a ControlRequest/volume
// body, stripping the prefix when it matches source. Per-source routes are
// protocol-specific debug endpoints (spec §6's open question), so both
// forms are accepted rather than guessing one canonical shape.
func nativeIDFromRequest(source models.Source, zoneID string) string {
	if src, native, ok := models.ParseZoneID(zoneID); ok && src == source {
		return native
	}
	return zoneID
}

func (h *Handlers) commanderFor(source models.Source) (Commander, *models.AppError) {
	c, ok := h.commanders[source]
	if !ok {
		return nil, models.ErrNotFound("unknown source " + string(source))
	}
	return c, nil
}

// sourceControl handles POST /{source}/control: {zone_id, action}.
func (h *Handlers) sourceControl(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.Valid() {
		writeError(w, models.ErrNotFound("unknown source "+string(source)))
		return
	}
	var req models.ControlRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	cmd, aerr := h.commanderFor(source)
	if aerr != nil {
		writeError(w, aerr)
		return
	}
	nativeID := nativeIDFromRequest(source, req.ZoneID)
	if err := cmd.Control(r.Context(), nativeID, req.Action); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// unifiedControl handles POST /control: the knob/watch client's single
// control surface, routing by zone_id prefix (spec §6).
func (h *Handlers) unifiedControl(w http.ResponseWriter, r *http.Request) {
	var req models.ControlRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	source, nativeID, ok := models.ParseZoneID(req.ZoneID)
	if !ok {
		writeError(w, models.ErrBadRequest("zone_id must be of the form \"source:native_id\""))
		return
	}
	cmd, aerr := h.commanderFor(source)
	if aerr != nil {
		writeError(w, aerr)
		return
	}
	if err := cmd.Control(r.Context(), nativeID, req.Action); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findVolumeKind searches a source's zones for outputID, either as an
// output within a zone's Outputs or as the zone's own native id (the
// common shape for single-output backends where output_id == zone id),
// returning the VolumeKind governing it so the safety refusal/clamp
// decision (spec §7) is made with the right semantics.
func findVolumeKind(zones []models.Zone, outputID string) models.VolumeKind {
	for _, z := range zones {
		if o, ok := findOutput(z, outputID); ok {
			return outputVolumeKind(z, o.OutputID)
		}
	}
	for _, z := range zones {
		if z.NativeID == outputID || z.ZoneID == outputID {
			if z.Volume != nil {
				return z.Volume.Kind()
			}
		}
	}
	return models.VolumeKindNumber
}

// sourceVolume handles POST /{source}/volume: {output_id, value, relative?}.
func (h *Handlers) sourceVolume(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "source"))
	if !source.Valid() {
		writeError(w, models.ErrNotFound("unknown source "+string(source)))
		return
	}
	var req models.VolumeRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	cmd, aerr := h.commanderFor(source)
	if aerr != nil {
		writeError(w, aerr)
		return
	}
	kind := findVolumeKind(h.zones.ListZonesBySource(source), req.OutputID)
	var err error
	if req.Relative {
		err = cmd.SetVolumeRelative(r.Context(), req.OutputID, req.OutputID, req.Value, kind)
	} else {
		err = cmd.SetVolumeAbsolute(r.Context(), req.OutputID, req.OutputID, req.Value, kind)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
