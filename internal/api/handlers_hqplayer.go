package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openhorizonlabs/uhc/internal/models"
)

type instanceRequest struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// hqpListInstances handles GET /hqplayer/instances.
func (h *Handlers) hqpListInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Instances []string `json:"instances"`
	}{Instances: h.hqp.Instances()})
}

// hqpAddInstance handles POST /hqplayer/instances: {name, addr}.
func (h *Handlers) hqpAddInstance(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	if req.Name == "" || req.Addr == "" {
		writeError(w, models.ErrBadRequest("name and addr are required"))
		return
	}
	if err := h.hqp.AddInstance(r.Context(), req.Name, req.Addr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// hqpRemoveInstance handles DELETE /hqplayer/instances/{name}.
func (h *Handlers) hqpRemoveInstance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.hqp.RemoveInstance(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) instanceParam(r *http.Request) string {
	if q := r.URL.Query().Get("instance"); q != "" {
		return q
	}
	return ""
}

// hqpPipeline handles GET /hqplayer/pipeline?instance=….
func (h *Handlers) hqpPipeline(w http.ResponseWriter, r *http.Request) {
	instance := h.instanceParam(r)
	if instance == "" {
		writeError(w, models.ErrBadRequest("instance is required"))
		return
	}
	info, err := h.hqp.Pipeline(instance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// hqpListProfiles handles GET /hqplayer/profiles?instance=….
func (h *Handlers) hqpListProfiles(w http.ResponseWriter, r *http.Request) {
	instance := h.instanceParam(r)
	if instance == "" {
		writeError(w, models.ErrBadRequest("instance is required"))
		return
	}
	names, err := h.hqp.Profiles(r.Context(), instance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Profiles []string `json:"profiles"`
	}{Profiles: names})
}

type loadProfileRequest struct {
	Instance string `json:"instance"`
	Name     string `json:"name"`
}

// hqpLoadProfile handles POST /hqplayer/profiles/load: {instance, name}.
func (h *Handlers) hqpLoadProfile(w http.ResponseWriter, r *http.Request) {
	var req loadProfileRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	if req.Instance == "" || req.Name == "" {
		writeError(w, models.ErrBadRequest("instance and name are required"))
		return
	}
	if err := h.hqp.LoadProfile(r.Context(), req.Instance, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// hqpListMatrixProfiles handles GET /hqplayer/matrix/profiles?instance=….
func (h *Handlers) hqpListMatrixProfiles(w http.ResponseWriter, r *http.Request) {
	instance := h.instanceParam(r)
	if instance == "" {
		writeError(w, models.ErrBadRequest("instance is required"))
		return
	}
	names, err := h.hqp.MatrixProfiles(r.Context(), instance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Profiles []string `json:"profiles"`
	}{Profiles: names})
}

type setMatrixProfileRequest struct {
	Instance string `json:"instance"`
	Index    int    `json:"index"`
}

// hqpSetMatrixProfile handles POST /hqplayer/matrix/profiles: {instance, index}.
func (h *Handlers) hqpSetMatrixProfile(w http.ResponseWriter, r *http.Request) {
	var req setMatrixProfileRequest
	if aerr := decodeJSON(r, &req); aerr != nil {
		writeError(w, aerr)
		return
	}
	if req.Instance == "" {
		writeError(w, models.ErrBadRequest("instance is required"))
		return
	}
	if err := h.hqp.SetMatrixProfile(r.Context(), req.Instance, req.Index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
