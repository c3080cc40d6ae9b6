package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the zone-oriented HTTP/SSE surface (spec §6). All routes
// are anonymous; this system has no auth layer (an explicit non-goal).
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	r.Get("/status", h.getStatus)
	r.Get("/events", h.events)

	r.Get("/zones", h.listZones)
	r.Get("/now_playing", h.nowPlaying)
	r.Get("/now_playing/image", h.nowPlayingImage)
	r.Post("/control", h.unifiedControl)

	r.Route("/{source}", func(r chi.Router) {
		r.Get("/status", h.sourceStatus)
		r.Get("/zones", h.sourceZones)
		r.Get("/zone/{zoneID}", h.sourceZone)
		r.Post("/control", h.sourceControl)
		r.Post("/volume", h.sourceVolume)
	})

	r.Route("/hqplayer", func(r chi.Router) {
		r.Get("/instances", h.hqpListInstances)
		r.Post("/instances", h.hqpAddInstance)
		r.Delete("/instances/{name}", h.hqpRemoveInstance)
		r.Get("/pipeline", h.hqpPipeline)
		r.Get("/profiles", h.hqpListProfiles)
		r.Post("/profiles/load", h.hqpLoadProfile)
		r.Get("/matrix/profiles", h.hqpListMatrixProfiles)
		r.Post("/matrix/profiles", h.hqpSetMatrixProfile)
	})

	r.Route("/hqp/zones", func(r chi.Router) {
		r.Get("/link", h.hqpListLinks)
		r.Post("/link", h.hqpLinkZone)
		r.Post("/unlink", h.hqpUnlinkZone)
	})

	r.Route("/config", func(r chi.Router) {
		r.Get("/{knobID}", h.getConfig)
		r.Put("/{knobID}", h.putConfig)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access,
// matching the teacher's router (every client here is on the local LAN).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
