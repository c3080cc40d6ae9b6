// Package api implements the zone-oriented HTTP/SSE surface: stateless
// handlers reading only from the aggregator (never direct adapter state)
// plus control POSTs routed to adapters through the narrow Commander
// interface (spec §6, §9's "handlers read from aggregator" rule).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/config"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// ZoneReader is the read-only aggregator surface handlers are allowed to
// depend on. It is satisfied by *aggregator.Aggregator; handlers never see
// the concrete aggregator type or any adapter directly.
type ZoneReader interface {
	ListZones() []models.Zone
	ListZonesBySource(models.Source) []models.Zone
	GetZone(zoneID string) (models.Zone, bool)
	ZonesDigest() string
}

// AdapterStatuser reports per-source connection health, satisfied directly
// by *coordinator.Coordinator — internal/adapter only defines the shared
// Status struct and Startable lifecycle, not a concrete backend, so
// importing it here doesn't cross the adapter-package boundary
// architecture_test.go enforces.
type AdapterStatuser interface {
	Statuses() map[string]adapter.Status
}

// EventBus is the subset of *bus.Bus the SSE handler needs.
type EventBus interface {
	Subscribe(id string) *bus.Subscription
	Unsubscribe(id string)
	SubscriberCount() int
}

// Commander is the narrow per-source command surface a handler dispatches
// control/volume requests through, without importing that source's adapter
// package directly (architecture_test.go's lint). nativeID is the backend's
// own identifier (a Roon zone id, a UPnP/OpenHome USN, an HQPlayer instance
// name); media-server ignores it since it addresses a single fixed player.
type Commander interface {
	Control(ctx context.Context, nativeID string, action models.ControlAction) error
	SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error
	SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error
}

// HqpPipelineInfo is the response body for GET /hqplayer/pipeline.
type HqpPipelineInfo struct {
	InstanceName       string `json:"instance_name"`
	Filter             int    `json:"filter"`
	Shaper             int    `json:"shaper"`
	MatrixProfileIndex *int   `json:"matrix_profile_index,omitempty"`
}

// HQPlayerSurface is the multi-instance routing surface for the
// /hqplayer/* and /hqp/* routes (spec §6), wrapping
// hqplayer.InstanceManager and hqplayer.ZoneLink without exposing them.
type HQPlayerSurface interface {
	Instances() []string
	AddInstance(ctx context.Context, name, addr string) error
	RemoveInstance(ctx context.Context, name string) error
	Pipeline(instance string) (HqpPipelineInfo, error)
	Profiles(ctx context.Context, instance string) ([]string, error)
	LoadProfile(ctx context.Context, instance, name string) error
	MatrixProfiles(ctx context.Context, instance string) ([]string, error)
	SetMatrixProfile(ctx context.Context, instance string, index int) error
	Link(zoneID, instance string) error
	Unlink(zoneID string) error
	Links() map[string]models.DSPLink
}

// NowPlayingImageFetcher fetches raw now-playing artwork bytes for a zone's
// originating source (spec §6's /now_playing/image), dispatching to
// whichever backend actually serves imagery (Roon's vendor image API,
// media-server's artwork_url) without the handler importing either package.
type NowPlayingImageFetcher interface {
	FetchImage(ctx context.Context, source models.Source, imageKey string, width, height int) (data []byte, contentType string, err error)
}

// Handlers holds every dependency the HTTP surface needs. Fields are
// unexported narrow interfaces or value types, never a concrete adapter —
// that boundary is what architecture_test.go enforces.
type Handlers struct {
	zones      ZoneReader
	adapters   AdapterStatuser
	bus        EventBus
	commanders map[models.Source]Commander
	hqp        HQPlayerSurface
	knobCfg    config.Store
	images     NowPlayingImageFetcher

	version   string
	gitSHA    string
	startedAt time.Time
}

// NewHandlers constructs the Handlers value NewRouter wires into routes.
func NewHandlers(
	zones ZoneReader,
	adapters AdapterStatuser,
	b EventBus,
	commanders map[models.Source]Commander,
	hqp HQPlayerSurface,
	knobCfg config.Store,
	images NowPlayingImageFetcher,
	version, gitSHA string,
) *Handlers {
	return &Handlers{
		zones:      zones,
		adapters:   adapters,
		bus:        b,
		commanders: commanders,
		hqp:        hqp,
		knobCfg:    knobCfg,
		images:     images,
		version:    version,
		gitSHA:     gitSHA,
		startedAt:  time.Now(),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response, matching the teacher's
// error-translation pattern (internal/models/errors.go + the old
// internal/api/helpers.go writeError).
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// decodeJSON reads and decodes a JSON request body, translating decode
// failures into a 400 AppError.
func decodeJSON(r *http.Request, v interface{}) *models.AppError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrBadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// findOutput locates outputID within zone.Outputs, or ok=false.
func findOutput(zone models.Zone, outputID string) (models.Output, bool) {
	for _, o := range zone.Outputs {
		if o.OutputID == outputID {
			return o, true
		}
	}
	return models.Output{}, false
}

// outputVolumeKind returns the VolumeKind controlling outputID, falling
// back to the zone-level volume's kind when the zone reports a single
// unnamed output (common for single-output backends).
func outputVolumeKind(zone models.Zone, outputID string) models.VolumeKind {
	if o, ok := findOutput(zone, outputID); ok && o.Volume != nil {
		return o.Volume.Kind()
	}
	if zone.Volume != nil {
		return zone.Volume.Kind()
	}
	return models.VolumeKindNumber
}
