package bus

import (
	"time"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// Kind discriminates the Event tagged union (spec §3).
type Kind string

const (
	KindConnected    Kind = "connected"
	KindDisconnected Kind = "disconnected"

	KindZoneDiscovered Kind = "zone_discovered"
	KindZoneRemoved    Kind = "zone_removed"

	KindZoneUpdated        Kind = "zone_updated"
	KindNowPlayingChanged  Kind = "now_playing_changed"
	KindVolumeChanged      Kind = "volume_changed"
	KindPlaybackChanged    Kind = "playback_state_changed"

	KindHqpStateChanged    Kind = "hqp_state_changed"
	KindHqpPipelineChanged Kind = "hqp_pipeline_changed"
)

// Event is the tagged union carrying every state change in the system.
// Every event carries Source and, except for connection events, NativeID —
// the aggregator derives ZoneID from those two fields itself rather than
// trusting a precomputed one, so adapters cannot accidentally forge
// cross-source collisions.
type Event struct {
	Kind     Kind
	Source   models.Source
	NativeID string
	At       time.Time

	Zone       *models.Zone        // KindZoneDiscovered: full initial zone
	Partial    *models.ZonePartial // KindZoneUpdated: non-null fields to merge
	NowPlaying *models.NowPlaying  // KindNowPlayingChanged
	Volume     models.Volume       // KindVolumeChanged (zone-level if OutputID == "")
	OutputID   string              // KindVolumeChanged: which output, if per-output
	Playback   models.PlaybackState

	HqpState    *HqpState
	HqpPipeline *HqpPipeline
}

// HqpState is the DSP-player transport/engine state reported by HqpStateChanged.
type HqpState struct {
	InstanceName string
	State        models.PlaybackState
	Mode         int
	Rate         int
}

// HqpPipeline is the DSP-player conversion/modulation pipeline reported by
// HqpPipelineChanged.
type HqpPipeline struct {
	InstanceName       string
	Filter             int
	Shaper             int
	MatrixProfileIndex *int
}

// ZoneID computes the event's unified zone identifier.
func (e Event) ZoneID() string {
	return models.ZoneID(e.Source, e.NativeID)
}
