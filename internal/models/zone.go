package models

// PlaybackState is the transport state of a zone.
type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateLoading PlaybackState = "loading"
)

// Capability names a control surface a zone supports.
type Capability string

const (
	CapPlay       Capability = "play"
	CapPause      Capability = "pause"
	CapPrevious   Capability = "previous"
	CapNext       Capability = "next"
	CapSeek       Capability = "seek"
	CapVolumeSet  Capability = "volume_set"
	CapVolumeStep Capability = "volume_step"
)

// Output is one amplified/rendered output belonging to a zone. Most zones
// have exactly one; Roon-style rooms can group several.
type Output struct {
	OutputID    string `json:"output_id"`
	DisplayName string `json:"display_name"`
	Volume      Volume `json:"volume,omitempty"`
}

// NowPlaying is the current track metadata for a zone.
type NowPlaying struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	Line3       *string `json:"line3,omitempty"`
	ImageKey    *string `json:"image_key,omitempty"`
	LengthSec   *int    `json:"length_sec,omitempty"`
	PositionSec *int    `json:"position_sec,omitempty"`
	IsPlaying   bool    `json:"is_playing"`
}

// DSPLink records that a zone is routed through a specific DSP-player
// instance and (optionally) a loaded matrix profile.
type DSPLink struct {
	InstanceName       string `json:"instance_name"`
	MatrixProfileIndex *int   `json:"matrix_profile_index,omitempty"`
}

// Zone is the unified playback endpoint exposed by the aggregator,
// regardless of which backend produced it.
type Zone struct {
	ZoneID       string        `json:"zone_id"`
	Source       Source        `json:"source"`
	NativeID     string        `json:"-"`
	ZoneName     string        `json:"zone_name"`
	State        PlaybackState `json:"state"`
	Outputs      []Output      `json:"outputs"`
	NowPlaying   *NowPlaying   `json:"now_playing,omitempty"`
	Volume       Volume        `json:"volume,omitempty"`
	Capabilities []Capability  `json:"capabilities"`
	DSPLink      *DSPLink      `json:"dsp_link,omitempty"`
}

// Clone returns a deep copy of z suitable for handing to a reader outside
// the aggregator's single-writer goroutine.
func (z Zone) Clone() Zone {
	next := z
	if z.Outputs != nil {
		next.Outputs = make([]Output, len(z.Outputs))
		copy(next.Outputs, z.Outputs)
	}
	if z.NowPlaying != nil {
		np := *z.NowPlaying
		next.NowPlaying = &np
	}
	if z.Capabilities != nil {
		next.Capabilities = make([]Capability, len(z.Capabilities))
		copy(next.Capabilities, z.Capabilities)
	}
	if z.DSPLink != nil {
		dl := *z.DSPLink
		next.DSPLink = &dl
	}
	return next
}

// HasCapability reports whether the zone advertises the given capability.
func (z Zone) HasCapability(c Capability) bool {
	for _, cap := range z.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// ZonePartial carries the non-null fields of a ZoneUpdated event; nil fields
// mean "leave unchanged" when merged into an existing Zone (spec §4.7).
type ZonePartial struct {
	ZoneName     *string
	State        *PlaybackState
	Outputs      []Output
	Capabilities []Capability
	DSPLink      *DSPLink
}

// Merge applies the non-nil fields of p onto z, returning the updated zone.
func (p ZonePartial) Merge(z Zone) Zone {
	if p.ZoneName != nil {
		z.ZoneName = *p.ZoneName
	}
	if p.State != nil {
		z.State = *p.State
	}
	if p.Outputs != nil {
		z.Outputs = p.Outputs
	}
	if p.Capabilities != nil {
		z.Capabilities = p.Capabilities
	}
	if p.DSPLink != nil {
		z.DSPLink = p.DSPLink
	}
	return z
}
