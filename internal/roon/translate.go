package roon

import "github.com/openhorizonlabs/uhc/internal/models"

func translateVolume(o RoomOutput) models.Volume {
	switch o.VolumeType {
	case "db":
		return models.DbVolume{Value: o.Value, Min: o.Min, Max: o.Max, Step: o.Step, Mute: o.Muted}
	case "number":
		return models.NumberVolume{Value: o.Value, Min: o.Min, Max: o.Max, Step: o.Step, Mute: o.Muted}
	case "incremental":
		return models.IncrementalVolume{}
	default:
		return models.FixedVolume{}
	}
}

func translateOutputs(outs []RoomOutput) []models.Output {
	out := make([]models.Output, 0, len(outs))
	for _, o := range outs {
		out = append(out, models.Output{
			OutputID:    o.OutputID,
			DisplayName: o.Name,
			Volume:      translateVolume(o),
		})
	}
	return out
}

func translateState(s string) models.PlaybackState {
	switch s {
	case "playing":
		return models.StatePlaying
	case "paused":
		return models.StatePaused
	case "loading":
		return models.StateLoading
	default:
		return models.StateStopped
	}
}

func translateZone(z RoomZone) models.Zone {
	caps := []models.Capability{
		models.CapPlay, models.CapPause, models.CapPrevious, models.CapNext, models.CapSeek,
	}
	if hasSettableVolume(z.Outputs) {
		caps = append(caps, models.CapVolumeSet)
	}
	caps = append(caps, models.CapVolumeStep)

	zone := models.Zone{
		ZoneName:     z.Name,
		State:        translateState(z.State),
		Outputs:      translateOutputs(z.Outputs),
		Capabilities: caps,
	}
	if z.Line1 != "" || z.Line2 != "" {
		np := &models.NowPlaying{
			Line1:     z.Line1,
			Line2:     z.Line2,
			IsPlaying: zone.State == models.StatePlaying,
		}
		if z.Line3 != "" {
			line3 := z.Line3
			np.Line3 = &line3
		}
		if z.ImageKey != "" {
			ik := z.ImageKey
			np.ImageKey = &ik
		}
		if z.LengthSec > 0 {
			l := z.LengthSec
			np.LengthSec = &l
		}
		if z.SeekSec > 0 || z.LengthSec > 0 {
			p := z.SeekSec
			np.PositionSec = &p
		}
		zone.NowPlaying = np
	}
	if len(z.Outputs) == 1 {
		zone.Volume = zone.Outputs[0].Volume
	}
	return zone
}

// nowPlayingChanged reports whether the track metadata, seek position or
// play state (which drives IsPlaying) in prev and next differ, so the
// adapter only publishes NowPlayingChanged when one of those changed rather
// than on every zone-changed event.
func nowPlayingChanged(prev, next RoomZone) bool {
	return prev.Line1 != next.Line1 ||
		prev.Line2 != next.Line2 ||
		prev.Line3 != next.Line3 ||
		prev.ImageKey != next.ImageKey ||
		prev.LengthSec != next.LengthSec ||
		prev.SeekSec != next.SeekSec ||
		prev.State != next.State
}

func hasSettableVolume(outs []RoomOutput) bool {
	for _, o := range outs {
		if o.VolumeType == "db" || o.VolumeType == "number" {
			return true
		}
	}
	return false
}
