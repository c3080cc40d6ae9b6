// Package hqplayer implements the line-oriented XML/TCP control protocol
// spoken by an HQPlayer Embedded/Desktop instance (spec §4.4). It follows
// the teacher's LMSStream (internal/streams/lms.go) in spirit — a
// long-lived connection with a background reader goroutine and a
// request/response surface for commands — but the wire format here is a
// synchronous one-command-in-flight XML line protocol rather than HTTP
// polling, so the connection owns a strict request/reply pump instead of a
// ticker.
package hqplayer

import (
	"encoding/xml"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// Outbound command elements, one XML line per command terminated by '\n'.
type cmdGetInfo struct {
	XMLName xml.Name `xml:"GetInfo"`
}

type cmdState struct {
	XMLName xml.Name `xml:"State"`
}

type cmdStatus struct {
	XMLName xml.Name `xml:"Status"`
}

type cmdVolumeRange struct {
	XMLName xml.Name `xml:"VolumeRange"`
}

type cmdPlay struct {
	XMLName xml.Name `xml:"Play"`
}

type cmdPause struct {
	XMLName xml.Name `xml:"Pause"`
}

type cmdStop struct {
	XMLName xml.Name `xml:"Stop"`
}

type cmdPrevious struct {
	XMLName xml.Name `xml:"Previous"`
}

type cmdNext struct {
	XMLName xml.Name `xml:"Next"`
}

type cmdVolume struct {
	XMLName xml.Name `xml:"Volume"`
	Value   int      `xml:"value,attr"`
}

type cmdVolumeUp struct {
	XMLName xml.Name `xml:"VolumeUp"`
	Step    int      `xml:"step,attr,omitempty"`
}

type cmdVolumeDown struct {
	XMLName xml.Name `xml:"VolumeDown"`
	Step    int      `xml:"step,attr,omitempty"`
}

type cmdVolumeMute struct {
	XMLName xml.Name `xml:"VolumeMute"`
	Value   int      `xml:"value,attr"`
}

type cmdMatrixListProfiles struct {
	XMLName xml.Name `xml:"MatrixListProfiles"`
}

type cmdMatrixSetProfile struct {
	XMLName xml.Name `xml:"MatrixSetProfile"`
	Index   int      `xml:"index,attr"`
}

// cmdProfiles/cmdLoadProfile are the filter/upsampling profile commands,
// distinct from the matrix (output-routing) profiles above.
type cmdProfiles struct {
	XMLName xml.Name `xml:"Profiles"`
}

type cmdLoadProfile struct {
	XMLName xml.Name `xml:"LoadProfile"`
	Name    string   `xml:"name,attr"`
}

// Inbound response elements.

type respGetInfo struct {
	XMLName  xml.Name `xml:"GetInfo"`
	Name     string   `xml:"name,attr"`
	Product  string   `xml:"product,attr"`
	Version  string   `xml:"version,attr"`
	Platform string   `xml:"platform,attr"`
	Engine   string   `xml:"engine,attr"`
}

// respState is the transport/engine snapshot (spec's HqpState event).
type respState struct {
	XMLName xml.Name `xml:"State"`
	State   int      `xml:"state,attr"`
	Mode    int      `xml:"mode,attr"`
	Filter  int      `xml:"filter,attr"`
	Shaper  int      `xml:"shaper,attr"`
	Rate    int      `xml:"rate,attr"`
	Volume  int      `xml:"volume,attr"`
}

// respStatus is the richer now-playing snapshot.
type respStatus struct {
	XMLName     xml.Name `xml:"Status"`
	State       int      `xml:"state,attr"`
	Track       string   `xml:"track,attr"`
	TrackID     string   `xml:"track_id,attr"`
	Position    int      `xml:"position,attr"`
	Length      int      `xml:"length,attr"`
	Volume      int      `xml:"volume,attr"`
	ActiveMode  string   `xml:"active_mode,attr"`
	ActiveFilter string  `xml:"active_filter,attr"`
	ActiveShaper string  `xml:"active_shaper,attr"`
	ActiveRate  int      `xml:"active_rate,attr"`
}

type respVolumeRange struct {
	XMLName  xml.Name `xml:"VolumeRange"`
	Min      int      `xml:"min,attr"`
	Max      int      `xml:"max,attr"`
	Step     int      `xml:"step,attr"`
	Enabled  int      `xml:"enabled,attr"`
	Adaptive int      `xml:"adaptive,attr"`
}

type matrixProfileItem struct {
	Index int    `xml:"index,attr"`
	Name  string `xml:"name,attr"`
}

type respMatrixListProfiles struct {
	XMLName  xml.Name            `xml:"MatrixListProfiles"`
	Profiles []matrixProfileItem `xml:"MatrixProfile"`
}

type profileItem struct {
	Name string `xml:"name,attr"`
}

type respProfiles struct {
	XMLName  xml.Name      `xml:"Profiles"`
	Profiles []profileItem `xml:"Profile"`
}

type respOk struct {
	XMLName xml.Name `xml:"Ok"`
}

type respError struct {
	XMLName xml.Name `xml:"Error"`
	Message string   `xml:"message,attr"`
}

// stateToPlayback maps HQPlayer's 0/1/2 state code onto the unified
// playback enum.
func stateToPlayback(s int) models.PlaybackState {
	switch s {
	case 1:
		return models.StatePaused
	case 2:
		return models.StatePlaying
	default:
		return models.StateStopped
	}
}
