// Package roon adapts a Roon Core's zone/output model onto the unified bus.
// The real Roon Extension SDK is a vendored C-library-backed client outside
// this exercise's scope (spec.md §1 names Roon's own client libraries as an
// external collaborator), so this package is built against a narrow
// RoomClient interface — the same boundary-interface idiom the teacher uses
// for its hardware.Driver (internal/hardware/driver.go), letting production
// code depend on the real SDK binding while tests depend on a fake.
package roon

import (
	"context"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// RoomClient is the narrow surface this adapter needs from a Roon Core
// connection. A production binding wraps the vendor SDK; fake_client.go
// provides a deterministic fake for tests.
type RoomClient interface {
	Connect(ctx context.Context) error
	Close() error

	// Zones returns the full current zone snapshot, used once at connect
	// time to seed the aggregator without waiting for the first event.
	Zones(ctx context.Context) ([]RoomZone, error)

	// Events streams incremental zone changes. The channel is closed when
	// the underlying connection is lost; the adapter treats that as a
	// disconnect and triggers reconnect.
	Events() <-chan RoomEvent

	SetVolumeAbsolute(ctx context.Context, outputID string, value float32) error
	SetVolumeRelative(ctx context.Context, outputID string, step float32) error
	SetMute(ctx context.Context, outputID string, mute bool) error
	Control(ctx context.Context, zoneID string, action models.ControlAction) error

	// FetchImage fetches the raw artwork bytes for a now-playing image_key
	// via Roon's own image API (a vendor-SDK concern, hence part of this
	// boundary interface rather than a separate HTTP client in this
	// package). Returns the raw bytes and their content type.
	FetchImage(ctx context.Context, imageKey string, width, height int) (data []byte, contentType string, err error)
}

// RoomOutput mirrors one Roon output's volume control surface. VolumeType
// follows Roon's own vocabulary ("db", "number", "incremental", "fixed");
// the adapter maps it onto the corresponding models.Volume concrete type
// rather than guessing a range for incremental/fixed outputs.
type RoomOutput struct {
	OutputID   string
	Name       string
	VolumeType string
	Value      float32
	Min        float32
	Max        float32
	Step       float32
	Muted      bool
}

// RoomZone mirrors one Roon zone.
type RoomZone struct {
	ZoneID    string
	Name      string
	State     string // "playing", "paused", "stopped", "loading"
	Outputs   []RoomOutput
	Line1     string
	Line2     string
	Line3     string
	ImageKey  string
	LengthSec int
	SeekSec   int
}

// RoomEventKind discriminates RoomEvent.
type RoomEventKind string

const (
	RoomEventZoneSeeded  RoomEventKind = "zone_seeded"
	RoomEventZoneChanged RoomEventKind = "zone_changed"
	RoomEventZoneRemoved RoomEventKind = "zone_removed"
)

// RoomEvent is one incremental Roon zone change.
type RoomEvent struct {
	Kind RoomEventKind
	Zone RoomZone
}
