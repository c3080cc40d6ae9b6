package roon

import (
	"context"
	"sync"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// FakeClient is a thread-safe in-memory RoomClient for testing and
// development, matching the teacher's hardware.Mock
// (internal/hardware/mock.go) convention of shipping a real, exported fake
// rather than a mocking-framework double.
type FakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	zones      []RoomZone
	events     chan RoomEvent

	volumeCalls []float32
}

// NewFakeClientForTest creates a FakeClient with no zones and no connect
// error. Configure it with SetZones/SetConnectError before handing it to an
// Adapter via a NewClientFunc closure.
func NewFakeClientForTest() *FakeClient {
	return &FakeClient{events: make(chan RoomEvent, 16)}
}

func (f *FakeClient) SetZones(zones []RoomZone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones = zones
}

func (f *FakeClient) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// PushEvent delivers an incremental zone change, as if received from Roon.
func (f *FakeClient) PushEvent(ev RoomEvent) {
	f.events <- ev
}

func (f *FakeClient) VolumeCalls() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float32, len(f.volumeCalls))
	copy(out, f.volumeCalls)
	return out
}

func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeClient) Zones(ctx context.Context) ([]RoomZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.zones, nil
}

func (f *FakeClient) Events() <-chan RoomEvent { return f.events }

func (f *FakeClient) SetVolumeAbsolute(ctx context.Context, outputID string, value float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeCalls = append(f.volumeCalls, value)
	return nil
}

func (f *FakeClient) SetVolumeRelative(ctx context.Context, outputID string, step float32) error {
	return nil
}

func (f *FakeClient) SetMute(ctx context.Context, outputID string, mute bool) error { return nil }

func (f *FakeClient) Control(ctx context.Context, zoneID string, action models.ControlAction) error {
	return nil
}

func (f *FakeClient) FetchImage(ctx context.Context, imageKey string, width, height int) ([]byte, string, error) {
	return nil, "", models.ErrNotFound("no image for key " + imageKey)
}

var _ RoomClient = (*FakeClient)(nil)
