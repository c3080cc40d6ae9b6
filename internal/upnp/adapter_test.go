package upnp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/upnp"
)

// fakeDeviceControl is an in-memory DeviceControl double, the upnp-package
// equivalent of roon.FakeClient.
type fakeDeviceControl struct {
	mu       sync.Mutex
	info     upnp.DeviceInfo
	state    string
	position upnp.PositionInfo
	volume   int
	hasVol   bool
}

func newFakeDeviceControl(name string) *fakeDeviceControl {
	return &fakeDeviceControl{
		info:   upnp.DeviceInfo{FriendlyName: name, UDN: "uuid:" + name},
		state:  "STOPPED",
		hasVol: true,
	}
}

func (f *fakeDeviceControl) FetchDescription(ctx context.Context) (upnp.DeviceInfo, error) {
	return f.info, nil
}

func (f *fakeDeviceControl) GetTransportInfo(ctx context.Context) (upnp.TransportInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return upnp.TransportInfo{State: f.state}, nil
}

func (f *fakeDeviceControl) GetPositionInfo(ctx context.Context) (upnp.PositionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeDeviceControl) GetVolume(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasVol {
		return 0, errNoRendering
	}
	return f.volume, nil
}

func (f *fakeDeviceControl) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = "PLAYING"
	return nil
}

func (f *fakeDeviceControl) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = "PAUSED_PLAYBACK"
	return nil
}

func (f *fakeDeviceControl) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = "STOPPED"
	return nil
}

func (f *fakeDeviceControl) SetVolume(ctx context.Context, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = value
	return nil
}

func (f *fakeDeviceControl) setPlaying(title, artist string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = "PLAYING"
	f.position = upnp.PositionInfo{Title: title, Artist: artist, DurationSec: 180, PositionSec: 5}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

var errNoRendering = fakeErr("upnp: device has no RenderingControl service")

var _ upnp.DeviceControl = (*fakeDeviceControl)(nil)

func waitForKind(t *testing.T, sub *bus.Subscription, kind bus.Kind, timeout time.Duration) bus.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-sub.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %s", kind)
		}
	}
}

func TestAdapterPublishesZoneOnDeviceFound(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	fake := newFakeDeviceControl("Living Room")
	a := upnp.NewForTest(b, func(ctx context.Context, location string) (upnp.DeviceControl, error) {
		return fake, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	a.InjectDiscoveryEvent(upnp.DiscoveryEvent{
		Kind:   upnp.DeviceFound,
		Device: upnp.DiscoveredDevice{USN: "uuid:living-room::urn:schemas-upnp-org:service:AVTransport:1", Location: "http://127.0.0.1:0/desc.xml"},
	})

	discovered := waitForKind(t, sub, bus.KindZoneDiscovered, 2*time.Second)
	if discovered.Zone.ZoneName != "Living Room" {
		t.Errorf("got zone name %q, want Living Room", discovered.Zone.ZoneName)
	}
}

func TestAdapterPollsPlaybackAndNowPlaying(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	fake := newFakeDeviceControl("Kitchen")
	fake.setPlaying("Song X", "Band Y")

	a := upnp.NewForTest(b, func(ctx context.Context, location string) (upnp.DeviceControl, error) {
		return fake, nil
	})
	a.SetPollIntervalForTest(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	a.InjectDiscoveryEvent(upnp.DiscoveryEvent{
		Kind:   upnp.DeviceFound,
		Device: upnp.DiscoveredDevice{USN: "uuid:kitchen", Location: "http://127.0.0.1:0/desc.xml"},
	})

	waitForKind(t, sub, bus.KindZoneDiscovered, 2*time.Second)
	playback := waitForKind(t, sub, bus.KindPlaybackChanged, 2*time.Second)
	if playback.Playback != "playing" {
		t.Errorf("got playback %q, want playing", playback.Playback)
	}
	np := waitForKind(t, sub, bus.KindNowPlayingChanged, 2*time.Second)
	if np.NowPlaying.Line1 != "Song X" {
		t.Errorf("got line1 %q, want Song X", np.NowPlaying.Line1)
	}
}

func TestAdapterRemovesZoneOnDeviceLost(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	fake := newFakeDeviceControl("Office")
	a := upnp.NewForTest(b, func(ctx context.Context, location string) (upnp.DeviceControl, error) {
		return fake, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	a.InjectDiscoveryEvent(upnp.DiscoveryEvent{
		Kind:   upnp.DeviceFound,
		Device: upnp.DiscoveredDevice{USN: "uuid:office", Location: "http://127.0.0.1:0/desc.xml"},
	})
	waitForKind(t, sub, bus.KindZoneDiscovered, 2*time.Second)

	a.InjectDiscoveryEvent(upnp.DiscoveryEvent{
		Kind:   upnp.DeviceLost,
		Device: upnp.DiscoveredDevice{USN: "uuid:office"},
	})
	removed := waitForKind(t, sub, bus.KindZoneRemoved, 2*time.Second)
	if removed.NativeID != "uuid:office" {
		t.Errorf("got native id %q, want uuid:office", removed.NativeID)
	}
}
