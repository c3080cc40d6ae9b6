package upnp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// defaultPollInterval is how often a known device's transport/position/volume
// is re-fetched, the same adaptive-polling shape as the media-server adapter
// but with a single fixed cadence since generic UPnP renderers have no
// cheap push mechanism this adapter subscribes to (GENA eventing is a
// possible future enhancement, not wired here).
const defaultPollInterval = 2 * time.Second

// NewControlFunc builds a DeviceControl for a discovered device's
// description location, letting tests substitute a fake.
type NewControlFunc func(ctx context.Context, location string) (DeviceControl, error)

// Adapter discovers generic UPnP AV renderers via SSDP and polls each one's
// AVTransport/RenderingControl state onto the bus.
type Adapter struct {
	b          *bus.Bus
	discoverer *Discoverer
	newControl NewControlFunc
	events     <-chan DiscoveryEvent
	inject     chan DiscoveryEvent // non-nil only when constructed via NewForTest
	pollInterval time.Duration

	mu       sync.Mutex
	status   adapter.Status
	devices  map[string]context.CancelFunc // usn -> per-device poll loop cancel
	controls map[string]DeviceControl      // usn -> live control surface, for command dispatch

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(b *bus.Bus, newControl NewControlFunc) *Adapter {
	if newControl == nil {
		newControl = NewSOAPDeviceControl
	}
	d := NewDiscoverer()
	return &Adapter{
		b:            b,
		discoverer:   d,
		newControl:   newControl,
		events:       d.Events(),
		pollInterval: defaultPollInterval,
		devices:      make(map[string]context.CancelFunc),
		controls:     make(map[string]DeviceControl),
	}
}

// NewForTest builds an Adapter that skips real SSDP discovery in favor of an
// injectable event stream, for unit tests that can't bind real UDP sockets.
func NewForTest(b *bus.Bus, newControl NewControlFunc) *Adapter {
	inject := make(chan DiscoveryEvent, 16)
	return &Adapter{
		b:            b,
		newControl:   newControl,
		events:       inject,
		inject:       inject,
		pollInterval: defaultPollInterval,
		devices:      make(map[string]context.CancelFunc),
		controls:     make(map[string]DeviceControl),
	}
}

// InjectDiscoveryEvent feeds ev to an Adapter built with NewForTest.
func (a *Adapter) InjectDiscoveryEvent(ev DiscoveryEvent) {
	a.inject <- ev
}

// SetPollIntervalForTest overrides the per-device poll cadence.
func (a *Adapter) SetPollIntervalForTest(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pollInterval = d
}

func (a *Adapter) Source() models.Source { return models.SourceUPnP }

func (a *Adapter) Configure(adapter.ConnectionParams) error { return nil }

func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.status = adapter.Status{Connected: true}
	a.mu.Unlock()

	if a.discoverer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.discoverer.Run(runCtx)
		}()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.consume(runCtx)
	}()
	a.b.Publish(bus.Event{Kind: bus.KindConnected, Source: models.SourceUPnP})
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	for _, c := range a.devices {
		c()
	}
	a.devices = make(map[string]context.CancelFunc)
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceUPnP})
	return nil
}

func (a *Adapter) Status() adapter.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Adapter) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case DeviceFound:
				a.onDeviceFound(ctx, ev.Device)
			case DeviceLost:
				a.onDeviceLost(ev.Device)
			}
		}
	}
}

func (a *Adapter) onDeviceFound(ctx context.Context, dev DiscoveredDevice) {
	a.mu.Lock()
	if _, exists := a.devices[dev.USN]; exists {
		a.mu.Unlock()
		return
	}
	devCtx, cancel := context.WithCancel(ctx)
	a.devices[dev.USN] = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runDevice(devCtx, dev)
	}()
}

func (a *Adapter) onDeviceLost(dev DiscoveredDevice) {
	a.mu.Lock()
	cancel, ok := a.devices[dev.USN]
	if ok {
		delete(a.devices, dev.USN)
	}
	delete(a.controls, dev.USN)
	a.mu.Unlock()
	if ok {
		cancel()
	}
	a.b.Publish(bus.Event{Kind: bus.KindZoneRemoved, Source: models.SourceUPnP, NativeID: dev.USN})
}

func (a *Adapter) runDevice(ctx context.Context, dev DiscoveredDevice) {
	control, err := a.newControl(ctx, dev.Location)
	if err != nil {
		slog.Warn("upnp: failed to fetch device description, skipping", "usn", dev.USN, "error", err)
		return
	}
	info, _ := control.FetchDescription(ctx)

	a.mu.Lock()
	a.controls[dev.USN] = control
	a.mu.Unlock()

	zone := models.Zone{
		ZoneName: info.FriendlyName,
		State:    models.StateStopped,
		Capabilities: []models.Capability{
			models.CapPlay, models.CapPause,
		},
	}
	if _, err := control.GetVolume(ctx); err == nil {
		zone.Capabilities = append(zone.Capabilities, models.CapVolumeSet)
		zone.Volume = models.NewNumberVolume(0, 1, false)
	}
	a.b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceUPnP, NativeID: dev.USN, Zone: &zone})

	a.mu.Lock()
	interval := a.pollInterval
	a.mu.Unlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollDevice(ctx, dev.USN, control)
		}
	}
}

func (a *Adapter) pollDevice(ctx context.Context, usn string, control DeviceControl) {
	ti, err := control.GetTransportInfo(ctx)
	if err != nil {
		slog.Debug("upnp: transport info poll failed", "usn", usn, "error", err)
		return
	}
	playback := transportStateToPlayback(ti.State)
	a.b.Publish(bus.Event{Kind: bus.KindPlaybackChanged, Source: models.SourceUPnP, NativeID: usn, Playback: playback})

	pos, err := control.GetPositionInfo(ctx)
	if err == nil {
		np := &models.NowPlaying{Line1: pos.Title, Line2: pos.Artist, IsPlaying: playback == models.StatePlaying}
		if pos.DurationSec > 0 {
			d := pos.DurationSec
			np.LengthSec = &d
			p := pos.PositionSec
			np.PositionSec = &p
		}
		a.b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceUPnP, NativeID: usn, NowPlaying: np})
	}

	if vol, err := control.GetVolume(ctx); err == nil {
		a.b.Publish(bus.Event{
			Kind: bus.KindVolumeChanged, Source: models.SourceUPnP, NativeID: usn,
			Volume: models.NewNumberVolume(float32(vol), 1, false),
		})
	}
}

func transportStateToPlayback(state string) models.PlaybackState {
	switch state {
	case "PLAYING":
		return models.StatePlaying
	case "PAUSED_PLAYBACK":
		return models.StatePaused
	case "TRANSITIONING":
		return models.StateLoading
	default:
		return models.StateStopped
	}
}

func (a *Adapter) control(usn string) (DeviceControl, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.controls[usn]
	if !ok {
		return nil, models.ErrBackendUnavailable
	}
	return c, nil
}

// Control dispatches a transport command to the named device (spec §6
// POST /{source}/control). Plain AVTransport in this adapter's narrow
// DeviceControl surface has no previous/next actions, so those are refused
// as bad input.
func (a *Adapter) Control(ctx context.Context, usn string, action models.ControlAction) error {
	c, err := a.control(usn)
	if err != nil {
		return err
	}
	switch action {
	case models.ActionPlay, models.ActionPlayPause:
		return c.Play(ctx)
	case models.ActionPause:
		return c.Pause(ctx)
	case models.ActionStop:
		return c.Stop(ctx)
	default:
		return models.ErrBadRequest(fmt.Sprintf("upnp: unsupported action %q", action))
	}
}

// SetVolumeAbsolute sends a RenderingControl SetVolume. UPnP's plain
// RenderingControl doesn't expose a queryable min/max beyond 0-100, so the
// value is clamped into that fixed range rather than refused (the output's
// Volume is always constructed as models.NumberVolume with min=0, max=100).
func (a *Adapter) SetVolumeAbsolute(ctx context.Context, usn string, value float32) error {
	c, err := a.control(usn)
	if err != nil {
		return err
	}
	clamped := models.ClampF32(value, 0, 100)
	return c.SetVolume(ctx, int(clamped))
}

var _ adapter.Startable = (*Adapter)(nil)
