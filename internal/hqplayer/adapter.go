package hqplayer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// pollInterval is how often a connected instance is polled for
// State/Status (every 2s, faster than the teacher's 5s LMS metadata ticker
// in internal/streams/lms.go), since HQPlayer's protocol has no
// push/subscribe mechanism of its own.
const pollInterval = 2 * time.Second

// NewClientFunc allows tests to substitute a client talking to a mock
// server instead of a real HQPlayer instance.
type NewClientFunc func(addr string) *Client

// Adapter manages one named HQPlayer instance: connection lifecycle,
// polling, and command dispatch. Instances is responsible for owning one
// Adapter per configured HQPlayer host (spec §4.4's multi-instance
// requirement); a bare Adapter is usable standalone for the common
// single-instance case.
type Adapter struct {
	instanceName string
	addr         string
	newClient    NewClientFunc
	b            *bus.Bus

	mu          sync.Mutex
	client      *Client
	status      adapter.Status
	volRange    respVolumeRange
	haveRange   bool
	matrixIdx   *int
	lastFilter  int
	lastShaper  int
	havePipeline bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Adapter for one HQPlayer instance.
func New(b *bus.Bus, instanceName, addr string, newClient NewClientFunc) *Adapter {
	if newClient == nil {
		newClient = NewClient
	}
	return &Adapter{instanceName: instanceName, addr: addr, newClient: newClient, b: b}
}

func (a *Adapter) Source() models.Source { return models.SourceHQPlayer }

func (a *Adapter) Configure(params adapter.ConnectionParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addr = addrFromParams(params, a.addr)
	return nil
}

func addrFromParams(p adapter.ConnectionParams, fallback string) string {
	if p.Host == "" {
		return fallback
	}
	port := p.Port
	if port == 0 {
		port = 4321
	}
	return p.Host + ":" + strconv.Itoa(port)
}

func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	addr := a.addr
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run(runCtx, addr)
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
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
	a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceHQPlayer, NativeID: a.instanceName})
	return nil
}

func (a *Adapter) Status() adapter.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Adapter) run(ctx context.Context, addr string) {
	defer a.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		client := a.newClient(addr)
		if err := client.Connect(ctx); err != nil {
			a.setStatus(adapter.Status{Connected: false, Host: addr, LastError: err.Error()})
			wait := b.NextBackOff()
			slog.Warn("hqplayer: connect failed, backing off", "instance", a.instanceName, "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		a.setClient(client)
		a.setStatus(adapter.Status{Connected: true, Host: addr})
		a.b.Publish(bus.Event{Kind: bus.KindConnected, Source: models.SourceHQPlayer, NativeID: a.instanceName})

		if vr, err := client.VolumeRange(ctx); err == nil {
			a.mu.Lock()
			a.volRange = vr
			a.haveRange = true
			a.mu.Unlock()
		}

		zone := models.Zone{
			ZoneName: a.instanceName,
			State:    models.StateStopped,
			Capabilities: []models.Capability{
				models.CapPlay, models.CapPause, models.CapPrevious, models.CapNext,
				models.CapVolumeSet, models.CapVolumeStep,
			},
		}
		a.b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceHQPlayer, NativeID: a.instanceName, Zone: &zone})

		a.pollUntilDisconnected(ctx, client)

		client.Close()
		a.setClient(nil)
		a.setStatus(adapter.Status{Connected: false, Host: addr})
		a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceHQPlayer, NativeID: a.instanceName})

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.NextBackOff()):
		}
	}
}

func (a *Adapter) pollUntilDisconnected(ctx context.Context, client *Client) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.pollOnce(ctx, client) {
				return
			}
		}
	}
}

// pollOnce fetches State and Status and republishes their deltas. It
// returns false if the connection appears to be gone, signaling the caller
// to fall back to reconnect.
func (a *Adapter) pollOnce(ctx context.Context, client *Client) bool {
	state, err := client.State(ctx)
	if err != nil {
		slog.Warn("hqplayer: state poll failed", "instance", a.instanceName, "error", err)
		return false
	}
	a.b.Publish(bus.Event{
		Kind: bus.KindHqpStateChanged, Source: models.SourceHQPlayer, NativeID: a.instanceName,
		HqpState: &bus.HqpState{InstanceName: a.instanceName, State: stateToPlayback(state.State), Mode: state.Mode, Rate: state.Rate},
	})
	a.b.Publish(bus.Event{
		Kind: bus.KindPlaybackChanged, Source: models.SourceHQPlayer, NativeID: a.instanceName,
		Playback: stateToPlayback(state.State),
	})

	a.mu.Lock()
	matrixIdx := a.matrixIdx
	haveRange := a.haveRange
	volRange := a.volRange
	a.lastFilter = state.Filter
	a.lastShaper = state.Shaper
	a.havePipeline = true
	a.mu.Unlock()

	a.b.Publish(bus.Event{
		Kind: bus.KindHqpPipelineChanged, Source: models.SourceHQPlayer, NativeID: a.instanceName,
		HqpPipeline: &bus.HqpPipeline{InstanceName: a.instanceName, Filter: state.Filter, Shaper: state.Shaper, MatrixProfileIndex: matrixIdx},
	})

	if haveRange {
		vol := models.DbVolume{Value: float32(state.Volume), Min: float32(volRange.Min), Max: float32(volRange.Max), Step: float32(volRange.Step)}
		a.b.Publish(bus.Event{Kind: bus.KindVolumeChanged, Source: models.SourceHQPlayer, NativeID: a.instanceName, Volume: vol})
	}

	status, err := client.Status(ctx)
	if err != nil {
		slog.Warn("hqplayer: status poll failed", "instance", a.instanceName, "error", err)
		return false
	}
	np := &models.NowPlaying{Line1: status.Track, IsPlaying: stateToPlayback(status.State) == models.StatePlaying}
	if status.Length > 0 {
		length := status.Length
		np.LengthSec = &length
		pos := status.Position
		np.PositionSec = &pos
	}
	a.b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceHQPlayer, NativeID: a.instanceName, NowPlaying: np})
	return true
}

func (a *Adapter) setClient(c *Client) {
	a.mu.Lock()
	a.client = c
	a.mu.Unlock()
}

func (a *Adapter) setStatus(s adapter.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Adapter) currentClient() (*Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil, models.ErrBackendUnavailable
	}
	return a.client, nil
}

func (a *Adapter) Play(ctx context.Context) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.Play(ctx)
}

func (a *Adapter) Pause(ctx context.Context) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.Pause(ctx)
}

func (a *Adapter) StopPlayback(ctx context.Context) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.Stop(ctx)
}

// VolumeRange returns the last-known volume range reported by VolumeRange,
// and whether one has been observed yet.
func (a *Adapter) VolumeRange() (min, max int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volRange.Min, a.volRange.Max, a.haveRange
}

// Pipeline returns the last-polled filter/shaper/matrix-profile state for
// GET /hqplayer/pipeline, and whether a poll has completed yet.
func (a *Adapter) Pipeline() (filter, shaper int, matrixIdx *int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastFilter, a.lastShaper, a.matrixIdx, a.havePipeline
}

// SetVolumeAbsoluteDb sets an absolute dB volume. Per spec §8 scenario S3,
// an out-of-range value against a known range is refused as bad input
// rather than clamped — unlike Roon's SetVolumeAbsolute, which clamps.
func (a *Adapter) SetVolumeAbsoluteDb(ctx context.Context, valueDb int) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	if min, max, ok := a.VolumeRange(); ok {
		if valueDb < min || valueDb > max {
			return models.ErrBadRequest(fmt.Sprintf("volume %d outside range [%d,%d]", valueDb, min, max))
		}
	}
	return c.SetVolume(ctx, valueDb)
}

func (a *Adapter) VolumeStep(ctx context.Context, stepDb int) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.VolumeStep(ctx, stepDb)
}

func (a *Adapter) SetMute(ctx context.Context, mute bool) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.SetMute(ctx, mute)
}

// ListProfiles returns the names of HQPlayer's filter/upsampling profiles
// (spec §4.4's list_profiles), distinct from the matrix profiles below.
func (a *Adapter) ListProfiles(ctx context.Context) ([]string, error) {
	c, err := a.currentClient()
	if err != nil {
		return nil, err
	}
	resp, err := c.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(resp.Profiles))
	for i, p := range resp.Profiles {
		names[i] = p.Name
	}
	return names, nil
}

// LoadProfile loads a named filter/upsampling profile (spec §4.4's
// load_profile).
func (a *Adapter) LoadProfile(ctx context.Context, name string) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.LoadProfile(ctx, name)
}

func (a *Adapter) ListMatrixProfiles(ctx context.Context) ([]string, error) {
	c, err := a.currentClient()
	if err != nil {
		return nil, err
	}
	profiles, err := c.MatrixListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(profiles.Profiles))
	for i, p := range profiles.Profiles {
		names[i] = p.Name
	}
	return names, nil
}

// SetMatrixProfile loads a matrix profile by index and records it so the
// next pipeline poll reports it without waiting on HQPlayer to echo it back
// (the protocol's MatrixSetProfile reply is a bare <Ok/>, not the profile).
func (a *Adapter) SetMatrixProfile(ctx context.Context, index int) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	if err := c.SetMatrixProfile(ctx, index); err != nil {
		return err
	}
	a.mu.Lock()
	idx := index
	a.matrixIdx = &idx
	a.mu.Unlock()
	return nil
}
