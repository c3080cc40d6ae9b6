package mediaserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// Adaptive polling cadence per spec §4.5: fast while something is actually
// playing (so now-playing position feels live), slow while idle (so an
// idle renderer doesn't get hammered with HTTP requests).
const (
	pollIntervalPlaying = 250 * time.Millisecond
	pollIntervalIdle    = 2 * time.Second
)

// NewClientFunc builds a Client for a player, letting tests point at a
// local mock HTTP server.
type NewClientFunc func(baseURL, playerID string) *Client

// Adapter bridges one media-server player onto the event bus.
type Adapter struct {
	baseURL   string
	playerID  string
	newClient NewClientFunc
	b         *bus.Bus

	mu     sync.Mutex
	client *Client
	status adapter.Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(b *bus.Bus, baseURL, playerID string, newClient NewClientFunc) *Adapter {
	if newClient == nil {
		newClient = NewClient
	}
	return &Adapter{baseURL: baseURL, playerID: playerID, newClient: newClient, b: b}
}

func (a *Adapter) Source() models.Source { return models.SourceMediaServer }

func (a *Adapter) Configure(params adapter.ConnectionParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if params.Host != "" {
		a.baseURL = params.Host
	}
	if id, ok := params.Extra["player_id"]; ok {
		a.playerID = id
	}
	return nil
}

func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	baseURL, playerID := a.baseURL, a.playerID
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run(runCtx, baseURL, playerID)
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
	a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceMediaServer, NativeID: a.playerID})
	return nil
}

func (a *Adapter) Status() adapter.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Adapter) run(ctx context.Context, baseURL, playerID string) {
	defer a.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		client := a.newClient(baseURL, playerID)
		if _, err := client.Status(ctx); err != nil {
			a.setStatus(adapter.Status{Connected: false, Host: baseURL, LastError: err.Error()})
			wait := b.NextBackOff()
			slog.Warn("mediaserver: initial status fetch failed, backing off", "player", playerID, "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		a.setClient(client)
		a.setStatus(adapter.Status{Connected: true, Host: baseURL})
		a.b.Publish(bus.Event{Kind: bus.KindConnected, Source: models.SourceMediaServer, NativeID: playerID})

		zone := models.Zone{
			ZoneName: playerID,
			State:    models.StateStopped,
			Capabilities: []models.Capability{
				models.CapPlay, models.CapPause, models.CapPrevious, models.CapNext, models.CapVolumeSet,
			},
			Volume: models.NewNumberVolume(0, 1, false),
		}
		a.b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceMediaServer, NativeID: playerID, Zone: &zone})

		a.pollUntilDisconnected(ctx, client, playerID)

		a.setClient(nil)
		a.setStatus(adapter.Status{Connected: false, Host: baseURL})
		a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceMediaServer, NativeID: playerID})

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

// pollUntilDisconnected polls at pollIntervalPlaying while the player
// reports it is playing, and pollIntervalIdle otherwise, re-evaluating the
// interval after every fetch (spec §4.5's adaptive cadence).
func (a *Adapter) pollUntilDisconnected(ctx context.Context, client *Client, playerID string) {
	interval := pollIntervalIdle
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			playing, ok := a.pollOnce(ctx, client, playerID)
			if !ok {
				return
			}
			if playing {
				interval = pollIntervalPlaying
			} else {
				interval = pollIntervalIdle
			}
			timer.Reset(interval)
		}
	}
}

func (a *Adapter) pollOnce(ctx context.Context, client *Client, playerID string) (playing bool, ok bool) {
	st, err := client.Status(ctx)
	if err != nil {
		slog.Warn("mediaserver: status poll failed", "player", playerID, "error", err)
		return false, false
	}

	playback := modeToPlayback(st.Mode)
	a.b.Publish(bus.Event{Kind: bus.KindPlaybackChanged, Source: models.SourceMediaServer, NativeID: playerID, Playback: playback})

	np := &models.NowPlaying{Line1: st.Title, Line2: st.Artist, IsPlaying: playback == models.StatePlaying}
	if st.DurationSec > 0 {
		length := int(st.DurationSec)
		np.LengthSec = &length
		pos := int(st.PositionSec)
		np.PositionSec = &pos
	}
	if st.ArtworkURL != "" {
		ik := st.ArtworkURL
		np.ImageKey = &ik
	}
	a.b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceMediaServer, NativeID: playerID, NowPlaying: np})

	vol := models.NewNumberVolume(float32(st.MixerVolume), 1, false)
	a.b.Publish(bus.Event{Kind: bus.KindVolumeChanged, Source: models.SourceMediaServer, NativeID: playerID, Volume: vol})

	return playback == models.StatePlaying, true
}

func modeToPlayback(mode string) models.PlaybackState {
	switch mode {
	case "play":
		return models.StatePlaying
	case "pause":
		return models.StatePaused
	default:
		return models.StateStopped
	}
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

func (a *Adapter) Previous(ctx context.Context) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.Previous(ctx)
}

func (a *Adapter) Next(ctx context.Context) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.Next(ctx)
}

// SetVolume sets the mixer volume to an absolute 0-100 value, clamping into
// range first (invariant 4) since the media-server reports a fixed 0-100
// scale rather than a per-device range to validate against.
func (a *Adapter) SetVolume(ctx context.Context, value int) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	clamped := int(models.ClampF32(float32(value), 0, 100))
	return c.SetVolume(ctx, clamped)
}

// SetVolumeRelative nudges the mixer volume by delta steps.
func (a *Adapter) SetVolumeRelative(ctx context.Context, delta int) error {
	c, err := a.currentClient()
	if err != nil {
		return err
	}
	return c.SetVolumeRelative(ctx, delta)
}

// FetchImage fetches now-playing artwork for /now_playing/image.
func (a *Adapter) FetchImage(ctx context.Context, artworkURL string) ([]byte, string, error) {
	c, err := a.currentClient()
	if err != nil {
		return nil, "", err
	}
	return c.FetchImage(ctx, artworkURL)
}

var _ adapter.Startable = (*Adapter)(nil)
