package roon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// NewClientFunc constructs a RoomClient against the configured connection
// params. Production wiring supplies the vendor-SDK-backed constructor;
// tests supply a FakeClient from NewFakeClientForTest.
type NewClientFunc func(params adapter.ConnectionParams) RoomClient

// Adapter bridges a Roon Core onto the event bus. Following the teacher's
// LMSStream shape: a long-lived background goroutine owns the connection
// and republishes every change as a bus.Event, while command methods are
// called directly from the HTTP layer.
type Adapter struct {
	newClient NewClientFunc
	b         *bus.Bus

	mu       sync.Mutex
	params   adapter.ConnectionParams
	client   RoomClient
	status   adapter.Status
	outRange map[string]models.Volume // output_id -> last-known Db/Number range, for safe absolute-set clamping
	lastRoom map[string]RoomZone      // zone_id -> last-seen raw zone, to diff RoomEventZoneChanged

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Roon adapter publishing onto b, using newClient to obtain a
// RoomClient once Start is called.
func New(b *bus.Bus, newClient NewClientFunc) *Adapter {
	return &Adapter{
		b:         b,
		newClient: newClient,
		outRange:  make(map[string]models.Volume),
		lastRoom:  make(map[string]RoomZone),
	}
}

func (a *Adapter) Source() models.Source { return models.SourceRoon }

func (a *Adapter) Configure(params adapter.ConnectionParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params = params
	return nil
}

func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	params := a.params
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run(runCtx, params)
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
	a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceRoon})
	return nil
}

func (a *Adapter) Status() adapter.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// run owns the connect/reconnect loop. Reconnects use the standard
// exponential backoff (base 1s, cap 60s) rather than a fixed retry interval,
// so a Roon Core restart doesn't cause a hot-loop of dial attempts.
func (a *Adapter) run(ctx context.Context, params adapter.ConnectionParams) {
	defer a.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		client := a.newClient(params)
		if err := client.Connect(ctx); err != nil {
			a.setStatus(adapter.Status{Connected: false, Host: params.Host, Port: params.Port, LastError: err.Error()})
			wait := b.NextBackOff()
			slog.Warn("roon: connect failed, backing off", "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		a.setClient(client)
		a.setStatus(adapter.Status{Connected: true, Host: params.Host, Port: params.Port})
		a.b.Publish(bus.Event{Kind: bus.KindConnected, Source: models.SourceRoon})

		a.seed(ctx, client)
		a.consume(ctx, client)

		client.Close()
		a.setClient(nil)
		a.setStatus(adapter.Status{Connected: false, Host: params.Host, Port: params.Port})
		a.b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceRoon})

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

func (a *Adapter) seed(ctx context.Context, client RoomClient) {
	zones, err := client.Zones(ctx)
	if err != nil {
		slog.Warn("roon: initial zone fetch failed", "error", err)
		return
	}
	for _, z := range zones {
		a.cacheOutputRanges(z.Outputs)
		a.cacheRoomZone(z)
		zone := translateZone(z)
		a.b.Publish(bus.Event{
			Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: z.ZoneID, Zone: &zone,
		})
	}
}

// cacheOutputRanges records each output's current Db/Number volume range so
// a later absolute-set can be clamped against it instead of trusting
// whatever range the caller happens to supply. Incremental/Fixed outputs
// are never cached: their presence in the map would otherwise let a stale
// Db/Number range survive a backend downgrading an output's volume type.
func (a *Adapter) cacheOutputRanges(outs []RoomOutput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range outs {
		switch o.VolumeType {
		case "db", "number":
			a.outRange[o.OutputID] = translateVolume(o)
		default:
			delete(a.outRange, o.OutputID)
		}
	}
}

// consume republishes RoomClient events until the channel closes (connection
// lost) or ctx is cancelled.
func (a *Adapter) consume(ctx context.Context, client RoomClient) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			a.publishRoomEvent(ev)
		}
	}
}

// publishRoomEvent translates one RoomEvent onto the bus. RoomEventZoneSeeded
// is a genuinely new zone (Roon's own "zones_seeded" vocabulary) and is
// always republished as KindZoneDiscovered. RoomEventZoneChanged is an
// update to a zone the adapter has already seen, and must NOT be collapsed
// into KindZoneDiscovered: the aggregator's ZoneDiscovered handler always
// resets now_playing to nil (it assumes a freshly discovered zone has no
// prior now-playing state), so routing every change through it would wipe a
// zone's now_playing on its very next update. Instead this publishes
// KindZoneUpdated for the zone's metadata/outputs, and KindNowPlayingChanged
// only when the now-playing fields (track metadata, seek position or play
// state) changed.
func (a *Adapter) publishRoomEvent(ev RoomEvent) {
	switch ev.Kind {
	case RoomEventZoneSeeded:
		a.cacheOutputRanges(ev.Zone.Outputs)
		a.cacheRoomZone(ev.Zone)
		zone := translateZone(ev.Zone)
		a.b.Publish(bus.Event{
			Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: ev.Zone.ZoneID, Zone: &zone,
		})

	case RoomEventZoneChanged:
		a.cacheOutputRanges(ev.Zone.Outputs)
		prev, known := a.swapRoomZone(ev.Zone)
		if !known {
			// The aggregator has never seen this zone_id (e.g. a reconnect
			// raced the first seed fetch); treat it as a fresh discovery
			// rather than an update against a zone that doesn't exist yet.
			zone := translateZone(ev.Zone)
			a.b.Publish(bus.Event{
				Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: ev.Zone.ZoneID, Zone: &zone,
			})
			return
		}

		zone := translateZone(ev.Zone)
		partial := models.ZonePartial{
			ZoneName:     &zone.ZoneName,
			State:        &zone.State,
			Outputs:      zone.Outputs,
			Capabilities: zone.Capabilities,
		}
		a.b.Publish(bus.Event{
			Kind: bus.KindZoneUpdated, Source: models.SourceRoon, NativeID: ev.Zone.ZoneID, Partial: &partial,
		})
		if nowPlayingChanged(prev, ev.Zone) {
			a.b.Publish(bus.Event{
				Kind: bus.KindNowPlayingChanged, Source: models.SourceRoon, NativeID: ev.Zone.ZoneID, NowPlaying: zone.NowPlaying,
			})
		}

	case RoomEventZoneRemoved:
		a.forgetRoomZone(ev.Zone.ZoneID)
		a.b.Publish(bus.Event{Kind: bus.KindZoneRemoved, Source: models.SourceRoon, NativeID: ev.Zone.ZoneID})
	}
}

func (a *Adapter) cacheRoomZone(z RoomZone) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastRoom[z.ZoneID] = z
}

// swapRoomZone records z as the new last-seen zone and returns the zone it
// replaced, if any.
func (a *Adapter) swapRoomZone(z RoomZone) (prev RoomZone, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok = a.lastRoom[z.ZoneID]
	a.lastRoom[z.ZoneID] = z
	return prev, ok
}

func (a *Adapter) forgetRoomZone(zoneID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.lastRoom, zoneID)
}

func (a *Adapter) setClient(c RoomClient) {
	a.mu.Lock()
	a.client = c
	a.mu.Unlock()
}

func (a *Adapter) setStatus(s adapter.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Adapter) currentClient() (RoomClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil, models.ErrBackendUnavailable
	}
	return a.client, nil
}

// SetVolumeAbsolute sets an output's volume to an absolute value. Per the
// safety requirement, this refuses rather than guesses when the output's
// volume control is Incremental or Fixed: there is no safe way to translate
// an absolute target onto a control surface with no known range. When the
// kind is Db or Number, the value is clamped into the output's last-known
// range before it is sent — never hardcoded, always the range this output
// itself last reported (spec §4.3's regression guard: a prior bug clamped
// dB values into 0-100 and drove an output to full volume).
func (a *Adapter) SetVolumeAbsolute(ctx context.Context, outputID string, value float32, kind models.VolumeKind) error {
	client, err := a.currentClient()
	if err != nil {
		return err
	}
	if kind == models.VolumeKindIncremental || kind == models.VolumeKindFixed {
		return models.ErrBadRequest(fmt.Sprintf("output %s has no absolute volume range to set against", outputID))
	}
	rng, ok := a.cachedRange(outputID)
	if !ok {
		return models.ErrConflict(fmt.Sprintf("output %s has no known volume range; refusing to guess one", outputID))
	}
	clamped := clampToRange(rng, value)
	return client.SetVolumeAbsolute(ctx, outputID, clamped)
}

func (a *Adapter) cachedRange(outputID string) (models.Volume, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.outRange[outputID]
	return v, ok
}

// clampToRange clamps value into v's [Min,Max], preserving whichever
// concrete Volume variant v is.
func clampToRange(v models.Volume, value float32) float32 {
	switch rv := v.(type) {
	case models.DbVolume:
		return rv.Clamp(value)
	case models.NumberVolume:
		return rv.Clamp(value)
	default:
		return value
	}
}

// SetVolumeRelative steps an output's volume. Valid for Db, Number, and
// Incremental outputs; refused for Fixed outputs, which have no volume
// control surface at all.
func (a *Adapter) SetVolumeRelative(ctx context.Context, outputID string, step float32, kind models.VolumeKind) error {
	client, err := a.currentClient()
	if err != nil {
		return err
	}
	if kind == models.VolumeKindFixed {
		return models.ErrBadRequest(fmt.Sprintf("output %s has no volume control", outputID))
	}
	return client.SetVolumeRelative(ctx, outputID, step)
}

func (a *Adapter) SetMute(ctx context.Context, outputID string, mute bool) error {
	client, err := a.currentClient()
	if err != nil {
		return err
	}
	return client.SetMute(ctx, outputID, mute)
}

func (a *Adapter) Control(ctx context.Context, zoneID string, action models.ControlAction) error {
	client, err := a.currentClient()
	if err != nil {
		return err
	}
	return client.Control(ctx, zoneID, action)
}

// FetchImage fetches now-playing artwork for imageKey at the requested size
// (spec §6's /now_playing/image), delegating to the vendor-SDK-backed client.
func (a *Adapter) FetchImage(ctx context.Context, imageKey string, width, height int) ([]byte, string, error) {
	client, err := a.currentClient()
	if err != nil {
		return nil, "", err
	}
	return client.FetchImage(ctx, imageKey, width, height)
}
