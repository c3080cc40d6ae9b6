package aggregator_test

import (
	"context"
	"testing"
	"time"

	"github.com/openhorizonlabs/uhc/internal/aggregator"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

func newRunning(t *testing.T) (*aggregator.Aggregator, *bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.New()
	agg := aggregator.New(b, "agg-test")
	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx)
	return agg, b, cancel
}

// settle gives the aggregator's single-writer goroutine a chance to drain
// the bus before assertions run.
func settle() { time.Sleep(20 * time.Millisecond) }

func TestScenarioS1DiscoverThenNowPlaying(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	b.Publish(bus.Event{
		Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: "1",
		Zone: &models.Zone{ZoneName: "Kitchen", State: models.StateStopped},
	})
	settle()

	b.Publish(bus.Event{
		Kind: bus.KindNowPlayingChanged, Source: models.SourceRoon, NativeID: "1",
		NowPlaying: &models.NowPlaying{Line1: "X", Line2: "Y", IsPlaying: true},
	})
	settle()

	zones := agg.ListZones()
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(zones))
	}
	z, ok := agg.GetZone("roon:1")
	if !ok {
		t.Fatal("expected zone roon:1 to exist")
	}
	if z.NowPlaying == nil || z.NowPlaying.Line1 != "X" {
		t.Fatalf("now_playing not applied directly to zone record: %+v", z.NowPlaying)
	}
}

func TestScenarioS2DisconnectRemovesZones(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: "1", Zone: &models.Zone{ZoneName: "Kitchen"}})
	settle()
	if _, ok := agg.GetZone("roon:1"); !ok {
		t.Fatal("zone should exist before disconnect")
	}

	b.Publish(bus.Event{Kind: bus.KindDisconnected, Source: models.SourceRoon})
	settle()

	if zones := agg.ListZones(); len(zones) != 0 {
		t.Fatalf("expected 0 zones after disconnect, got %d", len(zones))
	}
}

// TestNowPlayingRegressionGuard is the single most important correctness
// test per spec §3 invariant 3: a historical regression updated an
// auxiliary map but not the zone record itself.
func TestNowPlayingRegressionGuard(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceHQPlayer, NativeID: "main", Zone: &models.Zone{ZoneName: "Listening Room"}})
	settle()

	np := &models.NowPlaying{Line1: "Track A", IsPlaying: true}
	b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceHQPlayer, NativeID: "main", NowPlaying: np})
	settle()

	z, ok := agg.GetZone("hqplayer:main")
	if !ok {
		t.Fatal("zone missing")
	}
	if z.NowPlaying == nil || z.NowPlaying.Line1 != "Track A" {
		t.Fatalf("zone.now_playing should reflect the latest event directly, got %+v", z.NowPlaying)
	}

	np2 := &models.NowPlaying{Line1: "Track B", IsPlaying: true}
	b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceHQPlayer, NativeID: "main", NowPlaying: np2})
	settle()

	z, _ = agg.GetZone("hqplayer:main")
	if z.NowPlaying.Line1 != "Track B" {
		t.Fatalf("zone.now_playing is stale: got %q, want %q", z.NowPlaying.Line1, "Track B")
	}
}

func TestZonesDigestStableUnderChurn(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: "1", Zone: &models.Zone{ZoneName: "Kitchen"}})
	settle()
	d1 := agg.ZonesDigest()

	b.Publish(bus.Event{Kind: bus.KindNowPlayingChanged, Source: models.SourceRoon, NativeID: "1", NowPlaying: &models.NowPlaying{Line1: "A"}})
	b.Publish(bus.Event{Kind: bus.KindVolumeChanged, Source: models.SourceRoon, NativeID: "1", Volume: models.NewNumberVolume(50, 1, false)})
	settle()
	d2 := agg.ZonesDigest()

	if d1 != d2 {
		t.Fatalf("zones_digest changed on now-playing/volume churn: %q != %q", d1, d2)
	}

	b.Publish(bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceRoon, NativeID: "2", Zone: &models.Zone{ZoneName: "Lounge"}})
	settle()
	d3 := agg.ZonesDigest()
	if d3 == d2 {
		t.Fatal("zones_digest did not change after a new zone was discovered")
	}
}

func TestZoneUpdatedCreatesZoneOnRace(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	name := "Late Discovery"
	b.Publish(bus.Event{
		Kind: bus.KindZoneUpdated, Source: models.SourceMediaServer, NativeID: "42",
		Partial: &models.ZonePartial{ZoneName: &name},
	})
	settle()

	z, ok := agg.GetZone("mediaserver:42")
	if !ok {
		t.Fatal("ZoneUpdated racing ahead of ZoneDiscovered should still create the zone")
	}
	if z.ZoneName != name {
		t.Fatalf("got zone name %q, want %q", z.ZoneName, name)
	}
}

func TestIdempotentRediscover(t *testing.T) {
	agg, b, cancel := newRunning(t)
	defer cancel()

	evt := bus.Event{Kind: bus.KindZoneDiscovered, Source: models.SourceUPnP, NativeID: "r1", Zone: &models.Zone{ZoneName: "Den"}}
	b.Publish(evt)
	settle()
	d1 := agg.ZonesDigest()
	b.Publish(evt)
	settle()
	d2 := agg.ZonesDigest()
	if d1 != d2 {
		t.Fatal("re-sending the same ZoneDiscovered event should be idempotent")
	}
	if zones := agg.ListZones(); len(zones) != 1 {
		t.Fatalf("expected exactly 1 zone after duplicate discovery, got %d", len(zones))
	}
}
