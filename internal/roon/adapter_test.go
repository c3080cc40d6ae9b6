package roon_test

import (
	"context"
	"testing"
	"time"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
	"github.com/openhorizonlabs/uhc/internal/roon"
)

func TestAdapterSeedsZonesOnConnect(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	client := roon.NewFakeClientForTest()
	client.SetZones([]roon.RoomZone{
		{ZoneID: "z1", Name: "Kitchen", State: "playing", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -20, Min: -80, Max: 0},
		}},
	})

	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var discovered *bus.Event
	deadline := time.After(time.Second)
	for discovered == nil {
		select {
		case e := <-sub.Events():
			if e.Kind == bus.KindZoneDiscovered {
				discovered = &e
			}
		case <-deadline:
			t.Fatal("timed out waiting for ZoneDiscovered")
		}
	}
	if discovered.Zone.ZoneName != "Kitchen" {
		t.Errorf("got zone name %q, want Kitchen", discovered.Zone.ZoneName)
	}
	if discovered.Zone.Volume.Kind() != models.VolumeKindDb {
		t.Errorf("got volume kind %q, want db", discovered.Zone.Volume.Kind())
	}
}

// TestZoneChangedPreservesNowPlaying reproduces spec.md's invariant 3
// regression directly against the Roon adapter: now_playing must survive a
// subsequent zone-changed event that doesn't touch the track (e.g. a volume
// or state change), and must update (not vanish) when the track does change.
func TestZoneChangedPreservesNowPlaying(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	client := roon.NewFakeClientForTest()
	client.SetZones([]roon.RoomZone{
		{ZoneID: "z1", Name: "Kitchen", State: "playing", Line1: "Song A", Line2: "Artist A", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -20, Min: -80, Max: 0},
		}},
	})

	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForEvent(t, sub, bus.KindZoneDiscovered)

	// A volume-only change: same track, different output volume. now_playing
	// must be untouched by this — it must never be reset to nil just because
	// some other zone-changed event arrived.
	client.PushEvent(roon.RoomEvent{Kind: roon.RoomEventZoneChanged, Zone: roon.RoomZone{
		ZoneID: "z1", Name: "Kitchen", State: "playing", Line1: "Song A", Line2: "Artist A", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -10, Min: -80, Max: 0},
		},
	}})
	updated := waitForEvent(t, sub, bus.KindZoneUpdated)
	if updated.Kind != bus.KindZoneUpdated {
		t.Fatalf("got kind %q, want zone_updated", updated.Kind)
	}

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected follow-up event %q; a volume-only change must not publish now_playing_changed", e.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	// A real track change must publish now_playing_changed with the new track.
	client.PushEvent(roon.RoomEvent{Kind: roon.RoomEventZoneChanged, Zone: roon.RoomZone{
		ZoneID: "z1", Name: "Kitchen", State: "playing", Line1: "Song B", Line2: "Artist B", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -10, Min: -80, Max: 0},
		},
	}})
	waitForEvent(t, sub, bus.KindZoneUpdated)
	np := waitForEvent(t, sub, bus.KindNowPlayingChanged)
	if np.NowPlaying == nil || np.NowPlaying.Line1 != "Song B" {
		t.Fatalf("got now_playing %+v, want Line1 Song B", np.NowPlaying)
	}
}

func waitForEvent(t *testing.T, sub *bus.Subscription, kind bus.Kind) bus.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case e := <-sub.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %q", kind)
		}
	}
}

func TestSetVolumeAbsoluteRefusedForIncremental(t *testing.T) {
	b := bus.New()
	client := roon.NewFakeClientForTest()
	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	err := a.SetVolumeAbsolute(ctx, "o1", 50, models.VolumeKindIncremental)
	if err == nil {
		t.Fatal("expected refusal for incremental-volume output, got nil error")
	}
}

func TestSetVolumeAbsoluteAllowedForDb(t *testing.T) {
	b := bus.New()
	client := roon.NewFakeClientForTest()
	client.SetZones([]roon.RoomZone{
		{ZoneID: "z1", Name: "Kitchen", State: "playing", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -20, Min: -80, Max: 0},
		}},
	})
	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := a.SetVolumeAbsolute(ctx, "o1", -20, models.VolumeKindDb); err != nil {
		t.Fatalf("unexpected refusal for db-volume output: %v", err)
	}
}

func TestSetVolumeAbsoluteRefusedWithNoKnownRange(t *testing.T) {
	b := bus.New()
	client := roon.NewFakeClientForTest()
	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// No zones were ever seeded, so the adapter has never learned o1's
	// range. Rather than guess one, it must refuse.
	err := a.SetVolumeAbsolute(ctx, "o1", -20, models.VolumeKindDb)
	if err == nil {
		t.Fatal("expected refusal for an output with no cached range, got nil error")
	}
}

func TestSetVolumeAbsoluteClampsToCachedRange(t *testing.T) {
	b := bus.New()
	client := roon.NewFakeClientForTest()
	client.SetZones([]roon.RoomZone{
		{ZoneID: "z1", Name: "Kitchen", State: "playing", Outputs: []roon.RoomOutput{
			{OutputID: "o1", Name: "Kitchen Speaker", VolumeType: "db", Value: -20, Min: -80, Max: 0},
		}},
	})
	a := roon.New(b, func(adapter.ConnectionParams) roon.RoomClient { return client })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// A regression once clamped a dB value into a hardcoded 0-100 range,
	// which drove this exact scenario (an out-of-range dB request) to full
	// volume instead of the output's own max.
	if err := a.SetVolumeAbsolute(ctx, "o1", 50, models.VolumeKindDb); err != nil {
		t.Fatalf("unexpected refusal: %v", err)
	}
	calls := client.VolumeCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d volume calls, want 1", len(calls))
	}
	if calls[0] != 0 {
		t.Errorf("got clamped value %v, want 0 (the output's own Max)", calls[0])
	}
}
