package mediaserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/mediaserver"
	"github.com/openhorizonlabs/uhc/internal/models"
)

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

func TestAdapterDiscoversZoneAndPublishesNowPlaying(t *testing.T) {
	server := startMockMediaServer()
	defer server.Close()
	server.SetPlaying("Track A", "Artist A")

	b := bus.New()
	sub := b.Subscribe("test")
	defer b.Unsubscribe("test")

	a := mediaserver.New(b, server.URL(), "player1", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	discovered := waitForKind(t, sub, bus.KindZoneDiscovered, 2*time.Second)
	if discovered.Zone.ZoneName != "player1" {
		t.Errorf("got zone name %q, want player1", discovered.Zone.ZoneName)
	}

	np := waitForKind(t, sub, bus.KindNowPlayingChanged, 2*time.Second)
	if np.NowPlaying.Line1 != "Track A" {
		t.Errorf("got line1 %q, want Track A", np.NowPlaying.Line1)
	}
}

func TestAdapterSetVolumeRoundTrips(t *testing.T) {
	server := startMockMediaServer()
	defer server.Close()

	b := bus.New()
	a := mediaserver.New(b, server.URL(), "player1", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := a.SetVolume(ctx, 77); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
}

func TestAdapterRefusesCommandsBeforeConnect(t *testing.T) {
	b := bus.New()
	a := mediaserver.New(b, "http://127.0.0.1:1", "player1", nil)
	if err := a.Play(context.Background()); err != models.ErrBackendUnavailable {
		t.Fatalf("expected ErrBackendUnavailable before any connection, got %v", err)
	}
}
