package hqplayer_test

import (
	"testing"

	"github.com/openhorizonlabs/uhc/internal/hqplayer"
)

func TestZoneLinkLinkAndUnlink(t *testing.T) {
	z := hqplayer.NewZoneLinkService()
	z.Link("roon:1", "main")

	link, ok := z.Get("roon:1")
	if !ok || link.InstanceName != "main" {
		t.Fatalf("expected link to main, got %+v ok=%v", link, ok)
	}

	z.Unlink("roon:1")
	if _, ok := z.Get("roon:1"); ok {
		t.Fatal("expected no link after unlink")
	}
}

func TestZoneLinkUnlinkIsIdempotent(t *testing.T) {
	z := hqplayer.NewZoneLinkService()
	z.Unlink("roon:missing")
	z.Unlink("roon:missing")
}

func TestZoneLinkSetMatrixProfileNoopWithoutLink(t *testing.T) {
	z := hqplayer.NewZoneLinkService()
	z.SetMatrixProfile("roon:1", 2)
	if _, ok := z.Get("roon:1"); ok {
		t.Fatal("expected no link to be created by SetMatrixProfile")
	}
}

func TestZoneLinkSetMatrixProfileUpdatesExistingLink(t *testing.T) {
	z := hqplayer.NewZoneLinkService()
	z.Link("roon:1", "main")
	z.SetMatrixProfile("roon:1", 2)

	link, _ := z.Get("roon:1")
	if link.MatrixProfileIndex == nil || *link.MatrixProfileIndex != 2 {
		t.Fatalf("expected matrix profile index 2, got %+v", link.MatrixProfileIndex)
	}
}
