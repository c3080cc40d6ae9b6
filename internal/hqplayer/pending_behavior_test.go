package hqplayer

import (
	"context"
	"testing"
	"time"
)

func TestPendingSlotDeliversMatchingResponse(t *testing.T) {
	p := newPendingSlot()
	ch, err := p.begin("State")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	p.deliver(rawResponse{element: "State", body: []byte("<State/>")})

	r, err := p.wait(context.Background(), ch)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if r.element != "State" {
		t.Errorf("got element %q, want State", r.element)
	}
}

func TestPendingSlotIgnoresMismatchedElement(t *testing.T) {
	p := newPendingSlot()
	ch, err := p.begin("State")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// A stray line with an unrelated element must not satisfy the waiter.
	p.deliver(rawResponse{element: "Status", body: []byte("<Status/>")})

	select {
	case <-ch:
		t.Fatal("mismatched element must not be delivered to the waiter")
	case <-time.After(20 * time.Millisecond):
	}
	p.cancel()
}

func TestPendingSlotRejectsConcurrentBegin(t *testing.T) {
	p := newPendingSlot()
	if _, err := p.begin("State"); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := p.begin("Status"); err == nil {
		t.Fatal("expected second begin to fail while a request is in flight")
	}
	p.cancel()
}

func TestPendingSlotTimesOut(t *testing.T) {
	p := newPendingSlot()
	ch, err := p.begin("State")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.wait(ctx, ch); err == nil {
		t.Fatal("expected wait to return an error when the context is cancelled before a reply arrives")
	}
}
