// Package openhome discovers and controls OpenHome network renderers (the
// extended service set Linn/OpenHome-class devices expose alongside or
// instead of plain UPnP AVTransport) via SSDP discovery and SOAP control,
// per spec §4.6. Discovery shares github.com/koron/go-ssdp with
// internal/upnp; control targets the OpenHome Product/Transport/Volume/Info
// service URNs rather than AVTransport/RenderingControl.
package openhome

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/koron/go-ssdp"
)

// productServiceType is the SSDP search target identifying an OpenHome
// device; every OpenHome renderer exposes a Product service.
const productServiceType = "urn:av-openhome-org:service:Product:2"

const searchInterval = 60 * time.Second
const deviceExpiry = 3 * time.Minute

// DiscoveredDevice is one SSDP-visible OpenHome renderer.
type DiscoveredDevice struct {
	USN      string
	Location string
	Server   string
	LastSeen time.Time
}

// DiscoveryEventKind discriminates DiscoveryEvent.
type DiscoveryEventKind int

const (
	DeviceFound DiscoveryEventKind = iota
	DeviceLost
)

// DiscoveryEvent is one device appearing or disappearing.
type DiscoveryEvent struct {
	Kind   DiscoveryEventKind
	Device DiscoveredDevice
}

// Discoverer watches the network for OpenHome renderers and emits
// DiscoveryEvents as they come and go. Structurally identical to
// upnp.Discoverer, tracking a different SSDP search target.
type Discoverer struct {
	events chan DiscoveryEvent

	mu      sync.Mutex
	devices map[string]DiscoveredDevice
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{
		events:  make(chan DiscoveryEvent, 64),
		devices: make(map[string]DiscoveredDevice),
	}
}

func (d *Discoverer) Events() <-chan DiscoveryEvent { return d.events }

func (d *Discoverer) Run(ctx context.Context) {
	monitor := &ssdp.Monitor{
		Alive: func(m *ssdp.AliveMessage) {
			if !strings.Contains(m.Type, "av-openhome-org") {
				return
			}
			d.upsert(DiscoveredDevice{USN: m.USN, Location: m.Location, Server: m.Server, LastSeen: time.Now()})
		},
		Bye: func(m *ssdp.ByeMessage) {
			if !strings.Contains(m.Type, "av-openhome-org") {
				return
			}
			d.remove(m.USN)
		},
	}
	if err := monitor.Start(); err != nil {
		slog.Warn("openhome: ssdp monitor failed to start", "error", err)
	} else {
		defer monitor.Close()
	}

	d.search(ctx)

	ticker := time.NewTicker(searchInterval)
	defer ticker.Stop()
	expiryTicker := time.NewTicker(deviceExpiry / 3)
	defer expiryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.search(ctx)
		case <-expiryTicker.C:
			d.expireStale()
		}
	}
}

func (d *Discoverer) search(ctx context.Context) {
	services, err := ssdp.Search(productServiceType, 3, "")
	if err != nil {
		slog.Debug("openhome: ssdp search failed", "error", err)
		return
	}
	for _, s := range services {
		d.upsert(DiscoveredDevice{USN: s.USN, Location: s.Location, Server: s.Server, LastSeen: time.Now()})
	}
}

func (d *Discoverer) upsert(dev DiscoveredDevice) {
	d.mu.Lock()
	_, existed := d.devices[dev.USN]
	d.devices[dev.USN] = dev
	d.mu.Unlock()
	if !existed {
		d.emit(DiscoveryEvent{Kind: DeviceFound, Device: dev})
	}
}

func (d *Discoverer) remove(usn string) {
	d.mu.Lock()
	_, existed := d.devices[usn]
	delete(d.devices, usn)
	d.mu.Unlock()
	if existed {
		d.emit(DiscoveryEvent{Kind: DeviceLost, Device: DiscoveredDevice{USN: usn}})
	}
}

func (d *Discoverer) expireStale() {
	cutoff := time.Now().Add(-deviceExpiry)
	d.mu.Lock()
	var stale []string
	for usn, dev := range d.devices {
		if dev.LastSeen.Before(cutoff) {
			stale = append(stale, usn)
		}
	}
	for _, usn := range stale {
		delete(d.devices, usn)
	}
	d.mu.Unlock()
	for _, usn := range stale {
		d.emit(DiscoveryEvent{Kind: DeviceLost, Device: DiscoveredDevice{USN: usn}})
	}
}

func (d *Discoverer) emit(ev DiscoveryEvent) {
	select {
	case d.events <- ev:
	default:
		slog.Warn("openhome: discovery event channel full, dropping event", "kind", ev.Kind)
	}
}
