// Package upnp discovers and controls generic UPnP AV renderers (Sonos-class
// devices without OpenHome's extended services) via SSDP discovery and SOAP
// control, per spec §4.6. Discovery is grounded on
// github.com/koron/go-ssdp (found in the retrieval pack's
// petervdpas-goop2/go.mod dependency graph); SOAP control is grounded on
// github.com/huin/goupnp from the same source. The eventing shape —
// maintain a device table keyed by USN, expire on byebye or missed
// heartbeat — follows the teacher-adjacent sonos-hub-go example's
// StateCache (other_examples/..._statecache.go.go).
package upnp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/koron/go-ssdp"
)

// avTransportServiceType is the SSDP search target for a generic UPnP AV
// renderer's transport control service.
const avTransportServiceType = "urn:schemas-upnp-org:service:AVTransport:1"

// searchInterval re-runs an active M-SEARCH periodically in addition to
// passively monitoring ssdp:alive/ssdp:byebye notifications, so a device
// that joined the network before this process started is still found.
const searchInterval = 60 * time.Second

// deviceExpiry is how long a device is kept without a refreshing
// ssdp:alive or M-SEARCH response before it is treated as gone, a
// fallback for missed ssdp:byebye messages (UDP multicast is not reliable).
const deviceExpiry = 3 * time.Minute

// DiscoveredDevice is one SSDP-visible UPnP AV renderer.
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

// Discoverer watches the network for UPnP AV renderers and emits
// DiscoveryEvents as they come and go.
type Discoverer struct {
	events chan DiscoveryEvent

	mu      sync.Mutex
	devices map[string]DiscoveredDevice
}

// NewDiscoverer creates a Discoverer. Call Run in its own goroutine.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		events:  make(chan DiscoveryEvent, 64),
		devices: make(map[string]DiscoveredDevice),
	}
}

// Events returns the channel of device found/lost notifications.
func (d *Discoverer) Events() <-chan DiscoveryEvent { return d.events }

// Run monitors ssdp:alive/ssdp:byebye notifications and periodically
// issues an active M-SEARCH, until ctx is cancelled.
func (d *Discoverer) Run(ctx context.Context) {
	monitor := &ssdp.Monitor{
		Alive: func(m *ssdp.AliveMessage) {
			if !strings.Contains(m.Type, "AVTransport") {
				return
			}
			d.upsert(DiscoveredDevice{USN: m.USN, Location: m.Location, Server: m.Server, LastSeen: time.Now()})
		},
		Bye: func(m *ssdp.ByeMessage) {
			if !strings.Contains(m.Type, "AVTransport") {
				return
			}
			d.remove(m.USN)
		},
	}
	if err := monitor.Start(); err != nil {
		slog.Warn("upnp: ssdp monitor failed to start", "error", err)
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
	services, err := ssdp.Search(avTransportServiceType, 3, "")
	if err != nil {
		slog.Debug("upnp: ssdp search failed", "error", err)
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
		slog.Warn("upnp: discovery event channel full, dropping event", "kind", ev.Kind)
	}
}
