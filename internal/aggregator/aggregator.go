// Package aggregator implements the zone aggregator: the single source of
// truth for the unified zone table, built in the shape of the teacher's
// controller.Controller (internal/controller/controller.go) — a
// single-writer driver goroutine mutating a map, with readers taking
// snapshot copies under a short RLock rather than touching live state.
//
// Unlike the teacher's Controller, the aggregator's writes are not driven by
// direct method calls from the HTTP layer; they are driven exclusively by
// bus.Event consumption, matching spec §4.7's single-writer invariant: "all
// mutations happen in that single task".
package aggregator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// Aggregator owns the canonical zone table. Run must be started once in its
// own goroutine; all table mutations happen inside Run's loop.
type Aggregator struct {
	sub *bus.Subscription

	mu      sync.RWMutex
	zones   map[string]models.Zone // zone_id -> zone
	digest  string
	digestOK bool
}

// New creates an Aggregator subscribed to b under the given subscriber id.
func New(b *bus.Bus, subscriberID string) *Aggregator {
	return &Aggregator{
		sub:   b.Subscribe(subscriberID),
		zones: make(map[string]models.Zone),
	}
}

// Run consumes bus events until ctx is cancelled. It is the aggregator's
// single writer goroutine: every mutation of the zone table happens here,
// serially, so state transitions are linearizable from the aggregator's
// point of view (spec §5).
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-a.sub.Events():
			if !ok {
				return
			}
			a.handle(e)
		}
	}
}

// handle applies a single event to the zone table. This is the exhaustive
// switch called out in spec §4.7 as the historical bug's location: every
// event kind must be handled, and NowPlayingChanged MUST write directly to
// the zone record, never to a side map (invariant 3).
func (a *Aggregator) handle(e bus.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Kind {
	case bus.KindZoneDiscovered:
		if e.Zone == nil {
			slog.Warn("aggregator: ZoneDiscovered with nil zone, dropping", "source", e.Source, "native_id", e.NativeID)
			return
		}
		z := e.Zone.Clone()
		z.ZoneID = e.ZoneID()
		z.Source = e.Source
		z.NativeID = e.NativeID
		z.NowPlaying = nil
		a.zones[z.ZoneID] = z
		a.invalidateDigest()

	case bus.KindZoneUpdated:
		if e.Partial == nil {
			slog.Warn("aggregator: ZoneUpdated with nil partial, dropping", "source", e.Source, "native_id", e.NativeID)
			return
		}
		id := e.ZoneID()
		z, ok := a.zones[id]
		if !ok {
			// Races with discovery: create a minimal zone rather than drop
			// the update (spec §4.7 table).
			z = models.Zone{ZoneID: id, Source: e.Source, NativeID: e.NativeID}
			a.invalidateDigest()
		} else if e.Partial.ZoneName != nil && *e.Partial.ZoneName != z.ZoneName {
			// zone_name is part of the digest's identity tuple.
			a.invalidateDigest()
		}
		a.zones[id] = e.Partial.Merge(z)

	case bus.KindNowPlayingChanged:
		id := e.ZoneID()
		z, ok := a.zones[id]
		if !ok {
			slog.Warn("aggregator: NowPlayingChanged for unknown zone, dropping", "zone_id", id)
			return
		}
		// Regression guard (spec §3 invariant 3): write directly onto the
		// zone record, never onto an auxiliary map.
		np := e.NowPlaying
		if np != nil {
			cp := *np
			z.NowPlaying = &cp
		} else {
			z.NowPlaying = nil
		}
		a.zones[id] = z

	case bus.KindVolumeChanged:
		id := e.ZoneID()
		z, ok := a.zones[id]
		if !ok {
			slog.Warn("aggregator: VolumeChanged for unknown zone, dropping", "zone_id", id)
			return
		}
		if e.OutputID != "" {
			for i := range z.Outputs {
				if z.Outputs[i].OutputID == e.OutputID {
					z.Outputs[i].Volume = e.Volume
					break
				}
			}
		} else {
			z.Volume = e.Volume
		}
		a.zones[id] = z

	case bus.KindPlaybackChanged:
		id := e.ZoneID()
		z, ok := a.zones[id]
		if !ok {
			slog.Warn("aggregator: PlaybackStateChanged for unknown zone, dropping", "zone_id", id)
			return
		}
		z.State = e.Playback
		a.zones[id] = z

	case bus.KindZoneRemoved:
		id := e.ZoneID()
		if _, ok := a.zones[id]; ok {
			delete(a.zones, id)
			a.invalidateDigest()
		}

	case bus.KindDisconnected:
		removed := 0
		for id, z := range a.zones {
			if z.Source == e.Source {
				delete(a.zones, id)
				removed++
			}
		}
		if removed > 0 {
			a.invalidateDigest()
		}

	case bus.KindConnected, bus.KindHqpStateChanged, bus.KindHqpPipelineChanged:
		// Connection/DSP-pipeline events don't mutate the zone table
		// directly; the hqplayer zone-link service and HTTP layer consume
		// these straight off the bus.

	default:
		slog.Warn("aggregator: unhandled event kind, dropping", "kind", e.Kind)
	}
}

// invalidateDigest must be called with mu held whenever the zone *identity*
// set changes (insert/remove), per spec invariant 5.
func (a *Aggregator) invalidateDigest() {
	a.digestOK = false
}

// ListZones returns a stable-ordered snapshot of every zone, sorted by
// (source, zone_name, zone_id) per spec §4.7.
func (a *Aggregator) ListZones() []models.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Zone, 0, len(a.zones))
	for _, z := range a.zones {
		out = append(out, z.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].ZoneName != out[j].ZoneName {
			return out[i].ZoneName < out[j].ZoneName
		}
		return out[i].ZoneID < out[j].ZoneID
	})
	return out
}

// ListZonesBySource returns a sorted snapshot restricted to one backend, for
// the per-source debug routes in spec §6.
func (a *Aggregator) ListZonesBySource(source models.Source) []models.Zone {
	all := a.ListZones()
	out := make([]models.Zone, 0, len(all))
	for _, z := range all {
		if z.Source == source {
			out = append(out, z)
		}
	}
	return out
}

// GetZone returns a copy of the zone with the given unified id, or ok=false.
func (a *Aggregator) GetZone(zoneID string) (models.Zone, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	z, ok := a.zones[zoneID]
	if !ok {
		return models.Zone{}, false
	}
	return z.Clone(), true
}

// ZonesDigest returns an 8-hex-digit digest of the sorted (zone_id,
// zone_name, source) identity tuple set (spec invariant 5): it changes iff
// the zone set changes, not on now-playing/volume churn.
func (a *Aggregator) ZonesDigest() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.digestOK {
		return a.digest
	}
	a.digest = computeDigest(a.zones)
	a.digestOK = true
	return a.digest
}

func computeDigest(zones map[string]models.Zone) string {
	tuples := make([]string, 0, len(zones))
	for _, z := range zones {
		tuples = append(tuples, fmt.Sprintf("%s|%s|%s", z.ZoneID, z.ZoneName, z.Source))
	}
	sort.Strings(tuples)
	h := sha1.New()
	for _, t := range tuples {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:4])
}
