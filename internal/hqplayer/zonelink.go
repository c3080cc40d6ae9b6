package hqplayer

import (
	"sync"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// ZoneLink records that a unified zone is routed through a named HQPlayer
// instance, and (optionally) which matrix profile that instance has loaded
// for it. This is the service that lets the HTTP layer answer "what DSP
// chain is zone X running through" without the aggregator itself knowing
// anything about HQPlayer.
type ZoneLink struct {
	mu    sync.RWMutex
	links map[string]models.DSPLink // zone_id -> link
}

// NewZoneLinkService creates an empty zone-link table.
func NewZoneLinkService() *ZoneLink {
	return &ZoneLink{links: make(map[string]models.DSPLink)}
}

// Link associates zoneID with instanceName, replacing any prior link.
// Linking the same pair again replaces the entry too, which clears any
// matrix profile recorded for it.
func (z *ZoneLink) Link(zoneID, instanceName string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.links[zoneID] = models.DSPLink{InstanceName: instanceName}
}

// Unlink removes any link for zoneID. Idempotent: unlinking an already
// unlinked zone is not an error.
func (z *ZoneLink) Unlink(zoneID string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.links, zoneID)
}

// SetMatrixProfile records the matrix profile index currently loaded for
// zoneID's linked instance. No-op if the zone has no link.
func (z *ZoneLink) SetMatrixProfile(zoneID string, index int) {
	z.mu.Lock()
	defer z.mu.Unlock()
	link, ok := z.links[zoneID]
	if !ok {
		return
	}
	idx := index
	link.MatrixProfileIndex = &idx
	z.links[zoneID] = link
}

// Get returns the current link for zoneID, or ok=false if unlinked.
func (z *ZoneLink) Get(zoneID string) (models.DSPLink, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	link, ok := z.links[zoneID]
	return link, ok
}

// All returns a snapshot of every zone_id -> link mapping.
func (z *ZoneLink) All() map[string]models.DSPLink {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make(map[string]models.DSPLink, len(z.links))
	for k, v := range z.links {
		out[k] = v
	}
	return out
}
