// Package models defines the unified zone data model shared by every
// backend adapter, the aggregator, and the HTTP/SSE API.
package models

import "strings"

// Source identifies which backend ecosystem a zone or event originated from.
type Source string

const (
	SourceRoon        Source = "roon"
	SourceHQPlayer    Source = "hqplayer"
	SourceMediaServer Source = "mediaserver"
	SourceOpenHome    Source = "openhome"
	SourceUPnP        Source = "upnp"
)

// AllSources lists every backend in a fixed order, used for stable iteration
// (route registration, status fan-out) where ordering matters.
var AllSources = []Source{SourceRoon, SourceHQPlayer, SourceMediaServer, SourceOpenHome, SourceUPnP}

// Valid reports whether s is one of the five known backends.
func (s Source) Valid() bool {
	for _, v := range AllSources {
		if v == s {
			return true
		}
	}
	return false
}

// ZoneID computes the unified, stable identifier for a zone: the source tag
// plus the backend-native id. Source is part of the key, so two adapters can
// never collide (invariant 1).
func ZoneID(source Source, nativeID string) string {
	return string(source) + ":" + nativeID
}

// ParseZoneID splits a unified zone_id back into its source and native_id,
// used by the unified /control endpoint to route by zone_id prefix (spec
// §6). The native_id may itself contain colons (USNs, MACs), so only the
// first separator is significant.
func ParseZoneID(zoneID string) (source Source, nativeID string, ok bool) {
	idx := strings.Index(zoneID, ":")
	if idx < 0 {
		return "", "", false
	}
	src := Source(zoneID[:idx])
	if !src.Valid() {
		return "", "", false
	}
	return src, zoneID[idx+1:], true
}
