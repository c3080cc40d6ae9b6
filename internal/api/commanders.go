// This file is the one place internal/api is allowed to import a backend
// adapter package directly (architecture_test.go lints every other file in
// this package against that). Everything here exists to translate the five
// adapters' differently-shaped command methods into the narrow Commander,
// HQPlayerSurface, and NowPlayingImageFetcher interfaces the handlers
// depend on.
package api

import (
	"context"
	"fmt"

	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/hqplayer"
	"github.com/openhorizonlabs/uhc/internal/mediaserver"
	"github.com/openhorizonlabs/uhc/internal/models"
	"github.com/openhorizonlabs/uhc/internal/openhome"
	"github.com/openhorizonlabs/uhc/internal/roon"
	"github.com/openhorizonlabs/uhc/internal/upnp"
)

// roonCommander adapts *roon.Adapter to Commander. nativeID is the Roon
// zone id; Roon's per-output volume methods take outputID directly.
type roonCommander struct{ a *roon.Adapter }

func (c roonCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	return c.a.Control(ctx, nativeID, action)
}

func (c roonCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	return c.a.SetVolumeAbsolute(ctx, outputID, value, kind)
}

func (c roonCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	return c.a.SetVolumeRelative(ctx, outputID, step, kind)
}

// upnpCommander adapts *upnp.Adapter to Commander. UPnP's plain
// RenderingControl has no relative-step action and always reports a fixed
// 0-100 range, so relative requests are translated into an absolute set
// computed from the zone's last-known value rather than refused outright —
// callers that need true relative control should prefer a Db/Number source.
type upnpCommander struct {
	a     *upnp.Adapter
	zones ZoneReader
}

func (c upnpCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	return c.a.Control(ctx, nativeID, action)
}

func (c upnpCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	return c.a.SetVolumeAbsolute(ctx, nativeID, value)
}

func (c upnpCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	zone, ok := c.zones.GetZone(models.ZoneID(models.SourceUPnP, nativeID))
	if !ok || zone.Volume == nil {
		return models.ErrBadRequest("upnp: cannot step volume without a known current value")
	}
	nv, ok := zone.Volume.(models.NumberVolume)
	if !ok {
		return models.ErrBadRequest("upnp: volume is not steppable")
	}
	target := models.ClampF32(nv.Value+step, nv.Min, nv.Max)
	return c.a.SetVolumeAbsolute(ctx, nativeID, target)
}

// openhomeCommander adapts *openhome.Adapter to Commander, same shape as
// upnpCommander since OpenHome's plain Volume service has the same
// absolute-only surface in this package's DeviceControl.
type openhomeCommander struct {
	a     *openhome.Adapter
	zones ZoneReader
}

func (c openhomeCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	return c.a.Control(ctx, nativeID, action)
}

func (c openhomeCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	return c.a.SetVolumeAbsolute(ctx, nativeID, value)
}

func (c openhomeCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	zone, ok := c.zones.GetZone(models.ZoneID(models.SourceOpenHome, nativeID))
	if !ok || zone.Volume == nil {
		return models.ErrBadRequest("openhome: cannot step volume without a known current value")
	}
	nv, ok := zone.Volume.(models.NumberVolume)
	if !ok {
		return models.ErrBadRequest("openhome: volume is not steppable")
	}
	target := models.ClampF32(nv.Value+step, nv.Min, nv.Max)
	return c.a.SetVolumeAbsolute(ctx, nativeID, target)
}

// mediaserverCommander adapts *mediaserver.Adapter to Commander. It targets
// a single fixed player, so nativeID and outputID are both ignored.
type mediaserverCommander struct{ a *mediaserver.Adapter }

func (c mediaserverCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	switch action {
	case models.ActionPlay, models.ActionPlayPause:
		return c.a.Play(ctx)
	case models.ActionPause:
		return c.a.Pause(ctx)
	case models.ActionStop:
		return c.a.StopPlayback(ctx)
	case models.ActionPrevious:
		return c.a.Previous(ctx)
	case models.ActionNext:
		return c.a.Next(ctx)
	default:
		return models.ErrBadRequest(fmt.Sprintf("mediaserver: unsupported action %q", action))
	}
}

func (c mediaserverCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	return c.a.SetVolume(ctx, int(value))
}

func (c mediaserverCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	return c.a.SetVolumeRelative(ctx, int(step))
}

// hqplayerCommander adapts *hqplayer.InstanceManager to Commander. nativeID
// is the instance name (an HQPlayer "zone" is one instance).
type hqplayerCommander struct{ m *hqplayer.InstanceManager }

func (c hqplayerCommander) instance(nativeID string) (*hqplayer.Adapter, error) {
	a, ok := c.m.Get(nativeID)
	if !ok {
		return nil, models.ErrNotFound("hqplayer: no instance named " + nativeID)
	}
	return a, nil
}

func (c hqplayerCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	a, err := c.instance(nativeID)
	if err != nil {
		return err
	}
	switch action {
	case models.ActionPlay, models.ActionPlayPause:
		return a.Play(ctx)
	case models.ActionPause:
		return a.Pause(ctx)
	case models.ActionStop:
		return a.StopPlayback(ctx)
	default:
		return models.ErrBadRequest(fmt.Sprintf("hqplayer: unsupported action %q", action))
	}
}

func (c hqplayerCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	a, err := c.instance(nativeID)
	if err != nil {
		return err
	}
	return a.SetVolumeAbsoluteDb(ctx, int(value))
}

func (c hqplayerCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	a, err := c.instance(nativeID)
	if err != nil {
		return err
	}
	return a.VolumeStep(ctx, int(step))
}

// NewCommanders builds the per-source Commander map cmd/uhcd wires into
// NewHandlers, given the concrete adapters the coordinator owns.
func NewCommanders(
	zones ZoneReader,
	roonAdapter *roon.Adapter,
	hqpInstances *hqplayer.InstanceManager,
	mediaserverAdapter *mediaserver.Adapter,
	openhomeAdapter *openhome.Adapter,
	upnpAdapter *upnp.Adapter,
) map[models.Source]Commander {
	return map[models.Source]Commander{
		models.SourceRoon:        roonCommander{a: roonAdapter},
		models.SourceHQPlayer:    hqplayerCommander{m: hqpInstances},
		models.SourceMediaServer: mediaserverCommander{a: mediaserverAdapter},
		models.SourceOpenHome:    openhomeCommander{a: openhomeAdapter, zones: zones},
		models.SourceUPnP:        upnpCommander{a: upnpAdapter, zones: zones},
	}
}

// hqpSurface adapts hqplayer.InstanceManager + hqplayer.ZoneLink to
// HQPlayerSurface.
type hqpSurface struct {
	instances *hqplayer.InstanceManager
	links     *hqplayer.ZoneLink
	b         *bus.Bus
}

// NewHQPlayerSurface constructs the HQPlayerSurface cmd/uhcd wires in.
func NewHQPlayerSurface(instances *hqplayer.InstanceManager, links *hqplayer.ZoneLink, b *bus.Bus) HQPlayerSurface {
	return hqpSurface{instances: instances, links: links, b: b}
}

// publishDSPLink re-publishes a zone's new DSPLink as a KindZoneUpdated
// event so SSE/aggregator consumers re-render a just-linked zone without
// this package having to special-case its own Link RPC. ZonePartial.DSPLink
// only models "set to this link" (a nil field means "leave unchanged"), so
// Unlink below can't be expressed the same way and is a known gap.
func (s hqpSurface) publishDSPLink(zoneID string, link models.DSPLink) {
	source, nativeID, ok := models.ParseZoneID(zoneID)
	if !ok {
		return
	}
	s.b.Publish(bus.Event{
		Kind:     bus.KindZoneUpdated,
		Source:   source,
		NativeID: nativeID,
		Partial:  &models.ZonePartial{DSPLink: &link},
	})
}

func (s hqpSurface) Instances() []string { return s.instances.Names() }

func (s hqpSurface) AddInstance(ctx context.Context, name, addr string) error {
	_, err := s.instances.Add(ctx, name, addr)
	return err
}

func (s hqpSurface) RemoveInstance(ctx context.Context, name string) error {
	return s.instances.Remove(ctx, name)
}

func (s hqpSurface) instance(name string) (*hqplayer.Adapter, error) {
	a, ok := s.instances.Get(name)
	if !ok {
		return nil, models.ErrNotFound("hqplayer: no instance named " + name)
	}
	return a, nil
}

func (s hqpSurface) Pipeline(instance string) (HqpPipelineInfo, error) {
	a, err := s.instance(instance)
	if err != nil {
		return HqpPipelineInfo{}, err
	}
	filter, shaper, matrixIdx, ok := a.Pipeline()
	if !ok {
		return HqpPipelineInfo{}, models.ErrConflict("hqplayer: no pipeline state polled yet")
	}
	return HqpPipelineInfo{InstanceName: instance, Filter: filter, Shaper: shaper, MatrixProfileIndex: matrixIdx}, nil
}

func (s hqpSurface) Profiles(ctx context.Context, instance string) ([]string, error) {
	a, err := s.instance(instance)
	if err != nil {
		return nil, err
	}
	return a.ListProfiles(ctx)
}

func (s hqpSurface) LoadProfile(ctx context.Context, instance, name string) error {
	a, err := s.instance(instance)
	if err != nil {
		return err
	}
	return a.LoadProfile(ctx, name)
}

func (s hqpSurface) MatrixProfiles(ctx context.Context, instance string) ([]string, error) {
	a, err := s.instance(instance)
	if err != nil {
		return nil, err
	}
	return a.ListMatrixProfiles(ctx)
}

func (s hqpSurface) SetMatrixProfile(ctx context.Context, instance string, index int) error {
	a, err := s.instance(instance)
	if err != nil {
		return err
	}
	if err := a.SetMatrixProfile(ctx, index); err != nil {
		return err
	}
	for zoneID, link := range s.links.All() {
		if link.InstanceName == instance {
			s.links.SetMatrixProfile(zoneID, index)
			if updated, ok := s.links.Get(zoneID); ok {
				s.publishDSPLink(zoneID, updated)
			}
		}
	}
	return nil
}

func (s hqpSurface) Link(zoneID, instance string) error {
	if _, ok := s.instances.Get(instance); !ok {
		return models.ErrNotFound("hqplayer: no instance named " + instance)
	}
	s.links.Link(zoneID, instance)
	if link, ok := s.links.Get(zoneID); ok {
		s.publishDSPLink(zoneID, link)
	}
	return nil
}

func (s hqpSurface) Unlink(zoneID string) error {
	s.links.Unlink(zoneID)
	return nil
}

func (s hqpSurface) Links() map[string]models.DSPLink { return s.links.All() }

// imageSources adapts the Roon and media-server adapters' FetchImage
// methods to NowPlayingImageFetcher; the other three backends report no
// imagery.
type imageSources struct {
	roon        *roon.Adapter
	mediaserver *mediaserver.Adapter
}

// NewImageSources constructs the NowPlayingImageFetcher cmd/uhcd wires in.
func NewImageSources(roonAdapter *roon.Adapter, mediaserverAdapter *mediaserver.Adapter) NowPlayingImageFetcher {
	return imageSources{roon: roonAdapter, mediaserver: mediaserverAdapter}
}

func (s imageSources) FetchImage(ctx context.Context, source models.Source, imageKey string, width, height int) ([]byte, string, error) {
	switch source {
	case models.SourceRoon:
		return s.roon.FetchImage(ctx, imageKey, width, height)
	case models.SourceMediaServer:
		return s.mediaserver.FetchImage(ctx, imageKey)
	default:
		return nil, "", models.ErrNotFound(fmt.Sprintf("%s: no artwork available", source))
	}
}
