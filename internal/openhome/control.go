package openhome

import (
	"context"
	"fmt"
	"net/url"

	"github.com/huin/goupnp"
)

// OpenHome's extended service set, distinct from plain UPnP AVTransport:
// Transport drives play state, Volume is its own service (not bundled into
// RenderingControl), and Info reports now-playing metadata directly instead
// of requiring a DIDL-Lite parse of a transport field.
const (
	productURN   = "urn:av-openhome-org:service:Product:2"
	transportURN = "urn:av-openhome-org:service:Transport:1"
	volumeURN    = "urn:av-openhome-org:service:Volume:1"
	infoURN      = "urn:av-openhome-org:service:Info:1"
)

// DeviceControl is the narrow SOAP-control surface this adapter needs.
type DeviceControl interface {
	FetchDescription(ctx context.Context) (DeviceInfo, error)
	TransportState(ctx context.Context) (string, error)
	TrackInfo(ctx context.Context) (TrackInfo, error)
	Volume(ctx context.Context) (VolumeInfo, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, value int) error
	SetMute(ctx context.Context, mute bool) error
}

// DeviceInfo is the subset of an OpenHome device description this adapter uses.
type DeviceInfo struct {
	FriendlyName string
	UDN          string
}

// TrackInfo mirrors the Info service's Track/Details actions,
// already split into fields rather than raw DIDL-Lite.
type TrackInfo struct {
	Title       string
	Artist      string
	DurationSec int
	PositionSec int
}

// VolumeInfo mirrors the Volume service's current value, range, and mute.
type VolumeInfo struct {
	Value int
	Min   int
	Max   int
	Step  int
	Muted bool
}

type soapDeviceControl struct {
	location string

	product   *goupnp.ServiceClient
	transport *goupnp.ServiceClient
	volume    *goupnp.ServiceClient
	info      *goupnp.ServiceClient
	device    DeviceInfo
}

// NewSOAPDeviceControl fetches the device description at location and
// resolves its Product/Transport/Volume/Info service endpoints.
func NewSOAPDeviceControl(ctx context.Context, location string) (DeviceControl, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("openhome: bad device location %q: %w", location, err)
	}
	root, err := goupnp.DeviceByURL(loc)
	if err != nil {
		return nil, fmt.Errorf("openhome: fetch device description: %w", err)
	}

	productClients, err := goupnp.NewServiceClientsFromRootDevice(root, loc, productURN)
	if err != nil || len(productClients) == 0 {
		return nil, fmt.Errorf("openhome: device %s has no Product service", location)
	}
	transportClients, err := goupnp.NewServiceClientsFromRootDevice(root, loc, transportURN)
	if err != nil || len(transportClients) == 0 {
		return nil, fmt.Errorf("openhome: device %s has no Transport service", location)
	}
	volumeClients, _ := goupnp.NewServiceClientsFromRootDevice(root, loc, volumeURN)
	infoClients, _ := goupnp.NewServiceClientsFromRootDevice(root, loc, infoURN)

	c := &soapDeviceControl{
		location:  location,
		product:   &productClients[0],
		transport: &transportClients[0],
		device:    DeviceInfo{FriendlyName: root.Device.FriendlyName, UDN: root.Device.UDN},
	}
	if len(volumeClients) > 0 {
		c.volume = &volumeClients[0]
	}
	if len(infoClients) > 0 {
		c.info = &infoClients[0]
	}
	return c, nil
}

func (c *soapDeviceControl) FetchDescription(ctx context.Context) (DeviceInfo, error) {
	return c.device, nil
}

func (c *soapDeviceControl) TransportState(ctx context.Context) (string, error) {
	var out struct{ State string }
	if err := c.transport.SOAPClient.PerformAction(transportURN, "TransportState", &struct{}{}, &out); err != nil {
		return "", fmt.Errorf("openhome: TransportState: %w", err)
	}
	return out.State, nil
}

func (c *soapDeviceControl) TrackInfo(ctx context.Context) (TrackInfo, error) {
	if c.info == nil {
		return TrackInfo{}, fmt.Errorf("openhome: device has no Info service")
	}
	var trackOut struct {
		TrackUri      string
		TrackMetadata string
	}
	if err := c.info.SOAPClient.PerformAction(infoURN, "Track", &struct{}{}, &trackOut); err != nil {
		return TrackInfo{}, fmt.Errorf("openhome: Track: %w", err)
	}
	var detailsOut struct {
		Duration int
		BitRate  int
	}
	_ = c.info.SOAPClient.PerformAction(infoURN, "Details", &struct{}{}, &detailsOut)

	title, artist := parseOhMetadataTitleArtist(trackOut.TrackMetadata)
	return TrackInfo{Title: title, Artist: artist, DurationSec: detailsOut.Duration}, nil
}

func (c *soapDeviceControl) Volume(ctx context.Context) (VolumeInfo, error) {
	if c.volume == nil {
		return VolumeInfo{}, fmt.Errorf("openhome: device has no Volume service")
	}
	var volOut struct{ Value int }
	if err := c.volume.SOAPClient.PerformAction(volumeURN, "Volume", &struct{}{}, &volOut); err != nil {
		return VolumeInfo{}, fmt.Errorf("openhome: Volume: %w", err)
	}
	var muteOut struct{ Value bool }
	_ = c.volume.SOAPClient.PerformAction(volumeURN, "Mute", &struct{}{}, &muteOut)
	var limitsOut struct{ Value int }
	_ = c.volume.SOAPClient.PerformAction(volumeURN, "VolumeLimit", &struct{}{}, &limitsOut)

	max := limitsOut.Value
	if max == 0 {
		max = 100
	}
	return VolumeInfo{Value: volOut.Value, Min: 0, Max: max, Step: 1, Muted: muteOut.Value}, nil
}

func (c *soapDeviceControl) Play(ctx context.Context) error {
	return c.transport.SOAPClient.PerformAction(transportURN, "Play", &struct{}{}, &struct{}{})
}

func (c *soapDeviceControl) Pause(ctx context.Context) error {
	return c.transport.SOAPClient.PerformAction(transportURN, "Pause", &struct{}{}, &struct{}{})
}

func (c *soapDeviceControl) Stop(ctx context.Context) error {
	return c.transport.SOAPClient.PerformAction(transportURN, "Stop", &struct{}{}, &struct{}{})
}

func (c *soapDeviceControl) SetVolume(ctx context.Context, value int) error {
	if c.volume == nil {
		return fmt.Errorf("openhome: device has no Volume service")
	}
	in := struct{ Value int }{value}
	return c.volume.SOAPClient.PerformAction(volumeURN, "SetVolume", &in, &struct{}{})
}

func (c *soapDeviceControl) SetMute(ctx context.Context, mute bool) error {
	if c.volume == nil {
		return fmt.Errorf("openhome: device has no Volume service")
	}
	in := struct{ Value bool }{mute}
	return c.volume.SOAPClient.PerformAction(volumeURN, "SetMute", &in, &struct{}{})
}

var _ DeviceControl = (*soapDeviceControl)(nil)
