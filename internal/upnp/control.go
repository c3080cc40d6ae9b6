package upnp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/huin/goupnp"
)

// avTransportURN and renderingControlURN are the SOAP service types this
// adapter drives once it has a device's description document.
const (
	avTransportURN      = "urn:schemas-upnp-org:service:AVTransport:1"
	renderingControlURN = "urn:schemas-upnp-org:service:RenderingControl:1"
)

// DeviceControl is the narrow SOAP-control surface this adapter needs,
// letting tests substitute a fake instead of dialing a real device over
// HTTP — the same boundary-interface idiom as roon.RoomClient.
type DeviceControl interface {
	FetchDescription(ctx context.Context) (DeviceInfo, error)
	GetTransportInfo(ctx context.Context) (TransportInfo, error)
	GetPositionInfo(ctx context.Context) (PositionInfo, error)
	GetVolume(ctx context.Context) (int, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, value int) error
}

// DeviceInfo is the subset of a UPnP device description this adapter uses.
type DeviceInfo struct {
	FriendlyName string
	UDN          string
}

// TransportInfo mirrors AVTransport's GetTransportInfo response.
type TransportInfo struct {
	State string // "PLAYING", "PAUSED_PLAYBACK", "STOPPED", "TRANSITIONING"
}

// PositionInfo mirrors AVTransport's GetPositionInfo response.
type PositionInfo struct {
	Title       string
	Artist      string
	Album       string
	DurationSec int
	PositionSec int
}

// soapDeviceControl is the real DeviceControl backed by goupnp, fetching
// the device description once at construction and issuing SOAP actions
// against its AVTransport/RenderingControl service endpoints.
type soapDeviceControl struct {
	location string

	transport *goupnp.ServiceClient
	rendering *goupnp.ServiceClient
	info      DeviceInfo
}

// NewSOAPDeviceControl fetches the device description at location and
// resolves its AVTransport and RenderingControl service endpoints.
func NewSOAPDeviceControl(ctx context.Context, location string) (DeviceControl, error) {
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("upnp: bad device location %q: %w", location, err)
	}
	root, err := goupnp.DeviceByURL(loc)
	if err != nil {
		return nil, fmt.Errorf("upnp: fetch device description: %w", err)
	}

	transportClients, err := goupnp.NewServiceClientsFromRootDevice(root, loc, avTransportURN)
	if err != nil || len(transportClients) == 0 {
		return nil, fmt.Errorf("upnp: device %s has no AVTransport service", location)
	}
	renderingClients, _ := goupnp.NewServiceClientsFromRootDevice(root, loc, renderingControlURN)

	c := &soapDeviceControl{
		location:  location,
		transport: &transportClients[0],
		info:      DeviceInfo{FriendlyName: root.Device.FriendlyName, UDN: root.Device.UDN},
	}
	if len(renderingClients) > 0 {
		c.rendering = &renderingClients[0]
	}
	return c, nil
}

func (c *soapDeviceControl) FetchDescription(ctx context.Context) (DeviceInfo, error) {
	return c.info, nil
}

func (c *soapDeviceControl) GetTransportInfo(ctx context.Context) (TransportInfo, error) {
	in := struct{ InstanceID uint32 }{0}
	var out struct {
		CurrentTransportState string
	}
	if err := c.transport.SOAPClient.PerformAction(avTransportURN, "GetTransportInfo", &in, &out); err != nil {
		return TransportInfo{}, fmt.Errorf("upnp: GetTransportInfo: %w", err)
	}
	return TransportInfo{State: out.CurrentTransportState}, nil
}

func (c *soapDeviceControl) GetPositionInfo(ctx context.Context) (PositionInfo, error) {
	in := struct{ InstanceID uint32 }{0}
	var out struct {
		TrackMetaData string
		RelTime       string
		TrackDuration string
	}
	if err := c.transport.SOAPClient.PerformAction(avTransportURN, "GetPositionInfo", &in, &out); err != nil {
		return PositionInfo{}, fmt.Errorf("upnp: GetPositionInfo: %w", err)
	}
	title, artist, album := parseDIDLTitleArtistAlbum(out.TrackMetaData)
	return PositionInfo{
		Title:       title,
		Artist:      artist,
		Album:       album,
		DurationSec: parseHMSSeconds(out.TrackDuration),
		PositionSec: parseHMSSeconds(out.RelTime),
	}, nil
}

func (c *soapDeviceControl) GetVolume(ctx context.Context) (int, error) {
	if c.rendering == nil {
		return 0, fmt.Errorf("upnp: device has no RenderingControl service")
	}
	in := struct {
		InstanceID uint32
		Channel    string
	}{0, "Master"}
	var out struct{ CurrentVolume uint32 }
	if err := c.rendering.SOAPClient.PerformAction(renderingControlURN, "GetVolume", &in, &out); err != nil {
		return 0, fmt.Errorf("upnp: GetVolume: %w", err)
	}
	return int(out.CurrentVolume), nil
}

func (c *soapDeviceControl) Play(ctx context.Context) error {
	in := struct {
		InstanceID uint32
		Speed      string
	}{0, "1"}
	return c.transport.SOAPClient.PerformAction(avTransportURN, "Play", &in, &struct{}{})
}

func (c *soapDeviceControl) Pause(ctx context.Context) error {
	in := struct{ InstanceID uint32 }{0}
	return c.transport.SOAPClient.PerformAction(avTransportURN, "Pause", &in, &struct{}{})
}

func (c *soapDeviceControl) Stop(ctx context.Context) error {
	in := struct{ InstanceID uint32 }{0}
	return c.transport.SOAPClient.PerformAction(avTransportURN, "Stop", &in, &struct{}{})
}

func (c *soapDeviceControl) SetVolume(ctx context.Context, value int) error {
	if c.rendering == nil {
		return fmt.Errorf("upnp: device has no RenderingControl service")
	}
	in := struct {
		InstanceID    uint32
		Channel       string
		DesiredVolume uint32
	}{0, "Master", uint32(value)}
	return c.rendering.SOAPClient.PerformAction(renderingControlURN, "SetVolume", &in, &struct{}{})
}

var _ DeviceControl = (*soapDeviceControl)(nil)
