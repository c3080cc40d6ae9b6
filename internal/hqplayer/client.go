package hqplayer

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxCommandsPerSec bounds how fast this package writes command lines onto
// the wire, the same "don't hammer a constrained backend" concern the
// teacher applies to its I2C bus (internal/hardware/i2c.go's limiter) — an
// HQPlayer instance is a single embedded TCP listener, not a pool of
// connections, so a runaway caller (e.g. a knob's volume-step repeat) could
// otherwise starve its reader goroutine.
const maxCommandsPerSec = 20

// Client owns one TCP connection to an HQPlayer instance and pumps the
// line-oriented XML protocol over it: write a command line, wait for the
// single reply line, repeat. Only one command may be outstanding at a time
// (sendMu serializes callers), matching the protocol's synchronous nature.
type Client struct {
	addr string

	connMu sync.Mutex
	conn   net.Conn

	sendMu  sync.Mutex
	slot    *pendingSlot
	limiter *rate.Limiter

	readDone chan struct{}
}

// NewClient constructs a Client for the given host:port. Dial happens in
// Connect, not here, so the adapter's reconnect loop owns retry timing.
func NewClient(addr string) *Client {
	return &Client{
		addr:    addr,
		slot:    newPendingSlot(),
		limiter: rate.NewLimiter(rate.Limit(maxCommandsPerSec), 5),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("hqplayer: dial %s: %w", c.addr, err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.readDone = make(chan struct{})
	go c.readLoop(conn)
	return nil
}

func (c *Client) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	c.slot.cancel()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// readLoop reads one XML line at a time and delivers it to the pending
// slot, which silently drops it if nothing is waiting for that element —
// HQPlayer never pushes unsolicited lines in this protocol, so an unclaimed
// line indicates desync, not a design case to route cleverly.
func (c *Client) readLoop(conn net.Conn) {
	defer close(c.readDone)
	r := bufio.NewScanner(conn)
	r.Buffer(make([]byte, 0, 4096), 1<<20)
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "<?xml") {
			continue
		}
		element := rootElementName(line)
		if element == "" {
			continue
		}
		c.slot.deliver(rawResponse{element: element, body: []byte(line)})
	}
}

// rootElementName extracts "Foo" from a line like `<Foo attr="1"/>`.
func rootElementName(line string) string {
	if !strings.HasPrefix(line, "<") {
		return ""
	}
	rest := line[1:]
	end := strings.IndexAny(rest, " \t/>")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// sendRecv writes one command line and waits for the line whose root
// element is wantElement, or an <Error/>. It is the only path any command
// method uses to talk to the wire.
func (c *Client) sendRecv(ctx context.Context, cmd interface{}, wantElement string) (rawResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return rawResponse{}, fmt.Errorf("hqplayer: rate limit wait: %w", err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return rawResponse{}, fmt.Errorf("hqplayer: not connected")
	}

	ch, err := c.slot.begin(wantElement)
	if err != nil {
		return rawResponse{}, err
	}

	body, err := xml.Marshal(cmd)
	if err != nil {
		c.slot.cancel()
		return rawResponse{}, fmt.Errorf("hqplayer: marshal command: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
		c.slot.cancel()
		return rawResponse{}, err
	}
	if _, err := conn.Write(append(body, '\n')); err != nil {
		c.slot.cancel()
		return rawResponse{}, fmt.Errorf("hqplayer: write command: %w", err)
	}

	resp, err := c.slot.wait(ctx, ch)
	if err != nil {
		return rawResponse{}, err
	}
	if resp.element == "Error" {
		var e respError
		_ = xml.Unmarshal(resp.body, &e)
		return rawResponse{}, fmt.Errorf("hqplayer: %s", e.Message)
	}
	return resp, nil
}

func (c *Client) GetInfo(ctx context.Context) (respGetInfo, error) {
	r, err := c.sendRecv(ctx, cmdGetInfo{}, "GetInfo")
	if err != nil {
		return respGetInfo{}, err
	}
	var out respGetInfo
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

func (c *Client) State(ctx context.Context) (respState, error) {
	r, err := c.sendRecv(ctx, cmdState{}, "State")
	if err != nil {
		return respState{}, err
	}
	var out respState
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (respStatus, error) {
	r, err := c.sendRecv(ctx, cmdStatus{}, "Status")
	if err != nil {
		return respStatus{}, err
	}
	var out respStatus
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

func (c *Client) VolumeRange(ctx context.Context) (respVolumeRange, error) {
	r, err := c.sendRecv(ctx, cmdVolumeRange{}, "VolumeRange")
	if err != nil {
		return respVolumeRange{}, err
	}
	var out respVolumeRange
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

func (c *Client) MatrixListProfiles(ctx context.Context) (respMatrixListProfiles, error) {
	r, err := c.sendRecv(ctx, cmdMatrixListProfiles{}, "MatrixListProfiles")
	if err != nil {
		return respMatrixListProfiles{}, err
	}
	var out respMatrixListProfiles
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

// ListProfiles returns the filter/upsampling profiles HQPlayer has defined,
// distinct from the matrix (output-routing) profiles above.
func (c *Client) ListProfiles(ctx context.Context) (respProfiles, error) {
	r, err := c.sendRecv(ctx, cmdProfiles{}, "Profiles")
	if err != nil {
		return respProfiles{}, err
	}
	var out respProfiles
	err = xml.Unmarshal(r.body, &out)
	return out, err
}

func (c *Client) LoadProfile(ctx context.Context, name string) error {
	_, err := c.sendRecv(ctx, cmdLoadProfile{Name: name}, "Ok")
	return err
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.sendRecv(ctx, cmdPlay{}, "Ok")
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.sendRecv(ctx, cmdPause{}, "Ok")
	return err
}

func (c *Client) Stop(ctx context.Context) error {
	_, err := c.sendRecv(ctx, cmdStop{}, "Ok")
	return err
}

func (c *Client) Previous(ctx context.Context) error {
	_, err := c.sendRecv(ctx, cmdPrevious{}, "Ok")
	return err
}

func (c *Client) Next(ctx context.Context) error {
	_, err := c.sendRecv(ctx, cmdNext{}, "Ok")
	return err
}

func (c *Client) SetVolume(ctx context.Context, valueDb int) error {
	_, err := c.sendRecv(ctx, cmdVolume{Value: valueDb}, "Ok")
	return err
}

func (c *Client) VolumeStep(ctx context.Context, stepDb int) error {
	if stepDb >= 0 {
		_, err := c.sendRecv(ctx, cmdVolumeUp{Step: stepDb}, "Ok")
		return err
	}
	_, err := c.sendRecv(ctx, cmdVolumeDown{Step: -stepDb}, "Ok")
	return err
}

func (c *Client) SetMute(ctx context.Context, mute bool) error {
	v := 0
	if mute {
		v = 1
	}
	_, err := c.sendRecv(ctx, cmdVolumeMute{Value: v}, "Ok")
	return err
}

func (c *Client) SetMatrixProfile(ctx context.Context, index int) error {
	_, err := c.sendRecv(ctx, cmdMatrixSetProfile{Index: index}, "Ok")
	return err
}
