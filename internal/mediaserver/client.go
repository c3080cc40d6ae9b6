// Package mediaserver adapts a generic JSON-RPC-over-HTTP media renderer
// (spec §4.5) onto the unified bus. It follows the teacher's LMSStream
// (internal/streams/lms.go) HTTP-polling shape closely — fetch status on a
// ticker, diff, republish — but polls POST /jsonrpc.js instead of LMS's
// GET status.html, and varies its own cadence with playback state per
// spec's adaptive-polling requirement.
package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// playerStatus is the subset of the slim.request "status" result this
// adapter uses.
type playerStatus struct {
	Mode         string  `json:"mode"` // "play", "pause", "stop"
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album"`
	ArtworkURL   string  `json:"artwork_url"`
	DurationSec  float64 `json:"duration"`
	PositionSec  float64 `json:"time"`
	MixerVolume  int     `json:"mixer_volume"` // 0-100
	PlaylistIdx  int     `json:"playlist_cur_index"`
}

// Client speaks the JSON-RPC-over-HTTP protocol to one player by ID.
type Client struct {
	baseURL  string
	playerID string
	http     *http.Client
}

// NewClient creates a Client targeting baseURL (e.g. "http://host:9090")
// for the named player.
func NewClient(baseURL, playerID string) *Client {
	return &Client{baseURL: baseURL, playerID: playerID, http: &http.Client{Timeout: 3 * time.Second}}
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	reqBody := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc.js", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediaserver: request failed: %w", err)
	}
	defer resp.Body.Close()

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("mediaserver: decode response: %w", err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("mediaserver: %s", rpc.Error.Message)
	}
	return rpc.Result, nil
}

// Status fetches the player's current playback status.
func (c *Client) Status(ctx context.Context) (playerStatus, error) {
	raw, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"status", "-", 1, "tags:al"})
	if err != nil {
		return playerStatus{}, err
	}
	var st playerStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return playerStatus{}, fmt.Errorf("mediaserver: parse status: %w", err)
	}
	return st, nil
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"play"})
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"pause", 1})
	return err
}

func (c *Client) Stop(ctx context.Context) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"stop"})
	return err
}

func (c *Client) Previous(ctx context.Context) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"playlist", "index", "-1"})
	return err
}

func (c *Client) Next(ctx context.Context) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"playlist", "index", "+1"})
	return err
}

// SetVolume sets the mixer volume to an absolute 0-100 value.
func (c *Client) SetVolume(ctx context.Context, value int) error {
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"mixer", "volume", value})
	return err
}

// SetVolumeRelative nudges the mixer volume by delta (mixer volume
// "+N"/"-N" per spec §4.5), rather than sending delta as an absolute value.
func (c *Client) SetVolumeRelative(ctx context.Context, delta int) error {
	arg := fmt.Sprintf("%+d", delta)
	_, err := c.call(ctx, "slim.request", c.playerID, []interface{}{"mixer", "volume", arg})
	return err
}

// FetchImage retrieves raw artwork bytes from a now-playing artwork_url,
// which the media-server reports as a plain fetchable HTTP URL (unlike
// Roon's opaque image_key requiring a vendor image API call).
func (c *Client) FetchImage(ctx context.Context, artworkURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("mediaserver: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("mediaserver: fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
