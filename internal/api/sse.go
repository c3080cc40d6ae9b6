package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openhorizonlabs/uhc/internal/bus"
)

// sseKeepAlive bounds the interval between keep-alive comment lines, per
// spec §4.8, so a client or intermediate proxy doesn't time out an idle
// connection.
const sseKeepAlive = 15 * time.Second

// sseEvent is the wire shape of one server-sent bus event (spec §6's
// /events stream): a thin, JSON-friendly projection of bus.Event that omits
// whichever payload fields don't apply to Kind.
type sseEvent struct {
	Kind       string              `json:"kind"`
	ZoneID     string              `json:"zone_id,omitempty"`
	Source     string              `json:"source"`
	NowPlaying interface{}         `json:"now_playing,omitempty"`
	Volume     interface{}         `json:"volume,omitempty"`
	OutputID   string              `json:"output_id,omitempty"`
	Playback   string              `json:"playback,omitempty"`
	HqpState   interface{}         `json:"hqp_state,omitempty"`
	HqpPipe    interface{}         `json:"hqp_pipeline,omitempty"`
	Zone       interface{}         `json:"zone,omitempty"`
	Partial    interface{}         `json:"partial,omitempty"`
}

// events handles GET /events, the SSE stream every client polls instead of
// re-fetching /zones on a timer. Each subscriber gets its own bus
// subscription and a dedicated drop-oldest queue (bus.Bus handles
// backpressure); this handler just relays.
func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id := uuid.New().String()
	sub := h.bus.Subscribe(id)
	defer h.bus.Unsubscribe(id)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			sendSSE(w, flusher, toSSEEvent(ev))
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// toSSEEvent projects a bus.Event onto the wire shape, carrying only the
// fields that kind actually populates.
func toSSEEvent(e bus.Event) sseEvent {
	out := sseEvent{
		Kind:     string(e.Kind),
		ZoneID:   e.ZoneID(),
		Source:   string(e.Source),
		OutputID: e.OutputID,
	}
	if e.Zone != nil {
		out.Zone = e.Zone
	}
	if e.Partial != nil {
		out.Partial = e.Partial
	}
	if e.NowPlaying != nil {
		out.NowPlaying = e.NowPlaying
	}
	if e.Volume != nil {
		out.Volume = e.Volume
	}
	if e.Playback != "" {
		out.Playback = string(e.Playback)
	}
	if e.HqpState != nil {
		out.HqpState = e.HqpState
	}
	if e.HqpPipeline != nil {
		out.HqpPipe = e.HqpPipeline
	}
	return out
}
