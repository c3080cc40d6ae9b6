package api

import (
	"bytes"
	"encoding/binary"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// defaultImageSize bounds the RGB565 resize target when width/height are
// omitted or invalid, matching the teacher display's native panel size
// (cmd/amplipi-display/tft.go).
const defaultImageSize = 128

type nowPlayingResponse struct {
	ZoneID     string             `json:"zone_id"`
	ZoneName   string             `json:"zone_name"`
	Source     models.Source      `json:"source"`
	State      models.PlaybackState `json:"state"`
	NowPlaying *models.NowPlaying `json:"now_playing,omitempty"`
	Volume     models.Volume      `json:"volume,omitempty"`
	DSPLink    *models.DSPLink    `json:"dsp_link,omitempty"`
	ZonesSHA   string             `json:"zones_sha"`
}

// nowPlaying handles GET /now_playing?zone_id=…, the knob/watch client's
// single-zone metadata surface. A zone_id the aggregator hasn't discovered
// yet (e.g. the knob is polling ahead of a backend's first seed) still gets
// a 200 with an empty-zone stub rather than a 404: the knob client polls
// this endpoint on a fixed interval before it has any other way to know
// whether the zone exists yet, and zones_sha lets it detect the moment the
// zone actually appears.
func (h *Handlers) nowPlaying(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	if zoneID == "" {
		writeError(w, models.ErrBadRequest("zone_id is required"))
		return
	}
	zone, ok := h.zones.GetZone(zoneID)
	if !ok {
		writeJSON(w, http.StatusOK, nowPlayingResponse{
			ZoneID:   zoneID,
			ZonesSHA: h.zones.ZonesDigest(),
		})
		return
	}
	writeJSON(w, http.StatusOK, nowPlayingResponse{
		ZoneID:     zone.ZoneID,
		ZoneName:   zone.ZoneName,
		Source:     zone.Source,
		State:      zone.State,
		NowPlaying: zone.NowPlaying,
		Volume:     zone.Volume,
		DSPLink:    zone.DSPLink,
		ZonesSHA:   h.zones.ZonesDigest(),
	})
}

// nowPlayingImage handles GET /now_playing/image?zone_id=…&width=…&height=…&format=rgb565.
// format=rgb565 decodes whatever the backend returns and re-encodes it as a
// raw little-endian 16-bit-per-pixel buffer (spec §6); any other format (or
// no format) passes the backend's bytes straight through.
func (h *Handlers) nowPlayingImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zoneID := q.Get("zone_id")
	if zoneID == "" {
		writeError(w, models.ErrBadRequest("zone_id is required"))
		return
	}
	zone, ok := h.zones.GetZone(zoneID)
	if !ok {
		writeError(w, models.ErrNotFound("no zone "+zoneID))
		return
	}
	if zone.NowPlaying == nil || zone.NowPlaying.ImageKey == nil {
		writeError(w, models.ErrNotFound("zone has no artwork"))
		return
	}

	width := parseDimension(q.Get("width"), defaultImageSize)
	height := parseDimension(q.Get("height"), defaultImageSize)

	data, contentType, err := h.images.FetchImage(r.Context(), zone.Source, *zone.NowPlaying.ImageKey, width, height)
	if err != nil {
		writeError(w, err)
		return
	}

	if q.Get("format") != "rgb565" {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
		return
	}

	buf, err := encodeRGB565(data, width, height)
	if err != nil {
		writeError(w, models.ErrInternal("decode artwork: "+err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(buf)
}

func parseDimension(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// encodeRGB565 decodes src (any registered image format), resizes it to
// width x height with a Catmull-Rom scaler, and packs it as a raw
// little-endian RGB565 buffer. This deliberately uses little-endian byte
// order per spec §6, unlike the teacher's own SPI panel encoding in
// cmd/amplipi-display/tft.go, which is big-endian for that display's
// controller.
func encodeRGB565(src []byte, width, height int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]byte, width*height*2)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			packed := uint16((r>>11)<<11 | (g>>10)<<5 | (b >> 11))
			binary.LittleEndian.PutUint16(out[i:], packed)
			i += 2
		}
	}
	return out, nil
}
