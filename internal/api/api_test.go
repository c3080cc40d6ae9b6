package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
	"github.com/openhorizonlabs/uhc/internal/config"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// fakeZones is a minimal in-memory ZoneReader for handler tests.
type fakeZones struct {
	zones  map[string]models.Zone
	digest string
}

func newFakeZones(zones ...models.Zone) *fakeZones {
	m := make(map[string]models.Zone, len(zones))
	for _, z := range zones {
		m[z.ZoneID] = z
	}
	return &fakeZones{zones: m, digest: "abcd1234"}
}

func (f *fakeZones) ListZones() []models.Zone {
	out := make([]models.Zone, 0, len(f.zones))
	for _, z := range f.zones {
		out = append(out, z)
	}
	return out
}

func (f *fakeZones) ListZonesBySource(source models.Source) []models.Zone {
	var out []models.Zone
	for _, z := range f.zones {
		if z.Source == source {
			out = append(out, z)
		}
	}
	return out
}

func (f *fakeZones) GetZone(zoneID string) (models.Zone, bool) {
	z, ok := f.zones[zoneID]
	return z, ok
}

func (f *fakeZones) ZonesDigest() string { return f.digest }

// fakeAdapters is a minimal AdapterStatuser.
type fakeAdapters struct{ statuses map[string]adapter.Status }

func (f *fakeAdapters) Statuses() map[string]adapter.Status { return f.statuses }

// fakeCommander records calls for assertions.
type fakeCommander struct {
	controlCalls []models.ControlAction
	lastAbsolute float32
	lastRelative float32
	refuse       bool
}

func (c *fakeCommander) Control(ctx context.Context, nativeID string, action models.ControlAction) error {
	c.controlCalls = append(c.controlCalls, action)
	return nil
}

func (c *fakeCommander) SetVolumeAbsolute(ctx context.Context, nativeID, outputID string, value float32, kind models.VolumeKind) error {
	if c.refuse {
		return models.ErrBadRequest("refused")
	}
	c.lastAbsolute = value
	return nil
}

func (c *fakeCommander) SetVolumeRelative(ctx context.Context, nativeID, outputID string, step float32, kind models.VolumeKind) error {
	c.lastRelative = step
	return nil
}

// fakeHQP is a minimal HQPlayerSurface.
type fakeHQP struct {
	instances []string
	links     map[string]models.DSPLink
}

func (f *fakeHQP) Instances() []string                                      { return f.instances }
func (f *fakeHQP) AddInstance(ctx context.Context, name, addr string) error  { return nil }
func (f *fakeHQP) RemoveInstance(ctx context.Context, name string) error     { return nil }
func (f *fakeHQP) Pipeline(instance string) (HqpPipelineInfo, error) {
	return HqpPipelineInfo{InstanceName: instance, Filter: 1, Shaper: 2}, nil
}
func (f *fakeHQP) Profiles(ctx context.Context, instance string) ([]string, error) {
	return []string{"p1", "p2"}, nil
}
func (f *fakeHQP) LoadProfile(ctx context.Context, instance, name string) error { return nil }
func (f *fakeHQP) MatrixProfiles(ctx context.Context, instance string) ([]string, error) {
	return []string{"m1"}, nil
}
func (f *fakeHQP) SetMatrixProfile(ctx context.Context, instance string, index int) error { return nil }
func (f *fakeHQP) Link(zoneID, instance string) error {
	f.links[zoneID] = models.DSPLink{InstanceName: instance}
	return nil
}
func (f *fakeHQP) Unlink(zoneID string) error {
	delete(f.links, zoneID)
	return nil
}
func (f *fakeHQP) Links() map[string]models.DSPLink { return f.links }

// fakeImages is a minimal NowPlayingImageFetcher.
type fakeImages struct{}

func (fakeImages) FetchImage(ctx context.Context, source models.Source, imageKey string, width, height int) ([]byte, string, error) {
	return []byte("fake-image-bytes"), "image/png", nil
}

func newTestHandlers() *Handlers {
	zone := models.Zone{
		ZoneID:   models.ZoneID(models.SourceRoon, "z1"),
		Source:   models.SourceRoon,
		NativeID: "z1",
		ZoneName: "Living Room",
		State:    models.StatePlaying,
		Outputs:  []models.Output{{OutputID: "o1", Volume: models.NewNumberVolume(50, 1, false)}},
		NowPlaying: &models.NowPlaying{
			Line1: "Song", IsPlaying: true,
			ImageKey: strPtr("artwork-key"),
		},
		Capabilities: []models.Capability{models.CapPlay, models.CapPause, models.CapVolumeSet},
	}
	zones := newFakeZones(zone)
	commander := &fakeCommander{}
	return NewHandlers(
		zones,
		&fakeAdapters{statuses: map[string]adapter.Status{"roon": {Connected: true}}},
		bus.New(),
		map[models.Source]Commander{models.SourceRoon: commander},
		&fakeHQP{instances: []string{"hqp1"}, links: map[string]models.DSPLink{}},
		config.NewMemStore(),
		fakeImages{},
		"0.1.0-test", "deadbeef",
	)
}

func strPtr(s string) *string { return &s }

func TestGetStatus(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var st models.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Service != "uhc" {
		t.Errorf("service = %q", st.Service)
	}
}

func TestListZones(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/zones", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "zones_sha") {
		t.Errorf("expected zones_sha in body, got %s", w.Body.String())
	}
}

func TestSourceZoneNotFound(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/roon/zone/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUnifiedControlRoutesByZoneIDPrefix(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	body := strings.NewReader(`{"zone_id":"roon:z1","action":"play"}`)
	req := httptest.NewRequest(http.MethodPost, "/control", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	cmd := h.commanders[models.SourceRoon].(*fakeCommander)
	if len(cmd.controlCalls) != 1 || cmd.controlCalls[0] != models.ActionPlay {
		t.Errorf("control calls = %v", cmd.controlCalls)
	}
}

func TestUnifiedControlRejectsMalformedZoneID(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	body := strings.NewReader(`{"zone_id":"nocolonhere","action":"play"}`)
	req := httptest.NewRequest(http.MethodPost, "/control", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSourceVolumeAbsolute(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	body := strings.NewReader(`{"output_id":"o1","value":75}`)
	req := httptest.NewRequest(http.MethodPost, "/roon/volume", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	cmd := h.commanders[models.SourceRoon].(*fakeCommander)
	if cmd.lastAbsolute != 75 {
		t.Errorf("lastAbsolute = %v", cmd.lastAbsolute)
	}
}

func TestNowPlaying(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/now_playing?zone_id=roon:z1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp nowPlayingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ZoneName != "Living Room" {
		t.Errorf("zone_name = %q", resp.ZoneName)
	}
}

// TestNowPlayingUnknownZoneReturnsStub covers spec scenario S5: a zone_id
// the aggregator hasn't discovered yet must still get a 200 with
// zones_sha populated, and the digest must change once the zone appears.
func TestNowPlayingUnknownZoneReturnsStub(t *testing.T) {
	zones := newFakeZones()
	zones.digest = "aaaa0000"
	h := NewHandlers(
		zones,
		&fakeAdapters{statuses: map[string]adapter.Status{}},
		bus.New(),
		map[models.Source]Commander{},
		&fakeHQP{instances: nil, links: map[string]models.DSPLink{}},
		config.NewMemStore(),
		fakeImages{},
		"0.1.0-test", "deadbeef",
	)
	r := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/now_playing?zone_id=roon:ghost", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp nowPlayingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ZoneID != "roon:ghost" {
		t.Errorf("zone_id = %q, want roon:ghost", resp.ZoneID)
	}
	if resp.NowPlaying != nil {
		t.Errorf("now_playing = %+v, want nil for an undiscovered zone", resp.NowPlaying)
	}
	if resp.ZonesSHA != "aaaa0000" {
		t.Errorf("zones_sha = %q, want aaaa0000", resp.ZonesSHA)
	}

	// The zone now appears; the digest changes, and a second call surfaces it.
	zones.zones["roon:ghost"] = models.Zone{ZoneID: "roon:ghost", ZoneName: "Ghost Room"}
	zones.digest = "bbbb1111"

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w2.Code)
	}
	var resp2 nowPlayingResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &resp2); err != nil {
		t.Fatal(err)
	}
	if resp2.ZoneName != "Ghost Room" {
		t.Errorf("zone_name = %q, want Ghost Room", resp2.ZoneName)
	}
	if resp2.ZonesSHA == resp.ZonesSHA {
		t.Errorf("zones_sha did not change after the zone appeared: %q", resp2.ZonesSHA)
	}
}

func TestNowPlayingImagePassthrough(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/now_playing/image?zone_id=roon:z1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "fake-image-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)

	put := httptest.NewRequest(http.MethodPut, "/config/knob1", strings.NewReader(`{"brightness":5}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, put)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put status = %d", w.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/config/knob1", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, get)
	if w2.Code != http.StatusOK {
		t.Fatalf("get status = %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), "brightness") {
		t.Errorf("body = %s", w2.Body.String())
	}
	if w2.Header().Get("X-Config-SHA") == "" {
		t.Error("expected X-Config-SHA header")
	}
}

func TestHqpLinkAndList(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)

	link := httptest.NewRequest(http.MethodPost, "/hqp/zones/link", strings.NewReader(`{"zone_id":"roon:z1","instance":"hqp1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, link)
	if w.Code != http.StatusNoContent {
		t.Fatalf("link status = %d body=%s", w.Code, w.Body.String())
	}

	list := httptest.NewRequest(http.MethodGet, "/hqp/zones/link", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, list)
	if w2.Code != http.StatusOK {
		t.Fatalf("list status = %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), "hqp1") {
		t.Errorf("body = %s", w2.Body.String())
	}
}

func TestHqpPipeline(t *testing.T) {
	h := newTestHandlers()
	r := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/hqplayer/pipeline?instance=hqp1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var info HqpPipelineInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Filter != 1 || info.Shaper != 2 {
		t.Errorf("info = %+v", info)
	}
}
