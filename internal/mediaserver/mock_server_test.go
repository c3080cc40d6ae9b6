package mediaserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// mockMediaServer simulates the JSON-RPC slim.request endpoint, mirroring
// the original implementation's tests/mock_servers/lms.rs in spirit (an
// HTTP status endpoint a poller hits repeatedly) but over JSON-RPC instead
// of LMS's query-string JSON endpoint.
type mockMediaServer struct {
	srv *httptest.Server

	mu     sync.Mutex
	mode   string
	title  string
	artist string
	volume int
}

func startMockMediaServer() *mockMediaServer {
	m := &mockMediaServer{mode: "stop", volume: 40}
	m.srv = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *mockMediaServer) URL() string { return m.srv.URL }
func (m *mockMediaServer) Close()      { m.srv.Close() }

func (m *mockMediaServer) SetPlaying(title, artist string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = "play"
	m.title = title
	m.artist = artist
}

func (m *mockMediaServer) SetVolume(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

type rpcReq struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func (m *mockMediaServer) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	args, _ := req.Params[1].([]interface{})
	sub, _ := firstString(args)

	switch sub {
	case "status":
		m.writeResult(w, req.ID, map[string]interface{}{
			"mode": m.mode, "title": m.title, "artist": m.artist,
			"duration": 200, "time": 10, "mixer_volume": m.volume,
		})
	case "mixer":
		if len(args) >= 3 {
			if v, ok := args[2].(float64); ok {
				m.volume = int(v)
			}
		}
		m.writeResult(w, req.ID, map[string]interface{}{})
	case "play":
		m.mode = "play"
		m.writeResult(w, req.ID, map[string]interface{}{})
	case "pause":
		m.mode = "pause"
		m.writeResult(w, req.ID, map[string]interface{}{})
	case "stop":
		m.mode = "stop"
		m.writeResult(w, req.ID, map[string]interface{}{})
	default:
		m.writeResult(w, req.ID, map[string]interface{}{})
	}
}

func firstString(args []interface{}) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

func (m *mockMediaServer) writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "result": result})
}
