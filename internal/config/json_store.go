package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	configFileName = "knobs.json"
	debounceDelay  = 500 * time.Millisecond
)

// JSONStore is an atomic JSON file store with debounced writes, one blob
// per knob_id, reused in shape from the teacher's config.JSONStore. It also
// watches its own file for external edits (the teacher's auth.Service
// pattern) so a config pushed by another process is picked up on the next
// Get without waiting for this process to write again.
type JSONStore struct {
	mu      sync.Mutex
	path    string
	blobs   map[string]json.RawMessage
	timer   *time.Timer
	pending map[string]json.RawMessage

	watcher *fsnotify.Watcher
}

// NewJSONStore creates a knob config store rooted at configDir.
func NewJSONStore(configDir string) *JSONStore {
	s := &JSONStore{
		path:  filepath.Join(configDir, configFileName),
		blobs: make(map[string]json.RawMessage),
	}
	if err := s.reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: initial load failed", "path", s.path, "err", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config: could not create fsnotify watcher", "err", err)
		return s
	}
	s.watcher = watcher
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		slog.Warn("config: could not watch config dir", "err", err)
	}
	go s.watchLoop()
	return s
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.blobs = make(map[string]json.RawMessage)
			s.mu.Unlock()
			return nil
		}
		return err
	}
	var blobs map[string]json.RawMessage
	if err := json.Unmarshal(data, &blobs); err != nil {
		slog.Warn("config: corrupt knob config file, ignoring", "path", s.path, "err", err)
		return nil
	}
	s.mu.Lock()
	s.blobs = blobs
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name == s.path && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				if err := s.reload(); err != nil {
					slog.Warn("config: reload after external edit failed", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}

// Get returns the raw JSON config stored for knobID.
func (s *JSONStore) Get(knobID string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[knobID]
	return b, ok, nil
}

// Set schedules a debounced write of knobID's config to disk.
func (s *JSONStore) Set(knobID string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	s.blobs[knobID] = cp

	if s.pending == nil {
		s.pending = make(map[string]json.RawMessage, len(s.blobs))
	}
	for k, v := range s.blobs {
		s.pending[k] = v
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		s.mu.Lock()
		snapshot := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snapshot != nil {
			if err := s.writeAtomic(snapshot); err != nil {
				slog.Error("config: failed to write knob config", "path", s.path, "err", err)
			}
		}
	})
	return nil
}

// Digest returns the 8-hex-digit config_sha over the sorted (knob_id, blob)
// set, matching the aggregator's ZonesDigest computation style.
func (s *JSONStore) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeDigest(s.blobs)
}

func computeDigest(blobs map[string]json.RawMessage) string {
	ids := make([]string, 0, len(blobs))
	for id := range blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := sha1.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write(blobs[id])
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:4])
}

// Flush forces an immediate write of any pending state.
func (s *JSONStore) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	snapshot := s.pending
	s.pending = nil
	s.mu.Unlock()
	if snapshot == nil {
		return nil
	}
	return s.writeAtomic(snapshot)
}

func (s *JSONStore) writeAtomic(blobs map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(blobs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Close stops the file watcher.
func (s *JSONStore) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

var _ Store = (*JSONStore)(nil)
