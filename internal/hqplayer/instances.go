package hqplayer

import (
	"context"
	"fmt"
	"sync"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/bus"
)

// InstanceManager owns one Adapter per configured HQPlayer host, the
// multi-instance requirement of spec §4.4: a listening room's DSP chain and
// a headphone rig's DSP chain are different engines that happen to speak
// the same protocol.
type InstanceManager struct {
	b         *bus.Bus
	newClient NewClientFunc

	mu        sync.RWMutex
	instances map[string]*Adapter
}

// NewInstanceManager creates an empty manager publishing onto b.
func NewInstanceManager(b *bus.Bus) *InstanceManager {
	return &InstanceManager{b: b, instances: make(map[string]*Adapter)}
}

// Add registers and starts a new named instance. Returns an error if the
// name is already in use.
func (m *InstanceManager) Add(ctx context.Context, name, addr string) (*Adapter, error) {
	m.mu.Lock()
	if _, exists := m.instances[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("hqplayer: instance %q already exists", name)
	}
	a := New(m.b, name, addr, m.newClient)
	m.instances[name] = a
	m.mu.Unlock()

	if err := a.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.instances, name)
		m.mu.Unlock()
		return nil, err
	}
	return a, nil
}

// Remove stops and deregisters a named instance.
func (m *InstanceManager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	a, ok := m.instances[name]
	if ok {
		delete(m.instances, name)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("hqplayer: instance %q not found", name)
	}
	return a.Stop(ctx)
}

// Get returns the named instance's Adapter, or ok=false.
func (m *InstanceManager) Get(name string) (*Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.instances[name]
	return a, ok
}

// Names returns every registered instance name.
func (m *InstanceManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.instances))
	for name := range m.instances {
		out = append(out, name)
	}
	return out
}

// StopAll stops every instance; cmd/uhcd calls it on shutdown, right after
// the coordinator's Stop.
func (m *InstanceManager) StopAll(ctx context.Context) {
	m.mu.RLock()
	adapters := make([]*Adapter, 0, len(m.instances))
	for _, a := range m.instances {
		adapters = append(adapters, a)
	}
	m.mu.RUnlock()
	for _, a := range adapters {
		_ = a.Stop(ctx)
	}
}

var _ adapter.Startable = (*Adapter)(nil)
