// Package adapter defines the uniform lifecycle every backend adapter
// implements, generalizing the teacher's hardware.Driver interface
// (internal/hardware/driver.go) from one physical bus to five independent
// network backends.
package adapter

import (
	"context"

	"github.com/openhorizonlabs/uhc/internal/models"
)

// ConnectionParams configures an adapter before Start is called. Host/Port
// cover the common TCP/HTTP backends; Extra carries backend-specific values
// (e.g. the media-server's player ID prefix, Roon's extension display name).
type ConnectionParams struct {
	Host  string
	Port  int
	Extra map[string]string
}

// Status is the point-in-time health of an adapter, the only way the
// aggregator and HTTP layer are allowed to learn about connection health —
// they never dial into adapters directly (spec §4.2).
type Status struct {
	Connected bool
	Host      string
	Port      int
	LastError string
}

// Startable is the uniform lifecycle every backend adapter implements.
type Startable interface {
	// Source identifies which backend this adapter speaks for.
	Source() models.Source

	// Configure stores connection parameters. Idempotent; does not connect.
	Configure(params ConnectionParams) error

	// Start begins background I/O. It returns once the adapter has moved
	// past its initial connect attempt, success or scheduled retry — it
	// does not block until connected. Safe to call again after Stop.
	Start(ctx context.Context) error

	// Stop cancels background work and closes sockets. Must return within
	// a bounded interval (recommend 2s) and cooperate with ctx cancellation.
	Stop(ctx context.Context) error

	// Status reports current connection health.
	Status() Status
}
