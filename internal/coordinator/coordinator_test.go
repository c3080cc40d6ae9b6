package coordinator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openhorizonlabs/uhc/internal/adapter"
	"github.com/openhorizonlabs/uhc/internal/coordinator"
	"github.com/openhorizonlabs/uhc/internal/models"
)

// fakeAdapter is an in-process adapter.Startable used to exercise the
// coordinator without touching the network, matching the teacher's
// hardware.NewMock() pattern.
type fakeAdapter struct {
	source     models.Source
	startErr   error
	started    atomic.Bool
	stopDelay  time.Duration
	stopCalled atomic.Bool
}

func (f *fakeAdapter) Source() models.Source { return f.source }
func (f *fakeAdapter) Configure(adapter.ConnectionParams) error { return nil }
func (f *fakeAdapter) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}
func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.stopCalled.Store(true)
	if f.stopDelay > 0 {
		select {
		case <-time.After(f.stopDelay):
		case <-ctx.Done():
		}
	}
	return nil
}
func (f *fakeAdapter) Status() adapter.Status {
	return adapter.Status{Connected: f.started.Load()}
}

func TestStartSkipsFailingAdapterButStartsRest(t *testing.T) {
	ok := &fakeAdapter{source: models.SourceRoon}
	bad := &fakeAdapter{source: models.SourceHQPlayer, startErr: errBoom}
	ok2 := &fakeAdapter{source: models.SourceMediaServer}

	c := coordinator.New([]adapter.Startable{ok, bad, ok2})
	c.Start(context.Background())

	if !ok.started.Load() {
		t.Error("expected first adapter to have started")
	}
	if bad.started.Load() {
		t.Error("failing adapter should not be marked started")
	}
	if !ok2.started.Load() {
		t.Error("adapter after a failing one should still start")
	}
}

func TestStopStopsAllAdaptersConcurrently(t *testing.T) {
	a := &fakeAdapter{source: models.SourceRoon, stopDelay: 50 * time.Millisecond}
	b := &fakeAdapter{source: models.SourceHQPlayer, stopDelay: 50 * time.Millisecond}
	c := coordinator.New([]adapter.Startable{a, b})

	start := time.Now()
	c.Stop(context.Background())
	elapsed := time.Since(start)

	if !a.stopCalled.Load() || !b.stopCalled.Load() {
		t.Fatal("expected both adapters to have Stop called")
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("adapters were not stopped concurrently: took %v", elapsed)
	}
}

func TestStatusesReportsPerSource(t *testing.T) {
	a := &fakeAdapter{source: models.SourceRoon}
	c := coordinator.New([]adapter.Startable{a})
	c.Start(context.Background())

	statuses := c.Statuses()
	st, ok := statuses["roon"]
	if !ok {
		t.Fatal("expected a status entry for roon")
	}
	if !st.Connected {
		t.Error("expected roon status to report connected after start")
	}
}

var errBoom = &fakeErr{"boom"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }
