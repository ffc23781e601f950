package meshdust

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualHost queues frame requests until the test fires them.
type manualHost struct {
	mu       sync.Mutex
	queue    []*manualFrame
	requests int
}

type manualFrame struct {
	fn        func()
	cancelled bool
}

func (h *manualHost) RequestFrame(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := &manualFrame{fn: fn}
	h.queue = append(h.queue, f)
	h.requests++
	return func() {
		h.mu.Lock()
		f.cancelled = true
		h.mu.Unlock()
	}
}

func (h *manualHost) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, f := range h.queue {
		if !f.cancelled {
			n++
		}
	}
	return n
}

// fire runs every queued callback, ignoring cancellation when force is set
// to mimic a host that delivers a frame late.
func (h *manualHost) fire(force bool) {
	h.mu.Lock()
	queue := h.queue
	h.queue = nil
	h.mu.Unlock()
	for _, f := range queue {
		if f.cancelled && !force {
			continue
		}
		f.fn()
	}
}

func TestAnimationDriver_StartStop(t *testing.T) {
	host := &manualHost{}
	var frames int
	d := NewAnimationDriver(host, func() { frames++ })

	assert.Equal(t, DriverStopped, d.State())
	d.Start()
	assert.Equal(t, DriverRunning, d.State())
	assert.Equal(t, 1, host.pending())

	// idempotent
	d.Start()
	assert.Equal(t, 1, host.pending())

	host.fire(false)
	host.fire(false)
	host.fire(false)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 1, host.pending())

	d.Stop()
	assert.Equal(t, DriverStopped, d.State())
	assert.Zero(t, host.pending())
	d.Stop()
	assert.Equal(t, DriverStopped, d.State())

	host.fire(false)
	assert.Equal(t, 3, frames)
}

func TestAnimationDriver_LateCallbackAfterStopIsIgnored(t *testing.T) {
	host := &manualHost{}
	var frames int
	d := NewAnimationDriver(host, func() { frames++ })

	d.Start()
	d.Stop()
	host.fire(true)
	assert.Zero(t, frames)

	// a stale callback from the first run must not fire in the second
	d.Start()
	host.queue = append([]*manualFrame{{fn: func() { d.run(1) }}}, host.queue...)
	host.fire(false)
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, host.pending())
}

func TestAnimationDriver_StopWaitsForRunningFrame(t *testing.T) {
	host := &manualHost{}
	entered := make(chan struct{})
	release := make(chan struct{})
	var done atomic.Bool

	d := NewAnimationDriver(host, func() {
		close(entered)
		<-release
		done.Store(true)
	})
	d.Start()
	go host.fire(false)
	<-entered

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a frame was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-stopped
	assert.True(t, done.Load())
	assert.Zero(t, host.pending())
}

func TestTickerHost_DrivesFrames(t *testing.T) {
	var frames atomic.Int32
	d := NewAnimationDriver(NewTickerHost(time.Millisecond), func() { frames.Add(1) })
	d.Start()
	require.Eventually(t, func() bool { return frames.Load() >= 3 }, time.Second, time.Millisecond)
	d.Stop()

	n := frames.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, frames.Load())
}

func TestNewAnimationDriver_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewAnimationDriver(nil, func() {}) })
	assert.Panics(t, func() { NewAnimationDriver(&manualHost{}, nil) })
}
