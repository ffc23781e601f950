package meshdust

import (
	"sync"
	"time"
)

type DriverState int32

const (
	DriverStopped DriverState = iota
	DriverRunning
)

func (s DriverState) String() string {
	if s == DriverRunning {
		return "running"
	}
	return "stopped"
}

// FrameHost schedules one callback on the host's presentation schedule.
// The returned func cancels the callback if it has not fired yet.
type FrameHost interface {
	RequestFrame(fn func()) (cancel func())
}

// TickerHost is a FrameHost backed by timers, for headless use.
type TickerHost struct {
	Interval time.Duration
}

// DefaultFrameInterval approximates a 60 Hz display.
const DefaultFrameInterval = 16 * time.Millisecond

func NewTickerHost(interval time.Duration) *TickerHost {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerHost{Interval: interval}
}

func (h *TickerHost) RequestFrame(fn func()) func() {
	t := time.AfterFunc(h.Interval, fn)
	return func() { t.Stop() }
}

// AnimationDriver runs frame on every host frame while Running. Each start
// gets a new epoch so callbacks scheduled before a stop are ignored even if
// the host fires them late.
type AnimationDriver struct {
	mu     sync.Mutex
	state  DriverState
	epoch  uint64
	cancel func()

	// held for the duration of one frame; Stop takes it to wait out a
	// frame that is already executing.
	frameMu sync.Mutex

	host  FrameHost
	frame func()
}

func NewAnimationDriver(host FrameHost, frame func()) *AnimationDriver {
	if host == nil {
		panic("meshdust: nil FrameHost")
	}
	if frame == nil {
		panic("meshdust: nil frame func")
	}
	return &AnimationDriver{host: host, frame: frame}
}

func (d *AnimationDriver) State() DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start moves Stopped to Running and schedules the first frame.
func (d *AnimationDriver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DriverRunning {
		return
	}
	d.state = DriverRunning
	d.epoch++
	d.scheduleLocked(d.epoch)
}

// Stop moves Running to Stopped, cancels the pending callback and waits for
// an executing frame to return. It must not be called from inside frame.
func (d *AnimationDriver) Stop() {
	d.mu.Lock()
	if d.state == DriverStopped {
		d.mu.Unlock()
		return
	}
	d.state = DriverStopped
	d.epoch++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.frameMu.Lock()
	d.frameMu.Unlock()
}

func (d *AnimationDriver) scheduleLocked(epoch uint64) {
	d.cancel = d.host.RequestFrame(func() { d.run(epoch) })
}

func (d *AnimationDriver) run(epoch uint64) {
	d.frameMu.Lock()
	d.mu.Lock()
	if d.state != DriverRunning || d.epoch != epoch {
		d.mu.Unlock()
		d.frameMu.Unlock()
		return
	}
	d.cancel = nil
	d.mu.Unlock()

	d.frame()
	d.frameMu.Unlock()

	d.mu.Lock()
	if d.state == DriverRunning && d.epoch == epoch {
		d.scheduleLocked(epoch)
	}
	d.mu.Unlock()
}
