package meshdust

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gekko3d/meshdust/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel/metric"
)

// Status messages shown to the user while loading.
const (
	StatusLoading = "Loading file..."
	statusErrorFx = "Error: %v"
)

// Presenter is the renderer boundary. Both calls happen once per frame,
// while the engine holds its lock, so set stays valid until they return.
type Presenter interface {
	UpdateControls()
	Draw(set *InstanceSet) error
}

type engineOptions struct {
	logger     Logger
	rng        Rand
	mode       SamplingMode
	frameDelta float32
	host       FrameHost
	presenter  Presenter
	releaser   ResourceReleaser
	meter      metric.MeterProvider
	params     Params
}

type EngineOption func(*engineOptions)

func WithLogger(l Logger) EngineOption { return func(o *engineOptions) { o.logger = l } }

// WithRand injects the random source; seeded sources make runs repeatable.
func WithRand(r Rand) EngineOption { return func(o *engineOptions) { o.rng = r } }

func WithSamplingMode(m SamplingMode) EngineOption {
	return func(o *engineOptions) { o.mode = m }
}

func WithFrameDelta(dt float32) EngineOption {
	return func(o *engineOptions) { o.frameDelta = dt }
}

func WithHost(h FrameHost) EngineOption { return func(o *engineOptions) { o.host = h } }

// WithPresenter installs the renderer. A presenter that also implements
// ResourceReleaser is registered as the store's releaser.
func WithPresenter(p Presenter) EngineOption {
	return func(o *engineOptions) { o.presenter = p }
}

func WithReleaser(r ResourceReleaser) EngineOption {
	return func(o *engineOptions) { o.releaser = r }
}

func WithMeterProvider(mp metric.MeterProvider) EngineOption {
	return func(o *engineOptions) { o.meter = mp }
}

func WithParams(p Params) EngineOption { return func(o *engineOptions) { o.params = p } }

type loadResult struct {
	seq    uint64
	source string
	mesh   *mesh.NormalizedMesh
	err    error
}

// Engine ties the store, compositor and driver together. Every mutation of
// the instance set happens under mu, so regeneration never interleaves with
// a frame.
type Engine struct {
	mu         sync.Mutex
	params     Params
	effects    EffectState
	mesh       *mesh.NormalizedMesh
	status     string
	closed     bool
	frameDelta float32

	// true when the previous frame composed effects; one more compose after
	// they switch off restores base scale.
	effectsWereOn bool
	scratch       []mgl32.Mat4

	store     *InstanceStore
	driver    *AnimationDriver
	presenter Presenter
	rng       Rand
	logger    Logger
	metrics   *engineMetrics

	loadMu  sync.Mutex
	loadSeq uint64
	pending []loadResult
}

func NewEngine(opts ...EngineOption) *Engine {
	o := engineOptions{
		frameDelta: DefaultFrameDelta,
		params:     DefaultParams(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewNopLogger()
	}
	if o.rng == nil {
		o.rng = globalRand{}
	}
	if o.host == nil {
		o.host = NewTickerHost(DefaultFrameInterval)
	}
	if o.frameDelta <= 0 {
		o.frameDelta = DefaultFrameDelta
	}
	if o.releaser == nil {
		if r, ok := o.presenter.(ResourceReleaser); ok {
			o.releaser = r
		}
	}

	metrics, err := newEngineMetrics(o.meter)
	if err != nil {
		o.logger.Warnf("metrics disabled: %v", err)
		metrics = nopEngineMetrics()
	}

	p := o.params.Clamped()
	e := &Engine{
		params:     p,
		effects:    EffectState{}.WithParams(p),
		frameDelta: o.frameDelta,
		store:      NewInstanceStore(o.mode, o.rng, o.logger),
		presenter:  o.presenter,
		rng:        o.rng,
		logger:     o.logger,
		metrics:    metrics,
	}
	if o.releaser != nil {
		e.store.SetReleaser(o.releaser)
	}
	e.driver = NewAnimationDriver(o.host, e.Tick)
	return e
}

func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *Engine) Effects() EffectState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effects
}

// Status is the user-facing message: empty after success, StatusLoading
// while a decode is in flight, "Error: ..." after a failed load.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Current returns the live instance set. Only read it from the frame thread
// or while the driver is stopped.
func (e *Engine) Current() *InstanceSet {
	return e.store.Current()
}

func (e *Engine) HasMesh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mesh != nil
}

func (e *Engine) State() DriverState { return e.driver.State() }

// SetParams clamps p and makes it current. Density, size or material
// changes regenerate the cloud; effect toggles and orbit speed are picked up
// by the next frame.
func (e *Engine) SetParams(p Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := p.Clamped()
	regen := e.params.NeedsRegeneration(next)
	e.params = next
	e.effects = e.effects.WithParams(next)
	if !regen || e.mesh == nil {
		return nil
	}
	return e.regenerateLocked(e.mesh, false)
}

// Regenerate resamples the current mesh with the current params.
func (e *Engine) Regenerate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mesh == nil {
		return ErrNoMesh
	}
	return e.regenerateLocked(e.mesh, false)
}

// LoadMesh commits an already decoded mesh. It supersedes any load still in
// flight and resets the container rotation.
func (e *Engine) LoadMesh(m *mesh.NormalizedMesh) error {
	e.loadMu.Lock()
	e.loadSeq++
	e.loadMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitMeshLocked(m)
}

// LoadBytes decodes raw on a background goroutine. The result is committed
// at the start of the next frame, or by Pump when no driver is running.
func (e *Engine) LoadBytes(raw []byte, format mesh.Format) {
	seq := e.beginLoad()
	go func() {
		m, err := mesh.Decode(raw, format)
		e.finishLoad(loadResult{seq: seq, source: string(format), mesh: m, err: err})
	}()
}

// LoadFile reads and decodes path in the background; the format comes from
// the extension.
func (e *Engine) LoadFile(path string) {
	seq := e.beginLoad()
	go func() {
		format := mesh.FormatFromPath(path)
		raw, err := os.ReadFile(path)
		if err != nil {
			e.finishLoad(loadResult{seq: seq, source: path, err: fmt.Errorf("read %s: %w", path, err)})
			return
		}
		m, err := mesh.Decode(raw, format)
		e.finishLoad(loadResult{seq: seq, source: path, mesh: m, err: err})
	}()
}

func (e *Engine) beginLoad() uint64 {
	e.loadMu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	e.loadMu.Unlock()

	e.mu.Lock()
	e.status = StatusLoading
	e.mu.Unlock()
	return seq
}

func (e *Engine) finishLoad(r loadResult) {
	e.loadMu.Lock()
	e.pending = append(e.pending, r)
	e.loadMu.Unlock()
}

// Pump commits finished loads outside the frame loop.
func (e *Engine) Pump() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitLoadsLocked()
}

func (e *Engine) commitLoadsLocked() {
	e.loadMu.Lock()
	pending := e.pending
	e.pending = nil
	latest := e.loadSeq
	e.loadMu.Unlock()

	for _, r := range pending {
		if r.seq != latest {
			e.logger.Debugf("dropping superseded load of %s", r.source)
			continue
		}
		if r.err != nil {
			e.failLoadLocked(r.source, r.err)
			continue
		}
		if err := e.commitMeshLocked(r.mesh); err != nil {
			e.failLoadLocked(r.source, err)
			continue
		}
		e.logger.Infof("loaded %s: %d vertices, %d particles",
			r.source, r.mesh.VertexCount(), e.store.Current().Count())
	}
}

func (e *Engine) failLoadLocked(source string, err error) {
	format := "unknown"
	var de *mesh.DecodeError
	if errors.As(err, &de) {
		format = string(de.Format)
	}
	e.metrics.decodeFailed(format)
	e.status = fmt.Sprintf(statusErrorFx, err)
	e.logger.Warnf("loading %s: %v", source, err)
}

func (e *Engine) commitMeshLocked(m *mesh.NormalizedMesh) error {
	if e.closed {
		return errors.New("engine closed")
	}
	if m == nil || m.VertexCount() == 0 {
		return &mesh.DecodeError{Err: mesh.ErrEmptyMesh}
	}
	if err := e.regenerateLocked(m, true); err != nil {
		return err
	}
	e.mesh = m
	e.status = ""
	return nil
}

func (e *Engine) regenerateLocked(m *mesh.NormalizedMesh, newMesh bool) error {
	before := e.store.Current().Count()
	set, err := e.store.Regenerate(Regeneration{Mesh: m, Params: e.params, NewMesh: newMesh})
	if err != nil {
		return err
	}
	if newMesh {
		e.effects.RotationAngle = 0
	}
	e.metrics.regenerated(newMesh, before, set.Count())
	return nil
}

// ApplyTransforms writes per-instance matrices directly, independent of the
// frame loop.
func (e *Engine) ApplyTransforms(transforms []mgl32.Mat4) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ApplyTransforms(transforms)
}

// Tick runs one frame: commit finished loads, advance the effect clock and
// orbit, compose and apply transforms, then hand the set to the presenter.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.commitLoadsLocked()

	e.effects = e.effects.Advance(e.frameDelta)
	e.store.SetContainerRotation(e.effects.RotationAngle)

	active := e.params.EffectsActive()
	if active || e.effectsWereOn {
		e.scratch = Compose(e.store.CurrentRecords(), e.effects, e.rng, e.scratch)
		if err := e.store.ApplyTransforms(e.scratch); err != nil {
			e.logger.Errorf("apply transforms: %v", err)
		}
	}
	e.effectsWereOn = active
	e.metrics.frame()

	if e.presenter == nil {
		return
	}
	e.presenter.UpdateControls()
	if err := e.presenter.Draw(e.store.Current()); err != nil {
		e.logger.Warnf("draw: %v", err)
	}
}

func (e *Engine) Start() { e.driver.Start() }

func (e *Engine) Stop() { e.driver.Stop() }

// Close stops the driver before releasing renderer resources.
func (e *Engine) Close() {
	e.driver.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.metrics.released(e.store.Current().Count())
	e.store.Release()
	e.mesh = nil
}
