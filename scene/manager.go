package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/model"
	"github.com/security-somanos/blockchain-center/overlay"
	"github.com/security-somanos/blockchain-center/tessellate"
	"github.com/security-somanos/blockchain-center/timectrl"
)

var (
	// ErrDisposed is returned by operations on a disposed manager,
	// including a Mount that was interrupted by Dispose.
	ErrDisposed = errors.New("scene: disposed")
	// ErrMounted is returned when Mount is called twice.
	ErrMounted = errors.New("scene: already mounted")
	// ErrNotReady is returned by RenderNow before the scene is ready.
	ErrNotReady = errors.New("scene: not ready")
)

// FrameInterval caps rendering at 50 frames per second.
const FrameInterval = time.Second / 50

// DefaultSize is used for a container that reports no size.
const DefaultSize = 800

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Progress is a loading-indicator update. Percent only ever increases
// during a mount; Loading turns false once when the mount ends either way.
type Progress struct {
	Percent int
	Loading bool
	Theme   model.PreloaderTheme
}

// LandSource provides the land polygons. *land.Source satisfies it.
type LandSource interface {
	Land(ctx context.Context) (*land.Land, error)
}

// Recorder receives scene lifecycle metrics.
type Recorder interface {
	ObserveMount(result string)
	SceneStarted()
	SceneStopped()
	IncFrames()
}

// Config wires a Manager to its collaborators. Engine, Host and Frames
// are required.
type Config struct {
	Options    model.Options
	Engine     Engine
	Host       Host
	Frames     timectrl.FrameScheduler
	Land       LandSource           // defaults to land.Default()
	Layers     *tessellate.Pipeline // defaults to the shared cache and a goroutine runner
	Logger     logging.Logger
	Metrics    Recorder
	OnProgress func(Progress)
	Now        func() time.Time
}

// Manager owns one mounted globe from Mount to Dispose. Its methods are
// safe for concurrent use; host events, frame callbacks and Dispose are
// serialized on an internal lock.
type Manager struct {
	opts       model.Options
	engine     Engine
	host       Host
	frames     timectrl.FrameScheduler
	source     LandSource
	pipeline   *tessellate.Pipeline
	log        logging.Logger
	metrics    Recorder
	onProgress func(Progress)
	now        func() time.Time

	mu          sync.Mutex
	state       State
	cancelMount context.CancelFunc
	progress    int

	width, height int
	camera        *Camera
	controls      *OrbitControls
	renderer      Renderer
	labels        LabelRenderer
	graph         *Graph
	labelSet      *overlay.LabelSet
	hasLabels     bool

	observers []func()
	listeners []func()

	frame        timectrl.FrameID
	last         time.Time
	acc          time.Duration
	hidden       bool
	intersecting bool
	hovering     bool
	rendered     int
}

// New validates cfg and returns an unmounted manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Engine == nil || cfg.Host == nil || cfg.Frames == nil {
		return nil, errors.New("scene: engine, host and frame scheduler are required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	m := &Manager{
		opts:         cfg.Options,
		engine:       cfg.Engine,
		host:         cfg.Host,
		frames:       cfg.Frames,
		source:       cfg.Land,
		pipeline:     cfg.Layers,
		log:          cfg.Logger,
		metrics:      cfg.Metrics,
		onProgress:   cfg.OnProgress,
		now:          cfg.Now,
		intersecting: true,
	}
	if m.source == nil {
		m.source = land.Default()
	}
	if m.pipeline == nil {
		m.pipeline = &tessellate.Pipeline{}
	}
	if m.log == nil {
		m.log = logging.Noop()
	}
	if m.metrics == nil {
		m.metrics = (*observability.GlobeCollector)(nil)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Mount builds the scene and starts the frame loop. It blocks while the
// land dataset loads and the layers are tessellated. On any failure,
// including a concurrent Dispose, everything acquired so far is released
// and the manager ends Disposed; a disposed mount returns ErrDisposed.
func (m *Manager) Mount(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateUninitialized:
	case StateDisposed:
		m.mu.Unlock()
		return ErrDisposed
	default:
		m.mu.Unlock()
		return ErrMounted
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.cancelMount = cancel
	m.state = StateLoading
	m.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "scene.Mount",
		attribute.Float64("tile_deg", m.opts.TileDeg),
		attribute.Int("pins", len(m.opts.Pins)),
	)
	defer span.End()
	start := time.Now()

	err := m.mount(ctx)
	m.finishProgress()
	if err == nil {
		m.metrics.ObserveMount(observability.MountReady)
		w, h := m.Size()
		m.log.Info(ctx, "globe mounted",
			logging.Duration("elapsed", time.Since(start)),
			logging.Int("width", w),
			logging.Int("height", h),
		)
		return nil
	}

	m.mu.Lock()
	disposed := m.state == StateDisposed
	m.teardownLocked()
	m.mu.Unlock()

	if disposed || errors.Is(err, ErrDisposed) {
		m.metrics.ObserveMount(observability.MountCancelled)
		m.log.Debug(ctx, "mount abandoned after dispose")
		return ErrDisposed
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.metrics.ObserveMount(observability.MountCancelled)
	} else {
		m.metrics.ObserveMount(observability.MountFailed)
	}
	m.log.Error(ctx, "globe mount failed", logging.Err(err))
	return fmt.Errorf("mount globe: %w", err)
}

func (m *Manager) mount(ctx context.Context) error {
	if err := m.locked(m.setupLocked); err != nil {
		return err
	}
	m.report(20)

	if err := m.locked(m.attachPinsLocked); err != nil {
		return err
	}
	m.report(35)

	l, err := m.source.Land(ctx)
	if err != nil {
		return fmt.Errorf("load land: %w", err)
	}
	if err := m.alive(); err != nil {
		return err
	}

	layers, err := m.pipeline.Layers(ctx, l, m.opts.TileDeg, func(s tessellate.Stage) {
		switch s {
		case tessellate.StageCached:
			m.report(65)
		case tessellate.StageEdges:
			m.report(40)
		case tessellate.StageFill:
			m.report(70)
		case tessellate.StageDone:
			m.report(100)
		}
	})
	if err != nil {
		return err
	}

	return m.locked(func() error { return m.finishLocked(layers) })
}

// locked runs fn under the lock unless the manager was disposed.
func (m *Manager) locked(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisposed {
		return ErrDisposed
	}
	return fn()
}

func (m *Manager) alive() error {
	return m.locked(func() error { return nil })
}

func (m *Manager) setupLocked() error {
	m.host.Clear()
	w, h := m.host.Size()
	if w <= 0 {
		w = DefaultSize
	}
	if h <= 0 {
		h = DefaultSize
	}
	m.width, m.height = w, h

	ratio := m.host.DevicePixelRatio()
	if ratio <= 0 || math.IsNaN(ratio) {
		ratio = 1
	}
	r, err := m.engine.NewRenderer(RendererConfig{
		Width:       w,
		Height:      h,
		PixelRatio:  math.Min(ratio, 2),
		Transparent: true,
	})
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	m.renderer = r
	m.host.Append(r.Element())

	m.camera = NewCamera(float64(w) / float64(h))
	m.controls = NewOrbitControls(m.camera, h, m.opts.Zoom)
	m.graph = &Graph{}
	if strings.EqualFold(m.opts.Rotation, model.RotationSidereal) {
		m.graph.RotationY = SiderealPhase(m.now())
	}
	return nil
}

func (m *Manager) attachPinsLocked() error {
	style := overlay.StyleFromOptions(m.opts)
	markers := make([]*overlay.Marker, 0, len(m.opts.Pins))
	for _, pin := range m.opts.Pins {
		marker := overlay.NewMarker(pin, style)
		markers = append(markers, marker)

		node := &PinNode{Marker: marker}
		m.graph.Pins = append(m.graph.Pins, node)
		var err error
		if node.Sphere, err = m.engine.NewSphereGeometry(marker.Radius); err != nil {
			return fmt.Errorf("pin %q sphere: %w", pin.Name, err)
		}
		if node.Material, err = m.engine.NewPinMaterial(marker.Color); err != nil {
			return fmt.Errorf("pin %q material: %w", pin.Name, err)
		}
		if node.Halo, err = m.engine.NewHaloMaterial(marker.Color); err != nil {
			return fmt.Errorf("pin %q halo: %w", pin.Name, err)
		}
	}
	m.labelSet = overlay.NewLabelSet(markers)
	m.hasLabels = model.AnyLabels(m.opts.Pins)
	return nil
}

func (m *Manager) addPointsLayer(name string, positions tessellate.Buffer, style PointsStyle) error {
	layer := &PointsLayer{Name: name, Positions: positions, Style: style}
	m.graph.Layers = append(m.graph.Layers, layer)
	var err error
	if layer.Geometry, err = m.engine.NewPointsGeometry(positions); err != nil {
		return fmt.Errorf("%s geometry: %w", name, err)
	}
	if layer.Material, err = m.engine.NewPointsMaterial(style); err != nil {
		return fmt.Errorf("%s material: %w", name, err)
	}
	return nil
}

func (m *Manager) finishLocked(layers tessellate.Layers) error {
	o := m.opts
	if err := m.addPointsLayer(string(tessellate.KindEdge), layers.Edge, PointsStyle{
		Color:       o.PointColor,
		Size:        o.PointSize,
		Opacity:     1,
		BackOpacity: o.BackOpacity,
	}); err != nil {
		return err
	}
	if err := m.addPointsLayer(string(tessellate.KindFill), layers.Fill, PointsStyle{
		Color:       o.FillColor,
		Size:        math.Max(0.75*o.PointSize, 0.003),
		Opacity:     o.FillOpacity,
		BackOpacity: o.BackOpacity,
	}); err != nil {
		return err
	}

	lr, err := m.engine.NewLabelRenderer(m.width, m.height)
	if err != nil {
		return fmt.Errorf("create label renderer: %w", err)
	}
	m.labels = lr
	m.host.Append(lr.Element())

	m.listeners = append(m.listeners, m.host.OnPointer(m.handlePointer))
	m.host.SetCursor(CursorGrab)

	m.hidden = m.host.Hidden()
	m.observers = append(m.observers,
		m.host.OnResize(m.handleResize),
		m.host.OnVisibility(m.handleVisibility),
		m.host.OnIntersection(m.handleIntersection),
	)

	m.state = StateReady
	m.metrics.SceneStarted()
	m.renderLocked()
	m.updateRunningLocked()
	return nil
}

// report publishes a loading milestone. Values that do not advance the
// indicator are dropped.
func (m *Manager) report(pct int) {
	m.mu.Lock()
	if pct <= m.progress || m.state == StateDisposed {
		m.mu.Unlock()
		return
	}
	m.progress = pct
	m.mu.Unlock()
	if m.onProgress != nil {
		m.onProgress(Progress{Percent: pct, Loading: true, Theme: m.opts.PreloaderTheme})
	}
}

// finishProgress clears the loading indicator.
func (m *Manager) finishProgress() {
	m.mu.Lock()
	pct := m.progress
	m.mu.Unlock()
	if m.onProgress != nil {
		m.onProgress(Progress{Percent: pct, Loading: false, Theme: m.opts.PreloaderTheme})
	}
}

// Dispose stops the loop, interrupts a mount in progress and releases
// every resource the scene holds. It is idempotent.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	wasReady := m.state == StateReady
	m.state = StateDisposed
	if m.cancelMount != nil {
		m.cancelMount()
		m.cancelMount = nil
	}

	m.stopLocked()
	for _, remove := range m.observers {
		remove()
	}
	m.observers = nil

	if m.labels != nil {
		m.host.Remove(m.labels.Element())
		m.labels.Dispose()
		m.labels = nil
	}
	for _, remove := range m.listeners {
		remove()
	}
	m.listeners = nil

	if m.controls != nil {
		m.controls.Dispose()
		m.controls = nil
	}
	if m.graph != nil {
		m.graph.dispose()
	}
	if m.renderer != nil {
		m.renderer.Dispose()
		m.host.Remove(m.renderer.Element())
		m.renderer = nil
	}
	if wasReady {
		m.metrics.SceneStopped()
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the frame loop is scheduled.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame != 0
}

// Progress returns the last published loading percentage.
func (m *Manager) Progress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Size returns the current viewport size.
func (m *Manager) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

// Rendered returns the number of frames drawn so far.
func (m *Manager) Rendered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}

// VisibleLabels returns the indices of pins whose label is showing.
func (m *Manager) VisibleLabels() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labelSet == nil {
		return nil
	}
	return m.labelSet.Visible()
}

// PinScreenPosition returns the container position of pin i, or false if
// the pin is behind the camera or out of range.
func (m *Manager) PinScreenPosition(i int) (x, y float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil || i < 0 || i >= len(m.graph.Pins) {
		return 0, 0, false
	}
	ndcX, ndcY, ok := m.camera.Project(m.graph.World(m.graph.Pins[i].Marker.Anchor))
	if !ok {
		return 0, 0, false
	}
	x, y = FromNDC(ndcX, ndcY, m.width, m.height)
	return x, y, true
}

// RenderNow draws one frame outside the loop.
func (m *Manager) RenderNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateReady:
		m.renderLocked()
		return nil
	case StateDisposed:
		return ErrDisposed
	default:
		return ErrNotReady
	}
}

// Rotate turns the globe by delta radians about its polar axis. The
// change shows on the next rendered frame.
func (m *Manager) Rotate(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph != nil {
		m.graph.RotationY += delta
	}
}

// RotationY returns the current spin angle in radians.
func (m *Manager) RotationY() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		return 0
	}
	return m.graph.RotationY
}
